// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_threads(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{`-demo`, `threads`, `-threads`, `3`, `-messages`, `50`}, &stdout, &stderr)
	require.NoError(t, err, stderr.String())
	assert.Equal(t, "threads: 3 threads sent 150 messages\n", stdout.String())
	assert.Contains(t, stderr.String(), `coop: threads demo finished`)
}

func TestRun_echo(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{`-demo`, `echo`, `-clients`, `3`, `-messages`, `5`, `-log-level`, `disabled`}, &stdout, &stderr)
	require.NoError(t, err, stderr.String())
	// each line is "client N message M\n", 19 bytes for single digits
	assert.Equal(t, "echo: 3 clients echoed 285 bytes\n", stdout.String())
	assert.Empty(t, stderr.String())
}

func TestRun_config(t *testing.T) {
	path := writeConfig(t, "demo = \"threads\"\n[threads]\ncount = 1\nmessages = 3\nhwm = 1\n[log]\nlevel = \"disabled\"\n")
	var stdout, stderr bytes.Buffer
	require.NoError(t, run(context.Background(), []string{`-config`, path}, &stdout, &stderr))
	assert.Equal(t, "threads: 1 threads sent 3 messages\n", stdout.String())
}

func TestRun_canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var stdout, stderr bytes.Buffer
	err := run(ctx, []string{`-demo`, `echo`, `-log-level`, `disabled`}, &stdout, &stderr)
	assert.Error(t, err)
	assert.Empty(t, stdout.String())
}

func TestRun_invalidArgs(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Error(t, run(context.Background(), []string{`-demo`, `nope`}, &stdout, &stderr))
	assert.Error(t, run(context.Background(), []string{`extra`}, &stdout, &stderr))
	assert.Error(t, run(context.Background(), []string{`-unknown`}, &stdout, &stderr))
	err := run(context.Background(), []string{`-h`}, &stdout, &stderr)
	assert.True(t, errors.Is(err, flag.ErrHelp))
}
