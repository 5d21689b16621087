// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), `coop.toml`)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_defaults(t *testing.T) {
	cfg, err := loadConfig(``)
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)
	assert.NoError(t, cfg.validate())
}

func TestLoadConfig_file(t *testing.T) {
	path := writeConfig(t, `
demo = "echo"

[log]
level = "debug"

[runtime]
read-buffer = 1024
backlog = 4

[threads]
count = 2

[echo]
addr = "127.0.0.1:9999"
clients = 3
timeout = "5s"
`)
	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, `echo`, cfg.Demo)
	assert.Equal(t, `debug`, cfg.Log.Level)
	assert.Equal(t, RuntimeConfig{ReadBuffer: 1024, Backlog: 4}, cfg.Runtime)
	assert.Equal(t, 2, cfg.Threads.Count)
	// unset keys keep their defaults
	assert.Equal(t, 100, cfg.Threads.Messages)
	assert.Equal(t, EchoConfig{Addr: `127.0.0.1:9999`, Clients: 3, Messages: 10, Timeout: 5 * time.Second}, cfg.Echo)
	assert.NoError(t, cfg.validate())
}

func TestLoadConfig_errors(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), `missing.toml`))
	assert.ErrorContains(t, err, `cannot read`)

	_, err = loadConfig(writeConfig(t, `demo = `))
	assert.ErrorContains(t, err, `parse error`)

	_, err = loadConfig(writeConfig(t, "[threads]\nunknown = 1\n"))
	assert.ErrorContains(t, err, `unknown keys`)
}

func TestConfig_validate(t *testing.T) {
	cfg := defaultConfig()
	cfg.Demo = `nope`
	cfg.Log.Level = `loud`
	cfg.Threads.Count = 0
	err := cfg.validate()
	assert.ErrorContains(t, err, `unknown demo "nope"`)
	assert.ErrorContains(t, err, `unknown log level "loud"`)
	assert.ErrorContains(t, err, `threads count`)
}

func TestFlags_apply(t *testing.T) {
	f := newFlags(`test`)
	require.NoError(t, f.set.Parse([]string{`-demo`, `threads`, `-messages`, `7`, `-clients`, `2`, `-timeout`, `1s`}))
	cfg := defaultConfig()
	f.apply(cfg)
	assert.Equal(t, `threads`, cfg.Demo)
	assert.Equal(t, 7, cfg.Threads.Messages)
	assert.Equal(t, 7, cfg.Echo.Messages)
	assert.Equal(t, 2, cfg.Echo.Clients)
	assert.Equal(t, time.Second, cfg.Echo.Timeout)
	// not set, so not applied
	assert.Equal(t, 4, cfg.Threads.Count)
	assert.Equal(t, `info`, cfg.Log.Level)
}

func TestParseLevel(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want logiface.Level
	}{
		{`disabled`, logiface.LevelDisabled},
		{`err`, logiface.LevelError},
		{`info`, logiface.LevelInformational},
		{`trace`, logiface.LevelTrace},
	} {
		level, err := parseLevel(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, level, tc.in)
	}
	_, err := parseLevel(`error`)
	assert.Error(t, err)
}
