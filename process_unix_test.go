// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build unix

package coop

import (
	"os"
	"os/exec"
	"testing"

	"github.com/joeycumines/go-coop/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shell(t *testing.T, script string) *exec.Cmd {
	t.Helper()
	sh, err := exec.LookPath(`sh`)
	if err != nil {
		t.Skip(`sh not found`)
	}
	return exec.Command(sh, `-c`, script)
}

func TestProcess_exitCode(t *testing.T) {
	rt := newTestRuntime(t)
	p, err := rt.NewProcess(shell(t, `exit 3`))
	require.NoError(t, err)
	assert.Equal(t, KindProcess, p.Kind())
	assert.Positive(t, p.Pid())
	v, ok := p.Attr(`pid`)
	require.True(t, ok)
	assert.Equal(t, int64(p.Pid()), v)

	vals, err := p.Join(rt.Main())
	require.NoError(t, err)
	assert.Equal(t, []value.Value{int64(3), nil}, vals)
	assert.ErrorIs(t, p.Kill(os.Interrupt), ErrTaskClosed)
}

func TestProcess_signal(t *testing.T) {
	rt := newTestRuntime(t)
	p, err := rt.NewProcess(shell(t, `kill -TERM $$`))
	require.NoError(t, err)

	var got []value.Value
	spawn(t, rt, func(task *Task, _ ...value.Value) ([]value.Value, error) {
		vals, err := p.Join(task)
		got = vals
		return nil, err
	})
	require.NoError(t, rt.Run())
	assert.Equal(t, []value.Value{int64(-1), `SIGTERM`}, got)
}

func TestProcess_close(t *testing.T) {
	rt := newTestRuntime(t)
	p, err := rt.NewProcess(shell(t, `sleep 30`))
	require.NoError(t, err)

	var waitErr error
	spawn(t, rt, func(task *Task, _ ...value.Value) ([]value.Value, error) {
		_, waitErr = p.Recv(task)
		return nil, nil
	})
	require.NoError(t, rt.Scheduler().RunLoop())
	assert.Equal(t, 1, p.Waiters())

	p.Close()
	require.NoError(t, rt.Run())
	assert.ErrorIs(t, waitErr, ErrClosed)
	assert.True(t, p.Closed())
	assert.NoError(t, p.Err())
	assert.Nil(t, p.Results())
}

func TestNewProcess_startError(t *testing.T) {
	rt := newTestRuntime(t)
	_, err := rt.NewProcess(exec.Command(`/nonexistent/coop-test-binary`))
	assert.Error(t, err)
	assert.Equal(t, 1, rt.Len())
}
