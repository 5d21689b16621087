// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build linux

package coop

import (
	"testing"

	"github.com/joeycumines/go-coop/loop"
	"github.com/joeycumines/go-coop/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestPoll_pipe(t *testing.T) {
	rt := newTestRuntime(t)

	var fds [2]int
	require.NoError(t, unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC))
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	p, err := rt.NewPoll(fds[0])
	require.NoError(t, err)
	assert.Equal(t, fds[0], p.FD())
	v, _ := p.Attr(`fd`)
	assert.Equal(t, int64(fds[0]), v)
	require.NoError(t, p.Start(loop.EventRead))
	require.NoError(t, p.Start(loop.EventRead))

	var (
		events loop.IOEvents
		data   []byte
	)
	spawn(t, rt, func(task *Task, _ ...value.Value) ([]value.Value, error) {
		ev, err := p.Wait(task)
		if err != nil {
			return nil, err
		}
		events = ev
		buf := make([]byte, 16)
		n, err := unix.Read(fds[0], buf)
		if err != nil {
			return nil, err
		}
		data = buf[:n]
		return nil, p.Stop()
	})

	_, err = unix.Write(fds[1], []byte(`ping`))
	require.NoError(t, err)

	require.NoError(t, rt.Run())
	assert.NotZero(t, events&loop.EventRead)
	assert.Equal(t, `ping`, string(data))

	p.Close()
	assert.ErrorIs(t, p.Start(loop.EventRead), ErrTaskClosed)
	_, err = p.Wait(rt.Main())
	assert.ErrorIs(t, err, ErrTaskClosed)
}
