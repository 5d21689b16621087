// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build linux

package loop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestLoop_registerFD(t *testing.T) {
	l := newTestLoop(t)

	var fds [2]int
	require.NoError(t, unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC))
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	var got []byte
	require.NoError(t, l.RegisterFD(fds[0], EventRead, func(ev IOEvents) {
		assert.NotZero(t, ev&EventRead)
		buf := make([]byte, 16)
		n, err := unix.Read(fds[0], buf)
		require.NoError(t, err)
		got = append(got, buf[:n]...)
		require.NoError(t, l.UnregisterFD(fds[0]))
	}))
	assert.ErrorIs(t, l.RegisterFD(fds[0], EventRead, func(IOEvents) {}), ErrFDAlreadyRegistered)
	assert.ErrorIs(t, l.RegisterFD(-1, EventRead, func(IOEvents) {}), ErrFDOutOfRange)
	require.NoError(t, l.ModifyFD(fds[0], EventRead))

	_, err := unix.Write(fds[1], []byte(`ping`))
	require.NoError(t, err)

	alive, err := l.Run(RunDefault)
	require.NoError(t, err)
	assert.False(t, alive)
	assert.Equal(t, `ping`, string(got))

	assert.ErrorIs(t, l.UnregisterFD(fds[0]), ErrFDNotRegistered)
	assert.ErrorIs(t, l.ModifyFD(fds[0], EventWrite), ErrFDNotRegistered)
}

func TestLoop_wakeInterruptsPoll(t *testing.T) {
	l := newTestLoop(t)
	l.Ref()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for l.State() != StateSleeping {
			time.Sleep(time.Millisecond)
		}
		l.Unref()
	}()
	start := time.Now()
	alive, err := l.Run(RunDefault)
	require.NoError(t, err)
	assert.False(t, alive)
	<-done
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.NotZero(t, l.Metrics().Polls)
}

func TestEpollEventConversion(t *testing.T) {
	assert.Equal(t, uint32(unix.EPOLLIN|unix.EPOLLOUT), eventsToEpoll(EventRead|EventWrite))
	assert.Equal(t, EventRead|EventError|EventHangup, epollToEvents(unix.EPOLLIN|unix.EPOLLERR|unix.EPOLLHUP))
}
