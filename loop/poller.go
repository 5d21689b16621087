// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package loop

import (
	"time"
)

// IOEvents represents the type of I/O events to monitor.
type IOEvents uint32

const (
	// EventRead indicates the file descriptor is ready for reading.
	EventRead IOEvents = 1 << iota
	// EventWrite indicates the file descriptor is ready for writing.
	EventWrite
	// EventError indicates an error condition on the file descriptor.
	EventError
	// EventHangup indicates the peer closed its end of the connection.
	EventHangup
)

// IOCallback is the callback type for I/O events.
type IOCallback func(IOEvents)

// RegisterFD registers a file descriptor for I/O readiness monitoring. The
// callback runs on the loop goroutine, during the poll phase. A registered
// fd keeps the loop alive.
//
// Always call UnregisterFD before closing a file descriptor, to prevent
// stale event delivery due to fd recycling.
func (l *Loop) RegisterFD(fd int, events IOEvents, callback IOCallback) error {
	if l.state.Load() == StateClosed {
		return ErrLoopClosed
	}
	if err := l.poller.RegisterFD(fd, events, func(ev IOEvents) {
		l.safeExecute(`poll`, func() { callback(ev) })
	}); err != nil {
		return err
	}
	l.fds++
	return nil
}

// UnregisterFD removes a file descriptor from monitoring.
func (l *Loop) UnregisterFD(fd int) error {
	if err := l.poller.UnregisterFD(fd); err != nil {
		return err
	}
	l.fds--
	return nil
}

// ModifyFD updates the events being monitored for a file descriptor.
func (l *Loop) ModifyFD(fd int, events IOEvents) error {
	return l.poller.ModifyFD(fd, events)
}

// timeoutMillis converts a poll timeout, rounding sub-millisecond delays up
// so a due timer is not spun on.
func timeoutMillis(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	if d < time.Millisecond {
		return 1
	}
	return int((d + time.Millisecond - 1) / time.Millisecond)
}
