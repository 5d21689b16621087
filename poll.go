// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package coop

import (
	"github.com/joeycumines/go-coop/loop"
)

// Poll is a handle task that watches a file descriptor for readiness. The
// descriptor is not owned by the Poll, and is not closed with it.
//
// Readiness is level triggered: a started Poll whose descriptor stays ready
// keeps the loop from blocking, so it should be stopped when not in use.
type Poll struct {
	*Task
	handle
	fd      int
	events  loop.IOEvents
	started bool
}

// NewPoll creates a stopped poll handle for fd.
func (rt *Runtime) NewPoll(fd int) (*Poll, error) {
	if rt.closed {
		return nil, ErrClosed
	}
	x := &Poll{fd: fd}
	x.Task = rt.newTask(KindPoll, x)
	if err := x.SetAttr(`fd`, int64(fd)); err != nil {
		x.Close()
		return nil, err
	}
	return x, nil
}

// FD returns the watched file descriptor.
func (x *Poll) FD() int { return x.fd }

// Start watches for events, or changes the events watched for.
func (x *Poll) Start(events loop.IOEvents) error {
	if x.Closed() {
		return ErrTaskClosed
	}
	l := x.rt.loop
	if x.started {
		if err := l.ModifyFD(x.fd, events); err != nil {
			return err
		}
	} else {
		if err := l.RegisterFD(x.fd, events, x.onEvents); err != nil {
			return err
		}
		x.started = true
	}
	x.events = events
	return nil
}

// Stop stops watching the descriptor.
func (x *Poll) Stop() error {
	if x.Closed() {
		return ErrTaskClosed
	}
	return x.stop()
}

// Wait suspends t until the descriptor is ready, returning the events that
// occurred.
func (x *Poll) Wait(t *Task) (loop.IOEvents, error) {
	if x.Closed() {
		return 0, ErrTaskClosed
	}
	events, err := x.waitInt64(t)
	if err != nil {
		return 0, err
	}
	return loop.IOEvents(events), nil
}

func (x *Poll) onEvents(events loop.IOEvents) {
	x.cond.Broadcast(int64(events))
}

func (x *Poll) stop() error {
	if !x.started {
		return nil
	}
	x.started = false
	return x.rt.loop.UnregisterFD(x.fd)
}

func (x *Poll) close(*Task) {
	if err := x.stop(); err != nil {
		x.rt.logger.Debug().
			Err(err).
			Int(`fd`, x.fd).
			Log(`coop: failed to unregister fd`)
	}
	x.closeWaiters()
}
