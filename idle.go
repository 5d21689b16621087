// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package coop

import (
	"github.com/joeycumines/go-coop/loop"
)

// Idle is a handle task that wakes its waiters once per loop iteration,
// while started. A started Idle prevents the loop from blocking.
type Idle struct {
	*Task
	handle
	hook *loop.Hook
	runs int64
}

// NewIdle creates a stopped idle handle.
func (rt *Runtime) NewIdle() (*Idle, error) {
	if rt.closed {
		return nil, ErrClosed
	}
	x := new(Idle)
	x.Task = rt.newTask(KindIdle, x)
	x.hook = rt.loop.NewHook(loop.HookIdle, x.run)
	return x, nil
}

// Start starts the idle handle.
func (x *Idle) Start() error {
	if x.Closed() {
		return ErrTaskClosed
	}
	return x.hook.Start()
}

// Stop stops the idle handle.
func (x *Idle) Stop() error {
	if x.Closed() {
		return ErrTaskClosed
	}
	x.hook.Stop()
	return nil
}

// Wait suspends t until the next loop iteration, returning the number of
// iterations the handle has run for.
func (x *Idle) Wait(t *Task) (int64, error) {
	if x.Closed() {
		return 0, ErrTaskClosed
	}
	return x.waitInt64(t)
}

func (x *Idle) run() {
	x.runs++
	x.cond.Broadcast(x.runs)
}

func (x *Idle) close(*Task) {
	x.hook.Close()
	x.closeWaiters()
}
