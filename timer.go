// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package coop

import (
	"time"

	"github.com/joeycumines/go-coop/loop"
)

// Timer is a handle task that wakes its waiters each time it fires.
type Timer struct {
	*Task
	handle
	timer *loop.Timer
	fired int64
}

// NewTimer creates a stopped timer.
func (rt *Runtime) NewTimer() (*Timer, error) {
	if rt.closed {
		return nil, ErrClosed
	}
	x := new(Timer)
	x.Task = rt.newTask(KindTimer, x)
	x.timer = rt.loop.NewTimer(x.fire)
	return x, nil
}

// Start (re)starts the timer, to fire after timeout, then every repeat, if
// repeat is positive.
func (x *Timer) Start(timeout, repeat time.Duration) error {
	if x.Closed() {
		return ErrTaskClosed
	}
	if err := x.SetAttr(`timeout`, timeout.Milliseconds()); err != nil {
		return err
	}
	if err := x.SetAttr(`repeat`, repeat.Milliseconds()); err != nil {
		return err
	}
	return x.timer.Start(timeout, repeat)
}

// Stop stops the timer. Waiters remain waiting.
func (x *Timer) Stop() error {
	if x.Closed() {
		return ErrTaskClosed
	}
	x.timer.Stop()
	return nil
}

// Again restarts a repeating timer, using its repeat as the timeout.
func (x *Timer) Again() error {
	if x.Closed() {
		return ErrTaskClosed
	}
	return x.timer.Again()
}

// Active reports whether the timer is started.
func (x *Timer) Active() bool { return !x.Closed() && x.timer.Active() }

// Wait suspends t until the timer next fires, returning the number of times
// it has fired.
func (x *Timer) Wait(t *Task) (int64, error) {
	if x.Closed() {
		return 0, ErrTaskClosed
	}
	return x.waitInt64(t)
}

func (x *Timer) fire() {
	x.fired++
	x.cond.Broadcast(x.fired)
}

func (x *Timer) close(*Task) {
	x.timer.Close()
	x.closeWaiters()
}
