// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package loop

import (
	"runtime/debug"
	"sync/atomic"
)

// Request is an in-flight [Loop.Do] operation.
type Request struct {
	canceled atomic.Bool
}

// Do runs work on a new goroutine, then calls done, exactly once, on the
// loop goroutine, with the result. An in-flight request keeps the loop
// alive. A panic in work is delivered to done as a *PanicError.
func (l *Loop) Do(work func() (any, error), done func(result any, err error)) (*Request, error) {
	if l.state.Load() == StateClosed {
		return nil, ErrLoopClosed
	}

	r := new(Request)
	l.requests++

	go func() {
		var (
			result any
			err    error
		)
		if !r.canceled.Load() {
			result, err = callWork(work)
		}
		// fails only if closed, leaving nobody to deliver to
		_ = l.Submit(func() {
			l.requests--
			if r.canceled.Load() {
				result, err = nil, ErrCanceled
			}
			if done != nil {
				done(result, err)
			}
		})
	}()

	return r, nil
}

// Cancel discards the result of the request: done will be called with
// [ErrCanceled]. Work that has already started is not interrupted.
func (r *Request) Cancel() { r.canceled.Store(true) }

// Canceled reports whether Cancel was called.
func (r *Request) Canceled() bool { return r.canceled.Load() }

func callWork(work func() (any, error)) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return work()
}
