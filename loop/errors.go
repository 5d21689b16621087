// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package loop

import (
	"errors"
	"fmt"
)

// Standard errors.
var (
	// ErrLoopClosed is returned when operations are attempted on a closed loop.
	ErrLoopClosed = errors.New(`loop: loop has been closed`)

	// ErrLoopAlreadyRunning is returned when Run is called concurrently, from
	// another goroutine.
	ErrLoopAlreadyRunning = errors.New(`loop: loop is already running`)

	// ErrReentrantRun is returned when Run is called from within a callback.
	ErrReentrantRun = errors.New(`loop: cannot call Run from within the loop`)

	// ErrLoopRunning is returned when Close is called while Run is active.
	ErrLoopRunning = errors.New(`loop: loop is running`)

	// ErrHandleClosed is returned when starting a closed handle.
	ErrHandleClosed = errors.New(`loop: handle has been closed`)

	// ErrCanceled is delivered to the done callback of a canceled request.
	ErrCanceled = errors.New(`loop: request canceled`)

	// ErrInvalidRepeat is returned by Timer.Again for a non-repeating timer.
	ErrInvalidRepeat = errors.New(`loop: timer has no repeat`)

	ErrFDOutOfRange        = errors.New(`loop: fd out of range`)
	ErrFDAlreadyRegistered = errors.New(`loop: fd already registered`)
	ErrFDNotRegistered     = errors.New(`loop: fd not registered`)
	ErrFDUnsupported       = errors.New(`loop: fd polling is not supported on this platform`)
	ErrPollerClosed        = errors.New(`loop: poller closed`)
)

// PanicError wraps a value recovered from a panicking callback.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf(`loop: callback panicked: %v`, e.Value)
}

// Unwrap returns the underlying error if the panic value is an error type.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
