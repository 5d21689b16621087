// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package coop

import (
	"errors"
	"fmt"
)

// Standard errors.
var (
	// ErrTaskClosed is returned by operations on a closed task, and is the
	// terminal error of a task that was closed before it finished.
	ErrTaskClosed = errors.New(`coop: task closed`)

	// ErrNotCurrent is returned when a blocking operation is issued on behalf
	// of a task that is not the one currently executing.
	ErrNotCurrent = errors.New(`coop: task is not the current task`)

	// ErrAlreadyWaiting is returned when a task that is already suspended on
	// a wait queue attempts to wait again.
	ErrAlreadyWaiting = errors.New(`coop: task is already waiting`)

	// ErrJoinSelf is returned when a task attempts to join itself.
	ErrJoinSelf = errors.New(`coop: task cannot join itself`)

	// ErrReentrant is returned when the scheduler or event loop is driven
	// from within a task or loop callback.
	ErrReentrant = errors.New(`coop: reentrant call`)

	// ErrDeadlock is returned when the main task waits for something that
	// can never happen: the event loop has nothing left to do.
	ErrDeadlock = errors.New(`coop: main task would wait forever`)

	// ErrNotResumable is returned when attempting to resume a handle task.
	ErrNotResumable = errors.New(`coop: task is not resumable`)

	// ErrNotFound is returned by lookups of closed or unknown tasks, and
	// unregistered functions.
	ErrNotFound = errors.New(`coop: not found`)

	// ErrClosed is delivered to tasks waiting on a handle, queue, or runtime
	// that was closed.
	ErrClosed = errors.New(`coop: closed`)

	// ErrInterrupted is returned by a wait that was cut short by an explicit
	// [Task.Ready].
	ErrInterrupted = errors.New(`coop: wait interrupted`)

	// ErrUnexpectedValues is returned by a handle's Wait when it was woken
	// by values other than those the handle itself signals, e.g. by a
	// [Task.Send] to the handle.
	ErrUnexpectedValues = errors.New(`coop: unexpected values`)
)

// TaskError is the terminal error of a task whose body failed.
type TaskError struct {
	Err  error
	Task Handle
	Kind Kind
}

func (e *TaskError) Error() string {
	return fmt.Sprintf(`coop: %s task %d failed: %v`, e.Kind, e.Task, e.Err)
}

func (e *TaskError) Unwrap() error { return e.Err }

// PanicError wraps a value recovered from a panicking task body.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf(`coop: task panicked: %v`, e.Value)
}

// Unwrap returns the underlying error if the panic value is an error type.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// ThreadError carries the message of an error raised in another thread.
// Only the message crosses the thread boundary.
type ThreadError struct {
	Message string
}

func (e *ThreadError) Error() string { return e.Message }
