// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package coop

import (
	"fmt"

	"github.com/joeycumines/go-coop/value"
)

// handle is the behavior shared by tasks that wrap a native handle. They
// are never resumed; instead, other tasks wait on their condition.
type handle struct {
	cond Cond
}

func (*handle) ready(*Task) {}

func (*handle) suspend(*Task) error { return ErrNotResumable }

func (*handle) resume(*Task) error { return ErrNotResumable }

func (h *handle) send(_ *Task, vals []value.Value) error {
	h.cond.Signal(vals...)
	return nil
}

func (h *handle) recv(_, caller *Task) ([]value.Value, error) {
	return h.cond.Wait(caller)
}

// waitInt64 waits on the handle's condition, for the single int64 the
// handle signals.
func (h *handle) waitInt64(t *Task) (int64, error) {
	vals, err := h.cond.Wait(t)
	if err != nil {
		return 0, err
	}
	if len(vals) != 1 {
		return 0, fmt.Errorf(`%w: got %d values`, ErrUnexpectedValues, len(vals))
	}
	n, ok := vals[0].(int64)
	if !ok {
		return 0, fmt.Errorf(`%w: got %T`, ErrUnexpectedValues, vals[0])
	}
	return n, nil
}

// closeWaiters wakes every waiter with ErrClosed.
func (h *handle) closeWaiters() { h.cond.fail(ErrClosed) }

// Waiters returns the number of tasks waiting on the handle.
func (h *handle) Waiters() int { return h.cond.Len() }
