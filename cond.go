// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package coop

import (
	"slices"

	"github.com/joeycumines/go-coop/queue"
	"github.com/joeycumines/go-coop/value"
)

// Cond is a cooperative condition variable: a FIFO queue of suspended
// tasks. Signals are not remembered; signaling a Cond with no waiters has
// no effect. The zero value is ready to use.
type Cond struct {
	waiters queue.List[*Task]
}

// NewCond returns a new condition variable.
func NewCond() *Cond { return new(Cond) }

// Wait suspends t, which must be the current task, until it is woken by
// Signal or Broadcast, returning the values passed to them.
func (c *Cond) Wait(t *Task) ([]value.Value, error) {
	return t.park(&c.waiters)
}

// Signal wakes the longest waiting task, moving vals to it. It returns
// false if there were no waiters.
func (c *Cond) Signal(vals ...value.Value) bool {
	n := c.waiters.PopFront()
	if n == nil {
		return false
	}
	n.Value.wake(vals, nil)
	return true
}

// Broadcast wakes every waiting task, in the order they started waiting,
// each receiving a copy of vals. It returns the number woken.
func (c *Cond) Broadcast(vals ...value.Value) int {
	var count int
	for n := c.waiters.PopFront(); n != nil; n = c.waiters.PopFront() {
		n.Value.wake(slices.Clone(vals), nil)
		count++
	}
	return count
}

// Len returns the number of waiting tasks.
func (c *Cond) Len() int { return c.waiters.Len() }

// fail wakes every waiting task with err.
func (c *Cond) fail(err error) int { return wakeAll(&c.waiters, err) }
