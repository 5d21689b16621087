// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package coop

import (
	"github.com/joeycumines/go-coop/queue"
	"github.com/joeycumines/go-coop/value"
)

// Channel is an unbuffered rendezvous: each Put of a group of values is
// matched with exactly one Get, which receives the whole group. The zero
// value is ready to use.
type Channel struct {
	wput queue.List[*Task]
	wget queue.List[*Task]
}

// NewChannel returns a new channel.
func NewChannel() *Channel { return new(Channel) }

// Put hands vals to a waiting getter, without suspending, or else suspends
// t until a getter takes them.
func (c *Channel) Put(t *Task, vals ...value.Value) error {
	if err := t.checkCurrent(); err != nil {
		return err
	}
	if c.TryPut(vals...) {
		return nil
	}
	t.offer = vals
	_, err := t.park(&c.wput)
	t.offer = nil
	return err
}

// Get takes the values of the longest waiting putter, waking it, or else
// suspends t until a putter arrives.
func (c *Channel) Get(t *Task) ([]value.Value, error) {
	if err := t.checkCurrent(); err != nil {
		return nil, err
	}
	if vals, ok := c.TryGet(); ok {
		return vals, nil
	}
	return t.park(&c.wget)
}

// TryPut hands vals to a waiting getter, if there is one. It never suspends,
// and may be used from loop callbacks.
func (c *Channel) TryPut(vals ...value.Value) bool {
	n := c.wget.PopFront()
	if n == nil {
		return false
	}
	n.Value.wake(vals, nil)
	return true
}

// TryGet takes the values of a waiting putter, if there is one. It never
// suspends.
func (c *Channel) TryGet() ([]value.Value, bool) {
	n := c.wput.PopFront()
	if n == nil {
		return nil, false
	}
	p := n.Value
	vals := p.offer
	p.offer = nil
	p.wake(nil, nil)
	return vals, true
}

// Pending returns the number of puts waiting for a getter.
func (c *Channel) Pending() int { return c.wput.Len() }

// Waiting returns the number of gets waiting for a putter.
func (c *Channel) Waiting() int { return c.wget.Len() }
