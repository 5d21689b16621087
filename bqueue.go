// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package coop

import (
	"errors"

	"github.com/joeycumines/go-coop/queue"
	"github.com/joeycumines/go-coop/value"
)

// ErrQueueSize is returned by NewQueue for sizes less than one.
var ErrQueueSize = errors.New(`coop: queue size must be positive`)

// Queue is a bounded FIFO of value groups. Producers that find it full are
// suspended, until a consumer makes room.
//
// Loop callbacks, which cannot suspend, produce with Offer, which stages
// values past the capacity rather than fail. Staged values are moved into
// the ring, ahead of suspended producers, as consumers make room.
type Queue struct {
	slots [][]value.Value
	head  uint64
	tail  uint64
	over  [][]value.Value
	wput  queue.List[*Task]
	wget  queue.List[*Task]
	size  uint64

	closed bool
}

// NewQueue returns a queue holding at most size value groups.
func NewQueue(size int) (*Queue, error) {
	if size < 1 {
		return nil, ErrQueueSize
	}
	return &Queue{
		slots: make([][]value.Value, size),
		size:  uint64(size),
	}, nil
}

// Put adds vals to the queue, handing them directly to a waiting consumer
// if there is one, or else suspends t until there is room.
func (q *Queue) Put(t *Task, vals ...value.Value) error {
	if err := t.checkCurrent(); err != nil {
		return err
	}
	if q.closed {
		return ErrClosed
	}
	if q.handoff(vals) || q.store(vals) {
		return nil
	}
	t.offer = vals
	_, err := t.park(&q.wput)
	t.offer = nil
	return err
}

// Get removes the oldest value group, suspending t until one is available.
// Once the queue is closed, and drained, Get fails with ErrClosed.
func (q *Queue) Get(t *Task) ([]value.Value, error) {
	if err := t.checkCurrent(); err != nil {
		return nil, err
	}
	if vals, ok := q.TryGet(); ok {
		return vals, nil
	}
	if q.closed {
		return nil, ErrClosed
	}
	return t.park(&q.wget)
}

// TryGet removes the oldest value group, if any, without suspending.
func (q *Queue) TryGet() ([]value.Value, bool) {
	if q.count() == 0 {
		return nil, false
	}
	i := q.tail % q.size
	vals := q.slots[i]
	q.slots[i] = nil
	q.tail++
	q.refill()
	return vals, true
}

// Offer adds vals without suspending, and always accepts them, unless the
// queue is closed. It returns false if the queue is now over capacity, in
// which case the producer should pause.
func (q *Queue) Offer(vals ...value.Value) bool {
	if q.closed {
		return false
	}
	if q.handoff(vals) || q.store(vals) {
		return true
	}
	q.over = append(q.over, vals)
	return false
}

// Len returns the number of value groups held, including any staged past
// the capacity.
func (q *Queue) Len() int { return int(q.count()) + len(q.over) }

// Cap returns the capacity of the queue.
func (q *Queue) Cap() int { return int(q.size) }

// Full reports whether a Put would suspend.
func (q *Queue) Full() bool { return q.count() == q.size || len(q.over) != 0 }

// Close wakes every suspended producer and consumer with ErrClosed. Values
// already held may still be taken.
func (q *Queue) Close() {
	if q.closed {
		return
	}
	q.closed = true
	wakeAll(&q.wput, ErrClosed)
	wakeAll(&q.wget, ErrClosed)
}

func (q *Queue) count() uint64 { return q.head - q.tail }

func (q *Queue) handoff(vals []value.Value) bool {
	n := q.wget.PopFront()
	if n == nil {
		return false
	}
	n.Value.wake(vals, nil)
	return true
}

func (q *Queue) store(vals []value.Value) bool {
	if q.count() == q.size || len(q.over) != 0 {
		return false
	}
	q.slots[q.head%q.size] = vals
	q.head++
	return true
}

// refill moves staged values, then those of suspended producers, into the
// ring, while there is room.
func (q *Queue) refill() {
	for q.count() < q.size {
		if len(q.over) != 0 {
			vals := q.over[0]
			q.over[0] = nil
			q.over = q.over[1:]
			q.slots[q.head%q.size] = vals
			q.head++
			continue
		}
		n := q.wput.PopFront()
		if n == nil {
			return
		}
		p := n.Value
		q.slots[q.head%q.size] = p.offer
		q.head++
		p.offer = nil
		p.wake(nil, nil)
	}
}
