// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package loop

import (
	"container/heap"
	"time"
)

// Timer calls a callback, on the loop goroutine, after a timeout, and then
// optionally every repeat interval. An active timer keeps the loop alive.
type Timer struct {
	loop   *Loop
	cb     func()
	when   time.Time
	repeat time.Duration
	seq    uint64
	index  int // heap index, or -1
	due    bool
	closed bool
}

// timerHeap is a min-heap of timers, ordered by deadline then start order.
type timerHeap []*Timer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].when.Equal(h[j].when) {
		return h[i].seq < h[j].seq
	}
	return h[i].when.Before(h[j].when)
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*Timer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	t.index = -1
	return t
}

// NewTimer returns an inactive timer.
func (l *Loop) NewTimer(cb func()) *Timer {
	return &Timer{loop: l, cb: cb, index: -1}
}

// Start (re)arms the timer to fire after timeout, relative to [Loop.Now],
// then every repeat, if repeat is positive.
func (t *Timer) Start(timeout, repeat time.Duration) error {
	if t.closed {
		return ErrHandleClosed
	}
	t.Stop()
	t.repeat = max(repeat, 0)
	t.schedule(max(timeout, 0))
	return nil
}

// Stop disarms the timer. It is a no-op if the timer is not active.
func (t *Timer) Stop() {
	t.due = false
	if t.index >= 0 {
		heap.Remove(&t.loop.timers, t.index)
	}
}

// Again restarts a repeating timer, using the repeat interval as the
// timeout.
func (t *Timer) Again() error {
	if t.closed {
		return ErrHandleClosed
	}
	if t.repeat <= 0 {
		return ErrInvalidRepeat
	}
	return t.Start(t.repeat, t.repeat)
}

// Close stops the timer, permanently.
func (t *Timer) Close() {
	t.Stop()
	t.closed = true
}

// Active reports whether the timer is armed.
func (t *Timer) Active() bool { return t.index >= 0 || t.due }

// Repeat returns the repeat interval.
func (t *Timer) Repeat() time.Duration { return t.repeat }

// SetRepeat changes the repeat interval, effective from the next fire.
func (t *Timer) SetRepeat(d time.Duration) { t.repeat = max(d, 0) }

// DueIn returns the time remaining until the timer fires, or zero if
// inactive or overdue.
func (t *Timer) DueIn() time.Duration {
	if t.index < 0 {
		return 0
	}
	return max(t.when.Sub(t.loop.now), 0)
}

func (t *Timer) schedule(timeout time.Duration) {
	t.loop.timerSeq++
	t.seq = t.loop.timerSeq
	t.when = t.loop.now.Add(timeout)
	heap.Push(&t.loop.timers, t)
}

// runTimers fires every timer due at the start of the phase. Timers
// re-armed by callbacks, with a zero timeout, fire on the next iteration.
func (l *Loop) runTimers() {
	due := l.timerBuf[:0]
	for len(l.timers) > 0 && !l.timers[0].when.After(l.now) {
		t := heap.Pop(&l.timers).(*Timer)
		t.due = true
		due = append(due, t)
	}

	for i, t := range due {
		due[i] = nil
		if !t.due {
			continue
		}
		t.due = false
		if t.repeat > 0 {
			t.schedule(t.repeat)
		}
		l.metrics.timersFired.Add(1)
		l.safeExecute(`timer`, t.cb)
	}

	l.timerBuf = due[:0]
}
