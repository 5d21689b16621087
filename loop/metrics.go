// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package loop

import (
	"sync/atomic"
)

// Metrics is a snapshot of loop counters, see [Loop.Metrics].
type Metrics struct {
	// Iterations counts completed loop iterations.
	Iterations uint64
	// Callbacks counts every callback invoked, of any kind.
	Callbacks uint64
	// TimersFired counts timer callbacks.
	TimersFired uint64
	// Polls counts calls into the poller.
	Polls uint64
	// Panics counts recovered callback panics.
	Panics uint64
}

type metrics struct {
	iterations  atomic.Uint64
	callbacks   atomic.Uint64
	timersFired atomic.Uint64
	polls       atomic.Uint64
	panics      atomic.Uint64
}

// Metrics returns the current counters. Safe to call from any goroutine.
func (l *Loop) Metrics() Metrics {
	return Metrics{
		Iterations:  l.metrics.iterations.Load(),
		Callbacks:   l.metrics.callbacks.Load(),
		TimersFired: l.metrics.timersFired.Load(),
		Polls:       l.metrics.polls.Load(),
		Panics:      l.metrics.panics.Load(),
	}
}
