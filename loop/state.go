// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package loop

import (
	"sync/atomic"
)

// LoopState represents the current state of the event loop.
//
// State Machine:
//
//	StateAwake → StateRunning      [Run]
//	StateRunning → StateSleeping   [poll, via CAS]
//	StateSleeping → StateRunning   [poll returns, via CAS]
//	StateRunning → StateAwake      [Run returns]
//	StateAwake → StateClosed       [Close]
//	StateClosed → (terminal)
type LoopState uint32

const (
	// StateAwake indicates the loop is not inside Run.
	StateAwake LoopState = iota
	// StateRunning indicates the loop is processing callbacks.
	StateRunning
	// StateSleeping indicates the loop is blocked in poll.
	StateSleeping
	// StateClosed indicates the loop has been closed.
	StateClosed
)

// String returns a human-readable representation of the state.
func (s LoopState) String() string {
	switch s {
	case StateAwake:
		return `Awake`
	case StateRunning:
		return `Running`
	case StateSleeping:
		return `Sleeping`
	case StateClosed:
		return `Closed`
	default:
		return `Unknown`
	}
}

type loopState struct {
	v atomic.Uint32
}

func (s *loopState) Load() LoopState {
	return LoopState(s.v.Load())
}

func (s *loopState) Store(state LoopState) {
	s.v.Store(uint32(state))
}

func (s *loopState) TryTransition(from, to LoopState) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}
