// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package coop

import (
	"github.com/joeycumines/go-coop/loop"
	"github.com/joeycumines/go-coop/queue"
)

// Scheduler runs ready fibers, FIFO. Each runtime has exactly one.
//
// The scheduler is run automatically, by a prepare hook on the event loop,
// which is active only while there are ready fibers. It may also be run
// explicitly, from the main task.
type Scheduler struct {
	rt    *Runtime
	ready queue.List[*Task]
	hook  *loop.Hook
}

func (s *Scheduler) init(rt *Runtime) {
	s.rt = rt
	s.ready.Init()
	s.hook = rt.loop.NewHook(loop.HookPrepare, s.onPrepare)
}

// Len returns the number of ready fibers.
func (s *Scheduler) Len() int { return s.ready.Len() }

// RunOnce resumes the fiber at the head of the ready queue, if any, until
// it next suspends, or finishes. If the fiber failed, and no joiner
// observed the failure, its [*TaskError] is returned.
func (s *Scheduler) RunOnce() error {
	if s.rt.current != s.rt.main {
		return ErrReentrant
	}
	n := s.ready.PopFront()
	if n == nil {
		return nil
	}
	t := n.Value
	if t.flags&FlagClosed != 0 {
		panic(`coop: closed task in ready queue`)
	}
	t.flags &^= FlagReady
	return t.actor.resume(t)
}

// RunLoop calls RunOnce until the ready queue is empty, stopping at the
// first error.
func (s *Scheduler) RunLoop() error {
	if s.rt.current != s.rt.main {
		return ErrReentrant
	}
	for !s.ready.Empty() {
		if err := s.RunOnce(); err != nil {
			return err
		}
	}
	return nil
}

// runBatch runs only the fibers that were ready when it was called, so a
// fiber that yields in a loop cannot starve the event loop.
func (s *Scheduler) runBatch() {
	for n := s.ready.Len(); n > 0 && !s.ready.Empty(); n-- {
		if err := s.RunOnce(); err != nil {
			s.rt.handleError(err)
		}
	}
}

func (s *Scheduler) onPrepare() {
	s.runBatch()
	if s.ready.Empty() {
		s.hook.Stop()
	}
}

func (s *Scheduler) push(t *Task) {
	s.ready.PushBack(&t.node)
	// fails only once the runtime is closed
	_ = s.hook.Start()
}
