// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package coop

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/go-coop/loop"
	"github.com/joeycumines/go-coop/queue"
	"github.com/joeycumines/go-coop/value"
	"github.com/joeycumines/logiface"
)

// Runtime is a cooperative scheduler, bound to an event loop. It owns every
// task created from it. A runtime, and its tasks, must only be used from a
// single goroutine, the one that created it, except where documented.
type Runtime struct {
	// Prevent copying
	_ [0]func()

	logger  *logiface.Logger[logiface.Event]
	limiter *catrate.Limiter
	onError func(err error)

	loop     *loop.Loop
	ownsLoop bool

	sched   Scheduler
	main    *Task
	current *Task
	tasks   map[Handle]*Task

	// set for the runtime of a thread
	parent *Thread

	errs []error

	readBuffer int
	backlog    int

	closed bool
}

// New creates a runtime, along with its main task, which is the current
// task of the calling goroutine. It must eventually be closed.
func New(opts ...Option) (*Runtime, error) {
	cfg, err := resolveRuntimeOptions(opts)
	if err != nil {
		return nil, err
	}

	limiter, err := newLimiter(cfg.errorRates)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{
		logger:     cfg.logger,
		limiter:    limiter,
		onError:    cfg.onError,
		loop:       cfg.loop,
		tasks:      make(map[Handle]*Task),
		readBuffer: cfg.readBuffer,
		backlog:    cfg.backlog,
	}

	if rt.loop == nil {
		loopOpts := append([]loop.LoopOption{loop.WithLogger(cfg.logger)}, cfg.loopOpts...)
		if rt.loop, err = loop.New(loopOpts...); err != nil {
			return nil, err
		}
		rt.ownsLoop = true
	}

	rt.sched.init(rt)

	rt.main = rt.newTask(KindMain, mainActor{})
	rt.main.flags |= FlagStarted | FlagActive
	rt.current = rt.main

	return rt, nil
}

// Main returns the main task.
func (rt *Runtime) Main() *Task { return rt.main }

// Current returns the task that is currently executing, which is the main
// task unless called from within a fiber.
func (rt *Runtime) Current() *Task { return rt.current }

// Loop returns the event loop the runtime runs on.
func (rt *Runtime) Loop() *loop.Loop { return rt.loop }

// Scheduler returns the scheduler of the runtime.
func (rt *Runtime) Scheduler() *Scheduler { return &rt.sched }

// Len returns the number of open tasks, including the main task.
func (rt *Runtime) Len() int { return len(rt.tasks) }

// Lookup resolves a handle to an open task, failing with ErrNotFound once
// the task is closed.
func (rt *Runtime) Lookup(h Handle) (*Task, error) {
	t, ok := rt.tasks[h]
	if !ok {
		return nil, ErrNotFound
	}
	return t, nil
}

// Run runs the event loop, and so every task, until there is nothing left
// to do. Task errors that no joiner observed, collected by the default
// error handler, are returned, joined.
func (rt *Runtime) Run() error {
	if rt.closed {
		return ErrClosed
	}
	if rt.current != rt.main || rt.main.flags&FlagWaiting != 0 {
		return ErrReentrant
	}
	_, err := rt.loop.Run(loop.RunDefault)
	err = loopError(err)
	errs := rt.errs
	rt.errs = nil
	return errors.Join(append([]error{err}, errs...)...)
}

// Close closes every task, then the event loop, if the runtime created it.
// It must be called from the main task, outside of Run.
func (rt *Runtime) Close() error {
	if rt.closed {
		return ErrClosed
	}
	if rt.current != rt.main {
		return ErrReentrant
	}
	rt.closed = true

	for _, id := range slices.Sorted(maps.Keys(rt.tasks)) {
		if t, ok := rt.tasks[id]; ok && t != rt.main {
			t.Close()
		}
	}
	rt.main.terminate(nil, ErrClosed)
	rt.sched.hook.Close()

	if rt.ownsLoop {
		return rt.loop.Close()
	}
	return nil
}

// Await calls work on a new goroutine, suspending t, which must be the
// current task, until it returns. If the wait is interrupted, the result of
// work is discarded. Work must not use the runtime.
func (rt *Runtime) Await(t *Task, work func() ([]value.Value, error)) ([]value.Value, error) {
	if err := t.checkCurrent(); err != nil {
		return nil, err
	}
	var waiter queue.List[*Task]
	req, err := rt.loop.Do(func() (any, error) {
		return work()
	}, func(result any, err error) {
		if n := waiter.PopFront(); n != nil {
			vals, _ := result.([]value.Value)
			n.Value.wake(vals, err)
		}
	})
	if err != nil {
		return nil, err
	}
	vals, err := t.park(&waiter)
	if errors.Is(err, ErrInterrupted) || errors.Is(err, ErrTaskClosed) {
		req.Cancel()
	}
	return vals, err
}

// pump drives the event loop a single iteration, on behalf of the main
// task.
func (rt *Runtime) pump(nowait bool) error {
	if rt.closed {
		return ErrClosed
	}
	mode := loop.RunOnce
	if nowait {
		mode = loop.RunNoWait
	} else if !rt.loop.Alive() {
		return ErrDeadlock
	}
	_, err := rt.loop.Run(mode)
	return loopError(err)
}

// handleError handles a task error no joiner observed, that escaped the
// scheduler while it was run by the event loop.
func (rt *Runtime) handleError(err error) {
	if rt.onError != nil {
		rt.onError(err)
		return
	}
	if _, ok := rt.limiter.Allow(`task`); ok {
		l := rt.logger.Err().Err(err)
		var te *TaskError
		if errors.As(err, &te) {
			l = l.Uint64(`task`, uint64(te.Task)).Str(`kind`, te.Kind.String())
		}
		var pe *PanicError
		if errors.As(err, &pe) {
			l = l.Str(`stack`, string(pe.Stack))
		}
		l.Log(`coop: unhandled task error`)
	}
	rt.errs = append(rt.errs, err)
}

// newLimiter converts the panic catrate raises for invalid rates.
func newLimiter(rates map[time.Duration]int) (limiter *catrate.Limiter, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf(`coop: invalid error rate limits: %v`, r)
		}
	}()
	return catrate.NewLimiter(rates), nil
}

func loopError(err error) error {
	if errors.Is(err, loop.ErrReentrantRun) || errors.Is(err, loop.ErrLoopAlreadyRunning) {
		return ErrReentrant
	}
	return err
}
