// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package coop

import (
	"iter"
	"runtime/debug"

	"github.com/joeycumines/go-coop/value"
)

// Body is the code run by a fiber. It is called once, on the first resume,
// with the spawn arguments.
type Body func(t *Task, args ...value.Value) ([]value.Value, error)

// fiber is a stackful coroutine.
type fiber struct {
	body    Body
	args    []value.Value
	next    func() (struct{}, bool)
	stop    func()
	yield   func(struct{}) bool
	results []value.Value
	err     error
	done    bool
}

// Spawn creates a ready fiber that will call body with args. The fiber's
// outer task is the current task.
func (rt *Runtime) Spawn(body Body, args ...value.Value) (*Task, error) {
	if rt.closed {
		return nil, ErrClosed
	}
	f := &fiber{body: body, args: args}
	t := rt.newTask(KindFiber, f)
	f.next, f.stop = iter.Pull(f.seq(t))
	f.ready(t)
	return t, nil
}

// SpawnFunc is like [Runtime.Spawn], but for the body registered under
// fn.Name, which is called with the upvalues of fn ahead of args.
func (rt *Runtime) SpawnFunc(fn *value.Func, args ...value.Value) (*Task, error) {
	if fn == nil {
		return nil, ErrNotFound
	}
	body, err := lookupFunc(fn.Name)
	if err != nil {
		return nil, err
	}
	if len(fn.Upvalues) != 0 {
		args = append(append(make([]value.Value, 0, len(fn.Upvalues)+len(args)), fn.Upvalues...), args...)
	}
	return rt.Spawn(body, args...)
}

func (f *fiber) seq(t *Task) iter.Seq[struct{}] {
	return func(yield func(struct{}) bool) {
		f.yield = yield
		defer func() {
			if r := recover(); r != nil {
				f.results = nil
				f.err = &PanicError{Value: r, Stack: debug.Stack()}
			}
			f.done = true
		}()
		args := f.args
		f.args = nil
		f.results, f.err = f.body(t, args...)
	}
}

func (f *fiber) ready(t *Task) {
	if t.flags&(FlagReady|FlagClosed) != 0 {
		return
	}
	if t.node.Linked() {
		// interrupts the wait, see park
		t.node.Remove()
	}
	t.flags |= FlagReady
	t.rt.sched.push(t)
}

func (f *fiber) suspend(t *Task) error {
	if t.flags&FlagClosed != 0 {
		return ErrTaskClosed
	}
	if !f.yield(struct{}{}) || t.flags&FlagClosed != 0 {
		return ErrTaskClosed
	}
	return nil
}

func (f *fiber) resume(t *Task) error {
	if t.flags&FlagClosed != 0 {
		return ErrTaskClosed
	}
	if f.done {
		return ErrNotResumable
	}

	rt := t.rt
	prev := rt.current
	prev.flags &^= FlagActive
	rt.current = t
	t.flags |= FlagStarted | FlagActive

	f.next()

	t.flags &^= FlagActive
	rt.current = prev
	prev.flags |= FlagActive

	if !f.done {
		return nil
	}
	f.stop()
	return t.finish(f.results, f.err)
}

func (f *fiber) send(t *Task, vals []value.Value) error {
	t.deliver(vals)
	return nil
}

func (f *fiber) recv(t, caller *Task) ([]value.Value, error) {
	return t.receive(caller)
}

func (f *fiber) close(t *Task) {
	if f.done || t.rt.current == t {
		// finished, or closing itself, in which case it runs until it
		// returns, every suspension failing with ErrTaskClosed
		return
	}
	rt := t.rt
	prev := rt.current
	prev.flags &^= FlagActive
	rt.current = t
	t.flags |= FlagActive

	f.stop()

	t.flags &^= FlagActive
	rt.current = prev
	prev.flags |= FlagActive
}

// finish closes a task whose body returned, returning err (wrapped) if no
// joiner observed it.
func (t *Task) finish(results []value.Value, err error) error {
	if t.flags&FlagClosed != 0 {
		return nil
	}
	caught := !t.joiners.Empty()
	if err != nil {
		err = &TaskError{Err: err, Task: t.id, Kind: t.kind}
	}
	t.terminate(results, err)
	if err != nil && !caught {
		return err
	}
	return nil
}

// mainActor is the root task of a runtime. It has no coroutine to yield to,
// so suspending it drives the event loop, until it is made ready.
type mainActor struct{}

func (mainActor) ready(t *Task) {
	if t.flags&(FlagReady|FlagClosed) != 0 {
		return
	}
	if t.node.Linked() {
		t.node.Remove()
	}
	t.flags |= FlagReady
	t.rt.loop.Wake()
}

func (mainActor) suspend(t *Task) error {
	for t.flags&FlagReady == 0 {
		if t.flags&FlagClosed != 0 {
			return ErrTaskClosed
		}
		if err := t.rt.pump(false); err != nil {
			return err
		}
	}
	t.flags &^= FlagReady
	return nil
}

func (mainActor) resume(*Task) error { return ErrNotResumable }

func (mainActor) send(t *Task, vals []value.Value) error {
	t.deliver(vals)
	return nil
}

func (mainActor) recv(t, caller *Task) ([]value.Value, error) {
	return t.receive(caller)
}

func (mainActor) close(*Task) {}
