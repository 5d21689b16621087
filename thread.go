// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package coop

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/joeycumines/go-coop/codec"
	"github.com/joeycumines/go-coop/loop"
	"github.com/joeycumines/go-coop/value"
)

// Thread is a task proxying a function running on its own OS thread, with
// its own runtime and event loop. Nothing is shared with the thread: the
// function, arguments, results, and messages all cross as codec encoded
// copies.
//
// Joining a Thread yields the results of the function. Values sent to a
// Thread are delivered to the mailbox of its main task, and values the
// thread posts, with [Runtime.Post], are received with [Task.Recv].
type Thread struct {
	*Task
	child *Runtime
	done  bool
}

// SpawnThread starts fn, which must be registered, with args, on a new OS
// thread. The values are encoded before SpawnThread returns, so they may
// be modified freely afterwards.
func (rt *Runtime) SpawnThread(fn *value.Func, args ...value.Value) (*Thread, error) {
	if rt.closed {
		return nil, ErrClosed
	}
	if fn == nil {
		return nil, ErrNotFound
	}
	if _, err := lookupFunc(fn.Name); err != nil {
		return nil, err
	}
	data, err := codec.Encode(append([]value.Value{fn}, args...)...)
	if err != nil {
		return nil, err
	}

	child, err := New(
		WithLogger(rt.logger),
		WithStreamBuffers(rt.readBuffer, rt.backlog),
	)
	if err != nil {
		return nil, err
	}

	x := &Thread{child: child}
	x.Task = rt.newTask(KindThread, x)
	child.parent = x

	// the parent may send to the thread at any time
	child.loop.Ref()
	rt.loop.Ref()
	go x.run(data)

	rt.logger.Debug().
		Uint64(`task`, x.ID()).
		Str(`func`, fn.Name).
		Log(`coop: thread started`)

	return x, nil
}

// Post sends values to the task that spawned this runtime's thread, see
// [Thread]. It fails with ErrNotFound if the runtime is not a thread's.
// Safe to call from the runtime's goroutine only.
func (rt *Runtime) Post(vals ...value.Value) error {
	x := rt.parent
	if x == nil {
		return fmt.Errorf(`%w: runtime has no parent`, ErrNotFound)
	}
	data, err := codec.Encode(vals...)
	if err != nil {
		return err
	}
	return x.rt.loop.Submit(func() {
		if x.Closed() {
			return
		}
		vals, err := codec.Decode(data, decodeOptions...)
		if err != nil {
			x.rt.handleError(&TaskError{Err: err, Task: x.id, Kind: x.kind})
			return
		}
		x.deliver(vals)
	})
}

// run is the body of the OS thread.
func (x *Thread) run(data []byte) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	child := x.child
	result := child.runThread(data)
	if err := child.Close(); err != nil {
		child.logger.Err().
			Err(err).
			Log(`coop: failed to close thread runtime`)
	}

	// fails only if the parent loop was closed
	_ = x.rt.loop.Submit(func() { x.complete(result) })
}

// runThread decodes and runs a function, in the thread's runtime, returning
// its encoded outcome.
func (rt *Runtime) runThread(data []byte) []byte {
	vals, err := codec.Decode(data, decodeOptions...)
	if err != nil {
		return encodeOutcome(nil, err)
	}
	fn, ok := vals[0].(*value.Func)
	if !ok {
		return encodeOutcome(nil, fmt.Errorf(`%w: thread function`, codec.ErrCorrupt))
	}
	t, err := rt.SpawnFunc(fn, vals[1:]...)
	if err != nil {
		return encodeOutcome(nil, err)
	}
	results, err := t.Join(rt.main)
	if err == nil && len(rt.errs) != 0 {
		err = errors.Join(rt.errs...)
	}
	return encodeOutcome(results, err)
}

// encodeOutcome encodes either (true, results...) or (false, message).
func encodeOutcome(results []value.Value, err error) []byte {
	if err == nil {
		data, encErr := codec.Encode(append([]value.Value{true}, results...)...)
		if encErr == nil {
			return data
		}
		err = fmt.Errorf(`thread results: %w`, encErr)
	}
	data, _ := codec.Encode(false, err.Error())
	return data
}

// complete closes the thread task, on the parent loop, once the OS thread
// finishes.
func (x *Thread) complete(data []byte) {
	defer x.rt.loop.Unref()
	x.done = true
	if x.Closed() {
		return
	}

	x.rt.logger.Debug().
		Uint64(`task`, x.ID()).
		Log(`coop: thread finished`)

	vals, err := codec.Decode(data, decodeOptions...)
	if err == nil && (len(vals) == 0 || (vals[0] != true && len(vals) != 2)) {
		err = fmt.Errorf(`%w: thread outcome`, codec.ErrCorrupt)
	}
	if err == nil && vals[0] != true {
		msg, _ := vals[1].(string)
		err = &ThreadError{Message: msg}
	}

	var results []value.Value
	if err == nil {
		results = vals[1:]
	}
	if err := x.finish(results, err); err != nil {
		x.rt.handleError(err)
	}
}

func (*Thread) ready(*Task) {}

func (*Thread) suspend(*Task) error { return ErrNotResumable }

func (*Thread) resume(*Task) error { return ErrNotResumable }

// send encodes vals, delivering them to the mailbox of the thread's main
// task.
func (x *Thread) send(_ *Task, vals []value.Value) error {
	if x.done {
		return ErrTaskClosed
	}
	data, err := codec.Encode(vals...)
	if err != nil {
		return err
	}
	child := x.child
	err = child.loop.Submit(func() {
		vals, err := codec.Decode(data, decodeOptions...)
		if err != nil {
			child.handleError(err)
			return
		}
		child.main.deliver(vals)
	})
	if errors.Is(err, loop.ErrLoopClosed) {
		return ErrTaskClosed
	}
	return err
}

func (*Thread) recv(t, caller *Task) ([]value.Value, error) {
	return t.receive(caller)
}

// close cancels the thread, closing every task of its runtime, which
// causes its function to fail with ErrTaskClosed at its next suspension.
func (x *Thread) close(*Task) {
	if x.done {
		return
	}
	child := x.child
	// fails only if the thread already finished
	_ = child.loop.Submit(child.cancel)
}

// cancel closes every task except the main task.
func (rt *Runtime) cancel() {
	for _, t := range rt.tasks {
		if t != rt.main {
			t.Close()
		}
	}
}
