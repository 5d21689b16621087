// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package coop

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/joeycumines/go-coop/hashtable"
	"github.com/joeycumines/go-coop/queue"
	"github.com/joeycumines/go-coop/value"
)

type (
	// Handle identifies a task. Handles are never reused, within a process,
	// and may be resolved with [Runtime.Lookup] for as long as the task is
	// open.
	Handle uint64

	// Kind determines the behavior of a task.
	Kind uint8

	// Flags is the state bitset of a task.
	Flags uint8

	// Task is a schedulable unit of execution (a fiber, the main task, or a
	// thread), or a handle whose events tasks may wait on (a timer, stream,
	// and so on). Tasks must only be used from the goroutine that runs their
	// runtime.
	Task struct {
		// Prevent copying
		_ [0]func()

		rt    *Runtime
		actor actor
		outer *Task

		// node is linked into at most one of: the ready queue, or a wait
		// queue (cond, channel, joiners, mailbox).
		node    queue.Node[*Task]
		joiners queue.List[*Task]

		attrs *hashtable.Table[value.Value]

		// values transferred to this task by whatever woke it
		xfer    []value.Value
		xferErr error

		// values held by this task while it is parked as a producer
		offer []value.Value

		inbox     [][]value.Value
		inboxWait queue.List[*Task]

		results []value.Value
		err     error

		id    Handle
		kind  Kind
		flags Flags
		woken bool
	}

	// actor is the per-kind behavior of a task.
	actor interface {
		// ready marks the task runnable. Idempotent.
		ready(t *Task)
		// suspend yields control, returning once the task is resumed.
		suspend(t *Task) error
		// resume runs the task until it next suspends, or finishes,
		// returning its error if it failed uncaught.
		resume(t *Task) error
		send(t *Task, vals []value.Value) error
		recv(t, caller *Task) ([]value.Value, error)
		// close releases any native resources, and is called once.
		close(t *Task)
	}
)

const (
	KindMain Kind = iota
	KindFiber
	KindThread
	KindIdle
	KindTimer
	KindStream
	KindPoll
	KindProcess
	KindSocket
)

const (
	// FlagStarted is set once a task has first been resumed.
	FlagStarted Flags = 1 << iota
	// FlagReady is set while a task is runnable.
	FlagReady
	// FlagActive is set only for the currently executing task.
	FlagActive
	// FlagClosed is terminal.
	FlagClosed
	// FlagJoin is set while a task has joiners.
	FlagJoin
	// FlagWaiting is set while a task is suspended on a wait queue.
	FlagWaiting
)

const attrCapacity = 4

var taskIDs atomic.Uint64

var kindNames = [...]string{
	KindMain:    `main`,
	KindFiber:   `fiber`,
	KindThread:  `thread`,
	KindIdle:    `idle`,
	KindTimer:   `timer`,
	KindStream:  `stream`,
	KindPoll:    `poll`,
	KindProcess: `process`,
	KindSocket:  `socket`,
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf(`Kind(%d)`, uint8(k))
}

var flagNames = [...]string{`Started`, `Ready`, `Active`, `Closed`, `Join`, `Waiting`}

func (f Flags) String() string {
	if f == 0 {
		return `0`
	}
	var parts []string
	for i, name := range flagNames {
		if f&(1<<i) != 0 {
			parts = append(parts, name)
		}
	}
	return strings.Join(parts, `|`)
}

func (rt *Runtime) newTask(kind Kind, a actor) *Task {
	t := &Task{
		rt:    rt,
		actor: a,
		outer: rt.current,
		id:    Handle(taskIDs.Add(1)),
		kind:  kind,
	}
	t.node.Init(t)
	rt.tasks[t.id] = t
	return t
}

// ID returns the task id, as an integer.
func (t *Task) ID() uint64 { return uint64(t.id) }

// Handle returns a reference to the task, see [Runtime.Lookup].
func (t *Task) Handle() Handle { return t.id }

// Kind returns the kind of the task.
func (t *Task) Kind() Kind { return t.kind }

// Flags returns the current state of the task.
func (t *Task) Flags() Flags { return t.flags }

// Closed reports whether the task is closed.
func (t *Task) Closed() bool { return t.flags&FlagClosed != 0 }

// Outer returns the task that was current when this task was created.
func (t *Task) Outer() *Task { return t.outer }

// Runtime returns the runtime that owns the task.
func (t *Task) Runtime() *Runtime { return t.rt }

// Results returns a copy of the values a closed task finished with.
func (t *Task) Results() []value.Value { return slices.Clone(t.results) }

// Err returns the terminal error of a closed task.
func (t *Task) Err() error { return t.err }

func (t *Task) String() string {
	return fmt.Sprintf(`%s task %d`, t.kind, t.id)
}

// Ready makes the task runnable. For a fiber that is suspended on a wait
// queue, the wait is interrupted, failing with [ErrInterrupted]. It has no
// effect on closed tasks, or on handle tasks.
func (t *Task) Ready() { t.actor.ready(t) }

// Suspend suspends the current task until it is made ready, by [Task.Ready].
func (t *Task) Suspend() error {
	if err := t.checkCurrent(); err != nil {
		return err
	}
	t.unready()
	return t.actor.suspend(t)
}

// Yield lets every other ready task run, before continuing.
func (t *Task) Yield() error {
	if err := t.checkCurrent(); err != nil {
		return err
	}
	if t.kind == KindMain {
		return t.rt.pump(true)
	}
	t.actor.ready(t)
	return t.actor.suspend(t)
}

// Join waits until the task closes, returning its results, or terminal
// error. Joining a closed task returns immediately, and repeatedly, with
// the same outcome. Joining a task that is suspended, but not waiting on
// anything, readies it.
func (t *Task) Join(caller *Task) ([]value.Value, error) {
	if caller == t {
		return nil, ErrJoinSelf
	}
	if t.flags&FlagClosed != 0 {
		return slices.Clone(t.results), t.err
	}
	if err := caller.checkCurrent(); err != nil {
		return nil, err
	}
	if caller.flags&FlagWaiting != 0 {
		return nil, ErrAlreadyWaiting
	}
	t.flags |= FlagJoin
	if t.flags&FlagWaiting == 0 {
		t.actor.ready(t)
	}
	vals, err := caller.park(&t.joiners)
	if err != nil && t.flags&FlagClosed == 0 && t.joiners.Empty() {
		t.flags &^= FlagJoin
	}
	return vals, err
}

// Send transfers values to the task. For fibers and the main task, the
// values are queued on the task's mailbox. For threads, they are encoded,
// and delivered to the mailbox of the thread's main task. For handles, they
// are signaled to one waiter, if any.
func (t *Task) Send(vals ...value.Value) error {
	if t.flags&FlagClosed != 0 {
		return ErrTaskClosed
	}
	return t.actor.send(t, vals)
}

// Recv suspends caller until values are available from the task, see
// [Task.Send].
func (t *Task) Recv(caller *Task) ([]value.Value, error) {
	if t.flags&FlagClosed != 0 {
		return nil, ErrTaskClosed
	}
	return t.actor.recv(t, caller)
}

// Close closes the task, if it is not already closed. A fiber or thread
// that had not finished is stopped, and its joiners see [ErrTaskClosed].
func (t *Task) Close() {
	var err error
	switch t.kind {
	case KindFiber, KindThread:
		err = ErrTaskClosed
	}
	t.terminate(nil, err)
}

// Attr returns a named attribute of the task.
func (t *Task) Attr(key string) (value.Value, bool) {
	if t.attrs == nil {
		return nil, false
	}
	return t.attrs.Lookup(key)
}

// SetAttr sets a named attribute of the task. A nil value removes it.
func (t *Task) SetAttr(key string, val value.Value) error {
	if val == nil {
		if t.attrs != nil {
			t.attrs.Remove(key)
		}
		return nil
	}
	if t.attrs == nil {
		attrs, err := hashtable.New[value.Value](attrCapacity)
		if err != nil {
			return err
		}
		t.attrs = attrs
	}
	err := t.attrs.Set(key, val)
	if errors.Is(err, hashtable.ErrFull) {
		attrs, rerr := t.attrs.Rehash(t.attrs.Cap() * 2)
		if rerr != nil {
			return rerr
		}
		t.attrs = attrs
		err = t.attrs.Set(key, val)
	}
	return err
}

func (t *Task) checkCurrent() error {
	if t.flags&FlagClosed != 0 {
		return ErrTaskClosed
	}
	if t.rt.current != t {
		return ErrNotCurrent
	}
	return nil
}

// unready removes the task from the ready queue, if present.
func (t *Task) unready() {
	if t.node.List() == &t.rt.sched.ready {
		t.node.Remove()
	}
	t.flags &^= FlagReady
}

// park suspends the current task on l, until it is woken, returning the
// values transferred by the waker.
func (t *Task) park(l *queue.List[*Task]) ([]value.Value, error) {
	if t.flags&FlagWaiting != 0 {
		return nil, ErrAlreadyWaiting
	}
	if err := t.checkCurrent(); err != nil {
		return nil, err
	}
	t.unready()
	t.woken = false
	t.xfer, t.xferErr = nil, nil
	l.PushBack(&t.node)
	t.flags |= FlagWaiting

	err := t.actor.suspend(t)

	t.flags &^= FlagWaiting
	if t.node.List() == l {
		l.Remove(&t.node)
	}
	vals, xerr := t.xfer, t.xferErr
	t.xfer, t.xferErr = nil, nil
	if err != nil {
		return nil, err
	}
	if !t.woken {
		return nil, ErrInterrupted
	}
	return vals, xerr
}

// wake completes the wait of a parked task, transferring values to it.
func (t *Task) wake(vals []value.Value, err error) {
	t.node.Remove()
	t.xfer, t.xferErr = vals, err
	t.woken = true
	t.actor.ready(t)
}

// terminate closes the task with the given outcome, once.
func (t *Task) terminate(results []value.Value, err error) {
	if t.flags&FlagClosed != 0 {
		return
	}
	t.flags |= FlagClosed
	t.flags &^= FlagReady
	t.node.Remove()
	t.results, t.err = results, err
	t.offer = nil

	t.actor.close(t)
	delete(t.rt.tasks, t.id)

	for n := t.joiners.PopFront(); n != nil; n = t.joiners.PopFront() {
		n.Value.wake(slices.Clone(results), err)
	}
	t.flags &^= FlagJoin

	t.inbox = nil
	wakeAll(&t.inboxWait, ErrClosed)
}

// deliver queues values on the task's mailbox, handing them directly to a
// waiting receiver if there is one.
func (t *Task) deliver(vals []value.Value) {
	if n := t.inboxWait.PopFront(); n != nil {
		n.Value.wake(vals, nil)
		return
	}
	t.inbox = append(t.inbox, vals)
}

// receive takes the next values from the task's mailbox, parking caller
// until some arrive.
func (t *Task) receive(caller *Task) ([]value.Value, error) {
	if len(t.inbox) != 0 {
		if err := caller.checkCurrent(); err != nil {
			return nil, err
		}
		vals := t.inbox[0]
		t.inbox[0] = nil
		t.inbox = t.inbox[1:]
		return vals, nil
	}
	return caller.park(&t.inboxWait)
}

// wakeAll wakes every task parked on l, FIFO, with err.
func wakeAll(l *queue.List[*Task], err error) int {
	var n int
	for node := l.PopFront(); node != nil; node = l.PopFront() {
		node.Value.wake(nil, err)
		n++
	}
	return n
}
