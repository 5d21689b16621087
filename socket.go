// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package coop

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/joeycumines/go-coop/codec"
	"github.com/joeycumines/go-coop/msgsock"
	"github.com/joeycumines/go-coop/value"
)

// Socket is a handle task for a message socket. Its context may be shared
// with the runtimes of other threads, making it the way for threads to
// exchange messages after they are spawned.
//
// Send and Recv retry each non-blocking attempt that fails with
// msgsock.ErrAgain, after waiting for the socket's readiness to change.
type Socket struct {
	*Task
	handle
	sock *msgsock.Socket

	// coalesces notifications, which arrive from any goroutine
	notified atomic.Bool
}

// NewSocket creates a socket of the given type, from ctx.
func (rt *Runtime) NewSocket(ctx *msgsock.Context, typ msgsock.SocketType) (*Socket, error) {
	if rt.closed {
		return nil, ErrClosed
	}
	sock, err := ctx.Socket(typ)
	if err != nil {
		return nil, err
	}
	x := &Socket{sock: sock}
	x.Task = rt.newTask(KindSocket, x)
	_ = x.SetAttr(`type`, typ.String())
	sock.SetNotify(x.notify)
	return x, nil
}

// Bind binds the socket to an endpoint, see [msgsock.Socket.Bind].
func (x *Socket) Bind(endpoint string) error {
	if x.Closed() {
		return ErrTaskClosed
	}
	return x.sock.Bind(endpoint)
}

// Connect connects the socket to an endpoint, see [msgsock.Socket.Connect].
func (x *Socket) Connect(endpoint string) error {
	if x.Closed() {
		return ErrTaskClosed
	}
	return x.sock.Connect(endpoint)
}

// SetHWM sets the high-water mark of the socket.
func (x *Socket) SetHWM(n int) error {
	if x.Closed() {
		return ErrTaskClosed
	}
	return x.sock.SetHWM(n)
}

// Poll returns the readiness of the socket.
func (x *Socket) Poll() msgsock.PollEvents { return x.sock.Poll() }

// Send sends a message, suspending t while no peer has room for it.
func (x *Socket) Send(t *Task, frames ...[]byte) error {
	for {
		if x.Closed() {
			return ErrTaskClosed
		}
		err := x.sock.TrySend(frames...)
		if !errors.Is(err, msgsock.ErrAgain) {
			return err
		}
		if err := x.waitReady(t); err != nil {
			return err
		}
	}
}

// Recv suspends t until a message is available, and returns it.
func (x *Socket) Recv(t *Task) ([][]byte, error) {
	for {
		if x.Closed() {
			return nil, ErrTaskClosed
		}
		msg, err := x.sock.TryRecv()
		if !errors.Is(err, msgsock.ErrAgain) {
			return msg, err
		}
		if err := x.waitReady(t); err != nil {
			return nil, err
		}
	}
}

// SendValues encodes vals, and sends them as a single frame message.
func (x *Socket) SendValues(t *Task, vals ...value.Value) error {
	data, err := codec.Encode(vals...)
	if err != nil {
		return err
	}
	return x.Send(t, data)
}

// RecvValues receives a message sent by SendValues, and decodes it.
func (x *Socket) RecvValues(t *Task) ([]value.Value, error) {
	msg, err := x.Recv(t)
	if err != nil {
		return nil, err
	}
	if len(msg) != 1 {
		return nil, fmt.Errorf(`%w: expected 1 frame, got %d`, codec.ErrCorrupt, len(msg))
	}
	return codec.Decode(msg[0], decodeOptions...)
}

// waitReady suspends t until the readiness of the socket may have changed.
// While waiting, the loop is kept alive, as the peer may be in another
// thread.
func (x *Socket) waitReady(t *Task) error {
	l := x.rt.loop
	l.Ref()
	defer l.Unref()
	_, err := x.cond.Wait(t)
	return err
}

// notify is called by msgsock, from any goroutine.
func (x *Socket) notify() {
	if x.notified.Swap(true) {
		return
	}
	// fails only once the loop is closed
	_ = x.rt.loop.Submit(func() {
		x.notified.Store(false)
		if !x.Closed() {
			x.cond.Broadcast()
		}
	})
}

func (x *Socket) close(*Task) {
	x.sock.SetNotify(nil)
	if err := x.sock.Close(); err != nil && !errors.Is(err, msgsock.ErrClosed) {
		x.rt.logger.Debug().
			Err(err).
			Uint64(`task`, x.ID()).
			Log(`coop: failed to close socket`)
	}
	x.closeWaiters()
}
