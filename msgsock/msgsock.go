// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package msgsock implements in-process, message oriented sockets, in the
// style of ZeroMQ's inproc transport.
//
// A [Context] owns a namespace of endpoints (inproc://name). Sockets created
// from the same context may bind and connect to each other, from any
// goroutine. All operations are non-blocking: [Socket.TrySend] and
// [Socket.TryRecv] fail with [ErrAgain] rather than wait, and callers use
// [Socket.Poll] together with [Socket.SetNotify] to learn when to retry.
//
// Contexts are the only objects intended to be shared between independent
// runtimes. A context may be passed through the codec package, where it is
// carried as a process-local registry id.
package msgsock

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/joeycumines/go-coop/buffer"
	"github.com/joeycumines/go-coop/codec"
	"github.com/joeycumines/go-coop/value"
)

// CodecName is the codec type name used for [Context] values.
const CodecName = `msgsock.Context`

var (
	// ErrAgain indicates the operation would block.
	ErrAgain = errors.New(`msgsock: resource temporarily unavailable`)
	// ErrClosed is returned by operations on a closed socket or context.
	ErrClosed = errors.New(`msgsock: closed`)
	// ErrInvalidEndpoint is returned for malformed endpoints.
	ErrInvalidEndpoint = errors.New(`msgsock: invalid endpoint`)
	// ErrAddrInUse is returned when binding an endpoint that is already bound.
	ErrAddrInUse = errors.New(`msgsock: address in use`)
	// ErrIncompatible is returned when connecting sockets of incompatible
	// types, or adding a second peer to a pair socket.
	ErrIncompatible = errors.New(`msgsock: incompatible socket`)
	// ErrNotSupported is returned for operations the socket type does not
	// support, e.g. sending on a Pull socket.
	ErrNotSupported = errors.New(`msgsock: operation not supported`)
	// ErrInvalidType is returned by [Context.Socket] for unknown types.
	ErrInvalidType = errors.New(`msgsock: invalid socket type`)
)

// Context is a namespace of inproc endpoints. It is safe for concurrent use.
type Context struct {
	// Prevent copying
	_ [0]func()

	mu        sync.Mutex
	endpoints map[string]*Socket
	pending   map[string][]*Socket
	sockets   map[*Socket]struct{}
	id        uint64
	closed    bool
}

var (
	contextIDs atomic.Uint64
	contexts   sync.Map // uint64 -> *Context
)

func init() {
	codec.RegisterType(CodecName, decodeContext)
}

// NewContext creates a new context, registering it so it may be looked up
// by id, until closed.
func NewContext() *Context {
	c := &Context{
		endpoints: make(map[string]*Socket),
		pending:   make(map[string][]*Socket),
		sockets:   make(map[*Socket]struct{}),
		id:        contextIDs.Add(1),
	}
	contexts.Store(c.id, c)
	return c
}

// LookupContext returns the open context with the given id.
func LookupContext(id uint64) (*Context, bool) {
	v, ok := contexts.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*Context), true
}

// ID returns the process-unique id of the context.
func (c *Context) ID() uint64 { return c.id }

// Socket creates a new socket of the given type.
func (c *Context) Socket(typ SocketType) (*Socket, error) {
	if !typ.valid() {
		return nil, fmt.Errorf(`%w: %d`, ErrInvalidType, typ)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	s := &Socket{
		ctx: c,
		typ: typ,
		hwm: DefaultHWM,
	}
	c.sockets[s] = struct{}{}
	return s, nil
}

// Close closes every socket created from the context, and removes it from
// the registry. Subsequent calls return ErrClosed.
func (c *Context) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.closed = true
	var notify []func()
	for s := range c.sockets {
		notify = s.closeLocked(notify)
	}
	clear(c.sockets)
	c.mu.Unlock()

	contexts.Delete(c.id)
	runNotify(notify)

	return nil
}

// CodecName implements codec.Encodable.
func (c *Context) CodecName() string { return CodecName }

// MarshalCodec implements codec.Encodable, encoding the registry id.
func (c *Context) MarshalCodec() ([]byte, error) {
	b := buffer.New(binary.MaxVarintLen64)
	b.WriteUvarint(c.id)
	return b.Bytes(), nil
}

func decodeContext(data []byte) (value.Value, error) {
	b := buffer.FromBytes(data)
	id, err := b.ReadUvarint()
	if err != nil {
		return nil, fmt.Errorf(`%w: context id: %w`, codec.ErrCorrupt, err)
	}
	if b.Len() != 0 {
		return nil, fmt.Errorf(`%w: trailing bytes after context id`, codec.ErrCorrupt)
	}
	c, ok := LookupContext(id)
	if !ok {
		return nil, fmt.Errorf(`%w: context %d`, ErrClosed, id)
	}
	return c, nil
}

// parseEndpoint validates an inproc endpoint, returning its name.
func parseEndpoint(endpoint string) (string, error) {
	name, ok := strings.CutPrefix(endpoint, `inproc://`)
	if !ok || name == `` {
		return ``, fmt.Errorf(`%w: %q`, ErrInvalidEndpoint, endpoint)
	}
	return name, nil
}

func runNotify(notify []func()) {
	for _, fn := range notify {
		fn()
	}
}
