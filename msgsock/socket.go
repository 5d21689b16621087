// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package msgsock

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
)

// DefaultHWM is the default high-water mark, in messages.
const DefaultHWM = 1000

// ErrInvalidHWM is returned by [Socket.SetHWM] for values less than one.
var ErrInvalidHWM = errors.New(`msgsock: invalid high-water mark`)

// SocketType is the messaging pattern of a socket.
type SocketType uint8

const (
	// Pair is an exclusive, bidirectional connection to a single peer.
	Pair SocketType = iota + 1
	// Push distributes messages round-robin to connected Pull sockets.
	Push
	// Pull fair-queues messages from connected Push sockets.
	Pull
)

func (t SocketType) valid() bool { return t >= Pair && t <= Pull }

func (t SocketType) String() string {
	switch t {
	case Pair:
		return `Pair`
	case Push:
		return `Push`
	case Pull:
		return `Pull`
	default:
		return fmt.Sprintf(`SocketType(%d)`, uint8(t))
	}
}

func (t SocketType) compatible(peer SocketType) bool {
	switch t {
	case Pair:
		return peer == Pair
	case Push:
		return peer == Pull
	case Pull:
		return peer == Push
	default:
		return false
	}
}

// PollEvents is a readiness bitmask.
type PollEvents uint8

const (
	// PollIn indicates at least one message may be received.
	PollIn PollEvents = 1 << iota
	// PollOut indicates at least one message may be sent.
	PollOut
)

// Socket is an endpoint of a messaging pattern. It is safe for concurrent
// use. A message is one or more frames.
type Socket struct {
	// Prevent copying
	_ [0]func()

	ctx *Context

	// guarded by ctx.mu
	in       [][][]byte
	peers    []*Socket
	bound    []string
	connects []string
	notify   func()
	rr       int
	hwm      int
	closed   bool

	typ SocketType
}

// Type returns the socket type.
func (s *Socket) Type() SocketType { return s.typ }

// Context returns the context the socket was created from.
func (s *Socket) Context() *Context { return s.ctx }

// Bind binds the socket to an inproc endpoint, completing any connections
// already attempted against it.
func (s *Socket) Bind(endpoint string) error {
	name, err := parseEndpoint(endpoint)
	if err != nil {
		return err
	}

	c := s.ctx
	c.mu.Lock()
	if s.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if _, ok := c.endpoints[name]; ok {
		c.mu.Unlock()
		return fmt.Errorf(`%w: %q`, ErrAddrInUse, endpoint)
	}
	c.endpoints[name] = s
	s.bound = append(s.bound, name)

	var notify []func()
	for _, peer := range c.pending[name] {
		if s.canLink(peer) {
			notify = link(notify, s, peer)
		}
	}
	delete(c.pending, name)
	c.mu.Unlock()

	runNotify(notify)

	return nil
}

// Connect connects the socket to an inproc endpoint. If nothing is bound to
// the endpoint yet, the connection completes once something is.
func (s *Socket) Connect(endpoint string) error {
	name, err := parseEndpoint(endpoint)
	if err != nil {
		return err
	}

	c := s.ctx
	c.mu.Lock()
	if s.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if s.typ == Pair && (len(s.peers) != 0 || len(s.connects) != 0) {
		c.mu.Unlock()
		return fmt.Errorf(`%w: pair already connected`, ErrIncompatible)
	}

	peer, ok := c.endpoints[name]
	if !ok {
		c.pending[name] = append(c.pending[name], s)
		s.connects = append(s.connects, name)
		c.mu.Unlock()
		return nil
	}
	if peer == s || !s.canLink(peer) {
		c.mu.Unlock()
		return fmt.Errorf(`%w: %s cannot connect to %s`, ErrIncompatible, s.typ, peer.typ)
	}
	s.connects = append(s.connects, name)
	notify := link(nil, s, peer)
	c.mu.Unlock()

	runNotify(notify)

	return nil
}

// TrySend sends a message without blocking, failing with ErrAgain if no peer
// has room below its high-water mark. Frames are copied.
func (s *Socket) TrySend(frames ...[]byte) error {
	if s.typ == Pull {
		return ErrNotSupported
	}

	msg := make([][]byte, len(frames))
	for i, frame := range frames {
		msg[i] = bytes.Clone(frame)
	}

	c := s.ctx
	c.mu.Lock()
	if s.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	peer := s.nextPeer()
	if peer == nil {
		c.mu.Unlock()
		return ErrAgain
	}
	peer.in = append(peer.in, msg)
	notify := peer.notify
	c.mu.Unlock()

	if notify != nil {
		notify()
	}

	return nil
}

// TryRecv receives a message without blocking, failing with ErrAgain if none
// is queued.
func (s *Socket) TryRecv() ([][]byte, error) {
	if s.typ == Push {
		return nil, ErrNotSupported
	}

	c := s.ctx
	c.mu.Lock()
	if s.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if len(s.in) == 0 {
		c.mu.Unlock()
		return nil, ErrAgain
	}
	wasFull := len(s.in) >= s.hwm
	msg := s.in[0]
	s.in[0] = nil
	s.in = s.in[1:]
	var notify []func()
	if wasFull {
		notify = s.peerNotify(notify)
	}
	c.mu.Unlock()

	runNotify(notify)

	return msg, nil
}

// Poll returns the current readiness of the socket.
func (s *Socket) Poll() PollEvents {
	c := s.ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	if s.closed {
		return 0
	}
	var events PollEvents
	if s.typ != Push && len(s.in) != 0 {
		events |= PollIn
	}
	if s.typ != Pull && s.hasRoom() {
		events |= PollOut
	}
	return events
}

// SetNotify sets a function called whenever the readiness of the socket may
// have changed, including on close. It may be called from any goroutine, and
// must not block.
func (s *Socket) SetNotify(fn func()) {
	s.ctx.mu.Lock()
	s.notify = fn
	s.ctx.mu.Unlock()
}

// HWM returns the high-water mark of the inbound queue.
func (s *Socket) HWM() int {
	s.ctx.mu.Lock()
	defer s.ctx.mu.Unlock()
	return s.hwm
}

// SetHWM sets the maximum number of messages queued for receipt by the
// socket. Messages already queued are kept.
func (s *Socket) SetHWM(n int) error {
	if n < 1 {
		return fmt.Errorf(`%w: %d`, ErrInvalidHWM, n)
	}
	c := s.ctx
	c.mu.Lock()
	if s.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	var notify []func()
	if n > s.hwm {
		notify = s.peerNotify(notify)
	}
	s.hwm = n
	c.mu.Unlock()

	runNotify(notify)

	return nil
}

// Close closes the socket, discarding queued messages, and disconnecting
// its peers. Subsequent calls return ErrClosed.
func (s *Socket) Close() error {
	c := s.ctx
	c.mu.Lock()
	if s.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	notify := s.closeLocked(nil)
	delete(c.sockets, s)
	c.mu.Unlock()

	runNotify(notify)

	return nil
}

func (s *Socket) closeLocked(notify []func()) []func() {
	c := s.ctx
	s.closed = true
	for _, name := range s.bound {
		if c.endpoints[name] == s {
			delete(c.endpoints, name)
		}
	}
	for _, name := range s.connects {
		c.pending[name] = slices.DeleteFunc(c.pending[name], func(v *Socket) bool { return v == s })
		if len(c.pending[name]) == 0 {
			delete(c.pending, name)
		}
	}
	for _, peer := range s.peers {
		peer.peers = slices.DeleteFunc(peer.peers, func(v *Socket) bool { return v == s })
		if peer.notify != nil {
			notify = append(notify, peer.notify)
		}
	}
	if s.notify != nil {
		notify = append(notify, s.notify)
	}
	s.peers = nil
	s.bound = nil
	s.connects = nil
	s.in = nil
	return notify
}

func (s *Socket) canLink(peer *Socket) bool {
	if peer.closed || !s.typ.compatible(peer.typ) {
		return false
	}
	if s.typ == Pair && (len(s.peers) != 0 || len(peer.peers) != 0) {
		return false
	}
	return !slices.Contains(s.peers, peer)
}

// nextPeer selects the next peer with room, round-robin.
func (s *Socket) nextPeer() *Socket {
	n := len(s.peers)
	for i := range n {
		peer := s.peers[(s.rr+i)%n]
		if len(peer.in) < peer.hwm {
			s.rr = (s.rr + i + 1) % n
			return peer
		}
	}
	return nil
}

func (s *Socket) hasRoom() bool {
	for _, peer := range s.peers {
		if len(peer.in) < peer.hwm {
			return true
		}
	}
	return false
}

func (s *Socket) peerNotify(notify []func()) []func() {
	for _, peer := range s.peers {
		if peer.notify != nil {
			notify = append(notify, peer.notify)
		}
	}
	return notify
}

func link(notify []func(), a, b *Socket) []func() {
	a.peers = append(a.peers, b)
	b.peers = append(b.peers, a)
	if a.notify != nil {
		notify = append(notify, a.notify)
	}
	if b.notify != nil {
		notify = append(notify, b.notify)
	}
	return notify
}
