// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package coop

import (
	"bytes"
	"errors"
	"net"

	"github.com/joeycumines/go-coop/queue"
	"github.com/joeycumines/go-coop/value"
)

var (
	// ErrNotConn is returned by Read and Write on a listener stream.
	ErrNotConn = errors.New(`coop: stream is not a connection`)
	// ErrNotListener is returned by Listen and Accept on a connection stream.
	ErrNotListener = errors.New(`coop: stream is not a listener`)
)

// Stream is a handle task for a connection, or a listener.
//
// Connections are read ahead, into a bounded queue of chunks, pausing while
// the queue is full. Writes are performed in order, one at a time.
// Listeners accept ahead into a bounded backlog, in the same way.
type Stream struct {
	*Task
	handle

	conn net.Conn
	ln   net.Listener

	// read (or accept) ahead state
	reads   *Queue
	pending bool
	done    bool
	rerr    error

	writes  []*writeRequest
	writing bool
	werr    error
}

type writeRequest struct {
	wait     queue.List[*Task]
	data     []byte
	shutdown bool
}

// NewStream wraps a connection, which the stream takes ownership of.
func (rt *Runtime) NewStream(conn net.Conn) (*Stream, error) {
	if rt.closed {
		return nil, ErrClosed
	}
	reads, err := NewQueue(rt.backlog)
	if err != nil {
		return nil, err
	}
	x := &Stream{conn: conn, reads: reads}
	x.Task = rt.newTask(KindStream, x)
	x.setAddrs(conn.LocalAddr(), conn.RemoteAddr())
	return x, nil
}

// NewListener wraps a listener, which the stream takes ownership of.
func (rt *Runtime) NewListener(ln net.Listener) (*Stream, error) {
	if rt.closed {
		return nil, ErrClosed
	}
	x := &Stream{ln: ln}
	x.Task = rt.newTask(KindStream, x)
	x.setAddrs(ln.Addr(), nil)
	return x, nil
}

func (x *Stream) setAddrs(local, remote net.Addr) {
	if local != nil {
		_ = x.SetAttr(`local`, local.String())
	}
	if remote != nil {
		_ = x.SetAttr(`remote`, remote.String())
	}
}

// Conn returns the underlying connection, or nil for a listener.
func (x *Stream) Conn() net.Conn { return x.conn }

// Read suspends t until data is available, returning the next chunk read.
// At the end of the stream, it fails with io.EOF, or whatever error ended
// it, repeatedly.
func (x *Stream) Read(t *Task) ([]byte, error) {
	if x.Closed() {
		return nil, ErrTaskClosed
	}
	if x.conn == nil {
		return nil, ErrNotConn
	}
	if x.rerr != nil {
		return nil, x.rerr
	}
	x.readAhead()
	vals, err := x.reads.Get(t)
	if err != nil {
		return nil, err
	}
	x.readAhead()
	p, err := unpackResult(vals)
	if err != nil {
		x.rerr = err
		return nil, err
	}
	b, _ := p.([]byte)
	return b, nil
}

// Write suspends t until p has been written. Writes from different tasks
// are performed in the order they were issued. After a failed write, every
// subsequent write fails with the same error.
func (x *Stream) Write(t *Task, p []byte) error {
	return x.write(t, &writeRequest{data: bytes.Clone(p)})
}

// CloseWrite shuts down the writing side of the connection, after every
// pending write, if the connection supports it (e.g. TCP).
func (x *Stream) CloseWrite(t *Task) error {
	return x.write(t, &writeRequest{shutdown: true})
}

// Listen starts accepting connections, holding at most backlog of them
// until they are accepted. Calling it again has no effect.
func (x *Stream) Listen(backlog int) error {
	if x.Closed() {
		return ErrTaskClosed
	}
	if x.ln == nil {
		return ErrNotListener
	}
	if x.reads != nil {
		return nil
	}
	reads, err := NewQueue(backlog)
	if err != nil {
		return err
	}
	x.reads = reads
	x.acceptAhead()
	return nil
}

// Accept suspends t until a connection arrives, returning it as a new
// stream. It calls Listen, with the default backlog, if necessary.
func (x *Stream) Accept(t *Task) (*Stream, error) {
	if err := x.Listen(x.rt.backlog); err != nil {
		return nil, err
	}
	if x.rerr != nil {
		return nil, x.rerr
	}
	vals, err := x.reads.Get(t)
	if err != nil {
		return nil, err
	}
	x.acceptAhead()
	v, err := unpackResult(vals)
	if err != nil {
		x.rerr = err
		return nil, err
	}
	return x.rt.NewStream(v.(net.Conn))
}

func (x *Stream) readAhead() {
	if x.pending || x.done || x.Closed() || x.reads.Full() {
		return
	}
	x.pending = true
	buf := make([]byte, x.rt.readBuffer)
	conn := x.conn
	if _, err := x.rt.loop.Do(func() (any, error) {
		n, err := conn.Read(buf)
		return buf[:n], err
	}, x.onRead); err != nil {
		x.onRead(nil, err)
	}
}

func (x *Stream) onRead(result any, err error) {
	x.pending = false
	if x.Closed() {
		return
	}
	if p, _ := result.([]byte); len(p) != 0 {
		x.reads.Offer(p)
	}
	if err != nil {
		x.done = true
		x.reads.Offer(nil, err)
		return
	}
	x.readAhead()
}

func (x *Stream) acceptAhead() {
	if x.pending || x.done || x.Closed() || x.reads.Full() {
		return
	}
	x.pending = true
	ln := x.ln
	if _, err := x.rt.loop.Do(func() (any, error) {
		return ln.Accept()
	}, x.onAccept); err != nil {
		x.onAccept(nil, err)
	}
}

func (x *Stream) onAccept(result any, err error) {
	x.pending = false
	conn, _ := result.(net.Conn)
	if x.Closed() {
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		x.done = true
		x.reads.Offer(nil, err)
		return
	}
	x.reads.Offer(conn)
	x.acceptAhead()
}

func (x *Stream) write(t *Task, req *writeRequest) error {
	if x.Closed() {
		return ErrTaskClosed
	}
	if x.conn == nil {
		return ErrNotConn
	}
	if err := t.checkCurrent(); err != nil {
		return err
	}
	if x.werr != nil {
		return x.werr
	}
	x.writes = append(x.writes, req)
	x.writeNext()
	_, err := t.park(&req.wait)
	return err
}

func (x *Stream) writeNext() {
	if x.writing || len(x.writes) == 0 {
		return
	}
	req := x.writes[0]
	x.writes[0] = nil
	x.writes = x.writes[1:]
	x.writing = true
	conn := x.conn
	if _, err := x.rt.loop.Do(func() (any, error) {
		if req.shutdown {
			return nil, closeWrite(conn)
		}
		_, err := conn.Write(req.data)
		return nil, err
	}, func(_ any, err error) {
		x.onWrite(req, err)
	}); err != nil {
		x.onWrite(req, err)
	}
}

func (x *Stream) onWrite(req *writeRequest, err error) {
	x.writing = false
	if err != nil && x.werr == nil && !req.shutdown {
		x.werr = err
	}
	wakeAll(&req.wait, err)
	if x.werr != nil {
		for _, req := range x.writes {
			wakeAll(&req.wait, x.werr)
		}
		x.writes = nil
		return
	}
	x.writeNext()
}

func (x *Stream) close(*Task) {
	var err error
	if x.conn != nil {
		err = x.conn.Close()
	} else {
		err = x.ln.Close()
	}
	if err != nil {
		x.rt.logger.Debug().
			Err(err).
			Uint64(`task`, x.ID()).
			Log(`coop: failed to close stream`)
	}
	if x.reads != nil {
		x.reads.Close()
	}
	for _, req := range x.writes {
		wakeAll(&req.wait, ErrClosed)
	}
	x.writes = nil
	x.closeWaiters()
}

func closeWrite(conn net.Conn) error {
	if c, ok := conn.(interface{ CloseWrite() error }); ok {
		return c.CloseWrite()
	}
	return errors.ErrUnsupported
}

// unpackResult unpacks a value group queued by a read or accept: either a
// single value, or a nil value followed by an error.
func unpackResult(vals []value.Value) (value.Value, error) {
	if len(vals) == 2 {
		err, _ := vals[1].(error)
		return nil, err
	}
	return vals[0], nil
}
