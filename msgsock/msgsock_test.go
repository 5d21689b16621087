// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package msgsock

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/joeycumines/go-coop/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func newTestContext(t *testing.T) *Context {
	t.Helper()
	c := NewContext()
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func newTestSocket(t *testing.T, c *Context, typ SocketType) *Socket {
	t.Helper()
	s, err := c.Socket(typ)
	require.NoError(t, err)
	return s
}

func TestSocket_pair(t *testing.T) {
	c := newTestContext(t)
	a := newTestSocket(t, c, Pair)
	b := newTestSocket(t, c, Pair)

	assert.Equal(t, PollEvents(0), a.Poll())
	assert.ErrorIs(t, a.TrySend([]byte(`x`)), ErrAgain)

	require.NoError(t, a.Bind(`inproc://pair`))
	require.NoError(t, b.Connect(`inproc://pair`))

	frame := []byte(`hello`)
	require.NoError(t, a.TrySend(frame, []byte(`world`)))
	frame[0] = 'j'
	assert.Equal(t, PollIn|PollOut, b.Poll())

	msg, err := b.TryRecv()
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte(`hello`), []byte(`world`)}, msg)

	_, err = b.TryRecv()
	assert.ErrorIs(t, err, ErrAgain)

	require.NoError(t, b.TrySend([]byte(`back`)))
	msg, err = a.TryRecv()
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte(`back`)}, msg)

	third := newTestSocket(t, c, Pair)
	assert.ErrorIs(t, third.Connect(`inproc://pair`), ErrIncompatible)
}

func TestSocket_connectBeforeBind(t *testing.T) {
	c := newTestContext(t)
	pull := newTestSocket(t, c, Pull)
	push := newTestSocket(t, c, Push)

	var notified int
	pull.SetNotify(func() { notified++ })

	require.NoError(t, push.Connect(`inproc://late`))
	assert.ErrorIs(t, push.TrySend([]byte(`early`)), ErrAgain)
	require.NoError(t, pull.Bind(`inproc://late`))
	assert.Equal(t, 1, notified)

	require.NoError(t, push.TrySend([]byte(`x`)))
	assert.Equal(t, 2, notified)
	assert.Equal(t, PollIn, pull.Poll())
}

func TestSocket_pushPullRoundRobin(t *testing.T) {
	c := newTestContext(t)
	push := newTestSocket(t, c, Push)
	require.NoError(t, push.Bind(`inproc://work`))
	pulls := []*Socket{newTestSocket(t, c, Pull), newTestSocket(t, c, Pull)}
	for _, p := range pulls {
		require.NoError(t, p.Connect(`inproc://work`))
	}

	for i := range 4 {
		require.NoError(t, push.TrySend([]byte{byte(i)}))
	}
	for i, p := range pulls {
		for j := range 2 {
			msg, err := p.TryRecv()
			require.NoError(t, err)
			assert.Equal(t, []byte{byte(i + j*2)}, msg[0])
		}
	}

	require.NoError(t, push.TrySend())
	_, err := push.TryRecv()
	assert.ErrorIs(t, err, ErrNotSupported)
	assert.ErrorIs(t, pulls[0].TrySend([]byte(`x`)), ErrNotSupported)

	pair := newTestSocket(t, c, Pair)
	assert.ErrorIs(t, pair.Connect(`inproc://work`), ErrIncompatible)
}

func TestSocket_hwm(t *testing.T) {
	c := newTestContext(t)
	push := newTestSocket(t, c, Push)
	pull := newTestSocket(t, c, Pull)
	require.NoError(t, pull.SetHWM(2))
	assert.Equal(t, 2, pull.HWM())
	assert.ErrorIs(t, pull.SetHWM(0), ErrInvalidHWM)
	require.NoError(t, pull.Bind(`inproc://hwm`))
	require.NoError(t, push.Connect(`inproc://hwm`))

	var writable int
	push.SetNotify(func() { writable++ })

	require.NoError(t, push.TrySend([]byte(`1`)))
	require.NoError(t, push.TrySend([]byte(`2`)))
	assert.ErrorIs(t, push.TrySend([]byte(`3`)), ErrAgain)
	assert.Equal(t, PollEvents(0), push.Poll())

	_, err := pull.TryRecv()
	require.NoError(t, err)
	assert.Equal(t, 1, writable)
	assert.Equal(t, PollOut, push.Poll())
	require.NoError(t, push.TrySend([]byte(`3`)))

	require.NoError(t, pull.SetHWM(3))
	assert.Equal(t, 2, writable)
	require.NoError(t, push.TrySend([]byte(`4`)))
}

func TestSocket_close(t *testing.T) {
	c := newTestContext(t)
	a := newTestSocket(t, c, Pair)
	b := newTestSocket(t, c, Pair)
	require.NoError(t, a.Bind(`inproc://close`))
	require.NoError(t, b.Connect(`inproc://close`))
	require.NoError(t, a.TrySend([]byte(`x`)))

	var closed bool
	b.SetNotify(func() { closed = true })
	require.NoError(t, a.Close())
	assert.True(t, closed)
	assert.ErrorIs(t, a.Close(), ErrClosed)
	assert.ErrorIs(t, a.TrySend([]byte(`x`)), ErrClosed)
	assert.ErrorIs(t, b.TrySend([]byte(`x`)), ErrAgain)

	// queued messages survive the peer closing
	msg, err := b.TryRecv()
	require.NoError(t, err)
	assert.Equal(t, `x`, string(msg[0]))

	// the endpoint is free again
	d := newTestSocket(t, c, Pair)
	require.NoError(t, d.Bind(`inproc://close`))
}

func TestSocket_errors(t *testing.T) {
	c := newTestContext(t)
	_, err := c.Socket(0)
	assert.ErrorIs(t, err, ErrInvalidType)
	s := newTestSocket(t, c, Pair)
	assert.ErrorIs(t, s.Bind(`tcp://x`), ErrInvalidEndpoint)
	assert.ErrorIs(t, s.Connect(`inproc://`), ErrInvalidEndpoint)
	require.NoError(t, s.Bind(`inproc://a`))
	other := newTestSocket(t, c, Pair)
	assert.ErrorIs(t, other.Bind(`inproc://a`), ErrAddrInUse)
	assert.ErrorIs(t, s.Connect(`inproc://a`), ErrIncompatible)
	assert.Equal(t, `Pull`, Pull.String())
	assert.Equal(t, `SocketType(9)`, SocketType(9).String())
}

func TestContext_close(t *testing.T) {
	c := NewContext()
	s, err := c.Socket(Pull)
	require.NoError(t, err)
	var notified bool
	s.SetNotify(func() { notified = true })

	got, ok := LookupContext(c.ID())
	require.True(t, ok)
	assert.Same(t, c, got)

	require.NoError(t, c.Close())
	assert.True(t, notified)
	assert.ErrorIs(t, c.Close(), ErrClosed)
	_, ok = LookupContext(c.ID())
	assert.False(t, ok)
	_, err = c.Socket(Pair)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.TryRecv()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestContext_codec(t *testing.T) {
	c := newTestContext(t)
	data, err := codec.Encode(c, `tail`)
	require.NoError(t, err)
	vals, err := codec.Decode(data)
	require.NoError(t, err)
	require.Len(t, vals, 2)
	assert.Same(t, c, vals[0])

	require.NoError(t, c.Close())
	_, err = codec.Decode(data)
	assert.ErrorIs(t, err, ErrClosed)
}

// TestSocket_concurrent pumps messages between goroutines, using SetNotify
// to wait for readiness.
func TestSocket_concurrent(t *testing.T) {
	c := newTestContext(t)
	const (
		producers = 4
		perProd   = 200
	)

	pull := newTestSocket(t, c, Pull)
	require.NoError(t, pull.SetHWM(8))
	require.NoError(t, pull.Bind(`inproc://fanin`))
	readable := make(chan struct{}, 1)
	pull.SetNotify(func() {
		select {
		case readable <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	for i := range producers {
		push := newTestSocket(t, c, Push)
		require.NoError(t, push.Connect(`inproc://fanin`))
		writable := make(chan struct{}, 1)
		push.SetNotify(func() {
			select {
			case writable <- struct{}{}:
			default:
			}
		})
		g.Go(func() error {
			for j := 0; j < perProd; {
				err := push.TrySend([]byte(fmt.Sprintf(`%d-%d`, i, j)))
				switch err {
				case nil:
					j++
				case ErrAgain:
					select {
					case <-writable:
					case <-time.After(time.Millisecond):
					case <-ctx.Done():
						return ctx.Err()
					}
				default:
					return err
				}
			}
			return nil
		})
	}

	seen := make(map[string]struct{})
	g.Go(func() error {
		for len(seen) < producers*perProd {
			msg, err := pull.TryRecv()
			switch err {
			case nil:
				seen[string(msg[0])] = struct{}{}
			case ErrAgain:
				select {
				case <-readable:
				case <-time.After(time.Millisecond):
				case <-ctx.Done():
					return ctx.Err()
				}
			default:
				return err
			}
		}
		return nil
	})

	require.NoError(t, g.Wait())
	assert.Len(t, seen, producers*perProd)
}
