// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/joeycumines/go-coop"
	"github.com/joeycumines/go-coop/msgsock"
	"github.com/joeycumines/go-coop/value"
	"github.com/joeycumines/logiface"
	"golang.org/x/sync/errgroup"
)

const producerFunc = `coop.demo.producer`

func init() {
	coop.Register(producerFunc, produce)
}

// produce runs on its own OS thread, sending (id, seq) messages to the
// endpoint, where args are: context, endpoint, id, count.
func produce(t *coop.Task, args ...value.Value) ([]value.Value, error) {
	if len(args) != 4 {
		return nil, fmt.Errorf(`expected 4 arguments, got %d`, len(args))
	}
	ctx, ok := args[0].(*msgsock.Context)
	if !ok {
		return nil, fmt.Errorf(`expected a context, got %T`, args[0])
	}
	endpoint, _ := args[1].(string)
	id, _ := args[2].(int64)
	count, _ := args[3].(int64)

	s, err := t.Runtime().NewSocket(ctx, msgsock.Push)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	if err := s.Connect(endpoint); err != nil {
		return nil, err
	}
	for seq := range count {
		if err := s.SendValues(t, id, seq); err != nil {
			return nil, err
		}
	}
	return []value.Value{count}, nil
}

func newRuntime(logger *logiface.Logger[logiface.Event], cfg *Config) (*coop.Runtime, error) {
	return coop.New(
		coop.WithLogger(logger),
		coop.WithStreamBuffers(cfg.Runtime.ReadBuffer, cfg.Runtime.Backlog),
	)
}

// runThreads fans in messages from producer threads, checking that the
// messages of each producer arrive in order.
func runThreads(logger *logiface.Logger[logiface.Event], cfg *Config, w io.Writer) error {
	rt, err := newRuntime(logger, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx := msgsock.NewContext()
	defer ctx.Close()

	const endpoint = `inproc://coop-demo-threads`
	pull, err := rt.NewSocket(ctx, msgsock.Pull)
	if err != nil {
		return err
	}
	if err := pull.SetHWM(cfg.Threads.HWM); err != nil {
		return err
	}
	if err := pull.Bind(endpoint); err != nil {
		return err
	}

	fn := value.NewFunc(producerFunc, ctx, endpoint)
	threads := make([]*coop.Thread, cfg.Threads.Count)
	for i := range threads {
		if threads[i], err = rt.SpawnThread(fn, int64(i), int64(cfg.Threads.Messages)); err != nil {
			return err
		}
	}

	counts := make([]int64, len(threads))
	collector, err := rt.Spawn(func(t *coop.Task, _ ...value.Value) ([]value.Value, error) {
		for range len(threads) * cfg.Threads.Messages {
			vals, err := pull.RecvValues(t)
			if err != nil {
				return nil, err
			}
			if len(vals) != 2 {
				return nil, fmt.Errorf(`unexpected message: %v`, vals)
			}
			id, _ := vals[0].(int64)
			seq, _ := vals[1].(int64)
			if id < 0 || id >= int64(len(counts)) {
				return nil, fmt.Errorf(`unexpected producer %d`, id)
			}
			if seq != counts[id] {
				return nil, fmt.Errorf(`producer %d: got message %d, expected %d`, id, seq, counts[id])
			}
			counts[id]++
		}
		return nil, nil
	})
	if err != nil {
		return err
	}

	if _, err := collector.Join(rt.Main()); err != nil {
		return err
	}
	var total int64
	for _, x := range threads {
		vals, err := x.Join(rt.Main())
		if err != nil {
			return err
		}
		n, _ := vals[0].(int64)
		total += n
	}

	logger.Info().
		Int(`threads`, len(threads)).
		Int64(`messages`, total).
		Log(`coop: threads demo finished`)
	_, err = fmt.Fprintf(w, "threads: %d threads sent %d messages\n", len(threads), total)
	return err
}

// runEcho serves cfg.Echo.Clients connections, each from a client with its
// own runtime, running on its own goroutine.
func runEcho(ctx context.Context, logger *logiface.Logger[logiface.Event], cfg *Config, w io.Writer) error {
	if cfg.Echo.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Echo.Timeout)
		defer cancel()
	}

	ln, err := net.Listen(`tcp`, cfg.Echo.Addr)
	if err != nil {
		return err
	}
	addr := ln.Addr().String()

	g, ctx := errgroup.WithContext(ctx)
	// unblocks the server, on failure or cancellation
	defer context.AfterFunc(ctx, func() { _ = ln.Close() })()

	logger.Info().
		Str(`addr`, addr).
		Int(`clients`, cfg.Echo.Clients).
		Log(`coop: echo server listening`)

	g.Go(func() error { return serveEcho(logger, cfg, ln) })

	echoed := make([]int, cfg.Echo.Clients)
	for i := range echoed {
		g.Go(func() (err error) {
			echoed[i], err = echoClient(ctx, logger, cfg, addr, i)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var total int
	for _, n := range echoed {
		total += n
	}
	_, err = fmt.Fprintf(w, "echo: %d clients echoed %d bytes\n", len(echoed), total)
	return err
}

func serveEcho(logger *logiface.Logger[logiface.Event], cfg *Config, ln net.Listener) error {
	rt, err := newRuntime(logger, cfg)
	if err != nil {
		_ = ln.Close()
		return err
	}
	defer rt.Close()

	server, err := rt.NewListener(ln)
	if err != nil {
		return err
	}

	if _, err := rt.Spawn(func(t *coop.Task, _ ...value.Value) ([]value.Value, error) {
		defer server.Close()
		for range cfg.Echo.Clients {
			conn, err := server.Accept(t)
			if err != nil {
				return nil, err
			}
			if _, err := t.Runtime().Spawn(echoConn, conn); err != nil {
				conn.Close()
				return nil, err
			}
		}
		return nil, nil
	}); err != nil {
		return err
	}

	return rt.Run()
}

// echoConn writes back everything read from a connection, until it is
// half closed by the peer.
func echoConn(t *coop.Task, args ...value.Value) ([]value.Value, error) {
	conn := args[0].(*coop.Stream)
	defer conn.Close()
	for {
		p, err := conn.Read(t)
		if errors.Is(err, io.EOF) {
			return nil, conn.CloseWrite(t)
		}
		if err != nil {
			return nil, err
		}
		if err := conn.Write(t, p); err != nil {
			return nil, err
		}
	}
}

func echoClient(ctx context.Context, logger *logiface.Logger[logiface.Event], cfg *Config, addr string, id int) (int, error) {
	rt, err := newRuntime(logger, cfg)
	if err != nil {
		return 0, err
	}
	defer rt.Close()

	var expected bytes.Buffer
	for i := range cfg.Echo.Messages {
		fmt.Fprintf(&expected, "client %d message %d\n", id, i)
	}

	task, err := rt.Spawn(func(t *coop.Task, _ ...value.Value) ([]value.Value, error) {
		vals, err := rt.Await(t, func() ([]value.Value, error) {
			var d net.Dialer
			conn, err := d.DialContext(ctx, `tcp`, addr)
			if err != nil {
				return nil, err
			}
			return []value.Value{conn}, nil
		})
		if err != nil {
			return nil, err
		}
		conn, err := rt.NewStream(vals[0].(net.Conn))
		if err != nil {
			return nil, err
		}
		defer conn.Close()

		for line := range bytes.Lines(expected.Bytes()) {
			if err := conn.Write(t, line); err != nil {
				return nil, err
			}
		}
		if err := conn.CloseWrite(t); err != nil {
			return nil, err
		}

		var got []byte
		for {
			p, err := conn.Read(t)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return nil, err
			}
			got = append(got, p...)
		}
		if !bytes.Equal(got, expected.Bytes()) {
			return nil, fmt.Errorf(`client %d: echo mismatch: got %d bytes, expected %d`, id, len(got), expected.Len())
		}
		return []value.Value{int64(len(got))}, nil
	})
	if err != nil {
		return 0, err
	}

	vals, err := task.Join(rt.Main())
	if err != nil {
		return 0, err
	}
	n, _ := vals[0].(int64)
	return int(n), nil
}
