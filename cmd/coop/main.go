// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Command coop drives demonstrations of the cooperative runtime: a fan-in
// of messages from OS threads, over messaging sockets, and a TCP echo
// server serving clients running on their own runtimes.
//
// Usage:
//
//	coop [-config file.toml] [-demo threads|echo|all] [flags]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, `coop:`, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	f := newFlags(`coop`)
	f.set.SetOutput(stderr)
	if err := f.set.Parse(args); err != nil {
		return err
	}
	if f.set.NArg() != 0 {
		return fmt.Errorf(`unexpected arguments: %q`, f.set.Args())
	}

	cfg, err := loadConfig(f.config)
	if err != nil {
		return err
	}
	f.apply(cfg)
	if err := cfg.validate(); err != nil {
		return err
	}

	logger := newLogger(stderr, cfg.Log.Level)

	logger.Info().
		Str(`demo`, cfg.Demo).
		Log(`coop: starting`)

	if cfg.Demo == `threads` || cfg.Demo == `all` {
		if err := runThreads(logger, cfg, stdout); err != nil {
			return fmt.Errorf(`threads demo: %w`, err)
		}
	}
	if cfg.Demo == `echo` || cfg.Demo == `all` {
		if err := runEcho(ctx, logger, cfg, stdout); err != nil {
			return fmt.Errorf(`echo demo: %w`, err)
		}
	}
	return nil
}

func newLogger(w io.Writer, level string) *logiface.Logger[logiface.Event] {
	lvl, _ := parseLevel(level)
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w)),
		stumpy.L.WithLevel(lvl),
	).Logger()
}
