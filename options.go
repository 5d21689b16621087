// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package coop

import (
	"errors"
	"time"

	"github.com/joeycumines/go-coop/loop"
	"github.com/joeycumines/logiface"
)

// runtimeOptions holds configuration options for Runtime creation.
type runtimeOptions struct {
	logger     *logiface.Logger[logiface.Event]
	loop       *loop.Loop
	onError    func(err error)
	errorRates map[time.Duration]int
	loopOpts   []loop.LoopOption
	readBuffer int
	backlog    int
}

// Option configures a Runtime instance.
type Option interface {
	applyRuntime(*runtimeOptions) error
}

// runtimeOptionImpl implements Option.
type runtimeOptionImpl struct {
	applyRuntimeFunc func(*runtimeOptions) error
}

func (o *runtimeOptionImpl) applyRuntime(opts *runtimeOptions) error {
	return o.applyRuntimeFunc(opts)
}

// WithLogger configures structured logging, for the runtime and, unless
// [WithLoop] is used, its event loop. A nil logger disables logging, which
// is the default.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &runtimeOptionImpl{func(opts *runtimeOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithLoop runs the runtime on an existing event loop, which the caller
// retains ownership of. By default, each runtime creates, and closes, its
// own loop.
func WithLoop(l *loop.Loop) Option {
	return &runtimeOptionImpl{func(opts *runtimeOptions) error {
		opts.loop = l
		return nil
	}}
}

// WithLoopOptions configures the loop created by the runtime. Ignored if
// [WithLoop] is used.
func WithLoopOptions(options ...loop.LoopOption) Option {
	return &runtimeOptionImpl{func(opts *runtimeOptions) error {
		opts.loopOpts = append(opts.loopOpts, options...)
		return nil
	}}
}

// WithErrorHandler replaces the default handling of task errors that no
// joiner observed, when the scheduler is run by the event loop. The default
// logs each error (rate limited), and collects it to be returned by
// [Runtime.Run].
func WithErrorHandler(fn func(err error)) Option {
	return &runtimeOptionImpl{func(opts *runtimeOptions) error {
		opts.onError = fn
		return nil
	}}
}

// WithErrorRateLimits bounds how often the default error handler logs, as a
// map of window to count, see [github.com/joeycumines/go-catrate].
func WithErrorRateLimits(rates map[time.Duration]int) Option {
	return &runtimeOptionImpl{func(opts *runtimeOptions) error {
		opts.errorRates = rates
		return nil
	}}
}

// WithStreamBuffers configures stream tasks: size is the size of each read,
// and backlog is the number of chunks (or, for listeners, connections)
// buffered before reading pauses. Defaults to 32KiB and 16.
func WithStreamBuffers(size, backlog int) Option {
	return &runtimeOptionImpl{func(opts *runtimeOptions) error {
		if size <= 0 || backlog <= 0 {
			return errors.New(`coop: stream buffer size and backlog must be positive`)
		}
		opts.readBuffer = size
		opts.backlog = backlog
		return nil
	}}
}

// resolveRuntimeOptions applies Option instances to runtimeOptions.
func resolveRuntimeOptions(opts []Option) (*runtimeOptions, error) {
	cfg := &runtimeOptions{
		errorRates: map[time.Duration]int{
			time.Second: 10,
			time.Minute: 100,
		},
		readBuffer: 32 * 1024,
		backlog:    16,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyRuntime(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
