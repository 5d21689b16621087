// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package loop

import (
	"errors"
	"time"

	"github.com/joeycumines/logiface"
)

// loopOptions holds configuration options for Loop creation.
type loopOptions struct {
	logger         *logiface.Logger[logiface.Event]
	panicRates     map[time.Duration]int
	onPanic        func(err *PanicError)
	maxPollTimeout time.Duration
}

// LoopOption configures a Loop instance.
type LoopOption interface {
	applyLoop(*loopOptions) error
}

// loopOptionImpl implements LoopOption.
type loopOptionImpl struct {
	applyLoopFunc func(*loopOptions) error
}

func (l *loopOptionImpl) applyLoop(opts *loopOptions) error {
	return l.applyLoopFunc(opts)
}

// WithLogger configures structured logging. A nil logger disables logging,
// which is the default.
func WithLogger(logger *logiface.Logger[logiface.Event]) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithPanicRateLimits bounds how often recovered callback panics are logged,
// as a map of window to count, see [github.com/joeycumines/go-catrate].
func WithPanicRateLimits(rates map[time.Duration]int) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.panicRates = rates
		return nil
	}}
}

// WithPanicHandler registers fn to be called, on the loop goroutine, with
// every recovered callback panic. Panics are logged regardless.
func WithPanicHandler(fn func(err *PanicError)) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.onPanic = fn
		return nil
	}}
}

// WithMaxPollTimeout caps how long a single poll may block. Defaults to 10s.
func WithMaxPollTimeout(d time.Duration) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		if d <= 0 {
			return errors.New(`loop: max poll timeout must be positive`)
		}
		opts.maxPollTimeout = d
		return nil
	}}
}

// resolveLoopOptions applies LoopOption instances to loopOptions.
func resolveLoopOptions(opts []LoopOption) (*loopOptions, error) {
	cfg := &loopOptions{
		panicRates: map[time.Duration]int{
			time.Second: 5,
			time.Minute: 30,
		},
		maxPollTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyLoop(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
