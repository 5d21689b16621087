// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build !linux

package loop

import (
	"sync/atomic"
	"time"
)

// fastPoller is the portable fallback: it supports waking, and timeouts,
// but not fd readiness.
type fastPoller struct {
	wake   chan struct{}
	closed atomic.Bool
}

func (p *fastPoller) Init() error {
	p.wake = make(chan struct{}, 1)
	return nil
}

func (p *fastPoller) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return ErrPollerClosed
	}
	return nil
}

func (p *fastPoller) Wake() error {
	if p.closed.Load() {
		return ErrPollerClosed
	}
	select {
	case p.wake <- struct{}{}:
	default:
	}
	return nil
}

func (p *fastPoller) RegisterFD(int, IOEvents, IOCallback) error { return ErrFDUnsupported }

func (p *fastPoller) UnregisterFD(int) error { return ErrFDNotRegistered }

func (p *fastPoller) ModifyFD(int, IOEvents) error { return ErrFDNotRegistered }

func (p *fastPoller) PollIO(timeout time.Duration) (int, error) {
	if p.closed.Load() {
		return 0, ErrPollerClosed
	}
	if timeout <= 0 {
		select {
		case <-p.wake:
			return 1, nil
		default:
			return 0, nil
		}
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-p.wake:
		return 1, nil
	case <-timer.C:
		return 0, nil
	}
}
