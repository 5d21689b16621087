// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package loop

import (
	"github.com/joeycumines/go-coop/queue"
)

// HookKind selects the phase a [Hook] runs in.
type HookKind uint8

const (
	// HookIdle runs every iteration, before prepare hooks, and prevents the
	// poll from blocking while active.
	HookIdle HookKind = iota
	// HookPrepare runs every iteration, immediately before the poll, and
	// prevents the poll from blocking while active.
	HookPrepare
	// HookCheck runs every iteration, immediately after the poll.
	HookCheck

	hookKindCount
)

func (k HookKind) String() string {
	switch k {
	case HookIdle:
		return `idle`
	case HookPrepare:
		return `prepare`
	case HookCheck:
		return `check`
	default:
		return `unknown`
	}
}

// Hook calls a callback once per loop iteration, in the phase given by its
// kind, while active. An active hook keeps the loop alive.
type Hook struct {
	loop   *Loop
	cb     func()
	node   queue.Node[*Hook]
	kind   HookKind
	closed bool
}

// NewHook returns an inactive hook.
func (l *Loop) NewHook(kind HookKind, cb func()) *Hook {
	if kind >= hookKindCount {
		panic(`loop: invalid hook kind`)
	}
	h := &Hook{loop: l, cb: cb, kind: kind}
	h.node.Init(h)
	return h
}

// Kind returns the phase the hook runs in.
func (h *Hook) Kind() HookKind { return h.kind }

// Start activates the hook. Starting an active hook is a no-op.
func (h *Hook) Start() error {
	if h.closed {
		return ErrHandleClosed
	}
	if !h.node.Linked() {
		h.loop.hooks[h.kind].PushBack(&h.node)
	}
	return nil
}

// Stop deactivates the hook. It takes effect immediately, even within the
// current phase.
func (h *Hook) Stop() { h.node.Remove() }

// Close stops the hook, permanently.
func (h *Hook) Close() {
	h.Stop()
	h.closed = true
}

// Active reports whether the hook is started.
func (h *Hook) Active() bool { return h.node.Linked() }

// runHooks runs each hook of the kind that was active at the start of the
// phase, and is still active when its turn comes.
func (l *Loop) runHooks(kind HookKind) {
	list := &l.hooks[kind]
	if list.Empty() {
		return
	}

	hooks := l.hookBuf[:0]
	for h := range list.All() {
		hooks = append(hooks, h)
	}
	l.hookBuf = nil

	for i, h := range hooks {
		hooks[i] = nil
		if h.node.List() == list {
			l.safeExecute(kind.String(), h.cb)
		}
	}

	l.hookBuf = hooks[:0]
}
