// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package loop

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/go-coop/queue"
	"github.com/joeycumines/logiface"
)

// RunMode controls how long [Loop.Run] runs for.
type RunMode uint8

const (
	// RunDefault runs until the loop is no longer alive, or Stop is called.
	RunDefault RunMode = iota
	// RunOnce runs a single iteration, blocking in poll if there is nothing
	// to do yet.
	RunOnce
	// RunNoWait runs a single iteration, without blocking.
	RunNoWait
)

// Loop is a single-threaded event loop. See the package docs for the phases
// of each iteration, and which methods are safe to call concurrently.
type Loop struct {
	// Prevent copying
	_ [0]func()

	logger  *logiface.Logger[logiface.Event]
	limiter *catrate.Limiter
	onPanic func(err *PanicError)

	state  loopState
	poller fastPoller

	// ingress, guarded by mu
	mu         sync.Mutex
	pending    []func()
	pendingBuf []func()

	wakePending     atomic.Uint32
	refs            atomic.Int64
	loopGoroutineID atomic.Uint64

	// everything below is owned by the loop goroutine
	timers   timerHeap
	timerBuf []*Timer
	timerSeq uint64
	hooks    [hookKindCount]queue.List[*Hook]
	hookBuf  []*Hook
	fds      int
	requests int

	now            time.Time
	maxPollTimeout time.Duration
	stopFlag       bool

	id      uint64
	metrics metrics
}

var loopIDCounter atomic.Uint64

// New creates a new event loop. It must eventually be closed.
func New(opts ...LoopOption) (*Loop, error) {
	cfg, err := resolveLoopOptions(opts)
	if err != nil {
		return nil, err
	}

	limiter, err := newLimiter(cfg.panicRates)
	if err != nil {
		return nil, err
	}

	l := &Loop{
		logger:         cfg.logger,
		limiter:        limiter,
		onPanic:        cfg.onPanic,
		maxPollTimeout: cfg.maxPollTimeout,
		id:             loopIDCounter.Add(1),
		now:            time.Now(),
	}

	if err := l.poller.Init(); err != nil {
		return nil, err
	}

	return l, nil
}

// ID returns a process-unique identifier for the loop.
func (l *Loop) ID() uint64 { return l.id }

// State returns the current loop state.
func (l *Loop) State() LoopState { return l.state.Load() }

// Now returns the cached time, updated at the start of each iteration.
func (l *Loop) Now() time.Time { return l.now }

// UpdateTime refreshes the cached time.
func (l *Loop) UpdateTime() { l.now = time.Now() }

// Run runs the event loop, on the calling goroutine, per mode. It returns
// true if the loop is still alive, i.e. if calling Run again would do
// anything.
func (l *Loop) Run(mode RunMode) (bool, error) {
	if l.isLoopThread() {
		return false, ErrReentrantRun
	}

	if !l.state.TryTransition(StateAwake, StateRunning) {
		if l.state.Load() == StateClosed {
			return false, ErrLoopClosed
		}
		return false, ErrLoopAlreadyRunning
	}

	l.loopGoroutineID.Store(getGoroutineID())
	defer func() {
		l.loopGoroutineID.Store(0)
		l.state.Store(StateAwake)
	}()

	alive := l.Alive()
	if !alive {
		l.UpdateTime()
	}

	for alive && !l.stopFlag {
		l.tick(mode)
		alive = l.Alive()
		if mode != RunDefault {
			break
		}
	}

	l.stopFlag = false

	return alive, nil
}

// tick is a single iteration of the event loop.
func (l *Loop) tick(mode RunMode) {
	l.UpdateTime()
	l.runTimers()
	l.runPending()
	l.runHooks(HookIdle)
	l.runHooks(HookPrepare)

	var timeout time.Duration
	if mode != RunNoWait {
		timeout = l.pollTimeout()
	}
	l.poll(timeout)

	l.runPending()
	l.runHooks(HookCheck)

	if mode == RunOnce {
		l.UpdateTime()
		l.runTimers()
	}

	l.metrics.iterations.Add(1)
}

// Stop causes Run to return after the current iteration.
func (l *Loop) Stop() { l.stopFlag = true }

// Alive reports whether the loop has any active timers, hooks, fds,
// requests, queued completions, or references.
func (l *Loop) Alive() bool {
	if len(l.timers) > 0 || l.fds > 0 || l.requests > 0 || l.refs.Load() > 0 {
		return true
	}
	for i := range l.hooks {
		if !l.hooks[i].Empty() {
			return true
		}
	}
	return l.hasPending()
}

// Ref keeps the loop alive until a matching Unref. Safe to call from any
// goroutine.
func (l *Loop) Ref() { l.refs.Add(1) }

// Unref releases a reference taken by Ref, waking the loop. Safe to call
// from any goroutine.
func (l *Loop) Unref() {
	if l.refs.Add(-1) < 0 {
		panic(`loop: negative reference count`)
	}
	l.Wake()
}

// Submit queues fn to run on the loop goroutine, during the next pending
// phase, waking the loop if necessary. Safe to call from any goroutine.
func (l *Loop) Submit(fn func()) error {
	if fn == nil {
		return nil
	}
	if l.state.Load() == StateClosed {
		return ErrLoopClosed
	}

	l.mu.Lock()
	l.pending = append(l.pending, fn)
	l.mu.Unlock()

	l.Wake()

	return nil
}

// Wake ensures the current or next poll does not block. Safe to call from
// any goroutine. Redundant wakes are coalesced.
func (l *Loop) Wake() {
	if l.wakePending.CompareAndSwap(0, 1) {
		// errors are expected only once the poller is closed
		_ = l.poller.Wake()
	}
}

// Close releases the loop's resources. It fails if the loop is running.
// Queued completions are discarded.
func (l *Loop) Close() error {
	for {
		switch l.state.Load() {
		case StateClosed:
			return ErrLoopClosed
		case StateRunning, StateSleeping:
			return ErrLoopRunning
		}
		if l.state.TryTransition(StateAwake, StateClosed) {
			break
		}
	}

	l.mu.Lock()
	l.pending = nil
	l.mu.Unlock()

	for len(l.timers) > 0 {
		l.timers[0].Stop()
	}
	for i := range l.hooks {
		l.hooks[i].Init()
	}

	return l.poller.Close()
}

func (l *Loop) hasPending() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending) != 0
}

// runPending runs every completion queued at the start of the phase.
func (l *Loop) runPending() {
	l.mu.Lock()
	if len(l.pending) == 0 {
		l.mu.Unlock()
		return
	}
	tasks := l.pending
	l.pending = l.pendingBuf[:0]
	l.pendingBuf = nil
	l.mu.Unlock()

	for i, fn := range tasks {
		tasks[i] = nil
		l.safeExecute(`pending`, fn)
	}

	l.mu.Lock()
	if l.pendingBuf == nil {
		l.pendingBuf = tasks[:0]
	}
	l.mu.Unlock()
}

// pollTimeout determines how long to block in poll.
func (l *Loop) pollTimeout() time.Duration {
	if l.stopFlag ||
		!l.Alive() ||
		!l.hooks[HookIdle].Empty() ||
		!l.hooks[HookPrepare].Empty() ||
		l.hasPending() {
		return 0
	}

	timeout := l.maxPollTimeout
	if len(l.timers) > 0 {
		delay := max(time.Until(l.timers[0].when), 0)
		timeout = min(timeout, delay)
	}

	return timeout
}

// poll performs the (possibly) blocking poll.
func (l *Loop) poll(timeout time.Duration) {
	if !l.state.TryTransition(StateRunning, StateSleeping) {
		return
	}

	// published Sleeping first, so a concurrent Wake always lands
	if l.wakePending.Swap(0) != 0 {
		timeout = 0
	}

	l.metrics.polls.Add(1)

	_, err := l.poller.PollIO(timeout)

	l.state.TryTransition(StateSleeping, StateRunning)

	if err != nil {
		l.logger.Err().
			Err(err).
			Uint64(`loop`, l.id).
			Log(`loop: poll failed`)
	}
}

// safeExecute executes a callback with panic recovery.
func (l *Loop) safeExecute(phase string, fn func()) {
	if fn == nil {
		return
	}

	l.metrics.callbacks.Add(1)

	defer func() {
		if r := recover(); r != nil {
			l.handlePanic(phase, r, debug.Stack())
		}
	}()

	fn()
}

func (l *Loop) handlePanic(phase string, r any, stack []byte) {
	l.metrics.panics.Add(1)

	err := &PanicError{Value: r, Stack: stack}

	if _, ok := l.limiter.Allow(phase); ok {
		l.logger.Err().
			Err(err).
			Str(`phase`, phase).
			Uint64(`loop`, l.id).
			Str(`stack`, string(stack)).
			Log(`loop: callback panicked`)
	}

	if l.onPanic != nil {
		l.onPanic(err)
	}
}

// isLoopThread checks if we're on the loop goroutine.
func (l *Loop) isLoopThread() bool {
	loopID := l.loopGoroutineID.Load()
	if loopID == 0 {
		return false
	}
	return getGoroutineID() == loopID
}

// getGoroutineID returns the current goroutine's ID.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len(`goroutine `); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}

// newLimiter converts the panic catrate raises for invalid rates.
func newLimiter(rates map[time.Duration]int) (limiter *catrate.Limiter, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf(`loop: invalid panic rate limits: %v`, r)
		}
	}()
	return catrate.NewLimiter(rates), nil
}
