// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package loop provides a single-threaded, callback driven event loop, in the
// style of libuv: the owner goroutine drives it via [Loop.Run], and every
// callback runs on that goroutine.
//
// # Phases
//
// Each iteration runs, in order:
//  1. update the cached time ([Loop.Now])
//  2. due timers, earliest deadline first
//  3. pending completions ([Loop.Submit], [Loop.Do])
//  4. idle hooks
//  5. prepare hooks
//  6. poll for I/O (epoll on Linux), blocking until the next timer, a wake,
//     or fd readiness
//  7. pending completions that arrived during the poll
//  8. check hooks
//
// The poll does not block if a wake is pending, completions are queued, the
// loop is no longer alive, or any idle or prepare hook is active.
//
// # Liveness
//
// A loop is alive while it has active timers, active hooks, registered fds,
// in-flight requests, queued completions, or outstanding references taken
// via [Loop.Ref]. [Loop.Run] in [RunDefault] mode returns once the loop is
// no longer alive.
//
// # Thread Safety
//
// Only [Loop.Submit], [Loop.Wake], [Loop.Ref], [Loop.Unref], and
// [Loop.Metrics] may be called from any goroutine. Everything else, including
// all handle methods, must be called from the goroutine that calls Run.
package loop
