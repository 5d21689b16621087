// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build linux

package loop

import (
	"encoding/binary"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// MaxFDLimit is the maximum fd value accepted for registration.
const MaxFDLimit = 100000000

// fdInfo stores per-fd callback information.
type fdInfo struct {
	callback IOCallback
	events   IOEvents
}

// fastPoller manages I/O event registration using epoll, plus an eventfd
// used to wake a blocked poll from any goroutine.
type fastPoller struct {
	eventBuf [128]unix.EpollEvent
	fds      map[int]fdInfo
	epfd     int
	wakefd   int
	closed   atomic.Bool
}

// Init initializes the epoll instance, and registers the wake eventfd.
func (p *fastPoller) Init() error {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return err
	}

	wakefd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		_ = unix.Close(epfd)
		return err
	}

	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(wakefd),
	}); err != nil {
		_ = unix.Close(wakefd)
		_ = unix.Close(epfd)
		return err
	}

	p.epfd = epfd
	p.wakefd = wakefd
	p.fds = make(map[int]fdInfo)

	return nil
}

// Close closes the epoll instance and the wake eventfd.
func (p *fastPoller) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return ErrPollerClosed
	}
	err := unix.Close(p.epfd)
	if err2 := unix.Close(p.wakefd); err == nil {
		err = err2
	}
	return err
}

// Wake writes to the eventfd. Safe to call from any goroutine.
func (p *fastPoller) Wake() error {
	if p.closed.Load() {
		return ErrPollerClosed
	}
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	_, err := unix.Write(p.wakefd, buf[:])
	if err == unix.EAGAIN {
		// counter saturated, a wake is already pending
		return nil
	}
	return err
}

// RegisterFD registers a file descriptor for I/O event monitoring.
func (p *fastPoller) RegisterFD(fd int, events IOEvents, cb IOCallback) error {
	if p.closed.Load() {
		return ErrPollerClosed
	}
	if fd < 0 || fd >= MaxFDLimit || fd == p.wakefd {
		return ErrFDOutOfRange
	}
	if _, ok := p.fds[fd]; ok {
		return ErrFDAlreadyRegistered
	}

	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{
		Events: eventsToEpoll(events),
		Fd:     int32(fd),
	}); err != nil {
		return err
	}

	p.fds[fd] = fdInfo{callback: cb, events: events}
	return nil
}

// UnregisterFD removes a file descriptor from monitoring.
func (p *fastPoller) UnregisterFD(fd int) error {
	if _, ok := p.fds[fd]; !ok {
		return ErrFDNotRegistered
	}
	delete(p.fds, fd)
	if p.closed.Load() {
		return nil
	}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

// ModifyFD updates the events being monitored for a file descriptor.
func (p *fastPoller) ModifyFD(fd int, events IOEvents) error {
	info, ok := p.fds[fd]
	if !ok {
		return ErrFDNotRegistered
	}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{
		Events: eventsToEpoll(events),
		Fd:     int32(fd),
	}); err != nil {
		return err
	}
	info.events = events
	p.fds[fd] = info
	return nil
}

// PollIO polls for I/O events, dispatching callbacks inline.
// Returns the number of events processed.
func (p *fastPoller) PollIO(timeout time.Duration) (int, error) {
	if p.closed.Load() {
		return 0, ErrPollerClosed
	}

	n, err := unix.EpollWait(p.epfd, p.eventBuf[:], timeoutMillis(timeout))
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}

	for i := 0; i < n; i++ {
		fd := int(p.eventBuf[i].Fd)
		if fd == p.wakefd {
			p.drainWakeFd()
			continue
		}
		// looked up per event, as callbacks may unregister other fds
		if info, ok := p.fds[fd]; ok && info.callback != nil {
			info.callback(epollToEvents(p.eventBuf[i].Events))
		}
	}

	return n, nil
}

func (p *fastPoller) drainWakeFd() {
	var buf [8]byte
	for {
		if _, err := unix.Read(p.wakefd, buf[:]); err != nil {
			return
		}
	}
}

// eventsToEpoll converts IOEvents to epoll event flags.
func eventsToEpoll(events IOEvents) uint32 {
	var epollEvents uint32
	if events&EventRead != 0 {
		epollEvents |= unix.EPOLLIN
	}
	if events&EventWrite != 0 {
		epollEvents |= unix.EPOLLOUT
	}
	return epollEvents
}

// epollToEvents converts epoll event flags to IOEvents.
func epollToEvents(epollEvents uint32) IOEvents {
	var events IOEvents
	if epollEvents&unix.EPOLLIN != 0 {
		events |= EventRead
	}
	if epollEvents&unix.EPOLLOUT != 0 {
		events |= EventWrite
	}
	if epollEvents&unix.EPOLLERR != 0 {
		events |= EventError
	}
	if epollEvents&unix.EPOLLHUP != 0 {
		events |= EventHangup
	}
	return events
}
