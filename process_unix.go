// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build unix

package coop

import (
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// signalName returns the name of the signal that killed the process, e.g.
// SIGTERM, if any.
func signalName(state *os.ProcessState) (string, bool) {
	status, ok := state.Sys().(syscall.WaitStatus)
	if !ok || !status.Signaled() {
		return ``, false
	}
	if name := unix.SignalName(status.Signal()); name != `` {
		return name, true
	}
	return status.Signal().String(), true
}
