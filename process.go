// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package coop

import (
	"errors"
	"os"
	"os/exec"

	"github.com/joeycumines/go-coop/value"
)

// Process is a handle task for a child process. It closes itself when the
// process exits, with the results (exit code, signal name), where the
// signal name is nil unless the process was killed by a signal. Join it to
// wait for the exit status.
type Process struct {
	*Task
	handle
	cmd    *exec.Cmd
	exited bool
}

// NewProcess starts cmd, which must not have been started.
func (rt *Runtime) NewProcess(cmd *exec.Cmd) (*Process, error) {
	if rt.closed {
		return nil, ErrClosed
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	x := &Process{cmd: cmd}
	x.Task = rt.newTask(KindProcess, x)
	_ = x.SetAttr(`pid`, int64(cmd.Process.Pid))

	if _, err := rt.loop.Do(x.wait, x.exit); err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		x.exited = true
		x.Close()
		return nil, err
	}

	return x, nil
}

// Pid returns the process id.
func (x *Process) Pid() int { return x.cmd.Process.Pid }

// Kill sends sig to the process.
func (x *Process) Kill(sig os.Signal) error {
	if x.exited {
		return ErrTaskClosed
	}
	return x.cmd.Process.Signal(sig)
}

func (x *Process) wait() (any, error) {
	err := x.cmd.Wait()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		err = nil
	}
	return x.cmd.ProcessState, err
}

func (x *Process) exit(result any, err error) {
	x.exited = true
	if x.Closed() {
		return
	}
	state, _ := result.(*os.ProcessState)
	if err != nil || state == nil {
		x.terminate(nil, err)
		return
	}
	var signal value.Value
	if name, ok := signalName(state); ok {
		signal = name
	}
	x.terminate([]value.Value{int64(state.ExitCode()), signal}, nil)
}

func (x *Process) close(*Task) {
	if !x.exited {
		if err := x.cmd.Process.Kill(); err != nil {
			x.rt.logger.Debug().
				Err(err).
				Int(`pid`, x.cmd.Process.Pid).
				Log(`coop: failed to kill process`)
		}
	}
	x.closeWaiters()
}
