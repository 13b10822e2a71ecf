// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package genericexec

import (
	"context"
	"io"
)

// Cmd is a common interface abstracting an external command to execute.
type Cmd interface {
	// Run runs an external command synchronously.
	//
	// extraArgs is appended to the base arguments passed to the constructor
	// of Cmd. stdin specifies the data sent to the standard input of the
	// process. The standard output/error of the process are written to
	// stdout/stderr. A non-zero exit status is reported as an error from
	// which ExitCode can extract the status.
	Run(ctx context.Context, extraArgs []string, stdin io.Reader, stdout, stderr io.Writer) error

	// Start starts an external command in the background and returns
	// immediately. The process is not tied to any context: it keeps running
	// until it exits by itself or is told to stop by other means.
	Start(extraArgs []string, stdout, stderr io.Writer) (Process, error)
}

// Process is a common interface abstracting a process started in the
// background.
type Process interface {
	// Pid returns the process ID.
	Pid() int

	// Wait blocks until the process exits and returns its exit error.
	// It may be called any number of times.
	Wait() error

	// Exited reports whether the process has already exited and been reaped.
	Exited() bool
}

// CommandFunc constructs a Cmd from a program name and base arguments.
// CommandExec is the production implementation.
type CommandFunc func(name string, baseArgs ...string) Cmd

// exitCoder is implemented by *exec.ExitError and by fakes.
type exitCoder interface {
	ExitCode() int
}

// ExitCode extracts a process exit status from an error returned by Run or
// Wait. ok is false if err does not carry an exit status, e.g. because the
// program could not be started at all. A nil error yields (0, true).
func ExitCode(err error) (code int, ok bool) {
	if err == nil {
		return 0, true
	}
	for e := err; e != nil; {
		if ec, isEC := e.(exitCoder); isEC {
			return ec.ExitCode(), true
		}
		u, isU := e.(interface{ Unwrap() error })
		if !isU {
			break
		}
		e = u.Unwrap()
	}
	return -1, false
}
