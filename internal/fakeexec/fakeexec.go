// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package fakeexec provides a fake genericexec.CommandFunc for unit tests.
//
// A Recorder records every command run or started through it, and lets the
// test decide their exit statuses:
//
//	rec := fakeexec.NewRecorder(func(c fakeexec.Call, stdout, stderr io.Writer) int {
//		if c.Name == "rsync" {
//			return 23
//		}
//		return 0
//	})
//	pool := sshpool.New(cfg, sshpool.WithCommand(rec.Command))
package fakeexec

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.chromium.org/remotetest/internal/genericexec"
)

// Call describes one command execution.
type Call struct {
	Name       string   // program name
	Args       []string // full argument list, excluding the program name
	Background bool     // true if the command was started with Start
}

// String returns the call as a space-separated command line for diagnostics.
func (c Call) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Handler decides the behavior of a foreground command. It may write to
// stdout/stderr and returns the exit status.
type Handler func(c Call, stdout, stderr io.Writer) int

// ExitError is returned by fake commands exiting with a non-zero status.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string { return fmt.Sprintf("exit status %d", e.Code) }

// ExitCode returns the exit status.
func (e *ExitError) ExitCode() int { return e.Code }

// Recorder is a fake genericexec.CommandFunc provider. It is safe for
// concurrent use.
type Recorder struct {
	handler Handler

	mu      sync.Mutex
	calls   []Call
	procs   []*Process
	nextPid int
	// StartErr, if set, is consulted by Start before a fake process is
	// created. A non-nil return makes Start fail without recording a process.
	StartErr func(c Call) error
}

// NewRecorder creates a Recorder. If handler is nil every foreground command
// exits successfully.
func NewRecorder(handler Handler) *Recorder {
	if handler == nil {
		handler = func(Call, io.Writer, io.Writer) int { return 0 }
	}
	return &Recorder{handler: handler, nextPid: 1000}
}

// Command implements genericexec.CommandFunc.
func (r *Recorder) Command(name string, baseArgs ...string) genericexec.Cmd {
	return &cmd{r: r, name: name, baseArgs: append([]string(nil), baseArgs...)}
}

// Calls returns all calls recorded so far in the order they were made.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Processes returns the fake processes started so far.
func (r *Recorder) Processes() []*Process {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Process(nil), r.procs...)
}

func (r *Recorder) record(c Call) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
}

type cmd struct {
	r        *Recorder
	name     string
	baseArgs []string
}

func (c *cmd) call(extraArgs []string, bg bool) Call {
	args := append(append([]string{}, c.baseArgs...), extraArgs...)
	return Call{Name: c.name, Args: args, Background: bg}
}

func (c *cmd) Run(ctx context.Context, extraArgs []string, stdin io.Reader, stdout, stderr io.Writer) error {
	call := c.call(extraArgs, false)
	c.r.record(call)
	if err := ctx.Err(); err != nil {
		return err
	}
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	if code := c.r.handler(call, stdout, stderr); code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}

func (c *cmd) Start(extraArgs []string, stdout, stderr io.Writer) (genericexec.Process, error) {
	call := c.call(extraArgs, true)
	if c.r.StartErr != nil {
		if err := c.r.StartErr(call); err != nil {
			return nil, err
		}
	}
	c.r.mu.Lock()
	defer c.r.mu.Unlock()
	c.r.calls = append(c.r.calls, call)
	c.r.nextPid++
	p := &Process{Call: call, pid: c.r.nextPid, done: make(chan struct{})}
	c.r.procs = append(c.r.procs, p)
	return p, nil
}

// Process is a fake background process. It runs until Exit is called.
type Process struct {
	Call Call

	pid  int
	once sync.Once
	done chan struct{}
	err  error
}

var _ genericexec.Process = &Process{}

// Pid returns the fake process ID.
func (p *Process) Pid() int { return p.pid }

// Exit makes the process exit with code. Later calls have no effect.
func (p *Process) Exit(code int) {
	p.once.Do(func() {
		if code != 0 {
			p.err = &ExitError{Code: code}
		}
		close(p.done)
	})
}

// Wait blocks until Exit is called.
func (p *Process) Wait() error {
	<-p.done
	return p.err
}

// Exited reports whether Exit has been called.
func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}
