// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package genericexec

import (
	"context"
	"io"
	"os/exec"
)

// ExecCmd represents a local command to execute.
type ExecCmd struct {
	name     string
	baseArgs []string
}

var _ Cmd = &ExecCmd{}

// CommandExec constructs a new ExecCmd representing a local command to execute.
func CommandExec(name string, baseArgs ...string) Cmd {
	return &ExecCmd{
		name:     name,
		baseArgs: baseArgs,
	}
}

func (c *ExecCmd) args(extraArgs []string) []string {
	args := make([]string, 0, len(c.baseArgs)+len(extraArgs))
	return append(append(args, c.baseArgs...), extraArgs...)
}

// Run runs a local command synchronously. See Cmd.Run for details.
func (c *ExecCmd) Run(ctx context.Context, extraArgs []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, c.name, c.args(extraArgs)...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

// Start runs a local command asynchronously. See Cmd.Start for details.
func (c *ExecCmd) Start(extraArgs []string, stdout, stderr io.Writer) (Process, error) {
	cmd := exec.Command(c.name, c.args(extraArgs)...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	p := &ExecProcess{cmd: cmd, done: make(chan struct{})}
	go func() {
		p.err = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

// ExecProcess represents a locally running process. It is reaped in the
// background as soon as it exits.
type ExecProcess struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error // valid after done is closed
}

var _ Process = &ExecProcess{}

// Pid returns the process ID.
func (p *ExecProcess) Pid() int { return p.cmd.Process.Pid }

// Wait waits for the process to exit. See Process.Wait for details.
func (p *ExecProcess) Wait() error {
	<-p.done
	return p.err
}

// Exited reports whether the process has exited.
func (p *ExecProcess) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}
