// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package mirror copies the local testing root to every remote host.
package mirror

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.chromium.org/remotetest/internal/genericexec"
	"go.chromium.org/remotetest/internal/logging"
	"go.chromium.org/remotetest/internal/remoteconfig"
)

// Starter starts the connections that mirroring reuses.
type Starter interface {
	StartAll(ctx context.Context, hosts []string) error
	Started() bool
}

// SyncError is returned when mirroring to a host fails.
type SyncError struct {
	// Host is the user@host key mirroring failed for.
	Host string
	// Code is the exit status of rsync, or -1 if it did not run.
	Code int
	Err  error
}

func (e *SyncError) Error() string {
	if e.Code >= 0 {
		return fmt.Sprintf("rsync to %s exited with status %d", e.Host, e.Code)
	}
	return fmt.Sprintf("rsync to %s failed: %v", e.Host, e.Err)
}

// Unwrap returns the underlying error.
func (e *SyncError) Unwrap() error {
	return e.Err
}

// Engine mirrors the local root to the remote root of every configured host.
type Engine struct {
	cfg     *remoteconfig.Config
	pool    Starter
	command genericexec.CommandFunc
	rsync   string
}

// Option customizes an Engine.
type Option func(e *Engine)

// WithCommand replaces the function used to construct rsync commands.
func WithCommand(f genericexec.CommandFunc) Option {
	return func(e *Engine) { e.command = f }
}

// WithRsync sets the rsync program. It defaults to "rsync" found via PATH.
func WithRsync(path string) Option {
	return func(e *Engine) { e.rsync = path }
}

// New returns an Engine mirroring according to cfg over connections
// started by pool.
func New(cfg *remoteconfig.Config, pool Starter, opts ...Option) *Engine {
	e := &Engine{cfg: cfg, pool: pool, command: genericexec.CommandExec, rsync: "rsync"}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RsyncArgs returns the rsync arguments that mirror the local root to
// userHost.
func (e *Engine) RsyncArgs(userHost string) []string {
	shell := strings.Join(append([]string{e.cfg.SSH}, e.cfg.SSHArgs...), " ")
	return []string{"-avz", "--delete", "-e", shell, e.cfg.LocalRoot, userHost + ":" + e.cfg.RemoteRoot}
}

// Synchronize starts the connection pool if needed, mirrors the local root to
// every host in configuration order, and returns libPath rewritten for the
// remote hosts. It stops at the first host that fails with a *SyncError; the
// hosts after it are not attempted.
func (e *Engine) Synchronize(ctx context.Context, libPath string) (PathSet, error) {
	if !e.pool.Started() {
		if err := e.pool.StartAll(ctx, e.cfg.Hosts); err != nil {
			return PathSet{}, err
		}
	}

	for _, uh := range e.cfg.UserHosts() {
		if err := e.mirror(ctx, uh); err != nil {
			return PathSet{}, err
		}
	}

	paths := RewritePaths(libPath, e.cfg.LocalRoot, e.cfg.RemoteRoot)
	logging.Debugf(ctx, "Remote %s: %q", LibPathVar, paths.String())
	return paths, nil
}

func (e *Engine) mirror(ctx context.Context, uh string) error {
	logging.Infof(ctx, "Synchronizing %s to %s:%s", e.cfg.LocalRoot, uh, e.cfg.RemoteRoot)
	start := time.Now()

	out := logging.NewLineWriter(logging.WithPrefix(ctx, "["+uh+"] "), logging.LevelDebug)
	err := e.command(e.rsync, e.RsyncArgs(uh)...).Run(ctx, nil, nil, out, out)
	out.Close()
	if err != nil {
		code, ok := genericexec.ExitCode(err)
		if !ok {
			code = -1
		}
		return &SyncError{Host: uh, Code: code, Err: err}
	}
	logging.Debugf(ctx, "Synchronized %s in %v", uh, time.Since(start).Round(time.Millisecond))
	return nil
}
