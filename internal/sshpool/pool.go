// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package sshpool manages long-lived ssh master connections that later ssh
// and rsync invocations multiplex over.
package sshpool

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/hashicorp/go-multierror"
	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sys/unix"

	"go.chromium.org/remotetest/errors"
	"go.chromium.org/remotetest/internal/genericexec"
	"go.chromium.org/remotetest/internal/logging"
	"go.chromium.org/remotetest/internal/remoteconfig"
)

// DefaultSettleDelay is how long StartAll waits after spawning master
// connections so that they can authenticate before they are used.
const DefaultSettleDelay = 2 * time.Second

// Handle represents one background master connection.
type Handle struct {
	// Key is the user@host string the connection was opened to.
	Key  string
	proc genericexec.Process
}

// Pid returns the process ID of the local ssh master process.
func (h *Handle) Pid() int {
	return h.proc.Pid()
}

// ConnectionError is returned when a master connection cannot be started.
type ConnectionError struct {
	Host string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to start master connection to %s: %v", e.Host, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Pool owns the master connections, at most one per user@host key.
// All methods are safe for concurrent use.
type Pool struct {
	cfg     *remoteconfig.Config
	command genericexec.CommandFunc
	clk     clock.Clock
	settle  time.Duration
	alive   func(ctx context.Context, pid int) bool
	kill    func(pid int) error

	mu      sync.Mutex
	handles map[string]*Handle
	started bool
	closed  bool
}

// Option customizes a Pool.
type Option func(p *Pool)

// WithCommand replaces the function used to construct ssh commands.
func WithCommand(f genericexec.CommandFunc) Option {
	return func(p *Pool) { p.command = f }
}

// WithClock replaces the clock used for the settle delay.
func WithClock(clk clock.Clock) Option {
	return func(p *Pool) { p.clk = clk }
}

// WithSettleDelay overrides DefaultSettleDelay.
func WithSettleDelay(d time.Duration) Option {
	return func(p *Pool) { p.settle = d }
}

// WithProbe replaces the liveness probe and the fallback termination used
// during Close.
func WithProbe(alive func(ctx context.Context, pid int) bool, kill func(pid int) error) Option {
	return func(p *Pool) {
		p.alive = alive
		p.kill = kill
	}
}

// New creates an empty Pool for cfg. No connection is made until StartAll.
func New(cfg *remoteconfig.Config, opts ...Option) *Pool {
	p := &Pool{
		cfg:     cfg,
		command: genericexec.CommandExec,
		clk:     clock.NewClock(),
		settle:  DefaultSettleDelay,
		alive:   pidAlive,
		kill:    func(pid int) error { return unix.Kill(pid, unix.SIGTERM) },
		handles: make(map[string]*Handle),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func pidAlive(ctx context.Context, pid int) bool {
	ok, err := process.PidExistsWithContext(ctx, int32(pid))
	return err == nil && ok
}

// sshCommand returns a Cmd running the configured ssh client with the
// configured arguments followed by args.
func (p *Pool) sshCommand(args ...string) genericexec.Cmd {
	base := append(append([]string{}, p.cfg.SSHArgs...), args...)
	return p.command(p.cfg.SSH, base...)
}

// Started reports whether StartAll has completed successfully.
func (p *Pool) Started() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}

// StartAll starts a master connection to every host that does not have one
// yet, then waits for the settle delay. It does nothing if connection reuse is
// disabled. If a master cannot be spawned a *ConnectionError is returned;
// masters already spawned stay in the pool so that Close tears them down.
// Authentication failures are not detected here; they surface when the
// connection is first used.
func (p *Pool) StartAll(ctx context.Context, hosts []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return errors.New("connection pool already closed")
	}
	if !p.cfg.ReuseConnections {
		p.started = true
		return nil
	}

	spawned := 0
	for _, host := range hosts {
		key := p.cfg.UserHost(host)
		if _, ok := p.handles[key]; ok {
			continue
		}
		logging.Debugf(ctx, "Starting master connection to %s", key)
		hctx := logging.WithPrefix(ctx, "["+key+"] ")
		out := logging.NewLineWriter(hctx, logging.LevelDebug)
		proc, err := p.sshCommand("-M", "-N", key).Start(nil, out, out)
		if err != nil {
			out.Close()
			return &ConnectionError{Host: key, Err: err}
		}
		go func() {
			err := proc.Wait()
			out.Close()
			logging.Debugf(hctx, "Master connection exited: %v", err)
		}()
		p.handles[key] = &Handle{Key: key, proc: proc}
		spawned++
	}

	if spawned > 0 {
		logging.Infof(ctx, "Started %d master connection(s); waiting %v for them to settle", spawned, p.settle)
		select {
		case <-p.clk.After(p.settle):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	p.started = true
	return nil
}

// Lookup returns the handle for a user@host key.
func (p *Pool) Lookup(key string) (*Handle, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	h, ok := p.handles[key]
	return h, ok
}

// Remove drops the handle for key from the pool without closing it, and
// returns it. The caller becomes responsible for the connection.
func (p *Pool) Remove(key string) (*Handle, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	h, ok := p.handles[key]
	delete(p.handles, key)
	return h, ok
}

// Keys returns the keys of all handles in sorted order.
func (p *Pool) Keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	keys := make([]string, 0, len(p.handles))
	for k := range p.handles {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Close asks every live master connection to exit. It runs only once; later
// calls return nil. Failures are logged and returned together, and never stop
// the remaining connections from being closed.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	handles := p.handles
	p.handles = make(map[string]*Handle)
	p.mu.Unlock()

	keys := make([]string, 0, len(handles))
	for k := range handles {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var result error
	for _, key := range keys {
		if err := p.closeHandle(ctx, handles[key]); err != nil {
			logging.Infof(ctx, "Failed to close master connection to %s: %v", key, err)
			result = multierror.Append(result, err)
		}
	}
	return result
}

func (p *Pool) closeHandle(ctx context.Context, h *Handle) (retErr error) {
	defer func() {
		if r := recover(); r != nil {
			retErr = errors.Errorf("panic while closing %s: %v", h.Key, r)
		}
	}()

	if h.proc.Exited() || !p.alive(ctx, h.Pid()) {
		logging.Debugf(ctx, "Master connection to %s is already gone", h.Key)
		return nil
	}
	logging.Debugf(ctx, "Closing master connection to %s", h.Key)
	exitErr := p.sshCommand("-O", "exit", h.Key).Run(ctx, nil, nil, nil, nil)
	if exitErr == nil {
		return nil
	}
	if !h.proc.Exited() && p.alive(ctx, h.Pid()) {
		if err := p.kill(h.Pid()); err != nil {
			return errors.Wrapf(exitErr, "%s: exit request failed and SIGTERM failed too (%v)", h.Key, err)
		}
		logging.Debugf(ctx, "Sent SIGTERM to master connection to %s", h.Key)
	}
	return errors.Wrapf(exitErr, "%s: exit request failed", h.Key)
}
