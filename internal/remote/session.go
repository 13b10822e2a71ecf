// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package remote attaches remote execution to a test harness.
//
// A Session ties together the connection pool, the tree synchronization and
// the dispatcher, and registers them on a harness.Harness: the tree is
// mirrored to every host once before the first test is spawned, and every
// test invocation is then rewritten to run over ssh on one of the hosts.
package remote

import (
	"context"
	"os"
	"sync"

	"github.com/spf13/afero"

	"go.chromium.org/remotetest/errors"
	"go.chromium.org/remotetest/internal/dispatch"
	"go.chromium.org/remotetest/internal/genericexec"
	"go.chromium.org/remotetest/internal/harness"
	"go.chromium.org/remotetest/internal/logging"
	"go.chromium.org/remotetest/internal/mirror"
	"go.chromium.org/remotetest/internal/remoteconfig"
	"go.chromium.org/remotetest/internal/sshpool"
)

type options struct {
	fs       afero.Fs
	cwd      string
	libPath  *string
	command  genericexec.CommandFunc
	rsync    string
	poolOpts []sshpool.Option
}

// Option customizes Attach.
type Option func(o *options)

// WithFs sets the file system used for validation. It defaults to the OS file
// system.
func WithFs(fs afero.Fs) Option {
	return func(o *options) { o.fs = fs }
}

// WithWorkDir sets the local working directory tests are run from. It
// defaults to the current directory.
func WithWorkDir(dir string) Option {
	return func(o *options) { o.cwd = dir }
}

// WithLibPath sets the local library search path to mirror. It defaults to
// the value of the PERL5LIB environment variable at the time of Attach.
func WithLibPath(p string) Option {
	return func(o *options) { o.libPath = &p }
}

// WithCommand sets the function used to run ssh and rsync.
func WithCommand(f genericexec.CommandFunc) Option {
	return func(o *options) { o.command = f }
}

// WithRsync sets the rsync binary.
func WithRsync(path string) Option {
	return func(o *options) { o.rsync = path }
}

// WithPoolOptions passes extra options to the connection pool.
func WithPoolOptions(opts ...sshpool.Option) Option {
	return func(o *options) { o.poolOpts = append(o.poolOpts, opts...) }
}

// Session is remote execution attached to one harness.
type Session struct {
	cfg        *remoteconfig.Config
	pool       *sshpool.Pool
	engine     *mirror.Engine
	dispatcher *dispatch.Dispatcher
	libPath    string

	mu     sync.RWMutex
	paths  mirror.PathSet
	synced bool
}

// Attach validates cfg and registers remote execution hooks on h. The caller
// must call Close on the returned Session once h has finished running,
// whether or not it succeeded.
func Attach(ctx context.Context, cfg *remoteconfig.Config, h *harness.Harness, opts ...Option) (*Session, error) {
	o := options{
		fs:      afero.NewOsFs(),
		command: genericexec.CommandExec,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.cwd == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "failed to get working directory")
		}
		o.cwd = wd
	}
	libPath := os.Getenv(mirror.LibPathVar)
	if o.libPath != nil {
		libPath = *o.libPath
	}

	if err := dispatch.Validate(o.fs, cfg, o.cwd); err != nil {
		return nil, err
	}
	d, err := dispatch.New(cfg, o.cwd)
	if err != nil {
		return nil, err
	}

	pool := sshpool.New(cfg, append([]sshpool.Option{sshpool.WithCommand(o.command)}, o.poolOpts...)...)
	mopts := []mirror.Option{mirror.WithCommand(o.command)}
	if o.rsync != "" {
		mopts = append(mopts, mirror.WithRsync(o.rsync))
	}
	s := &Session{
		cfg:        cfg,
		pool:       pool,
		engine:     mirror.New(cfg, pool, mopts...),
		dispatcher: d,
		libPath:    libPath,
	}

	d.Configure(h)
	h.OnBeforeRun(s.synchronize)
	h.OnBeforeSpawn(s.rewrite)
	logging.Debugf(ctx, "Remote execution on %d host(s) from %s", len(cfg.Hosts), d.RemoteDir())
	return s, nil
}

func (s *Session) synchronize(ctx context.Context) error {
	paths, err := s.engine.Synchronize(ctx, s.libPath)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths = paths
	s.synced = true
	return nil
}

func (s *Session) rewrite(ctx context.Context, inv *harness.Invocation) error {
	s.mu.RLock()
	paths, synced := s.paths, s.synced
	s.mu.RUnlock()
	if !synced {
		return errors.New("tree has not been synchronized to remote hosts")
	}
	s.dispatcher.Rewrite(ctx, inv, paths)
	return nil
}

// Paths returns the library search path exported on the remote hosts. It is
// empty until the tree has been synchronized.
func (s *Session) Paths() mirror.PathSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.paths
}

// Close tears down master connections. Failures are logged and otherwise
// ignored. It is safe to call Close more than once.
func (s *Session) Close(ctx context.Context) {
	if err := s.pool.Close(ctx); err != nil {
		logging.Debugf(ctx, "Connection teardown finished with errors: %v", err)
	}
}
