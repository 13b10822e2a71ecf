// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package harness runs test programs as processes, a bounded number at a
// time, and exposes hooks that let other packages redirect them elsewhere.
//
// The harness does not understand test output. A test passes when its
// process exits with status 0.
package harness

import (
	"bytes"
	"context"
	"sync"
	"time"

	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"

	"go.chromium.org/remotetest/errors"
	"go.chromium.org/remotetest/internal/genericexec"
	"go.chromium.org/remotetest/internal/logging"
)

// Invocation is one test run as it is about to be spawned. Spawn hooks may
// rewrite Program and Args freely.
type Invocation struct {
	// Test is the test file path relative to the harness directory.
	Test string
	// Program is the executable to run.
	Program string
	// Args are the arguments passed to Program.
	Args []string
	// Host is set by hooks that send the invocation to a remote host. It is
	// informational only.
	Host string
}

// Result describes a finished invocation.
type Result struct {
	Test     string
	Host     string
	ExitCode int // -1 if the process could not be run
	Err      error
	Output   []byte // combined stdout and stderr
	Duration time.Duration
}

// Passed reports whether the test process exited successfully.
func (r *Result) Passed() bool {
	return r.Err == nil
}

// RunHook is called once before any test is spawned.
type RunHook func(ctx context.Context) error

// SpawnHook is called for every invocation right before it is spawned. It may
// be called concurrently.
type SpawnHook func(ctx context.Context, inv *Invocation) error

// Harness runs test files.
type Harness struct {
	// Jobs is the maximum number of invocations running at once. Values
	// below 1 are treated as 1.
	Jobs int
	// Interpreter is the program each test file is passed to.
	Interpreter string
	// Switches are passed to Interpreter before the test file.
	Switches []string
	// Command constructs commands. It defaults to genericexec.CommandExec.
	Command genericexec.CommandFunc

	mu          sync.Mutex
	beforeRun   []RunHook
	beforeSpawn []SpawnHook
}

// New returns a Harness running tests with interpreter, one at a time.
func New(interpreter string, switches ...string) *Harness {
	return &Harness{
		Jobs:        1,
		Interpreter: interpreter,
		Switches:    switches,
		Command:     genericexec.CommandExec,
	}
}

// OnBeforeRun registers a hook called once before any test is spawned.
// Hooks run in registration order; the first error aborts Run.
func (h *Harness) OnBeforeRun(f RunHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.beforeRun = append(h.beforeRun, f)
}

// OnBeforeSpawn registers a hook called for every invocation before it is
// spawned. Hooks run in registration order; an error fails that test.
func (h *Harness) OnBeforeSpawn(f SpawnHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.beforeSpawn = append(h.beforeSpawn, f)
}

func (h *Harness) hooks() ([]RunHook, []SpawnHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.beforeRun), slices.Clone(h.beforeSpawn)
}

// Run runs the before-run hooks and then every test, at most Jobs at a time.
// Results are returned in the order of tests. An error is returned only if a
// before-run hook fails or ctx is canceled; test failures are reported in the
// results.
func (h *Harness) Run(ctx context.Context, tests []string) ([]*Result, error) {
	runHooks, spawnHooks := h.hooks()
	for _, f := range runHooks {
		if err := f(ctx); err != nil {
			return nil, err
		}
	}

	jobs := h.Jobs
	if jobs < 1 {
		jobs = 1
	}
	command := h.Command
	if command == nil {
		command = genericexec.CommandExec
	}
	logging.Debugf(ctx, "Running %d test(s) with %d job(s) using %s", len(tests), jobs, h.Interpreter)

	results := make([]*Result, len(tests))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, test := range tests {
		i, test := i, test
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			results[i] = h.runOne(gctx, command, spawnHooks, test)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "test run interrupted")
	}
	return results, nil
}

func (h *Harness) runOne(ctx context.Context, command genericexec.CommandFunc, hooks []SpawnHook, test string) *Result {
	inv := &Invocation{
		Test:    test,
		Program: h.Interpreter,
		Args:    append(slices.Clone(h.Switches), test),
	}
	res := &Result{Test: test, ExitCode: -1}
	for _, f := range hooks {
		if err := f(ctx, inv); err != nil {
			res.Err = errors.Wrapf(err, "failed to prepare %s", test)
			return res
		}
	}
	res.Host = inv.Host

	var out bytes.Buffer
	start := time.Now()
	err := command(inv.Program, inv.Args...).Run(ctx, nil, nil, &out, &out)
	res.Duration = time.Since(start)
	res.Output = out.Bytes()
	res.Err = err
	if code, ok := genericexec.ExitCode(err); ok {
		res.ExitCode = code
	}
	return res
}
