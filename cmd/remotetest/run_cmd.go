// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/subcommands"

	"go.chromium.org/remotetest/internal/command"
	"go.chromium.org/remotetest/internal/genericexec"
	"go.chromium.org/remotetest/internal/harness"
	"go.chromium.org/remotetest/internal/logging"
	"go.chromium.org/remotetest/internal/remote"
	"go.chromium.org/remotetest/internal/remoteconfig"
)

// runCmd implements subcommands.Command to support running tests remotely.
type runCmd struct {
	configPath string        // configuration file; empty for the default
	jobs       int           // job slots per host
	includes   []string      // library directories passed with -I
	timeout    time.Duration // overall timeout; 0 if no timeout
	stdout     io.Writer     // where to write per-test results

	// The following can be set by tests.
	storeOpts  []remoteconfig.Option
	attachOpts []remote.Option
	command    genericexec.CommandFunc // runs test invocations
}

var _ = subcommands.Command(&runCmd{})

func newRunCmd(stdout io.Writer) *runCmd {
	return &runCmd{stdout: stdout}
}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "run tests on remote hosts" }
func (*runCmd) Usage() string {
	return `Usage: run [flag]... [test]...

Description:
    Mirrors the local testing root to every configured host, then runs the
    given test files there, spreading them over the hosts in turn. Without
    test arguments, all *.t files under t/ are run.

    Exits with 1 if a test fails or the tests could not be started.

Flag:
`
}

func (r *runCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&r.configPath, "config", "", "configuration file (default $HOME/"+remoteconfig.FileName+")")
	f.IntVar(&r.jobs, "j", 1, "number of tests to run at once on each host")
	inc := command.RepeatedFlag(func(dir string) error {
		r.includes = append(r.includes, dir)
		return nil
	})
	f.Var(&inc, "I", "add a library directory (may be repeated)")
	f.Var(command.NewDurationFlag(time.Second, &r.timeout, 0), "timeout", "run timeout in seconds")
}

func (r *runCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if r.jobs < 1 {
		logging.Info(ctx, "-j must be positive.\n\n"+r.Usage())
		return subcommands.ExitUsageError
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	store, err := openStore(r.configPath, r.storeOpts)
	if err != nil {
		logging.Info(ctx, err)
		return subcommands.ExitFailure
	}
	cfg, err := store.Load(ctx)
	if err != nil {
		logging.Infof(ctx, "Failed to load configuration: %v", err)
		return subcommands.ExitFailure
	}

	tests := f.Args()
	if len(tests) == 0 {
		if tests, err = harness.FindTests(harness.DefaultTestDir, harness.DefaultTestExt); err != nil {
			logging.Infof(ctx, "Failed to find tests: %v", err)
			return subcommands.ExitFailure
		}
		if len(tests) == 0 {
			logging.Infof(ctx, "No tests found in %s", harness.DefaultTestDir)
			return subcommands.ExitFailure
		}
	}

	var switches []string
	for _, dir := range r.includes {
		switches = append(switches, "-I"+dir)
	}
	h := harness.New(cfg.Perl, switches...)
	h.Jobs = r.jobs
	if r.command != nil {
		h.Command = r.command
	}

	sess, err := remote.Attach(ctx, cfg, h, r.attachOpts...)
	if err != nil {
		logging.Infof(ctx, "Failed to set up remote execution: %v", err)
		return subcommands.ExitFailure
	}
	// Teardown must run even if ctx has expired.
	defer sess.Close(context.WithoutCancel(ctx))

	logging.Infof(ctx, "Running %d test(s) on %s", len(tests), strings.Join(cfg.Hosts, ", "))
	results, err := h.Run(ctx, tests)
	if err != nil {
		logging.Infof(ctx, "Failed to run tests: %v", err)
		return subcommands.ExitFailure
	}
	if failed := r.report(results); failed > 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// report writes one line per result followed by a summary to r.stdout, and
// returns the number of failed tests.
func (r *runCmd) report(results []*harness.Result) int {
	failed := 0
	for _, res := range results {
		status := "ok"
		if !res.Passed() {
			status = "FAIL"
			failed++
		}
		fmt.Fprintf(r.stdout, "%-4s %s [%s] %v\n", status, res.Test, res.Host, res.Duration.Round(time.Millisecond))
		if !res.Passed() {
			fmt.Fprintf(r.stdout, "     %v\n", res.Err)
			for _, line := range strings.Split(strings.TrimRight(string(res.Output), "\n"), "\n") {
				if line != "" {
					fmt.Fprintf(r.stdout, "     | %s\n", line)
				}
			}
		}
	}
	fmt.Fprintf(r.stdout, "%d/%d test(s) passed\n", len(results)-failed, len(results))
	return failed
}

// openStore returns a Store for path, or for the default path if it is empty.
func openStore(path string, opts []remoteconfig.Option) (*remoteconfig.Store, error) {
	if path == "" {
		var err error
		if path, err = remoteconfig.DefaultPath(); err != nil {
			return nil, err
		}
	}
	return remoteconfig.NewStore(path, opts...), nil
}
