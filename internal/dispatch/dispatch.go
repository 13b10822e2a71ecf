// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package dispatch assigns test invocations to remote hosts and rewrites them
// to run there.
package dispatch

import (
	"context"
	"strings"
	"sync/atomic"

	"golang.org/x/exp/slices"

	"go.chromium.org/remotetest/internal/harness"
	"go.chromium.org/remotetest/internal/logging"
	"go.chromium.org/remotetest/internal/mirror"
	"go.chromium.org/remotetest/internal/remoteconfig"
	"go.chromium.org/remotetest/shutil"
)

// includeFlag is the interpreter switch adding a library directory.
const includeFlag = "-I"

// defaultPerl is used when the configuration names no remote interpreter.
const defaultPerl = "perl"

// Dispatcher picks hosts in round-robin order and rewrites invocations to run
// on them. It is safe for concurrent use.
type Dispatcher struct {
	cfg    *remoteconfig.Config
	relDir string
	next   atomic.Uint64
}

// New returns a Dispatcher for tests run from cwd. cfg and cwd must have
// passed Validate.
func New(cfg *remoteconfig.Config, cwd string) (*Dispatcher, error) {
	rel, err := RelativeDir(cfg.LocalRoot, cwd)
	if err != nil {
		return nil, err
	}
	return &Dispatcher{cfg: cfg, relDir: rel}, nil
}

// SelectHost returns the next host in round-robin order: call k (counting
// from 0) returns Hosts[k mod len(Hosts)].
func (d *Dispatcher) SelectHost() string {
	n := d.next.Add(1) - 1
	return d.cfg.Hosts[n%uint64(len(d.cfg.Hosts))]
}

// RemoteDir returns the remote directory corresponding to the local working
// directory.
func (d *Dispatcher) RemoteDir() string {
	return d.cfg.RemoteRoot + d.relDir
}

// Configure adjusts h for remote execution. It must be called once, before
// h runs: tests are handed to the ssh client, and since every host runs
// jobs independently the job count is multiplied by the number of hosts.
func (d *Dispatcher) Configure(h *harness.Harness) {
	jobs := h.Jobs
	if jobs < 1 {
		jobs = 1
	}
	h.Interpreter = d.cfg.SSH
	h.Jobs = jobs * len(d.cfg.Hosts)
}

// Rewrite turns inv into an ssh invocation that runs the original arguments
// with the remote interpreter, in the remote copy of the working directory,
// on the next host. Include switches pointing into the local root are moved
// to the remote root; other arguments are passed verbatim. paths, if not
// empty, is exported as the library search path.
func (d *Dispatcher) Rewrite(ctx context.Context, inv *harness.Invocation, paths mirror.PathSet) {
	host := d.SelectHost()

	perl := d.cfg.Perl
	if perl == "" {
		perl = defaultPerl
	}
	argv := append([]string{perl}, d.rewriteArgs(inv.Args)...)

	var assigns []string
	if !paths.Empty() {
		assigns = append(assigns, shutil.AssignPath(mirror.LibPathVar, paths.String()))
	}
	remote := shutil.RemoteCommand(d.RemoteDir(), assigns, argv...)

	inv.Program = d.cfg.SSH
	inv.Args = append(slices.Clone(d.cfg.SSHArgs), d.cfg.UserHost(host), remote)
	inv.Host = host
	logging.Debugf(ctx, "Dispatching %s to %s", inv.Test, host)
}

// rewriteArgs moves -I directories under the local root to the remote root.
// A rewritten directory starting with "~" is passed as a separate word after
// -I, since the shell expands "~" only at the start of a word.
func (d *Dispatcher) rewriteArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		if !strings.HasPrefix(a, includeFlag) || len(a) == len(includeFlag) {
			out = append(out, a)
			continue
		}
		dir := mirror.RewriteDir(strings.TrimPrefix(a, includeFlag), d.cfg.LocalRoot, d.cfg.RemoteRoot)
		if strings.HasPrefix(dir, "~") {
			out = append(out, includeFlag, dir)
		} else {
			out = append(out, includeFlag+dir)
		}
	}
	return out
}
