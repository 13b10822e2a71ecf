// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package command

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sys/unix"
)

var selfName = filepath.Base(os.Args[0])

// InstallSignalHandler installs a handler for SIGINT and SIGTERM that calls
// callback, terminates child processes and exits with status 1. out is the
// output stream to write messages to (typically stdout or stderr).
//
// Deferred functions do not run when the handler exits the process, so
// callback is the only chance to restore state such as the terminal mode.
func InstallSignalHandler(out io.Writer, callback func(sig os.Signal)) {
	ch := make(chan os.Signal, 1)
	go func() {
		sig := <-ch
		fmt.Fprintf(out, "\n%s: Caught %v signal; exiting\n", selfName, sig)
		if callback != nil {
			callback(sig)
		}
		TerminateChildren(out)
		os.Exit(1)
	}()
	signal.Notify(ch, unix.SIGINT, unix.SIGTERM)
}

// TerminateChildren sends SIGTERM to every direct child of the current
// process and returns the number of processes signaled.
func TerminateChildren(out io.Writer) int {
	procs, err := process.Processes()
	if err != nil {
		fmt.Fprintf(out, "Failed to terminate subprocesses: %v\n", err)
		return 0
	}

	selfPid := int32(os.Getpid())
	n := 0
	for _, proc := range procs {
		ppid, err := proc.Ppid()
		if err != nil || ppid != selfPid {
			continue
		}
		if err := proc.Terminate(); err == nil {
			n++
		}
	}
	return n
}
