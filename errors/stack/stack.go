// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package stack captures call stacks for the errors package.
package stack

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	maxDepth = 8       // frames printed before the trace is cut
	ellipsis = "\t..." // last line of a cut trace
)

// Stack is a captured call stack, innermost call first.
type Stack []uintptr

// New captures the stack of its caller. skip is the number of additional
// callers to leave out, so New(0) starts at the function calling New.
func New(skip int) Stack {
	var pcs [maxDepth + 1]uintptr
	n := runtime.Callers(skip+2, pcs[:])
	return append(Stack(nil), pcs[:n]...)
}

// String returns one "\tat func (file:line)" line per frame.
func (s Stack) String() string {
	var lines []string
	frames := runtime.CallersFrames(s)
	for more := len(s) > 0; more; {
		var f runtime.Frame
		f, more = frames.Next()
		if len(lines) == maxDepth {
			lines = append(lines, ellipsis)
			break
		}
		lines = append(lines, fmt.Sprintf("\tat %s (%s:%d)", f.Function, filepath.Base(f.File), f.Line))
	}
	return strings.Join(lines, "\n")
}
