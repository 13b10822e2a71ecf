// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package stack

import (
	"regexp"
	"strings"
	"testing"
)

func TestShort(t *testing.T) {
	trace := New(0).String()

	lines := strings.Split(trace, "\n")
	if len(lines) < 2 {
		t.Fatalf("Stack trace is too short: %q", trace)
	}

	first := regexp.MustCompile(`^\tat go\.chromium\.org/remotetest/errors/stack\.TestShort \(stack_test.go:\d+\)$`)
	if s := lines[0]; !first.MatchString(s) {
		t.Errorf("First line of stack trace = %q; want match of %q", s, first)
	}
	if s := lines[len(lines)-1]; s == ellipsis {
		t.Error("Short stack trace ends with ellipsis")
	}
}

func deepStack(depth int) Stack {
	if depth == 0 {
		return New(0)
	}
	return deepStack(depth - 1)
}

func TestLong(t *testing.T) {
	trace := deepStack(maxDepth).String()

	lines := strings.Split(trace, "\n")
	if len(lines) != maxDepth+1 {
		t.Fatalf("Stack trace has %d lines; want %d", len(lines), maxDepth+1)
	}

	re := regexp.MustCompile(`^\tat go\.chromium\.org/remotetest/errors/stack\.deepStack \(stack_test.go:\d+\)$`)
	for i, line := range lines[:maxDepth] {
		if !re.MatchString(line) {
			t.Errorf("Line %d = %q; want match of %q", i, line, re)
		}
	}
	if last := lines[maxDepth]; last != ellipsis {
		t.Errorf("Last line = %q; want %q", last, ellipsis)
	}
}
