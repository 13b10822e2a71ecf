// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package shutil builds shell command lines that are passed through ssh and
// evaluated by the remote user's login shell.
package shutil

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// \w is [0-9A-Za-z_]. A leading '=' triggers expansion in zsh, so it is
	// only safe after the first character.
	leadingSafeChars  = `-\w@%+:,./`
	trailingSafeChars = leadingSafeChars + "="
)

// safeRE matches an argument that can be literally included in a shell
// command line without requiring escaping.
var safeRE = regexp.MustCompile(fmt.Sprintf("^[%s][%s]*$", leadingSafeChars, trailingSafeChars))

// nameRE matches a valid environment variable name.
var nameRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Escape escapes a string so it can be safely included as an argument in a shell command line.
// The string is not modified if it can already be safely included.
func Escape(s string) string {
	if safeRE.MatchString(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// EscapeSlice escapes a slice of strings so each will be treated as a separate
// argument in the returned shell command line.
func EscapeSlice(args []string) string {
	escaped := make([]string, len(args))
	for i, arg := range args {
		escaped[i] = Escape(arg)
	}
	return strings.Join(escaped, " ")
}

// Assign returns a "NAME=value" word with value escaped. It panics if name is
// not a valid variable name, as that is a programming error.
func Assign(name, value string) string {
	if !nameRE.MatchString(name) {
		panic(fmt.Sprintf("shutil.Assign: invalid variable name %q", name))
	}
	return name + "=" + Escape(value)
}

// EscapePath is like Escape, but leaves a leading "~" or "~/" unquoted so the
// shell still expands it to the home directory.
func EscapePath(p string) string {
	switch {
	case p == "~":
		return p
	case strings.HasPrefix(p, "~/"):
		if rest := p[2:]; rest != "" {
			return "~/" + Escape(rest)
		}
		return "~/"
	}
	return Escape(p)
}

// AssignPath is like Assign for a colon-separated path list. Every entry is
// escaped with EscapePath; shells expand "~" after "=" and ":" in
// assignments.
func AssignPath(name, value string) string {
	if !nameRE.MatchString(name) {
		panic(fmt.Sprintf("shutil.AssignPath: invalid variable name %q", name))
	}
	entries := strings.Split(value, ":")
	for i, e := range entries {
		entries[i] = EscapePath(e)
	}
	return name + "=" + strings.Join(entries, ":")
}

// RemoteCommand returns a single shell command line that changes into dir and
// runs argv with the given variable assignments applied to it. dir and argv
// are escaped with EscapePath. assigns are "NAME=value" pairs as returned by Assign or
// AssignPath and are emitted as-is.
//
//	RemoteCommand("/y/t", []string{"PERL5LIB=/y/lib"}, "/usr/bin/perl", "-w", "a b.t")
//	=> cd /y/t && PERL5LIB=/y/lib /usr/bin/perl -w 'a b.t'
func RemoteCommand(dir string, assigns []string, argv ...string) string {
	var b strings.Builder
	b.WriteString("cd ")
	b.WriteString(EscapePath(dir))
	b.WriteString(" &&")
	for _, a := range assigns {
		b.WriteByte(' ')
		b.WriteString(a)
	}
	if len(argv) > 0 {
		b.WriteByte(' ')
		for i, a := range argv {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(EscapePath(a))
		}
	}
	return b.String()
}
