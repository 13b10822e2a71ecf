// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package errors constructs errors that remember where they were created.
//
//	errors.Errorf("rsync to %s exited with %d", host, code)
//	errors.Wrap(err, "failed to start master connection")
//
// Printing an error with "%+v" shows every message in its cause chain along
// with the stack it was created at. Wrapped errors unwrap to their cause, so
// Is and As work through them.
package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"strings"

	"go.chromium.org/remotetest/errors/stack"
)

type tracedError struct {
	msg   string
	cause error // nil for errors created by New and Errorf
	at    stack.Stack
}

// newTraced is called directly by the exported constructors, so the recorded
// stack starts two frames up.
func newTraced(cause error, msg string) *tracedError {
	return &tracedError{msg: msg, cause: cause, at: stack.New(2)}
}

func (e *tracedError) Error() string {
	if e.cause == nil {
		return e.msg
	}
	return e.msg + ": " + e.cause.Error()
}

func (e *tracedError) Unwrap() error { return e.cause }

// Format prints the cause chain with stacks for "%+v" and the plain message
// otherwise.
func (e *tracedError) Format(s fmt.State, verb rune) {
	if verb != 'v' || !s.Flag('+') {
		io.WriteString(s, e.Error())
		return
	}
	var parts []string
	var err error = e
	for err != nil {
		te, ok := err.(*tracedError)
		if !ok {
			// Foreign errors carry no location; their own message already
			// includes whatever they wrap.
			parts = append(parts, err.Error()+"\n\tat ???")
			break
		}
		parts = append(parts, te.msg+"\n"+te.at.String())
		err = te.cause
	}
	io.WriteString(s, strings.Join(parts, "\n"))
}

// New returns an error with msg, like the standard errors.New.
func New(msg string) error {
	return newTraced(nil, msg)
}

// Errorf returns an error with a formatted message. Unlike fmt.Errorf it does
// not support %w; use Wrapf to keep a cause.
func Errorf(format string, args ...interface{}) error {
	return newTraced(nil, fmt.Sprintf(format, args...))
}

// Wrap returns an error with msg whose cause is cause. A nil cause makes it
// equivalent to New.
func Wrap(cause error, msg string) error {
	return newTraced(cause, msg)
}

// Wrapf is like Wrap with a formatted message.
func Wrapf(cause error, format string, args ...interface{}) error {
	return newTraced(cause, fmt.Sprintf(format, args...))
}

// Is is the standard errors.Is.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As is the standard errors.As.
func As(err error, target interface{}) bool { return stderrors.As(err, target) }

// Unwrap is the standard errors.Unwrap.
func Unwrap(err error) error { return stderrors.Unwrap(err) }
