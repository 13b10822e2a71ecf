// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package logging provides leveled logging through context.Context.
//
// Code that wants to emit logs calls Info, Infof, Debug or Debugf with a
// context. Logs go to whatever Logger has been attached to the context, and
// are silently dropped if there is none.
package logging

import (
	"sync"
	"time"
)

// Level is the severity of a log. Higher is more important.
type Level int

const (
	// LevelDebug is for output that is only interesting with -verbose, such
	// as subprocess output.
	LevelDebug Level = iota
	// LevelInfo is for progress that is always shown.
	LevelInfo
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	}
	return "unknown"
}

// Logger consumes logs sent via context.Context.
type Logger interface {
	Log(level Level, ts time.Time, msg string)
}

// MultiLogger fans logs out to several loggers. Loggers may be added while
// logs are being emitted.
type MultiLogger struct {
	mu      sync.RWMutex
	targets []Logger
}

// NewMultiLogger returns a MultiLogger forwarding to loggers.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{targets: append([]Logger(nil), loggers...)}
}

// Log forwards a log to every logger, in the order they were added.
func (ml *MultiLogger) Log(level Level, ts time.Time, msg string) {
	ml.mu.RLock()
	targets := ml.targets
	ml.mu.RUnlock()
	for _, l := range targets {
		l.Log(level, ts, msg)
	}
}

// AddLogger adds logger to the end of the list.
func (ml *MultiLogger) AddLogger(logger Logger) {
	ml.mu.Lock()
	defer ml.mu.Unlock()
	ml.targets = append(ml.targets[:len(ml.targets):len(ml.targets)], logger)
}
