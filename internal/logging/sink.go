// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package logging

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// SinkLogger is a Logger that processes logs by a Sink.
type SinkLogger struct {
	level     Level
	timestamp bool
	sink      Sink
}

// NewSinkLogger creates a new SinkLogger.
//
// level specifies the minimum level of logs the sink should get notified of.
// If timestamp is true, a timestamp is prepended to a log before it is sent to
// the sink.
func NewSinkLogger(level Level, timestamp bool, sink Sink) *SinkLogger {
	return &SinkLogger{
		level:     level,
		timestamp: timestamp,
		sink:      sink,
	}
}

// Log sends a log to the associated sink.
func (l *SinkLogger) Log(level Level, ts time.Time, msg string) {
	if level < l.level {
		return
	}
	if l.timestamp {
		msg = ts.UTC().Format("2006-01-02T15:04:05.000000Z ") + msg
	}
	l.sink.Log(msg)
}

// Sink represents a destination of logs, e.g. a log file or console.
type Sink interface {
	// Log gets called for a log entry.
	Log(msg string)
}

// WriterSink is a Sink that writes logs to io.Writer.
//
// All writes to io.Writer are synchronized.
type WriterSink struct {
	w  io.Writer
	mu sync.Mutex
}

// NewWriterSink creates a new WriterSink from io.Writer.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// Log writes a log to the underlying io.Writer.
func (s *WriterSink) Log(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.w, msg)
}

// lineWriter is an io.Writer that emits each complete line written to it as a
// log at a fixed level.
type lineWriter struct {
	ctx   context.Context
	level Level
	pw    *io.PipeWriter
	done  chan struct{}
}

// NewLineWriter returns a writer that logs every line written to it via ctx at
// level. It is meant to be used as the stdout/stderr of subprocesses whose
// output is only interesting when debugging. Close must be called to flush a
// trailing partial line.
func NewLineWriter(ctx context.Context, level Level) io.WriteCloser {
	pr, pw := io.Pipe()
	w := &lineWriter{ctx: ctx, level: level, pw: pw, done: make(chan struct{})}
	go func() {
		defer close(w.done)
		sc := bufio.NewScanner(pr)
		for sc.Scan() {
			emit(ctx, level, sc.Text())
		}
		// Drain so that writers never block after a scan error.
		io.Copy(io.Discard, pr)
	}()
	return w
}

func (w *lineWriter) Write(p []byte) (int, error) {
	return w.pw.Write(p)
}

func (w *lineWriter) Close() error {
	err := w.pw.Close()
	<-w.done
	return err
}
