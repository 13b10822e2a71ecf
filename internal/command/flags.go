// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package command contains code shared by executables.
package command

import (
	"strconv"
	"strings"
	"time"
)

// RepeatedFlag implements flag.Value around an assignment function that is
// executed each time the flag is supplied.
type RepeatedFlag func(val string) error

func (f *RepeatedFlag) String() string { return "" }

func (f *RepeatedFlag) Set(val string) error {
	return (*f)(val)
}

// DurationFlag implements flag.Value to save a user-supplied integer time
// duration with fixed units to a time.Duration.
type DurationFlag struct {
	units time.Duration
	dst   *time.Duration
}

// NewDurationFlag returns a DurationFlag that will save a duration with the
// supplied units to dst. def is assigned to dst immediately.
func NewDurationFlag(units time.Duration, dst *time.Duration, def time.Duration) *DurationFlag {
	*dst = def
	return &DurationFlag{units, dst}
}

func (f *DurationFlag) String() string {
	if f.dst == nil {
		return ""
	}
	return strconv.FormatInt(int64(*f.dst/f.units), 10)
}

func (f *DurationFlag) Set(v string) error {
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return err
	}
	*f.dst = time.Duration(n) * f.units
	return nil
}
