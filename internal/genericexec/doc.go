// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package genericexec provides a common interface to execute the external
// commands remotetest depends on (ssh, rsync and test invocations), so that
// callers can be unit tested against recorded fakes.
package genericexec
