// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package mirror

import (
	"strings"
)

// LibPathVar is the library search path variable exported to remote tests.
const LibPathVar = "PERL5LIB"

// PathSet is a library search path as seen on the remote hosts. It is
// immutable; the zero value is an empty path.
type PathSet struct {
	entries []string
}

// RewritePaths returns libPath, a colon-separated search path, with every
// entry under localRoot moved under remoteRoot. Both roots must end with "/".
// Other entries, including relative ones, are kept as they are.
func RewritePaths(libPath, localRoot, remoteRoot string) PathSet {
	if libPath == "" {
		return PathSet{}
	}
	var entries []string
	for _, e := range strings.Split(libPath, ":") {
		entries = append(entries, RewriteDir(e, localRoot, remoteRoot))
	}
	return PathSet{entries: entries}
}

// RewriteDir moves a single directory under localRoot to the same place under
// remoteRoot. Both roots must end with "/". dir is not split, so it may
// contain ":". Directories outside localRoot are returned unchanged.
func RewriteDir(dir, localRoot, remoteRoot string) string {
	if localRoot == "" {
		return dir
	}
	if strings.HasPrefix(dir, localRoot) {
		return remoteRoot + strings.TrimPrefix(dir, localRoot)
	}
	if localDir := strings.TrimSuffix(localRoot, "/"); localDir != "" && dir == localDir {
		return strings.TrimSuffix(remoteRoot, "/")
	}
	return dir
}

// Entries returns a copy of the path entries.
func (p PathSet) Entries() []string {
	return append([]string(nil), p.entries...)
}

// Empty reports whether the path has no entries.
func (p PathSet) Empty() bool {
	return len(p.entries) == 0
}

// String returns the colon-separated path.
func (p PathSet) String() string {
	return strings.Join(p.entries, ":")
}
