// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package harness

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"go.chromium.org/remotetest/errors"
)

// DefaultTestDir and DefaultTestExt describe where tests are looked for when
// none are named explicitly.
const (
	DefaultTestDir = "t"
	DefaultTestExt = ".t"
)

// FindTests returns the files under dir (recursively) whose names end with
// ext, sorted. Paths are returned as dir joined with the relative file path.
func FindTests(dir, ext string) ([]string, error) {
	var tests []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() && filepath.Ext(p) == ext {
			tests = append(tests, p)
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Errorf("test directory %s does not exist", dir)
		}
		return nil, errors.Wrapf(err, "failed to list tests under %s", dir)
	}
	sort.Strings(tests)
	return tests, nil
}
