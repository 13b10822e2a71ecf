// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package dispatch

import (
	"fmt"
	iofs "io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"go.chromium.org/remotetest/internal/remoteconfig"
)

// ValidationError is returned when remote testing cannot start with the
// given configuration and working directory.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "cannot run tests remotely: " + e.Reason
}

func invalid(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// Validate checks that cfg is usable from the working directory cwd:
// at least one non-blank host is configured, a remote root is set, the local
// root is an existing directory containing cwd, and the ssh client is an
// executable file. Files are looked up through fs.
func Validate(fs afero.Fs, cfg *remoteconfig.Config, cwd string) error {
	if len(cfg.Hosts) == 0 {
		return invalid("no host configured")
	}
	for i, h := range cfg.Hosts {
		if strings.TrimSpace(h) == "" {
			return invalid("host #%d is blank", i+1)
		}
	}
	if cfg.RemoteRoot == "" {
		return invalid("no remote root configured")
	}

	if cfg.LocalRoot == "" {
		return invalid("no local root configured")
	}
	if !filepath.IsAbs(cfg.LocalRoot) {
		return invalid("local root %s is not an absolute path", cfg.LocalRoot)
	}
	fi, err := fs.Stat(cfg.LocalRoot)
	if err != nil {
		return invalid("local root %s does not exist", cfg.LocalRoot)
	}
	if !fi.IsDir() {
		return invalid("local root %s is not a directory", cfg.LocalRoot)
	}
	if _, err := RelativeDir(cfg.LocalRoot, cwd); err != nil {
		return err
	}

	return validateSSH(fs, cfg.SSH)
}

func validateSSH(fs afero.Fs, ssh string) error {
	if ssh == "" {
		return invalid("no ssh client configured")
	}
	if !strings.Contains(ssh, "/") {
		if _, ok := lookPath(fs, ssh, os.Getenv("PATH")); !ok {
			return invalid("ssh client %s not found in PATH", ssh)
		}
		return nil
	}
	fi, err := fs.Stat(ssh)
	if err != nil {
		return invalid("ssh client %s does not exist", ssh)
	}
	if !isExecutable(fi) {
		return invalid("ssh client %s is not executable", ssh)
	}
	return nil
}

// lookPath searches the colon-separated directory list path for an executable
// named name on fs. Empty and relative entries are skipped, as exec.LookPath
// does for security.
func lookPath(fs afero.Fs, name, path string) (string, bool) {
	for _, dir := range filepath.SplitList(path) {
		if !filepath.IsAbs(dir) {
			continue
		}
		p := filepath.Join(dir, name)
		if fi, err := fs.Stat(p); err == nil && isExecutable(fi) {
			return p, true
		}
	}
	return "", false
}

func isExecutable(fi iofs.FileInfo) bool {
	return fi.Mode().IsRegular() && fi.Mode().Perm()&0111 != 0
}

// RelativeDir returns the slash-separated path of cwd relative to localRoot,
// or "" if they are the same directory. It returns a *ValidationError if cwd
// is not localRoot or one of its descendants.
func RelativeDir(localRoot, cwd string) (string, error) {
	root := filepath.Clean(localRoot)
	dir := filepath.Clean(cwd)
	if dir == root {
		return "", nil
	}
	if root != "/" && !strings.HasPrefix(dir, root+"/") {
		return "", invalid("current directory %s is outside the local root %s", cwd, localRoot)
	}
	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", invalid("current directory %s is outside the local root %s", cwd, localRoot)
	}
	return filepath.ToSlash(rel), nil
}
