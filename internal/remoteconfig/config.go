// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package remoteconfig loads the remote testing configuration file.
package remoteconfig

import (
	"fmt"
	"path/filepath"
	"strings"

	"go.chromium.org/remotetest/errors"
)

// FileName is the name of the configuration file in the user's home directory.
const FileName = ".remote_test"

// Keys recognized in the configuration file.
const (
	KeyUser    = "user"
	KeyHost    = "host"
	KeyRoot    = "root"
	KeyLocal   = "local"
	KeyPerl    = "perl"
	KeySSH     = "ssh"
	KeySSHArgs = "ssh_args"
	KeyMaster  = "master"
)

// Keys lists all recognized keys in the order they are documented.
var Keys = []string{KeyUser, KeyHost, KeyRoot, KeyLocal, KeyPerl, KeySSH, KeySSHArgs, KeyMaster}

// Config is a normalized remote testing configuration. It must not be
// modified after Load returns it.
type Config struct {
	// User is the remote user name. It may be empty, in which case the user
	// is resolved per host (see UserHost).
	User string
	// Hosts is the ordered list of remote hosts. Tests are dispatched to them
	// in this order.
	Hosts []string
	// RemoteRoot is the directory on each host receiving the mirrored tree.
	// It always ends with "/".
	RemoteRoot string
	// LocalRoot is the local directory that is mirrored. It always ends
	// with "/".
	LocalRoot string
	// Perl is the interpreter run on the remote hosts.
	Perl string
	// SSH is the path to the local ssh client.
	SSH string
	// SSHArgs are passed to every ssh (and rsync -e) invocation.
	SSHArgs []string
	// ReuseConnections enables background master connections.
	ReuseConnections bool

	userHosts map[string]string
}

// UserHost returns the user@host key used to address host. If host is not
// part of the configuration it is returned with the configured user, if any.
func (c *Config) UserHost(host string) string {
	if uh, ok := c.userHosts[host]; ok {
		return uh
	}
	if c.User != "" {
		return c.User + "@" + host
	}
	return host
}

// UserHosts returns the distinct user@host keys of all hosts in order.
func (c *Config) UserHosts() []string {
	seen := make(map[string]struct{})
	var keys []string
	for _, h := range c.Hosts {
		uh := c.UserHost(h)
		if _, ok := seen[uh]; ok {
			continue
		}
		seen[uh] = struct{}{}
		keys = append(keys, uh)
	}
	return keys
}

// Value returns the normalized value for a configuration key.
func (c *Config) Value(key string) (interface{}, error) {
	switch key {
	case KeyUser:
		return c.User, nil
	case KeyHost:
		return append([]string(nil), c.Hosts...), nil
	case KeyRoot:
		return c.RemoteRoot, nil
	case KeyLocal:
		return c.LocalRoot, nil
	case KeyPerl:
		return c.Perl, nil
	case KeySSH:
		return c.SSH, nil
	case KeySSHArgs:
		return append([]string(nil), c.SSHArgs...), nil
	case KeyMaster:
		return c.ReuseConnections, nil
	}
	return nil, errors.Errorf("unknown configuration key %q (known keys: %s)", key, strings.Join(Keys, ", "))
}

// withTrailingSlash returns p with exactly one trailing "/". An empty p is
// returned as is so that validation can report it.
func withTrailingSlash(p string) string {
	if p == "" {
		return ""
	}
	return strings.TrimRight(p, "/") + "/"
}

// normalizeLocal cleans a local root path and expands a leading "~/".
func normalizeLocal(p, home string) string {
	if p == "" {
		return ""
	}
	if p == "~" || strings.HasPrefix(p, "~/") {
		p = filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return withTrailingSlash(filepath.Clean(p))
}

// Error is returned when the configuration file cannot be read, parsed or
// written.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("configuration %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}
