// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package remoteconfig

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/kevinburke/ssh_config"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v2"

	"go.chromium.org/remotetest/errors"
	"go.chromium.org/remotetest/internal/logging"
)

// Store loads and caches the configuration file at a fixed path.
type Store struct {
	path          string
	fs            afero.Fs
	home          string
	defaultLocal  string
	sshConfigPath string

	mu  sync.Mutex
	cfg *Config
}

// Option customizes a Store.
type Option func(s *Store)

// WithFs makes the Store access files through fs instead of the OS file
// system.
func WithFs(fs afero.Fs) Option {
	return func(s *Store) { s.fs = fs }
}

// WithHome overrides the home directory used for "~/" expansion and for the
// default ssh client configuration path.
func WithHome(dir string) Option {
	return func(s *Store) { s.home = dir }
}

// WithDefaultLocal sets the local root written into a generated default
// configuration. It defaults to the working directory at NewStore time.
func WithDefaultLocal(dir string) Option {
	return func(s *Store) { s.defaultLocal = dir }
}

// WithSSHConfig sets the ssh client configuration consulted for the user of
// hosts when the configuration has no user. It defaults to ~/.ssh/config.
func WithSSHConfig(path string) Option {
	return func(s *Store) { s.sshConfigPath = path }
}

// DefaultPath returns the path of the configuration file in the invoking
// user's home directory.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to locate home directory")
	}
	return filepath.Join(home, FileName), nil
}

// NewStore creates a Store for the configuration file at path. Nothing is read
// until Load or Get is called.
func NewStore(path string, opts ...Option) *Store {
	s := &Store{path: path, fs: afero.NewOsFs()}
	s.home, _ = os.UserHomeDir()
	s.defaultLocal, _ = os.Getwd()
	for _, opt := range opts {
		opt(s)
	}
	if s.sshConfigPath == "" && s.home != "" {
		s.sshConfigPath = filepath.Join(s.home, ".ssh", "config")
	}
	return s
}

// Path returns the path of the configuration file.
func (s *Store) Path() string {
	return s.path
}

// Load reads, normalizes and caches the configuration. If the file does not
// exist, a default configuration is written there first. Errors reading,
// parsing or writing the file are returned as *Error.
func (s *Store) Load(ctx context.Context) (*Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

// Get returns the normalized value of key, loading the configuration if it
// has not been loaded yet.
func (s *Store) Get(ctx context.Context, key string) (interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg := s.cfg
	if cfg == nil {
		var err error
		if cfg, err = s.loadLocked(ctx); err != nil {
			return nil, err
		}
	}
	return cfg.Value(key)
}

func (s *Store) loadLocked(ctx context.Context) (*Config, error) {
	exists, err := afero.Exists(s.fs, s.path)
	if err != nil {
		return nil, &Error{Path: s.path, Err: err}
	}
	if !exists {
		if err := s.writeDefault(); err != nil {
			return nil, &Error{Path: s.path, Err: errors.Wrap(err, "failed to write default configuration")}
		}
		logging.Infof(ctx, "Wrote default configuration to %s; edit it to point at your test hosts", s.path)
	}

	b, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		return nil, &Error{Path: s.path, Err: err}
	}
	var fc fileConfig
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return nil, &Error{Path: s.path, Err: errors.Wrap(err, "malformed YAML")}
	}

	cfg := s.normalize(ctx, &fc)
	s.cfg = cfg
	return cfg, nil
}

// defaultFileConfig returns the configuration written on first use.
func (s *Store) defaultFileConfig() *fileConfig {
	master := boolLike(true)
	return &fileConfig{
		User:    "smoker",
		Host:    hostList{"smoke-server.example.com"},
		Root:    "/home/smoker/remote-test/",
		Local:   withTrailingSlash(s.defaultLocal),
		Perl:    "/usr/bin/perl",
		SSH:     "/usr/bin/ssh",
		SSHArgs: wordList{"-x", "-S", "~/.ssh/master-%r@%h:%p"},
		Master:  &master,
	}
}

func (s *Store) writeDefault() error {
	b, err := yaml.Marshal(s.defaultFileConfig())
	if err != nil {
		return err
	}
	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}
	return afero.WriteFile(s.fs, s.path, b, 0644)
}

// normalize converts a file configuration to a Config. It never fails;
// semantic problems are reported by validation.
func (s *Store) normalize(ctx context.Context, fc *fileConfig) *Config {
	cfg := &Config{
		User:             fc.User,
		Hosts:            append([]string(nil), fc.Host...),
		RemoteRoot:       withTrailingSlash(fc.Root),
		LocalRoot:        normalizeLocal(fc.Local, s.home),
		Perl:             fc.Perl,
		SSH:              fc.SSH,
		SSHArgs:          append([]string(nil), fc.SSHArgs...),
		ReuseConnections: fc.Master == nil || bool(*fc.Master),
		userHosts:        make(map[string]string),
	}

	var sc *ssh_config.Config
	if cfg.User == "" {
		sc = s.readSSHConfig(ctx)
	}
	for _, h := range cfg.Hosts {
		u := cfg.User
		if u == "" && sc != nil {
			if v, err := sc.Get(h, "User"); err == nil {
				u = v
			}
		}
		// Without a user the ssh client picks one itself, honoring -l in
		// ssh_args and config it can evaluate but this package cannot.
		if u == "" {
			cfg.userHosts[h] = h
		} else {
			cfg.userHosts[h] = u + "@" + h
		}
	}
	return cfg
}

// readSSHConfig reads the ssh client configuration. A missing or unparsable
// file yields nil.
func (s *Store) readSSHConfig(ctx context.Context) *ssh_config.Config {
	if s.sshConfigPath == "" {
		return nil
	}
	b, err := afero.ReadFile(s.fs, s.sshConfigPath)
	if err != nil {
		return nil
	}
	sc, err := ssh_config.Decode(bytes.NewReader(b))
	if err != nil {
		logging.Debugf(ctx, "Ignoring unparsable %s: %v", s.sshConfigPath, err)
		return nil
	}
	return sc
}
