// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package remoteconfig

import (
	"strconv"
	"strings"

	"go.chromium.org/remotetest/errors"
)

// fileConfig mirrors the on-disk YAML document. Unknown keys are ignored.
type fileConfig struct {
	User    string    `yaml:"user,omitempty"`
	Host    hostList  `yaml:"host,omitempty"`
	Root    string    `yaml:"root,omitempty"`
	Local   string    `yaml:"local,omitempty"`
	Perl    string    `yaml:"perl,omitempty"`
	SSH     string    `yaml:"ssh,omitempty"`
	SSHArgs wordList  `yaml:"ssh_args,omitempty"`
	Master  *boolLike `yaml:"master,omitempty"`
}

// hostList accepts either a single host name or a sequence of them.
type hostList []string

func (l *hostList) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var seq []string
	if err := unmarshal(&seq); err == nil {
		*l = seq
		return nil
	}
	var s string
	if err := unmarshal(&s); err != nil {
		return errors.Wrap(err, "host must be a string or a list of strings")
	}
	*l = hostList{s}
	return nil
}

// wordList accepts either a sequence of strings or a single string that is
// split on whitespace.
type wordList []string

func (l *wordList) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var seq []string
	if err := unmarshal(&seq); err == nil {
		*l = seq
		return nil
	}
	var s string
	if err := unmarshal(&s); err != nil {
		return errors.Wrap(err, "ssh_args must be a string or a list of strings")
	}
	*l = strings.Fields(s)
	return nil
}

// boolLike accepts YAML booleans, integers and the usual yes/no spellings.
type boolLike bool

func (b *boolLike) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var v bool
	if err := unmarshal(&v); err == nil {
		*b = boolLike(v)
		return nil
	}
	var n int
	if err := unmarshal(&n); err == nil {
		*b = n != 0
		return nil
	}
	var s string
	if err := unmarshal(&s); err != nil {
		return errors.Wrap(err, "master must be a boolean")
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y", "on", "true":
		*b = true
	case "no", "n", "off", "false", "":
		*b = false
	default:
		v, err := strconv.ParseBool(s)
		if err != nil {
			return errors.Errorf("master: cannot interpret %q as a boolean", s)
		}
		*b = boolLike(v)
	}
	return nil
}

func (b boolLike) MarshalYAML() (interface{}, error) {
	return bool(b), nil
}
