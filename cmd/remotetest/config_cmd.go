// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/google/subcommands"
	"gopkg.in/yaml.v2"

	"go.chromium.org/remotetest/internal/logging"
	"go.chromium.org/remotetest/internal/remoteconfig"
)

// configCmd implements subcommands.Command to print the configuration.
type configCmd struct {
	configPath string
	stdout     io.Writer
	storeOpts  []remoteconfig.Option
}

var _ = subcommands.Command(&configCmd{})

func newConfigCmd(stdout io.Writer) *configCmd {
	return &configCmd{stdout: stdout}
}

func (*configCmd) Name() string     { return "config" }
func (*configCmd) Synopsis() string { return "print the remote testing configuration" }
func (*configCmd) Usage() string {
	return `Usage: config [flag]... [key]

Description:
    Prints the normalized configuration as YAML, or the value of a single key.
    A default configuration file is written if none exists.

Flag:
`
}

func (c *configCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.configPath, "config", "", "configuration file (default $HOME/"+remoteconfig.FileName+")")
}

func (c *configCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() > 1 {
		logging.Info(ctx, "Too many arguments.\n\n"+c.Usage())
		return subcommands.ExitUsageError
	}
	store, err := openStore(c.configPath, c.storeOpts)
	if err != nil {
		logging.Info(ctx, err)
		return subcommands.ExitFailure
	}

	if f.NArg() == 1 {
		v, err := store.Get(ctx, f.Arg(0))
		if err != nil {
			logging.Info(ctx, err)
			return subcommands.ExitFailure
		}
		if err := printValue(c.stdout, v); err != nil {
			logging.Info(ctx, err)
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	}

	cfg, err := store.Load(ctx)
	if err != nil {
		logging.Info(ctx, err)
		return subcommands.ExitFailure
	}
	var doc yaml.MapSlice
	for _, k := range remoteconfig.Keys {
		v, err := cfg.Value(k)
		if err != nil {
			logging.Info(ctx, err)
			return subcommands.ExitFailure
		}
		doc = append(doc, yaml.MapItem{Key: k, Value: v})
	}
	b, err := yaml.Marshal(doc)
	if err != nil {
		logging.Info(ctx, err)
		return subcommands.ExitFailure
	}
	c.stdout.Write(b)
	return subcommands.ExitSuccess
}

// printValue writes a single configuration value, one line per element for
// lists.
func printValue(w io.Writer, v interface{}) error {
	if vs, ok := v.([]string); ok {
		for _, s := range vs {
			if _, err := fmt.Fprintln(w, s); err != nil {
				return err
			}
		}
		return nil
	}
	_, err := fmt.Fprintln(w, v)
	return err
}
