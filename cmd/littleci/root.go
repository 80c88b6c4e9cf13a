// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/littleci/littleci/lib/cli"
	"github.com/littleci/littleci/lib/config"
	"github.com/littleci/littleci/lib/version"
)

// root builds the command tree writing to streams.
func root(streams cli.IO) *cli.Command {
	return &cli.Command{
		Name:        "littleci",
		Description: "LittleCI runs a shell command for a repository whenever a webhook or an operator asks it to.",
		HelpOutput:  streams.Stderr,
		Subcommands: []*cli.Command{
			serveCommand(streams),
			statusCommand(streams),
			repoCommand(streams),
			jobCommand(streams),
			userCommand(streams),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(ctx context.Context, args []string) error {
					_, err := fmt.Fprintln(streams.Stdout, "littleci "+version.Full())
					return err
				},
			},
		},
	}
}

// ConfigFlags is embedded by every command that reads configuration.
// It is exported so flag binding can reach its fields through the
// embedding.
type ConfigFlags struct {
	ConfigPath string `flag:"config,c" desc:"configuration file (default $LITTLECI_CONFIG)"`
}

// load reads and validates the configuration.
func (p *ConfigFlags) load() (*config.Config, error) {
	cfg, err := config.Load(p.ConfigPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// commandLogger returns the logger for a command at the configured
// level, raised to at least floor. Management commands pass
// slog.LevelWarn so routine store messages do not clutter their output.
func commandLogger(streams cli.IO, cfg *config.Config, command string, floor slog.Level) (*slog.Logger, error) {
	level, err := cli.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return cli.NewCommandLogger(streams.Stderr, max(level, floor)).With("command", command), nil
}
