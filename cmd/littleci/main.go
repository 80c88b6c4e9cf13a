// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/littleci/littleci/lib/cli"
	"github.com/littleci/littleci/lib/process"
)

func main() {
	if err := run(); err != nil {
		// Commands that report their own outcome (job run) return an
		// ExitError; don't print a redundant "error:" line.
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		process.Fatal(err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return root(cli.StdIO()).Execute(ctx, os.Args[1:])
}
