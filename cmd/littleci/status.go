// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/littleci/littleci/lib/admin"
	"github.com/littleci/littleci/lib/cli"
	"github.com/littleci/littleci/lib/store"
)

type statusParams struct {
	ConfigFlags
	cli.JSONOutput
}

func statusCommand(streams cli.IO) *cli.Command {
	var params statusParams
	return &cli.Command{
		Name:    "status",
		Summary: "Show the running server's workers and queue",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("status", &params)
		},
		Run: func(ctx context.Context, args []string) error {
			if err := cli.RequireArgs(args); err != nil {
				return err
			}
			cfg, err := params.load()
			if err != nil {
				return err
			}
			status, err := admin.NewClient(cfg.AdminSocket).Status(ctx)
			if err != nil {
				return fmt.Errorf("is the server running? %w", err)
			}
			if done, err := params.EmitJSON(streams.Stdout, status); done {
				return err
			}

			fmt.Fprintf(streams.Stdout, "Workers: %d busy of %d\n", len(status.Running), status.Workers)
			fmt.Fprintf(streams.Stdout, "Jobs:    %d queued, %d running, %d completed, %d failed, %d cancelled\n\n",
				status.Counts[store.StatusQueued],
				status.Counts[store.StatusRunning],
				status.Counts[store.StatusCompleted],
				status.Counts[store.StatusFailed],
				status.Counts[store.StatusCancelled],
			)
			if len(status.Running) == 0 {
				_, err := fmt.Fprintln(streams.Stdout, "No jobs running.")
				return err
			}
			table := cli.NewTable("JOB", "REPOSITORY", "STATUS", "ELAPSED")
			for _, running := range status.Running {
				state := string(store.StatusRunning)
				if running.Cancelling {
					state = "cancelling"
				}
				table.Row(running.ID, running.Repository, state, cli.Elapsed(running.Elapsed))
			}
			return table.Render(streams.Stdout)
		},
	}
}
