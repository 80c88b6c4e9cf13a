// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/littleci/littleci/lib/auth"
	"github.com/littleci/littleci/lib/cli"
)

func userCommand(streams cli.IO) *cli.Command {
	return &cli.Command{
		Name:    "user",
		Summary: "Manage API users",
		Description: `Manage the users who can log in to the management API when
authentication is "simple".`,
		Subcommands: []*cli.Command{
			userAddCommand(streams),
			userListCommand(streams),
			userDeleteCommand(streams),
			userPasswdCommand(streams),
		},
	}
}

func userAddCommand(streams cli.IO) *cli.Command {
	var params ConfigFlags
	return &cli.Command{
		Name:    "add",
		Summary: "Create a user",
		Description: `Create a user. The password is prompted for on a terminal, or read
as one line from standard input.`,
		Usage: "littleci user add <username> [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("add", &params)
		},
		Run: func(ctx context.Context, args []string) error {
			if err := cli.RequireArgs(args, "username"); err != nil {
				return err
			}
			password, err := cli.ReadPassword(streams, "Password", true)
			if err != nil {
				return err
			}
			hash, err := auth.HashPassword(password, auth.DefaultPasswordParams)
			if err != nil {
				return err
			}
			return withInstallation(streams, &params, "user/add", func(install *installation) error {
				user, err := install.store.CreateUser(ctx, args[0], hash)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(streams.Stdout, "Created user %s.\n", user.Username)
				return err
			})
		},
	}
}

type userListParams struct {
	ConfigFlags
	cli.JSONOutput
}

func userListCommand(streams cli.IO) *cli.Command {
	var params userListParams
	return &cli.Command{
		Name:    "list",
		Summary: "List users",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("list", &params)
		},
		Run: func(ctx context.Context, args []string) error {
			if err := cli.RequireArgs(args); err != nil {
				return err
			}
			return withInstallation(streams, &params.ConfigFlags, "user/list", func(install *installation) error {
				users, err := install.store.ListUsers(ctx)
				if err != nil {
					return err
				}
				if done, err := params.EmitJSON(streams.Stdout, users); done {
					return err
				}
				if len(users) == 0 {
					_, err := fmt.Fprintln(streams.Stdout, "No users.")
					return err
				}
				table := cli.NewTable("USERNAME", "CREATED", "PASSWORD CHANGED")
				for _, user := range users {
					table.Row(user.Username, cli.Ago(user.CreatedAt), cli.Ago(user.UpdatedAt))
				}
				return table.Render(streams.Stdout)
			})
		},
	}
}

func userDeleteCommand(streams cli.IO) *cli.Command {
	var params ConfigFlags
	return &cli.Command{
		Name:    "delete",
		Summary: "Delete a user",
		Description: `Delete a user. Sessions the user already holds stay valid until
they expire or the server restarts with a new signing key.`,
		Usage: "littleci user delete <username> [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("delete", &params)
		},
		Run: func(ctx context.Context, args []string) error {
			if err := cli.RequireArgs(args, "username"); err != nil {
				return err
			}
			return withInstallation(streams, &params, "user/delete", func(install *installation) error {
				if err := install.store.DeleteUser(ctx, args[0]); err != nil {
					return err
				}
				_, err := fmt.Fprintf(streams.Stdout, "Deleted user %s.\n", args[0])
				return err
			})
		},
	}
}

func userPasswdCommand(streams cli.IO) *cli.Command {
	var params ConfigFlags
	return &cli.Command{
		Name:    "passwd",
		Summary: "Change a user's password",
		Usage:   "littleci user passwd <username> [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("passwd", &params)
		},
		Run: func(ctx context.Context, args []string) error {
			if err := cli.RequireArgs(args, "username"); err != nil {
				return err
			}
			return withInstallation(streams, &params, "user/passwd", func(install *installation) error {
				// Fail on an unknown user before prompting.
				if _, err := install.store.UserByName(ctx, args[0]); err != nil {
					return err
				}
				password, err := cli.ReadPassword(streams, "New password", true)
				if err != nil {
					return err
				}
				hash, err := auth.HashPassword(password, auth.DefaultPasswordParams)
				if err != nil {
					return err
				}
				if err := install.store.SetPassword(ctx, args[0], hash); err != nil {
					return err
				}
				_, err = fmt.Fprintf(streams.Stdout, "Changed the password of %s.\n", args[0])
				return err
			})
		},
	}
}
