// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/pflag"

	"github.com/littleci/littleci/lib/cli"
	"github.com/littleci/littleci/lib/repodef"
	"github.com/littleci/littleci/lib/store"
	"github.com/littleci/littleci/lib/trigger"
)

func repoCommand(streams cli.IO) *cli.Command {
	return &cli.Command{
		Name:    "repo",
		Summary: "Manage repositories",
		Subcommands: []*cli.Command{
			repoListCommand(streams),
			repoCreateCommand(streams),
			repoShowCommand(streams),
			repoUpdateCommand(streams),
			repoDeleteCommand(streams),
			repoPurgeCommand(streams),
			repoSecretCommand(streams),
			repoApplyCommand(streams),
		},
	}
}

// withInstallation loads configuration, opens the data directory and
// runs fn against it.
func withInstallation(streams cli.IO, flags *ConfigFlags, command string, fn func(*installation) error) error {
	cfg, err := flags.load()
	if err != nil {
		return err
	}
	logger, err := commandLogger(streams, cfg, command, slog.LevelWarn)
	if err != nil {
		return err
	}
	install, err := openInstallation(cfg, logger, installationOptions{})
	if err != nil {
		return err
	}
	defer install.Close()
	return fn(install)
}

type repoListParams struct {
	ConfigFlags
	cli.JSONOutput
}

func repoListCommand(streams cli.IO) *cli.Command {
	var params repoListParams
	return &cli.Command{
		Name:    "list",
		Summary: "List repositories",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("list", &params)
		},
		Run: func(ctx context.Context, args []string) error {
			if err := cli.RequireArgs(args); err != nil {
				return err
			}
			return withInstallation(streams, &params.ConfigFlags, "repo/list", func(install *installation) error {
				repositories, err := install.engine.ListRepositories(ctx)
				if err != nil {
					return err
				}
				for i := range repositories {
					repositories[i].Secret = ""
				}
				if done, err := params.EmitJSON(streams.Stdout, repositories); done {
					return err
				}
				if len(repositories) == 0 {
					_, err := fmt.Fprintln(streams.Stdout, "No repositories.")
					return err
				}
				table := cli.NewTable("SLUG", "NAME", "RUN", "UPDATED")
				for _, repository := range repositories {
					table.Row(repository.Slug, repository.Name, firstLine(repository.Run), cli.Ago(repository.UpdatedAt))
				}
				return table.Render(streams.Stdout)
			})
		},
	}
}

// SpecFlags are the repository fields settable from the command line.
type SpecFlags struct {
	Run        string   `flag:"run" desc:"shell command to run for each job"`
	WorkingDir string   `flag:"working-dir" desc:"directory the command runs in (default: a directory under the data dir)"`
	Env        []string `flag:"env,e" desc:"repository variable KEY=VALUE (repeatable)"`
	Triggers   []string `flag:"trigger" desc:"trigger rule: any, git:any, git:tag or git:head:BRANCH[,BRANCH] (repeatable)"`
	Webhooks   []string `flag:"webhook" desc:"URL notified when a job starts and finishes (repeatable)"`
}

// apply copies the flags that changed onto spec. changed reports
// whether a flag was given; nil means every flag was.
func (f *SpecFlags) apply(spec *store.RepositorySpec, changed func(name string) bool) error {
	if changed == nil {
		changed = func(string) bool { return true }
	}
	if changed("run") {
		spec.Run = f.Run
	}
	if changed("working-dir") {
		spec.WorkingDir = f.WorkingDir
	}
	if changed("env") {
		variables, err := parseAssignments(f.Env)
		if err != nil {
			return err
		}
		spec.Variables = variables
	}
	if changed("trigger") {
		rules, err := parseTriggerRules(f.Triggers)
		if err != nil {
			return err
		}
		spec.Triggers = rules
	}
	if changed("webhook") {
		spec.Webhooks = f.Webhooks
	}
	return nil
}

type repoCreateParams struct {
	ConfigFlags
	SpecFlags
	cli.JSONOutput
}

func repoCreateCommand(streams cli.IO) *cli.Command {
	var params repoCreateParams
	return &cli.Command{
		Name:    "create",
		Summary: "Create a repository",
		Usage:   "littleci repo create <name> --run <command> [flags]",
		Examples: []cli.Example{{
			Description: "Build the website on every push to main",
			Command:     `littleci repo create "Little Website" --run "make deploy" --trigger git:head:main`,
		}},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("create", &params)
		},
		Run: func(ctx context.Context, args []string) error {
			if err := cli.RequireArgs(args, "name"); err != nil {
				return err
			}
			spec := store.RepositorySpec{Name: args[0]}
			if err := params.SpecFlags.apply(&spec, nil); err != nil {
				return err
			}
			return withInstallation(streams, &params.ConfigFlags, "repo/create", func(install *installation) error {
				repository, err := install.engine.CreateRepository(ctx, spec)
				if err != nil {
					return err
				}
				if done, err := params.EmitJSON(streams.Stdout, repository); done {
					return err
				}
				return printRepository(streams.Stdout, repository, install.config.SiteURL)
			})
		},
	}
}

type repoSlugParams struct {
	ConfigFlags
	cli.JSONOutput
}

func repoShowCommand(streams cli.IO) *cli.Command {
	var params repoSlugParams
	return &cli.Command{
		Name:    "show",
		Summary: "Show a repository, its secret and trigger URLs",
		Usage:   "littleci repo show <slug> [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("show", &params)
		},
		Run: func(ctx context.Context, args []string) error {
			if err := cli.RequireArgs(args, "slug"); err != nil {
				return err
			}
			return withInstallation(streams, &params.ConfigFlags, "repo/show", func(install *installation) error {
				repository, err := install.engine.GetRepository(ctx, args[0])
				if err != nil {
					return err
				}
				if done, err := params.EmitJSON(streams.Stdout, repository); done {
					return err
				}
				return printRepository(streams.Stdout, repository, install.config.SiteURL)
			})
		},
	}
}

type repoUpdateParams struct {
	ConfigFlags
	SpecFlags
	Name string `flag:"name" desc:"new display name (the slug does not change)"`
	cli.JSONOutput
}

func repoUpdateCommand(streams cli.IO) *cli.Command {
	var params repoUpdateParams
	var flagSet *pflag.FlagSet
	return &cli.Command{
		Name:    "update",
		Summary: "Change a repository's settings",
		Description: `Change a repository's settings. Only the flags given are changed; a
repeatable flag given at all replaces the whole list.`,
		Usage: "littleci repo update <slug> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet = cli.FlagsFromParams("update", &params)
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			if err := cli.RequireArgs(args, "slug"); err != nil {
				return err
			}
			return withInstallation(streams, &params.ConfigFlags, "repo/update", func(install *installation) error {
				existing, err := install.engine.GetRepository(ctx, args[0])
				if err != nil {
					return err
				}
				spec := existing.Spec()
				if flagSet.Changed("name") {
					spec.Name = params.Name
				}
				if err := params.SpecFlags.apply(&spec, flagSet.Changed); err != nil {
					return err
				}
				repository, err := install.engine.UpdateRepository(ctx, existing.Slug, spec)
				if err != nil {
					return err
				}
				if done, err := params.EmitJSON(streams.Stdout, repository); done {
					return err
				}
				return printRepository(streams.Stdout, repository, install.config.SiteURL)
			})
		},
	}
}

func repoDeleteCommand(streams cli.IO) *cli.Command {
	var params ConfigFlags
	return &cli.Command{
		Name:    "delete",
		Summary: "Delete a repository, keeping its job history",
		Description: `Delete a repository. Its queued jobs are cancelled and it stops
accepting triggers; its jobs and their output are kept until "repo purge".`,
		Usage: "littleci repo delete <slug> [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("delete", &params)
		},
		Run: func(ctx context.Context, args []string) error {
			if err := cli.RequireArgs(args, "slug"); err != nil {
				return err
			}
			return withInstallation(streams, &params, "repo/delete", func(install *installation) error {
				if err := install.engine.DeleteRepository(ctx, args[0]); err != nil {
					return err
				}
				_, err := fmt.Fprintf(streams.Stdout, "Deleted %s.\n", args[0])
				return err
			})
		},
	}
}

type repoPurgeParams struct {
	ConfigFlags
	Force bool `flag:"force" desc:"confirm that jobs and output should be removed"`
}

func repoPurgeCommand(streams cli.IO) *cli.Command {
	var params repoPurgeParams
	return &cli.Command{
		Name:    "purge",
		Summary: "Remove a repository with all of its jobs and output",
		Usage:   "littleci repo purge <slug> --force [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("purge", &params)
		},
		Run: func(ctx context.Context, args []string) error {
			if err := cli.RequireArgs(args, "slug"); err != nil {
				return err
			}
			if !params.Force {
				return fmt.Errorf("purge removes every job and its output; pass --force to confirm")
			}
			return withInstallation(streams, &params.ConfigFlags, "repo/purge", func(install *installation) error {
				if err := install.engine.PurgeRepository(ctx, args[0]); err != nil {
					return err
				}
				_, err := fmt.Fprintf(streams.Stdout, "Purged %s.\n", args[0])
				return err
			})
		},
	}
}

func repoSecretCommand(streams cli.IO) *cli.Command {
	var params ConfigFlags
	return &cli.Command{
		Name:    "secret",
		Summary: "Generate a new secret for a repository",
		Description: `Generate a new secret for a repository. Triggers and webhook
signatures using the old secret stop working immediately.`,
		Usage: "littleci repo secret <slug> [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("secret", &params)
		},
		Run: func(ctx context.Context, args []string) error {
			if err := cli.RequireArgs(args, "slug"); err != nil {
				return err
			}
			return withInstallation(streams, &params, "repo/secret", func(install *installation) error {
				repository, err := install.engine.RegenerateSecret(ctx, args[0])
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(streams.Stdout, repository.Secret)
				return err
			})
		},
	}
}

type repoApplyParams struct {
	ConfigFlags
	cli.JSONOutput
}

func repoApplyCommand(streams cli.IO) *cli.Command {
	var params repoApplyParams
	return &cli.Command{
		Name:    "apply",
		Summary: "Create or update repositories from a definition file",
		Description: `Create or update the repositories declared in a JSONC file. Each
repository is matched by the slug of its name; repositories the file
does not mention are left alone.`,
		Usage: "littleci repo apply <file> [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("apply", &params)
		},
		Run: func(ctx context.Context, args []string) error {
			if err := cli.RequireArgs(args, "file"); err != nil {
				return err
			}
			file, err := repodef.ReadFile(args[0])
			if err != nil {
				return err
			}
			return withInstallation(streams, &params.ConfigFlags, "repo/apply", func(install *installation) error {
				results, applyErr := repodef.Apply(ctx, install.engine, file)
				if done, err := params.EmitJSON(streams.Stdout, results); done {
					if applyErr != nil {
						return applyErr
					}
					return err
				}
				if len(results) > 0 {
					table := cli.NewTable("SLUG", "NAME", "ACTION")
					for _, result := range results {
						table.Row(result.Repository.Slug, result.Repository.Name, string(result.Action))
					}
					if err := table.Render(streams.Stdout); err != nil {
						return err
					}
				}
				return applyErr
			})
		},
	}
}

// printRepository writes a repository's settings with the URLs that
// trigger it.
func printRepository(w io.Writer, repository store.Repository, siteURL string) error {
	base := strings.TrimRight(siteURL, "/")
	fmt.Fprintf(w, "Name:        %s\n", repository.Name)
	fmt.Fprintf(w, "Slug:        %s\n", repository.Slug)
	fmt.Fprintf(w, "Run:         %s\n", repository.Run)
	if repository.WorkingDir != "" {
		fmt.Fprintf(w, "Working dir: %s\n", repository.WorkingDir)
	}
	if repository.Secret != "" {
		fmt.Fprintf(w, "Secret:      %s\n", repository.Secret)
	}
	for _, key := range slices.Sorted(maps.Keys(repository.Variables)) {
		fmt.Fprintf(w, "Variable:    %s=%s\n", key, repository.Variables[key])
	}
	rules := repository.Triggers
	if len(rules) == 0 {
		rules = trigger.DefaultRules
	}
	for _, rule := range rules {
		fmt.Fprintf(w, "Trigger:     %s\n", formatTriggerRule(rule))
	}
	for _, webhook := range repository.Webhooks {
		fmt.Fprintf(w, "Webhook:     %s\n", webhook)
	}
	fmt.Fprintf(w, "\nTrigger URLs:\n")
	fmt.Fprintf(w, "  generic: %s/trigger/%s (secret in X-Secret-Key or ?key=)\n", base, repository.Slug)
	fmt.Fprintf(w, "  github:  %s/github/%s\n", base, repository.Slug)
	_, err := fmt.Fprintf(w, "  gitea:   %s/gitea/%s\n", base, repository.Slug)
	return err
}

// parseAssignments parses KEY=VALUE pairs.
func parseAssignments(pairs []string) (map[string]string, error) {
	values := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("expected KEY=VALUE, got %q", pair)
		}
		values[key] = value
	}
	return values, nil
}

// parseTriggerRules parses the --trigger syntax: any, git:any, git:tag
// and git:head:BRANCH[,BRANCH...].
func parseTriggerRules(specs []string) ([]store.TriggerRule, error) {
	rules := make([]store.TriggerRule, 0, len(specs))
	for _, spec := range specs {
		parts := strings.SplitN(spec, ":", 3)
		switch {
		case len(parts) == 1 && parts[0] == trigger.RuleAny:
			rules = append(rules, store.TriggerRule{Kind: trigger.RuleAny})
		case len(parts) == 2 && parts[0] == trigger.RuleGit && (parts[1] == trigger.GitAny || parts[1] == trigger.GitTag):
			rules = append(rules, store.TriggerRule{Kind: trigger.RuleGit, Git: parts[1]})
		case len(parts) == 3 && parts[0] == trigger.RuleGit && parts[1] == trigger.GitHead && parts[2] != "":
			rules = append(rules, store.TriggerRule{Kind: trigger.RuleGit, Git: trigger.GitHead, Refs: strings.Split(parts[2], ",")})
		default:
			return nil, fmt.Errorf("invalid trigger %q (want any, git:any, git:tag or git:head:BRANCH[,BRANCH])", spec)
		}
	}
	return rules, nil
}

func formatTriggerRule(rule store.TriggerRule) string {
	switch {
	case rule.Kind == trigger.RuleGit && rule.Git == trigger.GitHead:
		return rule.Kind + ":" + rule.Git + ":" + strings.Join(rule.Refs, ",")
	case rule.Kind == trigger.RuleGit:
		return rule.Kind + ":" + rule.Git
	default:
		return rule.Kind
	}
}

func firstLine(s string) string {
	line, _, found := strings.Cut(s, "\n")
	if found {
		return line + " ..."
	}
	return line
}
