// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/spf13/pflag"

	"github.com/littleci/littleci/lib/admin"
	"github.com/littleci/littleci/lib/cli"
	"github.com/littleci/littleci/lib/outputlog"
	"github.com/littleci/littleci/lib/store"
)

func jobCommand(streams cli.IO) *cli.Command {
	return &cli.Command{
		Name:    "job",
		Summary: "Run and inspect jobs",
		Subcommands: []*cli.Command{
			jobListCommand(streams),
			jobShowCommand(streams),
			jobOutputCommand(streams),
			jobCancelCommand(streams),
			jobRunCommand(streams),
			jobArchiveCommand(streams),
		},
	}
}

type jobListParams struct {
	ConfigFlags
	cli.JSONOutput
}

func jobListCommand(streams cli.IO) *cli.Command {
	var params jobListParams
	return &cli.Command{
		Name:    "list",
		Summary: "List recent jobs of every repository, or all jobs of one",
		Usage:   "littleci job list [slug] [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("list", &params)
		},
		Run: func(ctx context.Context, args []string) error {
			if len(args) > 1 {
				return cli.RequireArgs(args, "slug")
			}
			slug := ""
			if len(args) == 1 {
				slug = args[0]
			}
			cfg, err := params.load()
			if err != nil {
				return err
			}
			jobs, err := admin.NewClient(cfg.AdminSocket).ListJobs(ctx, slug)
			if err != nil {
				return err
			}
			if done, err := params.EmitJSON(streams.Stdout, jobs); done {
				return err
			}
			if len(jobs) == 0 {
				_, err := fmt.Fprintln(streams.Stdout, "No jobs.")
				return err
			}
			table := cli.NewTable("JOB", "REPOSITORY", "STATUS", "EXIT", "CREATED", "UPDATED")
			for _, job := range jobs {
				table.Row(job.ID, job.RepositorySlug, string(job.Status), formatExitCode(job.ExitCode), cli.Ago(job.CreatedAt), cli.Ago(job.UpdatedAt))
			}
			return table.Render(streams.Stdout)
		},
	}
}

type jobShowParams struct {
	ConfigFlags
	cli.JSONOutput
}

func jobShowCommand(streams cli.IO) *cli.Command {
	var params jobShowParams
	return &cli.Command{
		Name:    "show",
		Summary: "Show a job with its status history",
		Usage:   "littleci job show <slug> <id> [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("show", &params)
		},
		Run: func(ctx context.Context, args []string) error {
			if err := cli.RequireArgs(args, "slug", "id"); err != nil {
				return err
			}
			return withInstallation(streams, &params.ConfigFlags, "job/show", func(install *installation) error {
				details, err := install.engine.GetJobDetails(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				if done, err := params.EmitJSON(streams.Stdout, details); done {
					return err
				}

				w := streams.Stdout
				fmt.Fprintf(w, "Job:        %s\n", details.Job.ID)
				fmt.Fprintf(w, "Repository: %s\n", details.Repository)
				fmt.Fprintf(w, "Status:     %s\n", details.Job.Status)
				fmt.Fprintf(w, "Exit code:  %s\n", formatExitCode(details.Job.ExitCode))
				fmt.Fprintf(w, "Output:     %s (blake3 %s)\n", cli.Bytes(details.OutputSize), details.OutputDigest)
				for _, key := range slices.Sorted(maps.Keys(details.Job.Data)) {
					fmt.Fprintf(w, "Data:       %s=%s\n", key, details.Job.Data[key])
				}
				fmt.Fprintln(w)

				table := cli.NewTable("STATUS", "AT")
				for _, entry := range details.Log {
					table.Row(string(entry.Status), entry.CreatedAt.Local().Format("2006-01-02 15:04:05.000"))
				}
				return table.Render(w)
			})
		},
	}
}

type jobOutputParams struct {
	ConfigFlags
	Follow bool `flag:"follow,f" desc:"keep printing output until the job finishes"`
}

func jobOutputCommand(streams cli.IO) *cli.Command {
	var params jobOutputParams
	return &cli.Command{
		Name:    "output",
		Summary: "Print a job's output",
		Usage:   "littleci job output <slug> <id> [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("output", &params)
		},
		Run: func(ctx context.Context, args []string) error {
			if err := cli.RequireArgs(args, "slug", "id"); err != nil {
				return err
			}
			return withInstallation(streams, &params.ConfigFlags, "job/output", func(install *installation) error {
				return copyOutput(ctx, streams.Stdout, install, args[0], args[1], params.Follow)
			})
		},
	}
}

func copyOutput(ctx context.Context, w io.Writer, install *installation, slug, jobID string, follow bool) error {
	var reader io.ReadCloser
	var err error
	if follow {
		reader, err = install.engine.FollowJobOutput(ctx, slug, jobID)
	} else {
		reader, err = install.engine.GetJobOutput(ctx, slug, jobID)
	}
	if err != nil {
		return err
	}
	defer reader.Close()
	_, err = io.Copy(w, reader)
	return err
}

func jobCancelCommand(streams cli.IO) *cli.Command {
	var params ConfigFlags
	return &cli.Command{
		Name:    "cancel",
		Summary: "Cancel a queued or running job",
		Usage:   "littleci job cancel <id> [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("cancel", &params)
		},
		Run: func(ctx context.Context, args []string) error {
			if err := cli.RequireArgs(args, "id"); err != nil {
				return err
			}
			cfg, err := params.load()
			if err != nil {
				return err
			}
			if err := admin.NewClient(cfg.AdminSocket).CancelJob(ctx, args[0]); err != nil {
				return err
			}
			_, err = fmt.Fprintf(streams.Stdout, "Cancellation of %s requested.\n", args[0])
			return err
		},
	}
}

type jobRunParams struct {
	ConfigFlags
	Env  []string `flag:"env,e" desc:"job data KEY=VALUE (repeatable)"`
	Wait bool     `flag:"wait,w" desc:"stream the output and exit with the job's exit code"`
	cli.JSONOutput
}

func jobRunCommand(streams cli.IO) *cli.Command {
	var params jobRunParams
	return &cli.Command{
		Name:    "run",
		Summary: "Queue a job on the running server",
		Usage:   "littleci job run <slug> [flags]",
		Examples: []cli.Example{{
			Description: "Build a release and wait for it",
			Command:     "littleci job run website -e VERSION=1.4.0 --wait",
		}},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("run", &params)
		},
		Run: func(ctx context.Context, args []string) error {
			if err := cli.RequireArgs(args, "slug"); err != nil {
				return err
			}
			data, err := parseAssignments(params.Env)
			if err != nil {
				return err
			}
			cfg, err := params.load()
			if err != nil {
				return err
			}
			job, err := admin.NewClient(cfg.AdminSocket).Enqueue(ctx, args[0], data)
			if err != nil {
				return err
			}
			if !params.Wait {
				if done, err := params.EmitJSON(streams.Stdout, job); done {
					return err
				}
				_, err := fmt.Fprintf(streams.Stdout, "Queued %s.\n", job.ID)
				return err
			}

			return withInstallation(streams, &params.ConfigFlags, "job/run", func(install *installation) error {
				if err := copyOutput(ctx, streams.Stdout, install, args[0], job.ID, true); err != nil {
					return err
				}
				finished, err := install.engine.GetJob(ctx, args[0], job.ID)
				if err != nil {
					return err
				}
				return jobExit(finished)
			})
		},
	}
}

// jobExit turns a finished job into the command's exit status: nil for
// success, the job's own code when it exited, 1 otherwise.
func jobExit(job store.Job) error {
	if job.Status == store.StatusCompleted {
		return nil
	}
	if job.ExitCode != nil && *job.ExitCode > 0 && *job.ExitCode < 256 {
		return &cli.ExitError{Code: *job.ExitCode}
	}
	return &cli.ExitError{Code: 1}
}

type jobArchiveParams struct {
	ConfigFlags
	Format string `flag:"format" desc:"compression: zstd or lz4" default:"zstd"`
	Output string `flag:"output,o" desc:"archive path, or - for stdout (default <id>.log.zst in the current directory)"`
}

func jobArchiveCommand(streams cli.IO) *cli.Command {
	var params jobArchiveParams
	return &cli.Command{
		Name:    "archive",
		Summary: "Write a compressed copy of a finished job's output",
		Usage:   "littleci job archive <slug> <id> [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("archive", &params)
		},
		Run: func(ctx context.Context, args []string) error {
			if err := cli.RequireArgs(args, "slug", "id"); err != nil {
				return err
			}
			format, err := outputlog.ParseFormat(params.Format)
			if err != nil {
				return err
			}
			return withInstallation(streams, &params.ConfigFlags, "job/archive", func(install *installation) error {
				job, err := install.engine.GetJob(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				if !job.Status.Terminal() {
					return fmt.Errorf("job %s is %s; archive it once it has finished", job.ID, job.Status)
				}
				digest, err := install.output.Digest(job.ID)
				if err != nil {
					return err
				}

				if params.Output == "-" {
					return install.output.Archive(job.ID, streams.Stdout, format)
				}
				path := params.Output
				if path == "" {
					path = job.ID + ".log" + format.Extension()
				}
				size, err := writeArchive(install.output, job.ID, path, format)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(streams.Stdout, "Wrote %s (%s, %s)\nblake3 %s\n", path, cli.Bytes(size), format, digest)
				return err
			})
		},
	}
}

// writeArchive writes the archive to a temporary file next to path
// and renames it into place, so a failure never leaves a truncated
// archive behind.
func writeArchive(output *outputlog.Store, jobID, path string, format outputlog.Format) (int64, error) {
	file, err := os.CreateTemp(filepath.Dir(path), ".archive-*")
	if err != nil {
		return 0, err
	}
	temporary := file.Name()
	defer os.Remove(temporary)

	if err := output.Archive(jobID, file, format); err != nil {
		return 0, errors.Join(err, file.Close())
	}
	info, err := file.Stat()
	if err != nil {
		return 0, errors.Join(err, file.Close())
	}
	if err := file.Close(); err != nil {
		return 0, err
	}
	if err := os.Rename(temporary, path); err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func formatExitCode(code *int) string {
	if code == nil {
		return "-"
	}
	return fmt.Sprint(*code)
}
