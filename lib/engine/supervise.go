// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/littleci/littleci/lib/clock"
)

// processSpec describes one build process.
type processSpec struct {
	shell       string
	command     string
	workingDir  string
	environment []string
	output      *os.File

	// grace is how long the process group has between SIGTERM and
	// SIGKILL once ctx is cancelled.
	grace time.Duration
	clock clock.Clock
}

// processResult is the outcome of supervise. When spawnErr is set the
// process never started and exitCode is meaningless.
type processResult struct {
	exitCode int
	spawnErr error
}

// supervise runs spec to completion and owns the child for its whole
// life. The command runs as "<shell> -c <command>" in a new process
// group with stdout and stderr both appended to spec.output, so the
// two streams interleave in the order the process wrote them.
//
// Cancelling ctx sends SIGTERM to the process group and, if it is
// still alive after spec.grace, SIGKILL. If ctx is already cancelled
// the process is never started.
func supervise(ctx context.Context, spec processSpec) processResult {
	cmd := exec.CommandContext(ctx, spec.shell, "-c", spec.command)
	cmd.Dir = spec.workingDir
	cmd.Env = spec.environment
	cmd.Stdin = nil
	cmd.Stdout = spec.output
	cmd.Stderr = spec.output
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var escalation *clock.Timer
	cmd.Cancel = func() error {
		processGroupID := -cmd.Process.Pid
		if err := unix.Kill(processGroupID, unix.SIGTERM); err != nil {
			return unix.Kill(processGroupID, unix.SIGKILL)
		}
		escalation = spec.clock.AfterFunc(spec.grace, func() {
			// ESRCH once the group is gone is expected.
			_ = unix.Kill(processGroupID, unix.SIGKILL)
		})
		return nil
	}

	// os.StartProcess skips its own working directory check when
	// SysProcAttr is set, leaving only an opaque fork/exec error.
	if info, err := os.Stat(spec.workingDir); err != nil {
		return processResult{spawnErr: &os.PathError{Op: "chdir", Path: spec.workingDir, Err: errors.Unwrap(err)}}
	} else if !info.IsDir() {
		return processResult{spawnErr: &os.PathError{Op: "chdir", Path: spec.workingDir, Err: unix.ENOTDIR}}
	}

	if err := cmd.Start(); err != nil {
		return processResult{spawnErr: err}
	}

	waitErr := cmd.Wait()
	if escalation != nil {
		escalation.Stop()
	}

	if cmd.ProcessState == nil {
		return processResult{spawnErr: fmt.Errorf("waiting for process: %w", waitErr)}
	}
	return processResult{exitCode: exitCode(cmd.ProcessState)}
}

// exitCode follows the shell convention: the exit status for a normal
// exit, 128+N for a process killed by signal N.
func exitCode(state *os.ProcessState) int {
	if status, ok := state.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return 128 + int(status.Signal())
	}
	return state.ExitCode()
}

// describeSpawnError turns a start failure into the text written to
// the job's output in place of process output.
func describeSpawnError(spec processSpec, err error) string {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) && pathErr.Op == "chdir" {
		return fmt.Sprintf("littleci: cannot start build: working directory %s: %v\n", spec.workingDir, pathErr.Err)
	}
	return fmt.Sprintf("littleci: cannot start build: %v\n", err)
}
