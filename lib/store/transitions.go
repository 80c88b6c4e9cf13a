// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// claimQuery selects the oldest queued job whose repository has no
// running job.
const claimQuery = `
	SELECT q.id FROM queue AS q
	WHERE q.status = 'queued'
	  AND NOT EXISTS (
		SELECT 1 FROM queue AS r
		WHERE r.repository_id = q.repository_id AND r.status = 'running'
	  )
	ORDER BY q.created_at, q.id
	LIMIT 1`

// ClaimNext moves the next runnable job to running and returns it. ok
// is false when no job is runnable. Concurrent callers never receive
// the same job, and never two jobs of the same repository while one of
// them is running.
func (s *Store) ClaimNext(ctx context.Context) (job Job, ok bool, err error) {
	err = s.write(ctx, func(conn *sqlite.Conn) error {
		var id string
		err := sqlitex.Execute(conn, claimQuery, &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				id = stmt.ColumnText(0)
				return nil
			},
		})
		if err != nil || id == "" {
			return err
		}
		job, err = s.transition(conn, id, []Status{StatusQueued}, StatusRunning, nil, s.clock.Now())
		ok = err == nil
		return err
	})
	if err != nil {
		return Job{}, false, fmt.Errorf("store: claiming job: %w", err)
	}
	return job, ok, nil
}

// Complete records the exit of a running job's process: completed for
// exit code 0, failed otherwise. Returns ErrNotRunning if the job is
// not running.
func (s *Store) Complete(ctx context.Context, id string, exitCode int) (Job, error) {
	status := StatusFailed
	if exitCode == 0 {
		status = StatusCompleted
	}
	return s.finish(ctx, id, status, intPointer(exitCode))
}

// MarkCancelled records that a running job's process was stopped on
// request.
func (s *Store) MarkCancelled(ctx context.Context, id string) (Job, error) {
	return s.finish(ctx, id, StatusCancelled, nil)
}

func (s *Store) finish(ctx context.Context, id string, status Status, exitCode *int) (Job, error) {
	var job Job
	err := s.write(ctx, func(conn *sqlite.Conn) error {
		var err error
		job, err = s.transition(conn, id, []Status{StatusRunning}, status, exitCode, s.clock.Now())
		return err
	})
	if err != nil {
		return Job{}, fmt.Errorf("store: finishing job %s: %w", id, err)
	}
	return job, nil
}

// Cancel cancels a queued job directly. For a running job it changes
// nothing and reports CancelRunning; the process owner completes the
// cancellation. Cancelling a terminal job is a no-op.
func (s *Store) Cancel(ctx context.Context, id string) (Job, CancelOutcome, error) {
	var job Job
	outcome := CancelNoop
	err := s.write(ctx, func(conn *sqlite.Conn) error {
		current, err := selectJob(conn, id)
		if err != nil {
			return err
		}
		switch current.Status {
		case StatusQueued:
			job, err = s.transition(conn, id, []Status{StatusQueued}, StatusCancelled, nil, s.clock.Now())
			outcome = CancelledQueued
			return err
		case StatusRunning:
			outcome = CancelRunning
		}
		job = current
		return nil
	})
	if err != nil {
		return Job{}, CancelNoop, fmt.Errorf("store: cancelling job %s: %w", id, err)
	}
	return job, outcome, nil
}

// ReconcileOrphans fails every running job with ExitOrphaned. It must
// run before the first ClaimNext of a new server process: any job still
// running at that point lost its process when the previous server
// stopped.
func (s *Store) ReconcileOrphans(ctx context.Context) ([]Job, error) {
	var orphans []Job
	err := s.write(ctx, func(conn *sqlite.Conn) error {
		var ids []string
		err := sqlitex.Execute(conn,
			"SELECT id FROM queue WHERE status = 'running' ORDER BY created_at, id",
			&sqlitex.ExecOptions{ResultFunc: func(stmt *sqlite.Stmt) error {
				ids = append(ids, stmt.ColumnText(0))
				return nil
			}})
		if err != nil {
			return err
		}
		now := s.clock.Now()
		for _, id := range ids {
			job, err := s.transition(conn, id, []Status{StatusRunning}, StatusFailed, intPointer(ExitOrphaned), now)
			if err != nil {
				return err
			}
			orphans = append(orphans, job)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: reconciling orphaned jobs: %w", err)
	}
	for _, job := range orphans {
		s.logger.Warn("orphaned job marked failed", "job", job.ID, "repository_id", job.RepositoryID)
	}
	return orphans, nil
}

// transition moves job id from one of the allowed states to next,
// updating the job row and appending the log row. Must run inside a
// write transaction. The timestamp never goes backwards relative to the
// job's previous update, even if the wall clock does.
func (s *Store) transition(conn *sqlite.Conn, id string, from []Status, next Status, exitCode *int, now time.Time) (Job, error) {
	job, err := selectJob(conn, id)
	if err != nil {
		return Job{}, err
	}
	if !slices.Contains(from, job.Status) {
		if slices.Equal(from, []Status{StatusRunning}) {
			return Job{}, fmt.Errorf("%w: job %s is %s", ErrNotRunning, id, job.Status)
		}
		return Job{}, fmt.Errorf("store: job %s is %s, cannot become %s", id, job.Status, next)
	}
	if (exitCode != nil) != (next == StatusCompleted || next == StatusFailed) {
		return Job{}, errors.New("store: exit code must be set exactly for completed and failed jobs")
	}

	stamp := maxNanos(toNanos(now), toNanos(job.UpdatedAt))
	err = sqlitex.Execute(conn,
		"UPDATE queue SET status = ?, exit_code = ?, updated_at = ? WHERE id = ?",
		&sqlitex.ExecOptions{Args: []any{string(next), nullableInt(exitCode), stamp, id}})
	if err != nil {
		return Job{}, err
	}
	if err := appendLog(conn, id, next, exitCode, stamp); err != nil {
		return Job{}, err
	}

	job.Status = next
	job.ExitCode = exitCode
	job.UpdatedAt = fromNanos(stamp)
	return job, nil
}
