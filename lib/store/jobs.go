// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

const jobColumns = "id, repository_id, status, exit_code, data, created_at, updated_at"

// DefaultSummaryLimit is the number of jobs ListAllJobs returns when
// asked for zero or fewer.
const DefaultSummaryLimit = 30

// Enqueue creates a queued job for a live repository and appends its
// first log entry. data becomes extra environment for the build.
func (s *Store) Enqueue(ctx context.Context, repositoryID string, data map[string]string) (Job, error) {
	if data == nil {
		data = map[string]string{}
	}
	encoded, err := encodeJSON(data)
	if err != nil {
		return Job{}, err
	}

	now := s.clock.Now()
	job := Job{
		ID:           newID(),
		RepositoryID: repositoryID,
		Status:       StatusQueued,
		Data:         data,
		CreatedAt:    fromNanos(toNanos(now)),
		UpdatedAt:    fromNanos(toNanos(now)),
	}

	err = s.write(ctx, func(conn *sqlite.Conn) error {
		if _, err := selectRepository(conn, "id = ? AND deleted = 0", repositoryID); err != nil {
			return err
		}
		err := sqlitex.Execute(conn, `
			INSERT INTO queue (`+jobColumns+`)
			VALUES (?, ?, 'queued', NULL, ?, ?, ?)`,
			&sqlitex.ExecOptions{Args: []any{
				job.ID, repositoryID, encoded, toNanos(now), toNanos(now),
			}})
		if err != nil {
			return err
		}
		return appendLog(conn, job.ID, StatusQueued, nil, toNanos(now))
	})
	if err != nil {
		return Job{}, fmt.Errorf("store: enqueueing job: %w", err)
	}

	s.logger.Info("job queued", "job", job.ID, "repository_id", repositoryID)
	return job, nil
}

// Job returns a job by id.
func (s *Store) Job(ctx context.Context, id string) (Job, error) {
	var job Job
	err := s.read(ctx, func(conn *sqlite.Conn) error {
		var err error
		job, err = selectJob(conn, id)
		return err
	})
	return job, err
}

// ListJobs returns every job of a repository, newest first.
func (s *Store) ListJobs(ctx context.Context, repositoryID string) ([]Job, error) {
	jobs := []Job{}
	err := s.read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			"SELECT "+jobColumns+" FROM queue WHERE repository_id = ? ORDER BY created_at DESC, id DESC",
			&sqlitex.ExecOptions{
				Args: []any{repositoryID},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					job, err := scanJob(stmt)
					if err != nil {
						return err
					}
					jobs = append(jobs, job)
					return nil
				},
			})
	})
	if err != nil {
		return nil, fmt.Errorf("store: listing jobs: %w", err)
	}
	return jobs, nil
}

// ListAllJobs returns the latest limit jobs across all repositories,
// newest first, joined with their repository's slug and name. Jobs of
// soft-deleted repositories are included; they are history.
func (s *Store) ListAllJobs(ctx context.Context, limit int) ([]JobSummary, error) {
	if limit <= 0 {
		limit = DefaultSummaryLimit
	}
	summaries := []JobSummary{}
	err := s.read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			SELECT q.id, q.status, q.exit_code, r.slug, r.name, q.created_at, q.updated_at
			FROM queue AS q
			JOIN repositories AS r ON r.id = q.repository_id
			ORDER BY q.created_at DESC, q.id DESC
			LIMIT ?`,
			&sqlitex.ExecOptions{
				Args: []any{limit},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					summaries = append(summaries, JobSummary{
						ID:             stmt.ColumnText(0),
						Status:         Status(stmt.ColumnText(1)),
						ExitCode:       columnNullableInt(stmt, 2),
						RepositorySlug: stmt.ColumnText(3),
						RepositoryName: stmt.ColumnText(4),
						CreatedAt:      fromNanos(stmt.ColumnInt64(5)),
						UpdatedAt:      fromNanos(stmt.ColumnInt64(6)),
					})
					return nil
				},
			})
	})
	if err != nil {
		return nil, fmt.Errorf("store: listing all jobs: %w", err)
	}
	return summaries, nil
}

// JobLog returns the transition history of a job, oldest first.
func (s *Store) JobLog(ctx context.Context, id string) ([]LogEntry, error) {
	entries := []LogEntry{}
	err := s.read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			"SELECT id, queue_id, status, exit_code, created_at FROM queue_logs WHERE queue_id = ? ORDER BY id",
			&sqlitex.ExecOptions{
				Args: []any{id},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					entries = append(entries, LogEntry{
						ID:        stmt.ColumnInt64(0),
						JobID:     stmt.ColumnText(1),
						Status:    Status(stmt.ColumnText(2)),
						ExitCode:  columnNullableInt(stmt, 3),
						CreatedAt: fromNanos(stmt.ColumnInt64(4)),
					})
					return nil
				},
			})
	})
	if err != nil {
		return nil, fmt.Errorf("store: reading job log: %w", err)
	}
	return entries, nil
}

// CountByStatus returns the number of jobs in each status.
func (s *Store) CountByStatus(ctx context.Context) (map[Status]int, error) {
	counts := map[Status]int{}
	err := s.read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT status, count(*) FROM queue GROUP BY status",
			&sqlitex.ExecOptions{ResultFunc: func(stmt *sqlite.Stmt) error {
				counts[Status(stmt.ColumnText(0))] = stmt.ColumnInt(1)
				return nil
			}})
	})
	if err != nil {
		return nil, fmt.Errorf("store: counting jobs: %w", err)
	}
	return counts, nil
}

func selectJob(conn *sqlite.Conn, id string) (Job, error) {
	var job Job
	found := false
	err := sqlitex.Execute(conn, "SELECT "+jobColumns+" FROM queue WHERE id = ?",
		&sqlitex.ExecOptions{
			Args: []any{id},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				var err error
				job, err = scanJob(stmt)
				found = true
				return err
			},
		})
	if err != nil {
		return Job{}, err
	}
	if !found {
		return Job{}, ErrNotFound
	}
	return job, nil
}

func scanJob(stmt *sqlite.Stmt) (Job, error) {
	job := Job{
		ID:           stmt.ColumnText(0),
		RepositoryID: stmt.ColumnText(1),
		Status:       Status(stmt.ColumnText(2)),
		ExitCode:     columnNullableInt(stmt, 3),
		CreatedAt:    fromNanos(stmt.ColumnInt64(5)),
		UpdatedAt:    fromNanos(stmt.ColumnInt64(6)),
	}
	if err := decodeJSON(stmt.ColumnText(4), &job.Data); err != nil {
		return Job{}, err
	}
	if job.Data == nil {
		job.Data = map[string]string{}
	}
	return job, nil
}

func appendLog(conn *sqlite.Conn, jobID string, status Status, exitCode *int, at int64) error {
	return sqlitex.Execute(conn,
		"INSERT INTO queue_logs (queue_id, status, exit_code, created_at) VALUES (?, ?, ?, ?)",
		&sqlitex.ExecOptions{Args: []any{jobID, string(status), nullableInt(exitCode), at}})
}
