// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

const repositoryColumns = `id, slug, name, run, working_dir, secret, variables,
	triggers, webhooks, deleted, created_at, updated_at`

// CreateRepository validates spec, derives the slug from the name,
// generates a secret and inserts the repository. Returns ErrConflict if
// the slug is already used, including by a soft-deleted repository.
func (s *Store) CreateRepository(ctx context.Context, spec RepositorySpec) (Repository, error) {
	spec, err := normalizeSpec(spec)
	if err != nil {
		return Repository{}, err
	}
	slug := Slugify(spec.Name)
	if slug == "" {
		return Repository{}, fmt.Errorf("%w: name %q has no letters or digits", ErrInvalid, spec.Name)
	}

	now := s.clock.Now()
	repository := Repository{
		ID:         newID(),
		Slug:       slug,
		Name:       spec.Name,
		Run:        spec.Run,
		WorkingDir: spec.WorkingDir,
		Secret:     newSecret(),
		Variables:  spec.Variables,
		Triggers:   spec.Triggers,
		Webhooks:   spec.Webhooks,
		CreatedAt:  fromNanos(toNanos(now)),
		UpdatedAt:  fromNanos(toNanos(now)),
	}

	variables, triggers, webhooks, err := encodeSpecColumns(spec)
	if err != nil {
		return Repository{}, err
	}

	err = s.write(ctx, func(conn *sqlite.Conn) error {
		if _, err := selectRepository(conn, "slug = ?", slug); err == nil {
			return fmt.Errorf("%w: repository slug %q", ErrConflict, slug)
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		return sqlitex.Execute(conn, `
			INSERT INTO repositories (`+repositoryColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
			&sqlitex.ExecOptions{Args: []any{
				repository.ID, repository.Slug, repository.Name, repository.Run,
				repository.WorkingDir, repository.Secret, variables, triggers, webhooks,
				toNanos(now), toNanos(now),
			}})
	})
	if err != nil {
		return Repository{}, fmt.Errorf("store: creating repository: %w", err)
	}

	s.logger.Info("repository created", "repository", repository.Slug, "id", repository.ID)
	return repository, nil
}

// UpdateRepository replaces the editable fields of a live repository.
// The slug never changes, even when the name does.
func (s *Store) UpdateRepository(ctx context.Context, slug string, spec RepositorySpec) (Repository, error) {
	spec, err := normalizeSpec(spec)
	if err != nil {
		return Repository{}, err
	}
	variables, triggers, webhooks, err := encodeSpecColumns(spec)
	if err != nil {
		return Repository{}, err
	}

	var updated Repository
	err = s.write(ctx, func(conn *sqlite.Conn) error {
		existing, err := selectRepository(conn, "slug = ? AND deleted = 0", slug)
		if err != nil {
			return err
		}
		now := maxNanos(toNanos(s.clock.Now()), toNanos(existing.UpdatedAt))
		err = sqlitex.Execute(conn, `
			UPDATE repositories
			SET name = ?, run = ?, working_dir = ?, variables = ?, triggers = ?,
				webhooks = ?, updated_at = ?
			WHERE id = ?`,
			&sqlitex.ExecOptions{Args: []any{
				spec.Name, spec.Run, spec.WorkingDir, variables, triggers, webhooks,
				now, existing.ID,
			}})
		if err != nil {
			return err
		}
		updated, err = selectRepository(conn, "id = ?", existing.ID)
		return err
	})
	if err != nil {
		return Repository{}, fmt.Errorf("store: updating repository %q: %w", slug, err)
	}
	return updated, nil
}

// RegenerateSecret replaces the trigger secret of a live repository.
func (s *Store) RegenerateSecret(ctx context.Context, slug string) (Repository, error) {
	var updated Repository
	err := s.write(ctx, func(conn *sqlite.Conn) error {
		existing, err := selectRepository(conn, "slug = ? AND deleted = 0", slug)
		if err != nil {
			return err
		}
		now := maxNanos(toNanos(s.clock.Now()), toNanos(existing.UpdatedAt))
		err = sqlitex.Execute(conn,
			"UPDATE repositories SET secret = ?, updated_at = ? WHERE id = ?",
			&sqlitex.ExecOptions{Args: []any{newSecret(), now, existing.ID}})
		if err != nil {
			return err
		}
		updated, err = selectRepository(conn, "id = ?", existing.ID)
		return err
	})
	if err != nil {
		return Repository{}, fmt.Errorf("store: regenerating secret of %q: %w", slug, err)
	}
	return updated, nil
}

// RepositoryBySlug returns a live repository. Soft-deleted repositories
// are reported as ErrNotFound.
func (s *Store) RepositoryBySlug(ctx context.Context, slug string) (Repository, error) {
	var repository Repository
	err := s.read(ctx, func(conn *sqlite.Conn) error {
		var err error
		repository, err = selectRepository(conn, "slug = ? AND deleted = 0", slug)
		return err
	})
	return repository, err
}

// Repository returns a repository by id, including soft-deleted ones.
// Workers use it to run jobs queued before a deletion.
func (s *Store) Repository(ctx context.Context, id string) (Repository, error) {
	var repository Repository
	err := s.read(ctx, func(conn *sqlite.Conn) error {
		var err error
		repository, err = selectRepository(conn, "id = ?", id)
		return err
	})
	return repository, err
}

// ListRepositories returns live repositories ordered by name.
func (s *Store) ListRepositories(ctx context.Context) ([]Repository, error) {
	repositories := []Repository{}
	err := s.read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			"SELECT "+repositoryColumns+" FROM repositories WHERE deleted = 0 ORDER BY name, slug",
			&sqlitex.ExecOptions{ResultFunc: func(stmt *sqlite.Stmt) error {
				repository, err := scanRepository(stmt)
				if err != nil {
					return err
				}
				repositories = append(repositories, repository)
				return nil
			}})
	})
	if err != nil {
		return nil, fmt.Errorf("store: listing repositories: %w", err)
	}
	return repositories, nil
}

// MarkDeleted soft-deletes a repository. Its queued jobs are cancelled
// in the same transaction so they are never started; a running job is
// left to finish. Historical jobs stay readable by id.
func (s *Store) MarkDeleted(ctx context.Context, slug string) ([]Job, error) {
	var cancelled []Job
	err := s.write(ctx, func(conn *sqlite.Conn) error {
		existing, err := selectRepository(conn, "slug = ? AND deleted = 0", slug)
		if err != nil {
			return err
		}

		var queued []string
		err = sqlitex.Execute(conn,
			"SELECT id FROM queue WHERE repository_id = ? AND status = 'queued' ORDER BY created_at, id",
			&sqlitex.ExecOptions{
				Args: []any{existing.ID},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					queued = append(queued, stmt.ColumnText(0))
					return nil
				},
			})
		if err != nil {
			return err
		}
		now := s.clock.Now()
		for _, id := range queued {
			job, err := s.transition(conn, id, []Status{StatusQueued}, StatusCancelled, nil, now)
			if err != nil {
				return err
			}
			cancelled = append(cancelled, job)
		}

		return sqlitex.Execute(conn,
			"UPDATE repositories SET deleted = 1, updated_at = ? WHERE id = ?",
			&sqlitex.ExecOptions{Args: []any{
				maxNanos(toNanos(now), toNanos(existing.UpdatedAt)), existing.ID,
			}})
	})
	if err != nil {
		return nil, fmt.Errorf("store: deleting repository %q: %w", slug, err)
	}
	s.logger.Info("repository deleted", "repository", slug, "cancelled_jobs", len(cancelled))
	return cancelled, nil
}

// Purge removes a repository (live or soft-deleted) and, by cascade,
// all of its jobs and their transition logs. It returns the ids of the
// removed jobs so the caller can delete their output artifacts.
// Purging a repository with a running job is refused.
func (s *Store) Purge(ctx context.Context, slug string) ([]string, error) {
	var jobIDs []string
	err := s.write(ctx, func(conn *sqlite.Conn) error {
		existing, err := selectRepository(conn, "slug = ?", slug)
		if err != nil {
			return err
		}

		running := false
		err = sqlitex.Execute(conn,
			"SELECT id, status FROM queue WHERE repository_id = ?",
			&sqlitex.ExecOptions{
				Args: []any{existing.ID},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					jobIDs = append(jobIDs, stmt.ColumnText(0))
					if Status(stmt.ColumnText(1)) == StatusRunning {
						running = true
					}
					return nil
				},
			})
		if err != nil {
			return err
		}
		if running {
			return fmt.Errorf("%w: repository has a running job", ErrConflict)
		}

		return sqlitex.Execute(conn, "DELETE FROM repositories WHERE id = ?",
			&sqlitex.ExecOptions{Args: []any{existing.ID}})
	})
	if err != nil {
		return nil, fmt.Errorf("store: purging repository %q: %w", slug, err)
	}
	s.logger.Warn("repository purged", "repository", slug, "jobs", len(jobIDs))
	return jobIDs, nil
}

func normalizeSpec(spec RepositorySpec) (RepositorySpec, error) {
	spec.Name = strings.TrimSpace(spec.Name)
	if spec.Name == "" {
		return spec, fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if strings.TrimSpace(spec.Run) == "" {
		return spec, fmt.Errorf("%w: run command is required", ErrInvalid)
	}
	if spec.Variables == nil {
		spec.Variables = map[string]string{}
	}
	for name := range spec.Variables {
		if name == "" || strings.ContainsAny(name, "=\x00") {
			return spec, fmt.Errorf("%w: variable name %q", ErrInvalid, name)
		}
	}
	if spec.Triggers == nil {
		spec.Triggers = []TriggerRule{}
	}
	if spec.Webhooks == nil {
		spec.Webhooks = []string{}
	}
	return spec, nil
}

func encodeSpecColumns(spec RepositorySpec) (variables, triggers, webhooks string, err error) {
	if variables, err = encodeJSON(spec.Variables); err != nil {
		return
	}
	if triggers, err = encodeJSON(spec.Triggers); err != nil {
		return
	}
	webhooks, err = encodeJSON(spec.Webhooks)
	return
}

// selectRepository returns the single repository matching where, or
// ErrNotFound.
func selectRepository(conn *sqlite.Conn, where string, args ...any) (Repository, error) {
	var repository Repository
	found := false
	err := sqlitex.Execute(conn,
		"SELECT "+repositoryColumns+" FROM repositories WHERE "+where+" LIMIT 1",
		&sqlitex.ExecOptions{
			Args: args,
			ResultFunc: func(stmt *sqlite.Stmt) error {
				var err error
				repository, err = scanRepository(stmt)
				found = true
				return err
			},
		})
	if err != nil {
		return Repository{}, err
	}
	if !found {
		return Repository{}, ErrNotFound
	}
	return repository, nil
}

func scanRepository(stmt *sqlite.Stmt) (Repository, error) {
	repository := Repository{
		ID:         stmt.ColumnText(0),
		Slug:       stmt.ColumnText(1),
		Name:       stmt.ColumnText(2),
		Run:        stmt.ColumnText(3),
		WorkingDir: stmt.ColumnText(4),
		Secret:     stmt.ColumnText(5),
		Deleted:    stmt.ColumnInt(9) != 0,
		CreatedAt:  fromNanos(stmt.ColumnInt64(10)),
		UpdatedAt:  fromNanos(stmt.ColumnInt64(11)),
	}
	if err := decodeJSON(stmt.ColumnText(6), &repository.Variables); err != nil {
		return Repository{}, err
	}
	if err := decodeJSON(stmt.ColumnText(7), &repository.Triggers); err != nil {
		return Repository{}, err
	}
	if err := decodeJSON(stmt.ColumnText(8), &repository.Webhooks); err != nil {
		return Repository{}, err
	}
	return repository, nil
}

func maxNanos(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
