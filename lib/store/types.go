// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"errors"
	"time"
)

// Status is the state of a job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Valid reports whether s is one of the five job states.
func (s Status) Valid() bool {
	switch s {
	case StatusQueued, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Reserved exit codes for failed jobs that never produced a real one.
// Real processes report 0-255, or 128+N when killed by signal N.
const (
	// ExitSpawnFailure is recorded when the command could not be
	// started at all (missing working directory, missing shell).
	ExitSpawnFailure = -1

	// ExitOrphaned is recorded for jobs found running at startup,
	// whose supervising process died with them.
	ExitOrphaned = -2
)

var (
	// ErrNotFound is returned when a repository, job or user does not
	// exist (or, for repository lookups by slug, is soft-deleted).
	ErrNotFound = errors.New("store: not found")

	// ErrConflict is returned when a create would duplicate a unique
	// slug or username.
	ErrConflict = errors.New("store: already exists")

	// ErrInvalid is returned for input that cannot be stored (empty
	// name, a name with no letters or digits, empty run command).
	ErrInvalid = errors.New("store: invalid input")

	// ErrNotRunning is returned by transitions that require a running
	// job when the job is in any other state.
	ErrNotRunning = errors.New("store: job is not running")
)

// TriggerRule decides whether a source-control event starts a build.
// Kind "any" matches every event. Kind "git" matches push events:
// Git "any" matches all of them, "head" matches pushes to one of Refs
// (branch names), and "tag" matches tag pushes.
type TriggerRule struct {
	Kind string   `json:"kind"`
	Git  string   `json:"git,omitempty"`
	Refs []string `json:"refs,omitempty"`
}

// Repository is a configured build.
type Repository struct {
	ID         string            `json:"id"`
	Slug       string            `json:"slug"`
	Name       string            `json:"name"`
	Run        string            `json:"run"`
	WorkingDir string            `json:"working_dir,omitempty"`
	Secret     string            `json:"secret"`
	Variables  map[string]string `json:"variables"`
	Triggers   []TriggerRule     `json:"triggers"`
	Webhooks   []string          `json:"webhooks"`
	Deleted    bool              `json:"deleted,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// Spec returns the user-editable fields of r.
func (r Repository) Spec() RepositorySpec {
	return RepositorySpec{
		Name:       r.Name,
		Run:        r.Run,
		WorkingDir: r.WorkingDir,
		Variables:  r.Variables,
		Triggers:   r.Triggers,
		Webhooks:   r.Webhooks,
	}
}

// RepositorySpec is the user-editable part of a repository.
type RepositorySpec struct {
	Name       string            `json:"name"`
	Run        string            `json:"run"`
	WorkingDir string            `json:"working_dir,omitempty"`
	Variables  map[string]string `json:"variables,omitempty"`
	Triggers   []TriggerRule     `json:"triggers,omitempty"`
	Webhooks   []string          `json:"webhooks,omitempty"`
}

// Job is one execution attempt of a repository's command.
type Job struct {
	ID           string            `json:"id"`
	RepositoryID string            `json:"repository_id"`
	Status       Status            `json:"status"`
	ExitCode     *int              `json:"exit_code"`
	Data         map[string]string `json:"data"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// LogEntry is one row of a job's transition history.
type LogEntry struct {
	ID        int64     `json:"id"`
	JobID     string    `json:"queue_id"`
	Status    Status    `json:"status"`
	ExitCode  *int      `json:"exit_code"`
	CreatedAt time.Time `json:"created_at"`
}

// JobSummary is a job joined with the repository it belongs to, as
// shown on the dashboard.
type JobSummary struct {
	ID             string    `json:"id"`
	Status         Status    `json:"status"`
	ExitCode       *int      `json:"exit_code"`
	RepositorySlug string    `json:"repository_slug"`
	RepositoryName string    `json:"repository_name"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// User is an account for the management API.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CancelOutcome reports what Cancel did.
type CancelOutcome int

const (
	// CancelNoop: the job was already terminal. Nothing was written.
	CancelNoop CancelOutcome = iota

	// CancelledQueued: the job was queued and is now cancelled. It was
	// never started.
	CancelledQueued

	// CancelRunning: the job is running. The store has not changed it;
	// the caller must stop the process and record the cancellation
	// with MarkCancelled.
	CancelRunning
)
