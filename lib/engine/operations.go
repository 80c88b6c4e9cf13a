// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/littleci/littleci/lib/auth"
	"github.com/littleci/littleci/lib/outputlog"
	"github.com/littleci/littleci/lib/store"
	"github.com/littleci/littleci/lib/trigger"
)

// ErrSkipped is returned by AuthorizeAndEnqueue when the trigger
// authenticated but matched none of the repository's trigger rules.
// No job was created; this is not a failure.
var ErrSkipped = errors.New("engine: trigger matched no rule, build skipped")

// AuthorizeAndEnqueue authenticates a trigger and queues a job for it.
// Rejections are *trigger.Error and leave no state behind.
func (e *Engine) AuthorizeAndEnqueue(ctx context.Context, t trigger.Trigger) (store.Job, error) {
	request, err := e.authenticator.Authorize(ctx, t)
	if err != nil {
		var triggerErr *trigger.Error
		if errors.As(err, &triggerErr) {
			e.metrics.triggersRejected.WithLabelValues(triggerErr.Kind.String()).Inc()
			e.logger.Info("trigger rejected",
				"repository", t.Slug,
				"service", t.Service.String(),
				"reason", triggerErr.Kind.String(),
				"error", triggerErr.Message,
			)
		}
		return store.Job{}, err
	}
	if request.Skipped {
		e.metrics.triggersSkipped.WithLabelValues(request.Repository.Slug).Inc()
		e.logger.Info("trigger skipped: no rule matched",
			"repository", request.Repository.Slug,
			"service", t.Service.String(),
			"event", t.Event,
		)
		return store.Job{}, ErrSkipped
	}
	return e.enqueue(ctx, request.Repository, request.Data, "")
}

// EnqueueAuthenticated queues a job on behalf of a logged-in user
// ("build now").
func (e *Engine) EnqueueAuthenticated(ctx context.Context, repositoryID string, data map[string]string, principal auth.Principal) (store.Job, error) {
	repository, err := e.store.Repository(ctx, repositoryID)
	if err != nil {
		return store.Job{}, err
	}
	if repository.Deleted {
		return store.Job{}, fmt.Errorf("repository %q: %w", repository.Slug, store.ErrNotFound)
	}
	return e.enqueue(ctx, repository, data, principal)
}

func (e *Engine) enqueue(ctx context.Context, repository store.Repository, data map[string]string, principal auth.Principal) (store.Job, error) {
	job, err := e.store.Enqueue(ctx, repository.ID, data)
	if err != nil {
		return store.Job{}, err
	}
	e.metrics.enqueued.WithLabelValues(repository.Slug).Inc()
	if principal != "" {
		e.logger.Info("job requested", "job", job.ID, "repository", repository.Slug, "principal", string(principal))
	}
	e.Wake()
	return job, nil
}

// GetJob returns a job if it belongs to the repository with the given
// slug. Jobs of soft-deleted repositories remain readable.
func (e *Engine) GetJob(ctx context.Context, slug, jobID string) (store.Job, error) {
	job, err := e.store.Job(ctx, jobID)
	if err != nil {
		return store.Job{}, err
	}
	repository, err := e.store.Repository(ctx, job.RepositoryID)
	if err != nil {
		return store.Job{}, err
	}
	if repository.Slug != slug {
		return store.Job{}, store.ErrNotFound
	}
	return job, nil
}

// JobDetails is a job with its transition history and output summary.
type JobDetails struct {
	Job          store.Job        `json:"job"`
	Repository   string           `json:"repository"`
	Log          []store.LogEntry `json:"log"`
	OutputSize   int64            `json:"output_size"`
	OutputDigest string           `json:"output_digest"`
}

// GetJobDetails is GetJob plus the log entries and output digest.
func (e *Engine) GetJobDetails(ctx context.Context, slug, jobID string) (JobDetails, error) {
	job, err := e.GetJob(ctx, slug, jobID)
	if err != nil {
		return JobDetails{}, err
	}
	entries, err := e.store.JobLog(ctx, jobID)
	if err != nil {
		return JobDetails{}, err
	}
	size, err := e.output.Size(jobID)
	if err != nil {
		return JobDetails{}, err
	}
	digest, err := e.output.Digest(jobID)
	if err != nil {
		return JobDetails{}, err
	}
	return JobDetails{Job: job, Repository: slug, Log: entries, OutputSize: size, OutputDigest: digest}, nil
}

// ListJobs returns a live repository's jobs, newest first.
func (e *Engine) ListJobs(ctx context.Context, slug string) ([]store.Job, error) {
	repository, err := e.store.RepositoryBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	return e.store.ListJobs(ctx, repository.ID)
}

// ListAllJobs returns the latest jobs across repositories.
func (e *Engine) ListAllJobs(ctx context.Context) ([]store.JobSummary, error) {
	return e.store.ListAllJobs(ctx, store.DefaultSummaryLimit)
}

// GetJobOutput returns the job's output as written so far. The reader
// is safe to use while the job is still running.
func (e *Engine) GetJobOutput(ctx context.Context, slug, jobID string) (io.ReadCloser, error) {
	if _, err := e.GetJob(ctx, slug, jobID); err != nil {
		return nil, err
	}
	return e.output.Open(jobID)
}

// FollowJobOutput returns a reader that streams the job's output until
// the job reaches a terminal state.
func (e *Engine) FollowJobOutput(ctx context.Context, slug, jobID string) (io.ReadCloser, error) {
	if _, err := e.GetJob(ctx, slug, jobID); err != nil {
		return nil, err
	}
	return e.output.Follow(ctx, jobID, outputlog.FollowConfig{
		Finished: func(ctx context.Context) (bool, error) {
			job, err := e.store.Job(ctx, jobID)
			if err != nil {
				return false, err
			}
			return job.Status.Terminal(), nil
		},
		Clock: e.clock,
	})
}

// CancelJob cancels a queued or running job. Cancelling a job that is
// already terminal is a no-op. For a running job the call returns once
// the cancellation is delivered; the job becomes cancelled when its
// process has exited.
func (e *Engine) CancelJob(ctx context.Context, jobID string, principal auth.Principal) error {
	job, outcome, err := e.store.Cancel(ctx, jobID)
	if err != nil {
		return err
	}

	switch outcome {
	case store.CancelNoop:
		e.logger.Debug("cancel of finished job ignored", "job", jobID, "status", job.Status)
		return nil

	case store.CancelledQueued:
		repository, err := e.store.Repository(ctx, job.RepositoryID)
		if err != nil {
			return err
		}
		e.metrics.finished.WithLabelValues(repository.Slug, string(store.StatusCancelled)).Inc()
		e.logger.Info("queued job cancelled", "job", jobID, "repository", repository.Slug, "principal", string(principal))
		e.notify(repository, job)
		return nil
	}

	e.mu.Lock()
	entry, running := e.runs[jobID]
	if running {
		entry.cancelRequested = true
		entry.cancel()
	}
	e.mu.Unlock()

	if !running {
		// Claimed but not yet registered, or finished since the store
		// read. Park the cancel only if the job is still running.
		current, err := e.store.Job(ctx, jobID)
		if err != nil {
			return err
		}
		if current.Status.Terminal() {
			return nil
		}
		e.mu.Lock()
		if entry, running = e.runs[jobID]; running {
			entry.cancelRequested = true
			entry.cancel()
		} else {
			e.pendingCancels[jobID] = struct{}{}
		}
		e.mu.Unlock()
	}

	e.logger.Info("cancelling running job", "job", jobID, "principal", string(principal))
	return nil
}

// RunningJob describes a job executing in this server.
type RunningJob struct {
	ID         string        `json:"id"`
	Repository string        `json:"repository"`
	StartedAt  time.Time     `json:"started_at"`
	Elapsed    time.Duration `json:"elapsed"`
	Cancelling bool          `json:"cancelling"`
}

// Status is a snapshot of the engine.
type Status struct {
	Workers int                  `json:"workers"`
	Running []RunningJob         `json:"running"`
	Counts  map[store.Status]int `json:"counts"`
}

// Status reports the run table and job counts.
func (e *Engine) Status(ctx context.Context) (Status, error) {
	counts, err := e.store.CountByStatus(ctx)
	if err != nil {
		return Status{}, err
	}

	now := e.clock.Now()
	e.mu.Lock()
	running := make([]RunningJob, 0, len(e.runs))
	for id, entry := range e.runs {
		running = append(running, RunningJob{
			ID:         id,
			Repository: entry.repository.Slug,
			StartedAt:  entry.startedAt,
			Elapsed:    now.Sub(entry.startedAt),
			Cancelling: entry.cancelRequested,
		})
	}
	e.mu.Unlock()
	sort.Slice(running, func(i, j int) bool { return running[i].StartedAt.Before(running[j].StartedAt) })

	return Status{Workers: e.config.Workers, Running: running, Counts: counts}, nil
}
