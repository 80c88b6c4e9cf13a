// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/littleci/littleci/lib/store"
)

// work is the loop of one worker. It returns once ctx is cancelled
// and the job it was executing, if any, is finished or abandoned.
func (e *Engine) work(ctx, jobsCtx context.Context, index int) {
	logger := e.logger.With("worker", index)
	for {
		if ctx.Err() != nil {
			return
		}

		job, ok, err := e.store.ClaimNext(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("claiming job", "error", err)
		}
		if ok {
			e.execute(jobsCtx, job)
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-e.wake:
		case <-e.clock.After(e.config.PollInterval):
		}
	}
}

// execute runs a claimed job to a terminal state. jobsCtx is cancelled
// only when a shutdown gives up waiting; in that case the process is
// killed and the job is left running for the next start to reconcile.
func (e *Engine) execute(jobsCtx context.Context, job store.Job) {
	logger := e.logger.With("job", job.ID)

	// Store writes for this job use a context that survives shutdown:
	// a finished process must have its outcome recorded.
	storeCtx := context.WithoutCancel(jobsCtx)

	repository, err := e.store.Repository(storeCtx, job.RepositoryID)
	if err != nil {
		logger.Error("loading repository of claimed job", "error", err)
		if err := e.output.Append(job.ID, fmt.Sprintf("littleci: cannot start build: loading repository: %v\n", err)); err != nil {
			logger.Error("writing output", "error", err)
		}
		cancelled := e.takeParkedCancel(job.ID)
		e.record(storeCtx, store.Repository{ID: job.RepositoryID}, job, processResult{spawnErr: err}, cancelled)
		return
	}
	logger = logger.With("repository", repository.Slug)

	jobCtx, cancel := context.WithCancel(jobsCtx)
	defer cancel()
	entry := e.register(job, repository, cancel)
	defer e.unregister(job.ID)

	e.metrics.running.Inc()
	defer e.metrics.running.Dec()
	e.notify(repository, job)
	logger.Info("job started")

	result := e.spawn(jobCtx, repository, job)

	e.mu.Lock()
	cancelled := entry.cancelRequested
	e.mu.Unlock()

	if !cancelled && jobsCtx.Err() != nil {
		logger.Warn("job abandoned at shutdown; it will be marked orphaned on next start")
		return
	}
	e.record(storeCtx, repository, job, result, cancelled)
}

// spawn prepares and supervises the build process.
func (e *Engine) spawn(ctx context.Context, repository store.Repository, job store.Job) processResult {
	output, err := e.output.Create(job.ID)
	if err != nil {
		return processResult{spawnErr: err}
	}
	defer output.Close()

	workingDir := repository.WorkingDir
	if workingDir == "" {
		workingDir = filepath.Join(e.config.RepositoriesDir, repository.Slug)
		if err := os.MkdirAll(workingDir, 0o755); err != nil {
			spawnErr := fmt.Errorf("creating working directory: %w", err)
			fmt.Fprintf(output, "littleci: cannot start build: %v\n", spawnErr)
			return processResult{spawnErr: spawnErr}
		}
	}

	spec := processSpec{
		shell:       e.config.Shell,
		command:     repository.Run,
		workingDir:  workingDir,
		environment: buildEnvironment(e.config.HostEnvironment, repository, job),
		output:      output,
		grace:       e.config.CancelGrace,
		clock:       e.clock,
	}
	result := supervise(ctx, spec)
	if result.spawnErr != nil && ctx.Err() == nil {
		output.WriteString(describeSpawnError(spec, result.spawnErr))
	}
	return result
}

// record writes the terminal transition of a job this worker ran.
func (e *Engine) record(ctx context.Context, repository store.Repository, job store.Job, result processResult, cancelled bool) {
	logger := e.logger.With("job", job.ID, "repository", repository.Slug)

	var finished store.Job
	var err error
	switch {
	case cancelled:
		finished, err = e.store.MarkCancelled(ctx, job.ID)
	case result.spawnErr != nil:
		logger.Warn("job failed to start", "error", result.spawnErr)
		finished, err = e.store.Complete(ctx, job.ID, store.ExitSpawnFailure)
	default:
		finished, err = e.store.Complete(ctx, job.ID, result.exitCode)
	}
	if err != nil {
		// The job stays running in the store and is reconciled as an
		// orphan on the next start.
		logger.Error("recording job outcome", "error", err)
		return
	}

	elapsed := finished.UpdatedAt.Sub(job.UpdatedAt)
	e.metrics.finished.WithLabelValues(repository.Slug, string(finished.Status)).Inc()
	e.metrics.duration.WithLabelValues(repository.Slug).Observe(elapsed.Seconds())
	attributes := []any{"status", finished.Status, "duration", elapsed}
	if finished.ExitCode != nil {
		attributes = append(attributes, "exit_code", *finished.ExitCode)
	}
	logger.Info("job finished", attributes...)
	e.notify(repository, finished)
}

// register adds a job to the run table, applying a parked cancel.
func (e *Engine) register(job store.Job, repository store.Repository, cancel func()) *run {
	e.mu.Lock()
	defer e.mu.Unlock()
	entry := &run{
		job:        job,
		repository: repository,
		startedAt:  e.clock.Now(),
		cancel:     cancel,
	}
	if _, parked := e.pendingCancels[job.ID]; parked {
		delete(e.pendingCancels, job.ID)
		entry.cancelRequested = true
		cancel()
	}
	e.runs[job.ID] = entry
	return entry
}

// unregister removes a job from the run table. A cancel parked for it
// after registration can no longer be applied and is dropped.
func (e *Engine) unregister(jobID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.runs, jobID)
	delete(e.pendingCancels, jobID)
}

// takeParkedCancel removes a parked cancel for a job that will never
// be registered and reports whether there was one.
func (e *Engine) takeParkedCancel(jobID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, parked := e.pendingCancels[jobID]
	delete(e.pendingCancels, jobID)
	return parked
}
