// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"fmt"
	"net/url"

	"github.com/littleci/littleci/lib/store"
	"github.com/littleci/littleci/lib/trigger"
)

// CreateRepository validates spec and adds a repository.
func (e *Engine) CreateRepository(ctx context.Context, spec store.RepositorySpec) (store.Repository, error) {
	if err := validateSpec(spec); err != nil {
		return store.Repository{}, err
	}
	return e.store.CreateRepository(ctx, spec)
}

// UpdateRepository validates spec and replaces a repository's editable
// fields. The slug never changes.
func (e *Engine) UpdateRepository(ctx context.Context, slug string, spec store.RepositorySpec) (store.Repository, error) {
	if err := validateSpec(spec); err != nil {
		return store.Repository{}, err
	}
	return e.store.UpdateRepository(ctx, slug, spec)
}

// RegenerateSecret replaces a repository's trigger secret. Triggers
// signed with the old secret are rejected from now on.
func (e *Engine) RegenerateSecret(ctx context.Context, slug string) (store.Repository, error) {
	return e.store.RegenerateSecret(ctx, slug)
}

// GetRepository returns a live repository.
func (e *Engine) GetRepository(ctx context.Context, slug string) (store.Repository, error) {
	return e.store.RepositoryBySlug(ctx, slug)
}

// ListRepositories returns live repositories by name.
func (e *Engine) ListRepositories(ctx context.Context) ([]store.Repository, error) {
	return e.store.ListRepositories(ctx)
}

// DeleteRepository soft-deletes a repository. Its queued jobs are
// cancelled; a running job finishes normally.
func (e *Engine) DeleteRepository(ctx context.Context, slug string) error {
	repository, err := e.store.RepositoryBySlug(ctx, slug)
	if err != nil {
		return err
	}
	cancelled, err := e.store.MarkDeleted(ctx, slug)
	if err != nil {
		return err
	}
	for _, job := range cancelled {
		e.metrics.finished.WithLabelValues(slug, string(job.Status)).Inc()
		e.notify(repository, job)
	}
	return nil
}

// PurgeRepository removes a repository, its jobs, their history and
// their output. Refused while one of its jobs is running.
func (e *Engine) PurgeRepository(ctx context.Context, slug string) error {
	jobIDs, err := e.store.Purge(ctx, slug)
	if err != nil {
		return err
	}
	for _, jobID := range jobIDs {
		if err := e.output.Remove(jobID); err != nil {
			e.logger.Error("removing output of purged job", "job", jobID, "error", err)
		}
	}
	return nil
}

func validateSpec(spec store.RepositorySpec) error {
	if err := trigger.ValidateRules(spec.Triggers); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalid, err)
	}
	for _, webhook := range spec.Webhooks {
		parsed, err := url.Parse(webhook)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return fmt.Errorf("%w: webhook %q is not an http(s) URL", store.ErrInvalid, webhook)
		}
	}
	return nil
}
