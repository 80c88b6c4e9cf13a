// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

// Package admin is the administrative protocol spoken over the
// server's Unix socket. [Register] installs the action handlers on a
// [service.SocketServer]; [Client] calls them.
//
// The socket carries no credentials: its 0600 file mode restricts it
// to the account running the server. Actions run as [Principal].
package admin

import (
	"context"
	"fmt"

	"github.com/littleci/littleci/lib/auth"
	"github.com/littleci/littleci/lib/codec"
	"github.com/littleci/littleci/lib/engine"
	"github.com/littleci/littleci/lib/service"
	"github.com/littleci/littleci/lib/store"
)

// Action names.
const (
	ActionStatus    = "status"
	ActionListJobs  = "list-jobs"
	ActionCancelJob = "cancel-job"
	ActionEnqueue   = "enqueue"
)

// Principal is recorded as the actor of socket requests.
const Principal auth.Principal = "admin-socket"

// Engine is the subset of *engine.Engine the handlers use.
type Engine interface {
	Status(ctx context.Context) (engine.Status, error)
	ListJobs(ctx context.Context, slug string) ([]store.Job, error)
	ListAllJobs(ctx context.Context) ([]store.JobSummary, error)
	GetRepository(ctx context.Context, slug string) (store.Repository, error)
	EnqueueAuthenticated(ctx context.Context, repositoryID string, data map[string]string, principal auth.Principal) (store.Job, error)
	CancelJob(ctx context.Context, jobID string, principal auth.Principal) error
}

// ListJobsRequest selects one repository's jobs, or the latest jobs of
// every repository when Repository is empty.
type ListJobsRequest struct {
	Repository string `cbor:"repository,omitempty"`
}

// CancelJobRequest names the job to cancel.
type CancelJobRequest struct {
	ID string `cbor:"id"`
}

// EnqueueRequest creates a job for a repository.
type EnqueueRequest struct {
	Repository string            `cbor:"repository"`
	Data       map[string]string `cbor:"data,omitempty"`
}

// Register installs every action on server.
func Register(server *service.SocketServer, jobs Engine) {
	server.Handle(ActionStatus, func(ctx context.Context, raw []byte) (any, error) {
		return jobs.Status(ctx)
	})

	server.Handle(ActionListJobs, func(ctx context.Context, raw []byte) (any, error) {
		var request ListJobsRequest
		if err := codec.Unmarshal(raw, &request); err != nil {
			return nil, fmt.Errorf("invalid request: %w", err)
		}
		if request.Repository == "" {
			return jobs.ListAllJobs(ctx)
		}
		repository, err := jobs.GetRepository(ctx, request.Repository)
		if err != nil {
			return nil, err
		}
		list, err := jobs.ListJobs(ctx, request.Repository)
		if err != nil {
			return nil, err
		}
		summaries := make([]store.JobSummary, len(list))
		for i, job := range list {
			summaries[i] = store.JobSummary{
				ID:             job.ID,
				Status:         job.Status,
				ExitCode:       job.ExitCode,
				RepositorySlug: repository.Slug,
				RepositoryName: repository.Name,
				CreatedAt:      job.CreatedAt,
				UpdatedAt:      job.UpdatedAt,
			}
		}
		return summaries, nil
	})

	server.Handle(ActionCancelJob, func(ctx context.Context, raw []byte) (any, error) {
		var request CancelJobRequest
		if err := codec.Unmarshal(raw, &request); err != nil {
			return nil, fmt.Errorf("invalid request: %w", err)
		}
		if request.ID == "" {
			return nil, fmt.Errorf("missing required field: id")
		}
		return nil, jobs.CancelJob(ctx, request.ID, Principal)
	})

	server.Handle(ActionEnqueue, func(ctx context.Context, raw []byte) (any, error) {
		var request EnqueueRequest
		if err := codec.Unmarshal(raw, &request); err != nil {
			return nil, fmt.Errorf("invalid request: %w", err)
		}
		if request.Repository == "" {
			return nil, fmt.Errorf("missing required field: repository")
		}
		repository, err := jobs.GetRepository(ctx, request.Repository)
		if err != nil {
			return nil, err
		}
		return jobs.EnqueueAuthenticated(ctx, repository.ID, request.Data, Principal)
	})
}
