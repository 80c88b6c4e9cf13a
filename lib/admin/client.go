// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

package admin

import (
	"context"

	"github.com/littleci/littleci/lib/engine"
	"github.com/littleci/littleci/lib/service"
	"github.com/littleci/littleci/lib/store"
)

// Client calls the admin actions of a running server.
type Client struct {
	socket *service.Client
}

// NewClient returns a client for the socket at socketPath.
func NewClient(socketPath string) *Client {
	return &Client{socket: service.NewClient(socketPath)}
}

// Status returns the server's run table and job counts.
func (c *Client) Status(ctx context.Context) (engine.Status, error) {
	var status engine.Status
	err := c.socket.Call(ctx, ActionStatus, nil, &status)
	return status, err
}

// ListJobs lists a repository's jobs, or the latest jobs of every
// repository when slug is empty.
func (c *Client) ListJobs(ctx context.Context, slug string) ([]store.JobSummary, error) {
	var fields map[string]any
	if slug != "" {
		fields = map[string]any{"repository": slug}
	}
	var jobs []store.JobSummary
	err := c.socket.Call(ctx, ActionListJobs, fields, &jobs)
	return jobs, err
}

// CancelJob cancels a queued or running job.
func (c *Client) CancelJob(ctx context.Context, jobID string) error {
	return c.socket.Call(ctx, ActionCancelJob, map[string]any{"id": jobID}, nil)
}

// Enqueue creates a job for the repository with the given data.
func (c *Client) Enqueue(ctx context.Context, slug string, data map[string]string) (store.Job, error) {
	fields := map[string]any{"repository": slug}
	if len(data) > 0 {
		fields["data"] = data
	}
	var job store.Job
	err := c.socket.Call(ctx, ActionEnqueue, fields, &job)
	return job, err
}
