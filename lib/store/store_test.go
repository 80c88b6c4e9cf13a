// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/littleci/littleci/lib/clock"
)

var storeTestEpoch = time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

func openTestStore(t *testing.T) (*Store, *clock.FakeClock) {
	t.Helper()

	fakeClock := clock.Fake(storeTestEpoch)
	store, err := Open(Config{
		Path:     filepath.Join(t.TempDir(), "littleci.db"),
		PoolSize: 4,
		Clock:    fakeClock,
		Logger:   slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("store.Close: %v", err)
		}
	})
	return store, fakeClock
}

func createTestRepository(t *testing.T, store *Store, name string) Repository {
	t.Helper()
	repository, err := store.CreateRepository(context.Background(), RepositorySpec{
		Name: name,
		Run:  "make test",
	})
	if err != nil {
		t.Fatalf("CreateRepository(%q): %v", name, err)
	}
	return repository
}

func enqueueTestJob(t *testing.T, store *Store, repositoryID string) Job {
	t.Helper()
	job, err := store.Enqueue(context.Background(), repositoryID, nil)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	return job
}

// checkJobInvariants verifies the relationship between a job row and
// its transition log.
func checkJobInvariants(t *testing.T, store *Store, id string) {
	t.Helper()
	ctx := context.Background()

	job, err := store.Job(ctx, id)
	if err != nil {
		t.Fatalf("Job(%s): %v", id, err)
	}
	entries, err := store.JobLog(ctx, id)
	if err != nil {
		t.Fatalf("JobLog(%s): %v", id, err)
	}
	if len(entries) == 0 {
		t.Fatalf("job %s has no log entries", id)
	}
	latest := entries[len(entries)-1]

	if latest.Status != job.Status {
		t.Errorf("job %s status = %s, latest log status = %s", id, job.Status, latest.Status)
	}
	if !latest.CreatedAt.Equal(job.UpdatedAt) {
		t.Errorf("job %s updated_at = %v, latest log created_at = %v", id, job.UpdatedAt, latest.CreatedAt)
	}
	if job.CreatedAt.After(job.UpdatedAt) {
		t.Errorf("job %s created_at %v after updated_at %v", id, job.CreatedAt, job.UpdatedAt)
	}
	wantExitCode := job.Status == StatusCompleted || job.Status == StatusFailed
	if (job.ExitCode != nil) != wantExitCode {
		t.Errorf("job %s status %s has exit_code %v", id, job.Status, job.ExitCode)
	}
	if entries[0].Status != StatusQueued {
		t.Errorf("job %s first log status = %s, want queued", id, entries[0].Status)
	}
	for i := 1; i < len(entries); i++ {
		if entries[i-1].Status.Terminal() {
			t.Errorf("job %s left terminal state %s", id, entries[i-1].Status)
		}
	}
}
