// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/littleci/littleci/lib/store"
	"github.com/littleci/littleci/lib/trigger"
)

func TestTriggeredJobCompletes(t *testing.T) {
	h := newHarness(t, nil)
	repository := h.createRepository(t, store.RepositorySpec{Name: "hello", Run: "echo hello"})
	h.start(t)

	job, err := h.engine.AuthorizeAndEnqueue(context.Background(), trigger.Trigger{
		Service:   trigger.ServiceGeneric,
		Slug:      "hello",
		SecretKey: repository.Secret,
	})
	if err != nil {
		t.Fatalf("AuthorizeAndEnqueue: %v", err)
	}
	if job.Status != store.StatusQueued {
		t.Errorf("new job status = %s, want queued", job.Status)
	}

	finished := h.waitForStatus(t, job.ID, store.StatusCompleted)
	if finished.ExitCode == nil || *finished.ExitCode != 0 {
		t.Errorf("ExitCode = %v, want 0", finished.ExitCode)
	}
	if output := h.outputOf(t, job.ID); !strings.Contains(output, "hello") {
		t.Errorf("output = %q, want it to contain hello", output)
	}
	want := []store.Status{store.StatusQueued, store.StatusRunning, store.StatusCompleted}
	if got := h.logStatuses(t, job.ID); !equalStatuses(got, want) {
		t.Errorf("log = %v, want %v", got, want)
	}
}

func TestTriggeredJobFails(t *testing.T) {
	h := newHarness(t, nil)
	repository := h.createRepository(t, store.RepositorySpec{Name: "broken", Run: "exit 3"})
	h.start(t)

	job, err := h.engine.AuthorizeAndEnqueue(context.Background(), trigger.Trigger{
		Service:   trigger.ServiceGeneric,
		Slug:      "broken",
		SecretKey: repository.Secret,
	})
	if err != nil {
		t.Fatalf("AuthorizeAndEnqueue: %v", err)
	}
	finished := h.waitForStatus(t, job.ID, store.StatusFailed)
	if finished.ExitCode == nil || *finished.ExitCode != 3 {
		t.Errorf("ExitCode = %v, want 3", finished.ExitCode)
	}
}

func TestTriggerRejected(t *testing.T) {
	h := newHarness(t, nil)
	h.createRepository(t, store.RepositorySpec{Name: "guarded", Run: "true"})
	ctx := context.Background()

	tests := []struct {
		name    string
		trigger trigger.Trigger
		kind    trigger.ErrorKind
	}{
		{
			name:    "wrong secret",
			trigger: trigger.Trigger{Service: trigger.ServiceGeneric, Slug: "guarded", SecretKey: "nope"},
			kind:    trigger.Forbidden,
		},
		{
			name:    "unknown repository",
			trigger: trigger.Trigger{Service: trigger.ServiceGeneric, Slug: "missing", SecretKey: "nope"},
			kind:    trigger.NotFound,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := h.engine.AuthorizeAndEnqueue(ctx, test.trigger)
			var triggerErr *trigger.Error
			if !errors.As(err, &triggerErr) {
				t.Fatalf("error = %v, want *trigger.Error", err)
			}
			if triggerErr.Kind != test.kind {
				t.Errorf("Kind = %s, want %s", triggerErr.Kind, test.kind)
			}
		})
	}

	jobs, err := h.engine.ListAllJobs(ctx)
	if err != nil {
		t.Fatalf("ListAllJobs: %v", err)
	}
	if len(jobs) != 0 {
		t.Errorf("rejected triggers created %d jobs", len(jobs))
	}
}

func TestGitHubPushOutsideRulesIsSkipped(t *testing.T) {
	h := newHarness(t, nil)
	repository := h.createRepository(t, store.RepositorySpec{Name: "mirror", Run: "true"})
	ctx := context.Background()

	push := func(ref string) trigger.Trigger {
		body := []byte(`{"ref":"` + ref + `","before":"aaa","after":"bbb","repository":{"full_name":"acme/mirror"}}`)
		signature, err := trigger.Sign(trigger.SHA256, []byte(repository.Secret), body)
		if err != nil {
			t.Fatalf("Sign: %v", err)
		}
		return trigger.Trigger{
			Service:      trigger.ServiceGitHub,
			Slug:         "mirror",
			Signature256: "sha256=" + signature,
			Event:        "push",
			Body:         body,
		}
	}

	if _, err := h.engine.AuthorizeAndEnqueue(ctx, push("refs/heads/feature")); !errors.Is(err, ErrSkipped) {
		t.Fatalf("push to feature error = %v, want ErrSkipped", err)
	}

	job, err := h.engine.AuthorizeAndEnqueue(ctx, push("refs/heads/master"))
	if err != nil {
		t.Fatalf("push to master: %v", err)
	}
	if job.Data[trigger.EnvBranch] != "master" || job.Data[trigger.EnvAfter] != "bbb" {
		t.Errorf("job data = %v", job.Data)
	}

	jobs, err := h.engine.ListJobs(ctx, "mirror")
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 1 {
		t.Errorf("got %d jobs, want 1", len(jobs))
	}
}
