// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

package repodef

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/littleci/littleci/lib/store"
)

// Registry is the subset of the engine that Apply drives.
type Registry interface {
	GetRepository(ctx context.Context, slug string) (store.Repository, error)
	CreateRepository(ctx context.Context, spec store.RepositorySpec) (store.Repository, error)
	UpdateRepository(ctx context.Context, slug string, spec store.RepositorySpec) (store.Repository, error)
}

// Action is what Apply did to one repository.
type Action string

const (
	Created   Action = "created"
	Updated   Action = "updated"
	Unchanged Action = "unchanged"
)

// Result reports one applied repository.
type Result struct {
	Action     Action
	Repository store.Repository
}

// Apply validates file and then creates or updates each repository by
// slug. Repositories the file does not mention are left alone. A
// failure stops the run; results up to that point are returned with
// the error.
func Apply(ctx context.Context, registry Registry, file *File) ([]Result, error) {
	if issues := Validate(file); len(issues) > 0 {
		errs := make([]error, len(issues))
		for i, issue := range issues {
			errs[i] = errors.New(issue)
		}
		return nil, fmt.Errorf("invalid repository definitions: %w", errors.Join(errs...))
	}

	results := make([]Result, 0, len(file.Repositories))
	for _, spec := range file.Repositories {
		slug := store.Slugify(spec.Name)
		existing, err := registry.GetRepository(ctx, slug)
		switch {
		case errors.Is(err, store.ErrNotFound):
			created, err := registry.CreateRepository(ctx, spec)
			if err != nil {
				return results, fmt.Errorf("creating %q: %w", spec.Name, err)
			}
			results = append(results, Result{Action: Created, Repository: created})
		case err != nil:
			return results, fmt.Errorf("looking up %q: %w", spec.Name, err)
		case sameSpec(existing, spec):
			results = append(results, Result{Action: Unchanged, Repository: existing})
		default:
			updated, err := registry.UpdateRepository(ctx, slug, spec)
			if err != nil {
				return results, fmt.Errorf("updating %q: %w", spec.Name, err)
			}
			results = append(results, Result{Action: Updated, Repository: updated})
		}
	}
	return results, nil
}

// sameSpec reports whether applying spec would change repository.
// Empty and nil collections compare equal.
func sameSpec(repository store.Repository, spec store.RepositorySpec) bool {
	return repository.Name == strings.TrimSpace(spec.Name) &&
		repository.Run == spec.Run &&
		repository.WorkingDir == spec.WorkingDir &&
		maps.Equal(repository.Variables, spec.Variables) &&
		slices.EqualFunc(repository.Triggers, spec.Triggers, func(a, b store.TriggerRule) bool {
			return a.Kind == b.Kind && a.Git == b.Git && slices.Equal(a.Refs, b.Refs)
		}) &&
		slices.Equal(repository.Webhooks, spec.Webhooks)
}
