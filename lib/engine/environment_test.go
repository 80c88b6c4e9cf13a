// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"slices"
	"testing"

	"github.com/littleci/littleci/lib/store"
)

func TestBuildEnvironmentPrecedence(t *testing.T) {
	host := []string{
		"PATH=/usr/bin",
		"SHARED=host",
		"LITTLECI_JOB_ID=spoofed",
		"malformed",
		"=nameless",
	}
	repository := store.Repository{
		Slug:      "demo",
		Name:      "Demo",
		Variables: map[string]string{"SHARED": "variable", "ONLY_VARIABLE": "v", "LITTLECI_REPOSITORY_NAME": "renamed"},
	}
	job := store.Job{
		ID:   "job-1",
		Data: map[string]string{"SHARED": "data", "ONLY_DATA": "d"},
	}

	got := buildEnvironment(host, repository, job)
	want := []string{
		"LITTLECI_JOB_ID=job-1",
		"LITTLECI_REPOSITORY_NAME=renamed",
		"LITTLECI_REPOSITORY_SLUG=demo",
		"ONLY_DATA=d",
		"ONLY_VARIABLE=v",
		"PATH=/usr/bin",
		"SHARED=data",
	}
	if !slices.Equal(got, want) {
		t.Errorf("buildEnvironment =\n%v\nwant\n%v", got, want)
	}
}

func TestBuildEnvironmentEmpty(t *testing.T) {
	got := buildEnvironment(nil, store.Repository{Slug: "s", Name: "n"}, store.Job{ID: "j"})
	want := []string{
		"LITTLECI_JOB_ID=j",
		"LITTLECI_REPOSITORY_NAME=n",
		"LITTLECI_REPOSITORY_SLUG=s",
	}
	if !slices.Equal(got, want) {
		t.Errorf("buildEnvironment = %v, want %v", got, want)
	}
}
