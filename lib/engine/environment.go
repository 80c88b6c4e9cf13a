// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"sort"
	"strings"

	"github.com/littleci/littleci/lib/store"
)

// Variables LittleCI sets for every build.
const (
	EnvJobID          = "LITTLECI_JOB_ID"
	EnvRepositorySlug = "LITTLECI_REPOSITORY_SLUG"
	EnvRepositoryName = "LITTLECI_REPOSITORY_NAME"
)

// buildEnvironment merges, lowest precedence first: the host
// environment, the LittleCI built-ins, the repository variables and
// the job data. The result is sorted so builds see a stable order.
func buildEnvironment(host []string, repository store.Repository, job store.Job) []string {
	merged := make(map[string]string, len(host)+len(repository.Variables)+len(job.Data)+3)
	for _, entry := range host {
		name, value, found := strings.Cut(entry, "=")
		if !found || name == "" {
			continue
		}
		merged[name] = value
	}

	merged[EnvJobID] = job.ID
	merged[EnvRepositorySlug] = repository.Slug
	merged[EnvRepositoryName] = repository.Name

	for name, value := range repository.Variables {
		merged[name] = value
	}
	for name, value := range job.Data {
		merged[name] = value
	}

	environment := make([]string, 0, len(merged))
	for name, value := range merged {
		environment = append(environment, name+"="+value)
	}
	sort.Strings(environment)
	return environment
}
