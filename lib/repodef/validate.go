// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

package repodef

import (
	"fmt"

	"github.com/littleci/littleci/lib/store"
	"github.com/littleci/littleci/lib/trigger"
)

// Validate checks a File for structural issues. Returns a list of
// human-readable issue descriptions. An empty list means the file is
// valid.
//
// Checks:
//   - At least one repository is declared
//   - Each repository has a name that yields a non-empty slug
//   - Each repository has a run command
//   - No two repositories share a slug
//   - Trigger rules are well formed
func Validate(file *File) []string {
	var issues []string

	if len(file.Repositories) == 0 {
		issues = append(issues, "no repositories declared")
	}

	// Slugs identify repositories; two names with one slug would
	// overwrite each other on apply.
	slugs := make(map[string]int, len(file.Repositories))
	for index, spec := range file.Repositories {
		label := fmt.Sprintf("repositories[%d]", index)
		if spec.Name != "" {
			label = fmt.Sprintf("repositories[%d] %q", index, spec.Name)
		}

		slug := store.Slugify(spec.Name)
		switch {
		case spec.Name == "":
			issues = append(issues, label+": name is required")
		case slug == "":
			issues = append(issues, label+": name has no letters or digits")
		default:
			if first, exists := slugs[slug]; exists {
				issues = append(issues, fmt.Sprintf("%s: slug %q already used by repositories[%d]", label, slug, first))
			} else {
				slugs[slug] = index
			}
		}

		if spec.Run == "" {
			issues = append(issues, label+": run is required")
		}
		if err := trigger.ValidateRules(spec.Triggers); err != nil {
			issues = append(issues, fmt.Sprintf("%s: %v", label, err))
		}
	}

	return issues
}
