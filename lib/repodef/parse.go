// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

// Package repodef reads repository definition files and applies them
// to a LittleCI server's registry.
//
// A definition file is JSONC (JSON extended with // line comments,
// /* block comments */ and trailing commas) declaring repositories by
// name:
//
//	{
//	  "repositories": [
//	    {
//	      "name": "Website",
//	      "run": "make deploy",
//	      "variables": {"TARGET": "production"},
//	      "triggers": [{"kind": "git", "git": "head", "refs": ["main"]}],
//	    },
//	  ],
//	}
//
// The typical flow:
//
//  1. ReadFile or Parse: JSONC bytes → File
//  2. Validate: structural checks (names, run commands, duplicate slugs)
//  3. Apply: create missing repositories, update existing ones by slug
package repodef

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"

	"github.com/littleci/littleci/lib/store"
)

// File is the content of a repository definition file.
type File struct {
	Repositories []store.RepositorySpec `json:"repositories"`
}

// Parse strips JSONC comments and trailing commas from data, then
// unmarshals the result into a File. Unknown fields are rejected so a
// misspelled key does not silently drop configuration.
func Parse(data []byte) (*File, error) {
	stripped := jsonc.ToJSON(data)

	decoder := json.NewDecoder(bytes.NewReader(stripped))
	decoder.DisallowUnknownFields()
	var file File
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("parsing repository definitions: %w", err)
	}

	return &file, nil
}

// ReadFile reads a JSONC definition file from disk and parses it.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	file, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return file, nil
}
