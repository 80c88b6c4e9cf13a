// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

package outputlog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// FileName is the name of the output file inside a job's directory.
const FileName = "output.log"

// ErrInvalidJobID is returned for identifiers that are not UUIDs. Job
// identifiers become path components, so nothing else is accepted.
var ErrInvalidJobID = errors.New("outputlog: invalid job id")

// Store manages the per-job output files below one root directory.
type Store struct {
	root string
}

// New returns a Store rooted at root, creating the directory if needed.
func New(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("outputlog: root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("outputlog: creating %s: %w", root, err)
	}
	return &Store{root: root}, nil
}

// Path returns the output file path of a job.
func (s *Store) Path(jobID string) (string, error) {
	if err := uuid.Validate(jobID); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidJobID, jobID)
	}
	return filepath.Join(s.root, jobID, FileName), nil
}

// Create opens the output file of a job for appending, creating it and
// its directory if needed. The returned file is positioned at the end;
// every write is an append, so a reopened file never overwrites bytes
// written earlier.
func (s *Store) Create(jobID string) (*os.File, error) {
	path, err := s.Path(jobID)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("outputlog: creating job directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("outputlog: opening %s: %w", path, err)
	}
	return file, nil
}

// Append writes text to the end of a job's output, creating the file
// if the job never produced any. Used for diagnostics written by the
// engine itself (spawn errors, orphan notes).
func (s *Store) Append(jobID, text string) error {
	file, err := s.Create(jobID)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(file, text); err != nil {
		file.Close()
		return fmt.Errorf("outputlog: appending to %s: %w", jobID, err)
	}
	return file.Close()
}

// Open returns a reader over the output written so far. A job that
// never produced output (it is still queued, or was cancelled before
// it ran) reads as empty.
func (s *Store) Open(jobID string) (io.ReadCloser, error) {
	path, err := s.Path(jobID)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	if err != nil {
		return nil, fmt.Errorf("outputlog: opening %s: %w", path, err)
	}
	return file, nil
}

// Size returns the number of bytes written so far, zero if the file
// does not exist.
func (s *Store) Size(jobID string) (int64, error) {
	path, err := s.Path(jobID)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("outputlog: %w", err)
	}
	return info.Size(), nil
}

// Remove deletes a job's output directory. Removing output that does
// not exist is not an error.
func (s *Store) Remove(jobID string) error {
	path, err := s.Path(jobID)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(filepath.Dir(path)); err != nil {
		return fmt.Errorf("outputlog: removing %s: %w", jobID, err)
	}
	return nil
}
