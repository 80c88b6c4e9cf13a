// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

package datadir

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func TestOpenCreatesLayout(t *testing.T) {
	root := filepath.Join(t.TempDir(), "data")
	dir, err := Open(root)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for _, path := range []string{dir.Root(), dir.JobsDir(), dir.RepositoriesDir()} {
		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			t.Errorf("%s is not a directory: %v", path, err)
		}
	}
	if dir.DatabasePath() != filepath.Join(root, "littleci.db") {
		t.Errorf("DatabasePath = %s", dir.DatabasePath())
	}
	if _, err := Open(""); err == nil {
		t.Error("Open(\"\") succeeded")
	}
}

func TestLockIsExclusive(t *testing.T) {
	dir, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	first, err := dir.Lock()
	if err != nil {
		t.Fatalf("first Lock: %v", err)
	}

	// flock locks belong to the open file description, so a second
	// open in the same process conflicts like another server would.
	_, err = dir.Lock()
	if !errors.Is(err, ErrLocked) {
		t.Fatalf("second Lock error = %v, want ErrLocked", err)
	}
	if !strings.Contains(err.Error(), "pid "+strconv.Itoa(os.Getpid())) {
		t.Errorf("error %q does not name the holder", err)
	}

	if err := first.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	second, err := dir.Lock()
	if err != nil {
		t.Fatalf("Lock after Release: %v", err)
	}
	second.Release()
	// Releasing twice is harmless.
	if err := second.Release(); err != nil {
		t.Errorf("second Release: %v", err)
	}
}
