// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

// Package datadir lays out a LittleCI data directory and guards it
// against a second server.
//
//	<root>/littleci.db            job store (SQLite, WAL)
//	<root>/littleci.lock          held by the running server
//	<root>/jobs/<id>/output.log   build output
//	<root>/repositories/<slug>/   default working directories
//	<root>/token-signing-key      session token signing keypair
//	<root>/token-signing-key.pub
package datadir

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// ErrLocked is returned by Lock when another process holds the data
// directory.
var ErrLocked = errors.New("datadir: data directory is in use by another server")

// Dir is a data directory root.
type Dir struct {
	root string
}

// Open creates the directory layout under root if needed.
func Open(root string) (Dir, error) {
	if root == "" {
		return Dir{}, fmt.Errorf("datadir: root is empty")
	}
	dir := Dir{root: root}
	for _, path := range []string{root, dir.JobsDir(), dir.RepositoriesDir()} {
		if err := os.MkdirAll(path, 0o750); err != nil {
			return Dir{}, fmt.Errorf("datadir: creating %s: %w", path, err)
		}
	}
	return dir, nil
}

// Root returns the directory itself.
func (d Dir) Root() string { return d.root }

// DatabasePath is the SQLite database file.
func (d Dir) DatabasePath() string { return filepath.Join(d.root, "littleci.db") }

// JobsDir holds per-job output directories.
func (d Dir) JobsDir() string { return filepath.Join(d.root, "jobs") }

// RepositoriesDir holds the default working directory of each
// repository.
func (d Dir) RepositoriesDir() string { return filepath.Join(d.root, "repositories") }

// KeysDir holds the token signing keypair.
func (d Dir) KeysDir() string { return d.root }

func (d Dir) lockPath() string { return filepath.Join(d.root, "littleci.lock") }

// Lock is an exclusive hold on a data directory.
type Lock struct {
	file *os.File
}

// Lock takes the server lock without blocking. The lock lasts until
// Release or process exit; the kernel drops it if the process dies.
// The file records the holder's pid for diagnostics.
func (d Dir) Lock() (*Lock, error) {
	file, err := os.OpenFile(d.lockPath(), os.O_CREATE|os.O_RDWR, 0o640)
	if err != nil {
		return nil, fmt.Errorf("datadir: opening lock: %w", err)
	}
	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		holder := readHolder(file)
		file.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			if holder != 0 {
				return nil, fmt.Errorf("%w (pid %d)", ErrLocked, holder)
			}
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("datadir: locking %s: %w", d.lockPath(), err)
	}

	if err := file.Truncate(0); err == nil {
		file.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)
	}
	return &Lock{file: file}, nil
}

// Release drops the lock.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	unlockErr := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil
	return errors.Join(unlockErr, closeErr)
}

func readHolder(file *os.File) int {
	buffer := make([]byte, 32)
	n, _ := file.ReadAt(buffer, 0)
	pid, err := strconv.Atoi(strings.TrimSpace(string(buffer[:n])))
	if err != nil {
		return 0
	}
	return pid
}
