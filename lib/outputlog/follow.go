// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

package outputlog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/littleci/littleci/lib/clock"
)

// DefaultFollowInterval is how often a follower checks for new bytes
// once it has caught up with the writer.
const DefaultFollowInterval = 250 * time.Millisecond

// FollowConfig controls a live read of a job's output.
type FollowConfig struct {
	// Finished reports whether the job has reached a terminal state.
	// Once it returns true the follower drains what remains and then
	// returns io.EOF. Required.
	Finished func(ctx context.Context) (bool, error)

	// Clock paces the polling. Defaults to the real clock.
	Clock clock.Clock

	// PollInterval defaults to DefaultFollowInterval.
	PollInterval time.Duration
}

// Follow returns a reader that yields the job's output as it is
// written and reaches io.EOF only after the job is finished and every
// byte has been read. Reads block while the writer is idle. Cancelling
// ctx makes a blocked Read return ctx.Err().
//
// The file may not exist yet (the job is still queued); the follower
// waits for it to appear or for the job to finish.
func (s *Store) Follow(ctx context.Context, jobID string, cfg FollowConfig) (io.ReadCloser, error) {
	if cfg.Finished == nil {
		return nil, fmt.Errorf("outputlog: FollowConfig.Finished is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultFollowInterval
	}
	path, err := s.Path(jobID)
	if err != nil {
		return nil, err
	}
	return &follower{ctx: ctx, path: path, config: cfg}, nil
}

type follower struct {
	ctx    context.Context
	path   string
	config FollowConfig
	file   *os.File

	// draining is set once Finished has returned true. The next EOF
	// is final.
	draining bool
}

func (f *follower) Read(buffer []byte) (int, error) {
	for {
		if err := f.ctx.Err(); err != nil {
			return 0, err
		}

		if f.file == nil {
			file, err := os.Open(f.path)
			switch {
			case err == nil:
				f.file = file
			case !errors.Is(err, fs.ErrNotExist):
				return 0, fmt.Errorf("outputlog: opening %s: %w", f.path, err)
			case f.draining:
				return 0, io.EOF
			}
		}

		if f.file != nil {
			count, err := f.file.Read(buffer)
			if count > 0 {
				return count, nil
			}
			if err != nil && err != io.EOF {
				return 0, err
			}
			if f.draining {
				return 0, io.EOF
			}
		}

		// Caught up. Ask whether more can come before waiting. The
		// finished check happens before the final drain so bytes
		// written just before the job finished are still returned.
		finished, err := f.config.Finished(f.ctx)
		if err != nil {
			return 0, err
		}
		if finished {
			f.draining = true
			continue
		}

		select {
		case <-f.ctx.Done():
			return 0, f.ctx.Err()
		case <-f.config.Clock.After(f.config.PollInterval):
		}
	}
}

func (f *follower) Close() error {
	if f.file == nil {
		return nil
	}
	return f.file.Close()
}
