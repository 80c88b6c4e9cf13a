// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

// Package outputlog stores the combined stdout/stderr stream of each
// job as an append-only file under <data_dir>/jobs/<job_id>/output.log.
//
// Exactly one writer (the engine's worker) appends to a job's file for
// the lifetime of the job. Any number of readers may open it at the
// same time, including while the process is still writing: [Store.Open]
// returns the bytes written so far, and [Store.Follow] keeps reading
// until the job reaches a terminal state. Files are never truncated;
// they are removed only when the owning repository is purged.
//
// Finished output can be exported as a compressed archive (zstd or
// lz4 frame format) and fingerprinted with a BLAKE3-256 digest.
package outputlog
