// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool opens the SQLite connection pool behind the job
// store.
//
// It wraps zombiezen.com/go/sqlite's sqlitex.Pool and applies the same
// pragmas to every connection:
//
//   - journal_mode=WAL: the server's workers write while the CLI and
//     HTTP handlers read; readers never block the writer.
//   - synchronous=NORMAL: committed transitions survive a crash of the
//     littleci process. An OS crash can lose the last few commits,
//     which the orphan reconciliation at startup tolerates.
//   - busy_timeout=5000: a second process (the CLI editing
//     repositories while the server runs) waits for the write lock
//     instead of failing with SQLITE_BUSY.
//   - foreign_keys=ON: purging a repository cascades to its jobs and
//     their transition log.
//   - cache_size=-8192 and temp_store=MEMORY.
//
// Schema is applied once, in a single IMMEDIATE transaction, when the
// pool is opened. Callers then Take a connection, use it from one
// goroutine, and Put it back:
//
//	conn, err := pool.Take(ctx)
//	if err != nil {
//	    return err
//	}
//	defer pool.Put(conn)
package sqlitepool
