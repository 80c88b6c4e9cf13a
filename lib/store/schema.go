// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

package store

// Timestamps are Unix nanoseconds. The defaults cover rows inserted by
// hand with the sqlite3 shell; the store always supplies its clock's
// time explicitly.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    INTEGER NOT NULL DEFAULT (CAST(unixepoch('subsec') * 1e9 AS INTEGER)),
	updated_at    INTEGER NOT NULL DEFAULT (CAST(unixepoch('subsec') * 1e9 AS INTEGER))
);

CREATE TABLE IF NOT EXISTS repositories (
	id          TEXT PRIMARY KEY,
	slug        TEXT NOT NULL UNIQUE,
	name        TEXT NOT NULL,
	run         TEXT NOT NULL,
	working_dir TEXT NOT NULL DEFAULT '',
	secret      TEXT NOT NULL,
	variables   TEXT NOT NULL DEFAULT '{}',
	triggers    TEXT NOT NULL DEFAULT '[]',
	webhooks    TEXT NOT NULL DEFAULT '[]',
	deleted     INTEGER NOT NULL DEFAULT 0,
	created_at  INTEGER NOT NULL DEFAULT (CAST(unixepoch('subsec') * 1e9 AS INTEGER)),
	updated_at  INTEGER NOT NULL DEFAULT (CAST(unixepoch('subsec') * 1e9 AS INTEGER))
);

CREATE TABLE IF NOT EXISTS queue (
	id            TEXT PRIMARY KEY,
	repository_id TEXT NOT NULL REFERENCES repositories(id) ON DELETE CASCADE,
	status        TEXT NOT NULL
		CHECK (status IN ('queued', 'running', 'completed', 'failed', 'cancelled')),
	exit_code     INTEGER,
	data          TEXT NOT NULL DEFAULT '{}',
	created_at    INTEGER NOT NULL DEFAULT (CAST(unixepoch('subsec') * 1e9 AS INTEGER)),
	updated_at    INTEGER NOT NULL DEFAULT (CAST(unixepoch('subsec') * 1e9 AS INTEGER)),
	CHECK ((exit_code IS NOT NULL) = (status IN ('completed', 'failed'))),
	CHECK (created_at <= updated_at)
);

CREATE INDEX IF NOT EXISTS queue_claim_order
	ON queue (status, created_at, id);

CREATE INDEX IF NOT EXISTS queue_by_repository
	ON queue (repository_id, created_at);

CREATE UNIQUE INDEX IF NOT EXISTS queue_one_running_per_repository
	ON queue (repository_id) WHERE status = 'running';

CREATE TABLE IF NOT EXISTS queue_logs (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	queue_id   TEXT NOT NULL REFERENCES queue(id) ON DELETE CASCADE,
	status     TEXT NOT NULL,
	exit_code  INTEGER,
	created_at INTEGER NOT NULL DEFAULT (CAST(unixepoch('subsec') * 1e9 AS INTEGER))
);

CREATE INDEX IF NOT EXISTS queue_logs_by_job
	ON queue_logs (queue_id, id);
`
