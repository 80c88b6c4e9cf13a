// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

// Package store is LittleCI's durable state: repositories, users, jobs
// (the queue table) and the append-only transition log of every job
// (the queue_logs table).
//
// The store is the only state shared between the HTTP handlers, the
// admin socket and the execution workers. Every status change goes
// through one IMMEDIATE transaction that updates the job row and
// appends its log row together, so a job's status is always the status
// of its latest log entry and its updated_at is that entry's
// created_at.
//
// # Job lifecycle
//
//	queued ──claim──▶ running ──exit 0──▶ completed
//	   │                 ├────exit N───▶ failed
//	   │                 └───cancel────▶ cancelled
//	   └──────cancel─────────────────────▶ cancelled
//
// exit_code is set exactly when the status is completed or failed; a
// CHECK constraint on the queue table holds the same rule. Terminal
// states are never left.
//
// # Claiming
//
// [Store.ClaimNext] selects the oldest queued job (by created_at, then
// id) whose repository has no running job and moves it to running in
// the same transaction. There is no intermediate "claimed" state: a
// job is claimable until the instant it is running. A partial unique
// index on queue(repository_id) WHERE status = 'running' makes a
// second running job per repository impossible at the database level.
//
// # Deletion
//
// [Store.MarkDeleted] hides a repository from listings and triggers
// but keeps its jobs queryable by id. [Store.Purge] removes the row and
// cascades to its jobs and their logs.
package store
