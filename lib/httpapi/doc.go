// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

// Package httpapi is the HTTP surface of a LittleCI server: trigger
// endpoints for forges and scripts, the JSON management API, and
// /metrics.
//
// Trigger endpoints authenticate with the repository secret (a secret
// key, or an HMAC signature from GitHub or Gitea). Management
// endpoints require a bearer session token from POST /api/login when
// the server runs with simple authentication.
//
// Errors are JSON objects {"error": "..."} with a status derived from
// the engine error: store.ErrNotFound is 404, store.ErrInvalid 422,
// store.ErrConflict 409, *trigger.Error carries its own status.
package httpapi
