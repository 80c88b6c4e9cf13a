// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

// Package service provides the listeners littleci serve runs: an HTTP
// server for triggers and the management API, and a CBOR request
// response server on a Unix socket for local administration.
//
// Both follow one lifecycle: Serve(ctx) binds, closes Ready(), and
// blocks until ctx is cancelled and in-flight requests drain.
//
// # Authentication
//
// The admin socket has no protocol-level authentication. The socket
// file is mode 0600, so only the user running the server (and root)
// can connect, and every connection is treated as an administrator.
// The HTTP server leaves authentication to its handler.
package service
