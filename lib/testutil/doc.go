// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [SocketDir] returns a short directory under /tmp for Unix sockets,
// whose paths are limited to 108 bytes and so cannot always live under
// t.TempDir().
//
// [RequireReceive], [RequireClosed] and [WaitFor] bound every wait in
// a test with a wall-clock timeout so that a broken engine fails the
// test instead of hanging it. They are the only place tests use real
// timeouts.
package testutil
