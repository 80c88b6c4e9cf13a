// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

// Littleci is a small continuous integration server.
//
// "littleci serve" runs the HTTP API, the build workers and the admin
// socket. The other commands manage a data directory: repository and
// user commands open the SQLite database directly, while commands that
// act on the live queue (job list, job run, job cancel, status) talk
// to the running server over its admin socket.
//
// Every command reads the same YAML configuration, from --config or
// LITTLECI_CONFIG.
package main
