// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the entrypoint helper shared by LittleCI
// binaries: reporting the error returned by run() when the structured
// logger may not exist yet.
package process
