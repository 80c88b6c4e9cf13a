// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports the build version of the littleci binary.
//
// Release builds inject values with -ldflags -X:
//
//	go build -ldflags "-X github.com/littleci/littleci/lib/version.Version=1.2.0 \
//	    -X github.com/littleci/littleci/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// Development builds fall back to the VCS stamp the Go toolchain
// records in the binary, and to "unknown" when there is none (tests,
// go run).
package version
