// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the command framework for the littleci binary: a
// tree of [Command] values dispatched by name, pflag-based flag
// parsing driven by struct tags ([FlagsFromParams]), typo suggestions
// for unknown commands and flags, and the output helpers shared by
// every subcommand (JSON emission, styled tables, a terminal-aware
// structured logger, password prompts).
//
// Commands write to the [IO] they were built with rather than to the
// process's standard streams, so the whole tree can be driven from
// tests.
package cli
