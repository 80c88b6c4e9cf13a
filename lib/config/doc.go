// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for LittleCI.
//
// Configuration comes from at most one file, named by the --config flag
// or the LITTLECI_CONFIG environment variable (via [Load]), layered
// over [Default]. Without either the defaults are used unchanged.
// Environment variables never override individual config values.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${LITTLECI_DATA} (the resolved data directory) and
// ${VAR:-default} patterns are expanded.
//
// This package depends on no other LittleCI packages.
package config
