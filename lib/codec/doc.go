// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds LittleCI's CBOR configuration.
//
// JSON is used on the HTTP surface (trigger bodies, the management
// API, outgoing repository webhooks). CBOR is used for the admin Unix
// socket spoken between `littleci serve` and the CLI, and for the
// payload of session tokens. Both sides of those protocols go through
// this package so they encode identically: Core Deterministic Encoding
// (RFC 8949 §4.2), so the same value always yields the same bytes,
// which token signatures depend on.
//
//	data, err := codec.Marshal(token)
//	err = codec.NewDecoder(conn).Decode(&request)
package codec
