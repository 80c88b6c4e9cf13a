// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

// Package auth authenticates users of the management API.
//
// Passwords are stored as argon2id hashes in PHC string format
// ($argon2id$v=19$m=...,t=...,p=...$salt$hash). A successful login
// mints a session token: a CBOR payload (subject, issue and expiry
// time, random id) followed by a 64-byte Ed25519 signature, encoded
// as unpadded base64url so it fits an Authorization header. The
// signing keypair lives in the data directory and is generated on
// first start.
//
// Tokens are verified statelessly. Logging out adds the token id to
// an in-memory revocation list that forgets entries once the token
// would have expired anyway; a restart therefore un-revokes tokens
// that are still within their lifetime.
//
// With authentication mode "none" every request acts as the
// principal "anonymous" and no token is required.
package auth
