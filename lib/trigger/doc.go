// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

// Package trigger authenticates inbound build triggers against a
// repository's secret and turns their payloads into job data.
//
// Three services are understood:
//
//   - Generic: the caller presents the repository secret in the
//     X-Secret-Key header or the "key" query parameter. An optional
//     JSON object body is flattened into job data.
//   - GitHub: the body is signed with HMAC-SHA1 (X-Hub-Signature) or
//     HMAC-SHA256 (X-Hub-Signature-256, preferred) keyed by the
//     repository secret.
//   - Gitea: the body is signed with HMAC-SHA256 (X-Gitea-Signature),
//     or carries the secret in its "secret" field.
//
// Every comparison against the secret is constant-time. A rejected
// trigger never creates state: the caller receives an [*Error] whose
// Kind maps onto an HTTP status.
//
// Service push payloads are projected into LITTLECI_GIT_* variables
// and evaluated against the repository's trigger rules; a trigger
// that authenticates but matches no rule is reported as skipped
// rather than rejected.
package trigger
