// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"sync"
	"time"
)

// Revocations is a concurrency-safe set of revoked token ids. Each
// entry remembers when its token expires; Cleanup drops entries for
// tokens that verification would reject anyway.
type Revocations struct {
	mu      sync.RWMutex
	entries map[string]time.Time
}

// NewRevocations returns an empty revocation list.
func NewRevocations() *Revocations {
	return &Revocations{entries: make(map[string]time.Time)}
}

// Revoke records tokenID as revoked until expiresAt.
func (r *Revocations) Revoke(tokenID string, expiresAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[tokenID] = expiresAt
}

// IsRevoked reports whether tokenID has been revoked.
func (r *Revocations) IsRevoked(tokenID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, revoked := r.entries[tokenID]
	return revoked
}

// Cleanup removes entries whose token has expired at now and returns
// how many were removed.
func (r *Revocations) Cleanup(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for tokenID, expiresAt := range r.entries {
		if !now.Before(expiresAt) {
			delete(r.entries, tokenID)
			removed++
		}
	}
	return removed
}

// Len returns the number of entries.
func (r *Revocations) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
