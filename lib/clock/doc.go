// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// The job store stamps every status transition with Clock.Now, the
// engine schedules its idle poll and its SIGKILL escalation through
// After and AfterFunc, and session tokens check expiry against Now. In
// production Real() wraps the time package; tests use Fake() and move
// time explicitly with Advance.
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	store, _ := store.Open(store.Config{Clock: c, ...})
//	c.Advance(time.Second) // next transition is stamped one second later
package clock
