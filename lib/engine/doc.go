// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

// Package engine turns authorized triggers into jobs and runs them.
//
// An [Engine] owns a fixed pool of workers. Each worker repeats one
// loop: claim the next runnable job from the store (the claim is the
// transition to running), execute the repository's command to
// completion, record the terminal state, and claim again. A worker
// that finds nothing to claim sleeps until an enqueue wakes it or the
// poll interval passes.
//
// Every running job has an entry in the engine's run table holding
// the cancel function of the job's context. Cancelling a running job
// cancels that context; the goroutine supervising the process sends
// SIGTERM to its process group, escalates to SIGKILL after the grace
// period, and records the job as cancelled. A cancellation that
// arrives between the claim and the worker's registration is parked
// and applied at registration, so the process is never started.
//
// On shutdown the engine stops claiming and waits for in-flight jobs
// up to the shutdown timeout. Jobs still running after that are
// killed without a recorded outcome; the next start finds them
// running and fails them with [store.ExitOrphaned].
package engine
