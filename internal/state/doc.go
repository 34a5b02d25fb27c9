// Package state defines the shared session document replicated between the
// coordinator and every connected client.
//
// This package contains the document types, their numeric bounds, and the
// canonical serialization used for convergence checks. All other internal
// packages import state; state imports nothing internal.
//
// Key design constraints:
//   - Track step and lock arrays always hold exactly MaxStepsPerTrack
//     entries. StepCount selects the active prefix; trailing entries persist
//     so shrinking a pattern is non-destructive.
//   - Canonical serialization ignores Version and the local-only Muted and
//     Soloed flags. Two replicas that agree on document content produce
//     identical canonical bytes and identical hashes even when their
//     bookkeeping differs.
//   - Documents are replaced wholesale through the pure reducer in
//     internal/engine, never mutated in place across a concurrency boundary.
package state
