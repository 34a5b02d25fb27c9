// Package engine implements the pure mutation reducer for session
// documents.
//
// Apply is the single definition of document semantics. Both sides run it:
// clients apply mutations optimistically to their replica, and the
// coordinator applies the same function authoritatively before broadcasting.
// Convergence depends on both sides computing identical results, so Apply
// is total, deterministic, and free of I/O, clocks, and randomness.
//
// Failure model: Apply never returns an error and never panics on input.
// Out-of-range numerics clamp; invalid indices and unknown track ids are
// no-ops. This favors availability and convergence over strict validation;
// rejection belongs at the transport boundary (internal/message codec),
// before a message reaches this package.
//
// Mutations are applied copy-on-write: only the changed track and the
// document header are cloned, everything else is shared with the input.
// The input document is never modified.
package engine
