// Package store provides durable storage for sessions: an append-only
// mutation log keyed by server sequence number, plus periodic full-state
// snapshots.
//
// A session is reconstructed by loading the latest snapshot and folding the
// mutations after it through the pure reducer in deterministic order
// (ORDER BY seq ASC). Because the reducer is deterministic, replay of the
// same log always yields the same document.
//
// SQLite with WAL mode; a single writer per database mirrors the
// coordinator's single-writer discipline.
package store
