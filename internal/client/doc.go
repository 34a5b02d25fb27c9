// Package client is the synchronizing peer: it applies local mutations
// optimistically, ships them to the coordinator, folds in remote
// mutations, and repairs divergence by requesting snapshots.
//
// The moving parts are injected: the offline queue, the delivery tracker,
// the sync health monitor, and the dialer can each be replaced in tests.
package client
