// Package tracker keeps client-local bookkeeping for in-flight mutations
// and reconciles it against authoritative snapshots.
//
// The race it exists to close: a snapshot is generated at server sequence
// N while a mutation from this client is still being applied; the mutation
// is acknowledged at N+k. Naively clearing all tracked mutations on
// snapshot receipt would discard that edit's bookkeeping. Instead, each
// confirmed mutation remembers the server sequence at which it was applied
// and is only swept once a snapshot provably subsumes it.
package tracker

import (
	"sort"
	"sync"
	"time"

	"github.com/adewale/keyboardia/internal/message"
)

// Delivery states of a tracked mutation.
type DeliveryState string

const (
	StatePending   DeliveryState = "pending"
	StateConfirmed DeliveryState = "confirmed"
	StateFailed    DeliveryState = "failed"
)

// DefaultMaxConfirmedAge is the age fallback for snapshots that carry no
// sequence number.
const DefaultMaxConfirmedAge = 60 * time.Second

// TrackedMutation wraps an outgoing message with delivery bookkeeping.
type TrackedMutation struct {
	// ClientSeq is the locally-assigned monotonic sequence number.
	ClientSeq int64
	// Msg is the outgoing message.
	Msg message.Message
	// SentAt is when the mutation was dispatched.
	SentAt time.Time
	// State is the delivery state.
	State DeliveryState
	// ConfirmedAtServerSeq is the server sequence at which the coordinator
	// applied this mutation. Zero until confirmed.
	ConfirmedAtServerSeq int64
}

// Tracker records dispatched mutations until a snapshot proves them
// subsumed. One mutex; confined to the client's logical thread of control.
type Tracker struct {
	mu      sync.Mutex
	nextSeq int64
	tracked map[int64]*TrackedMutation
	maxAge  time.Duration
	now     func() time.Time
}

// Options tunes the tracker.
type Options struct {
	// MaxConfirmedAge bounds how long a confirmed mutation survives when
	// snapshots carry no sequence number. Zero means
	// DefaultMaxConfirmedAge.
	MaxConfirmedAge time.Duration
	// Now overrides the clock for tests. Nil means time.Now.
	Now func() time.Time
}

// New creates an empty tracker.
func New(opts Options) *Tracker {
	if opts.MaxConfirmedAge <= 0 {
		opts.MaxConfirmedAge = DefaultMaxConfirmedAge
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Tracker{
		tracked: make(map[int64]*TrackedMutation),
		maxAge:  opts.MaxConfirmedAge,
		now:     opts.Now,
	}
}

// Track records a dispatched mutation and returns its client sequence
// number.
func (tr *Tracker) Track(m message.Message) int64 {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	tr.nextSeq++
	tr.tracked[tr.nextSeq] = &TrackedMutation{
		ClientSeq: tr.nextSeq,
		Msg:       m,
		SentAt:    tr.now(),
		State:     StatePending,
	}
	return tr.nextSeq
}

// Confirm marks a tracked mutation as applied by the coordinator at the
// given server sequence. The mutation is retained: only a snapshot sweep
// deletes it, because only a snapshot proves it subsumed.
func (tr *Tracker) Confirm(clientSeq, serverSeq int64) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	if tm, ok := tr.tracked[clientSeq]; ok {
		tm.State = StateConfirmed
		tm.ConfirmedAtServerSeq = serverSeq
	}
}

// Fail marks a tracked mutation as undeliverable.
func (tr *Tracker) Fail(clientSeq int64) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	if tm, ok := tr.tracked[clientSeq]; ok {
		tm.State = StateFailed
	}
}

// SweepSnapshot prunes bookkeeping against a snapshot generated at
// snapshotServerSeq. Mutations confirmed at or before the snapshot's cut
// line are provably reflected in it and are deleted; mutations confirmed
// after it, and mutations still pending, are retained. Returns the number
// swept.
func (tr *Tracker) SweepSnapshot(snapshotServerSeq int64) int {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	swept := 0
	for seq, tm := range tr.tracked {
		if tm.State == StateConfirmed && tm.ConfirmedAtServerSeq <= snapshotServerSeq {
			delete(tr.tracked, seq)
			swept++
		}
	}
	return swept
}

// SweepStale is the fallback for snapshots that carry no sequence number:
// confirmed mutations older than the maximum age are swept regardless, and
// failed mutations past the same age are discarded. Returns the number
// swept.
func (tr *Tracker) SweepStale() int {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	cutoff := tr.now().Add(-tr.maxAge)
	swept := 0
	for seq, tm := range tr.tracked {
		if tm.State == StatePending {
			continue
		}
		if tm.SentAt.Before(cutoff) {
			delete(tr.tracked, seq)
			swept++
		}
	}
	return swept
}

// Get returns the tracked mutation for a client sequence, or nil.
func (tr *Tracker) Get(clientSeq int64) *TrackedMutation {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	if tm, ok := tr.tracked[clientSeq]; ok {
		out := *tm
		return &out
	}
	return nil
}

// Pending returns copies of all unconfirmed mutations in dispatch order.
// Snapshot recovery replays these on top of the authoritative document.
func (tr *Tracker) Pending() []*TrackedMutation {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	var out []*TrackedMutation
	for _, tm := range tr.tracked {
		if tm.State != StatePending {
			continue
		}
		cp := *tm
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ClientSeq < out[j].ClientSeq
	})
	return out
}

// PendingCount returns the number of mutations not yet confirmed.
func (tr *Tracker) PendingCount() int {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	n := 0
	for _, tm := range tr.tracked {
		if tm.State == StatePending {
			n++
		}
	}
	return n
}

// Len returns the total number of tracked mutations.
func (tr *Tracker) Len() int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return len(tr.tracked)
}

// Reset discards all bookkeeping. Intended for a full disconnect.
func (tr *Tracker) Reset() {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.tracked = make(map[int64]*TrackedMutation)
}
