// Package synchealth tracks per-connection synchronization health and
// decides when a replica has diverged enough to require a full resync.
//
// Divergence is never an error: hash mismatches, sequence gaps, and
// reordering are monitored conditions that trigger a corrective snapshot,
// not failures propagated to callers. Thresholds are configuration so
// deployments can tune sensitivity.
package synchealth

import "sync"

// Recovery reasons, ordered by urgency. NeedsRecovery reports the single
// most urgent applicable reason.
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonSequenceGap    Reason = "sequence_gap"
	ReasonOutOfOrder     Reason = "out_of_order"
	ReasonHashMismatches Reason = "hash_mismatches"
)

// Default thresholds.
const (
	DefaultMismatchStreakThreshold = 3
	DefaultGapThreshold            = 5
	DefaultOutOfOrderThreshold     = 10
)

// Config tunes the recovery thresholds. Zero values take defaults.
type Config struct {
	// MismatchStreakThreshold is the consecutive hash-mismatch count that
	// triggers recovery.
	MismatchStreakThreshold int
	// GapThreshold is the minimum single-observation sequence gap that
	// raises the gap-recovery flag.
	GapThreshold int64
	// OutOfOrderThreshold is the cumulative out-of-order count that
	// triggers recovery.
	OutOfOrderThreshold int
}

func (c Config) withDefaults() Config {
	if c.MismatchStreakThreshold <= 0 {
		c.MismatchStreakThreshold = DefaultMismatchStreakThreshold
	}
	if c.GapThreshold <= 0 {
		c.GapThreshold = DefaultGapThreshold
	}
	if c.OutOfOrderThreshold <= 0 {
		c.OutOfOrderThreshold = DefaultOutOfOrderThreshold
	}
	return c
}

// Metrics is an observability snapshot. Lifetime counters survive
// ResetRecoveryFlags; only Reset clears them.
type Metrics struct {
	HashChecks       uint64 `json:"hashChecks"`
	HashMismatches   uint64 `json:"hashMismatches"`
	MismatchStreak   int    `json:"mismatchStreak"`
	LastServerSeq    int64  `json:"lastServerSeq"`
	TotalMissed      int64  `json:"totalMissed"`
	OutOfOrderCount  int    `json:"outOfOrderCount"`
	GapRecoveryFlag  bool   `json:"gapRecoveryFlag"`
	GapRecoverySize  int64  `json:"gapRecoverySize"`
	SeqObservations  uint64 `json:"seqObservations"`
}

// Monitor tracks hash-check results and server sequence numbers for one
// connection. Mutable counters with no built-in cross-goroutine
// coordination beyond a single mutex; callers on multiple goroutines are
// serialized, matching the client's single logical thread of control.
type Monitor struct {
	mu  sync.Mutex
	cfg Config

	hashChecks     uint64
	hashMismatches uint64
	mismatchStreak int

	seen            bool
	lastServerSeq   int64
	totalMissed     int64
	outOfOrderCount int
	seqObservations uint64

	gapFlag bool
	gapSize int64
}

// New creates a monitor with the given thresholds.
func New(cfg Config) *Monitor {
	return &Monitor{cfg: cfg.withDefaults()}
}

// RecordHashCheck records one hash comparison against the coordinator. A
// match resets the consecutive-mismatch streak but not the lifetime
// counters.
func (m *Monitor) RecordHashCheck(matched bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.hashChecks++
	if matched {
		m.mismatchStreak = 0
		return
	}
	m.hashMismatches++
	m.mismatchStreak++
}

// RecordServerSeq records an observed server sequence number.
//
// The first observation is accepted unconditionally. A gap accumulates
// into the lifetime missed total and, at or above the gap threshold,
// raises the gap-recovery flag; the last-seen sequence advances either
// way. A sequence at or below the last-seen one (duplicates included)
// counts as out-of-order and does not advance the last-seen sequence.
func (m *Monitor) RecordServerSeq(seq int64) (missed int64, outOfOrder bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seqObservations++

	if !m.seen {
		m.seen = true
		m.lastServerSeq = seq
		return 0, false
	}

	switch {
	case seq == m.lastServerSeq+1:
		m.lastServerSeq = seq
		return 0, false

	case seq > m.lastServerSeq+1:
		gap := seq - (m.lastServerSeq + 1)
		m.totalMissed += gap
		if gap >= m.cfg.GapThreshold {
			m.gapFlag = true
			m.gapSize = gap
		}
		m.lastServerSeq = seq
		return gap, false

	default: // seq <= lastServerSeq
		m.outOfOrderCount++
		return 0, true
	}
}

// NeedsRecovery reports whether the replica should request a snapshot, and
// the most urgent reason: an active large-gap flag beats cumulative
// reordering, which beats a hash-mismatch streak.
func (m *Monitor) NeedsRecovery() (bool, Reason) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.gapFlag:
		return true, ReasonSequenceGap
	case m.outOfOrderCount > m.cfg.OutOfOrderThreshold:
		return true, ReasonOutOfOrder
	case m.mismatchStreak >= m.cfg.MismatchStreakThreshold:
		return true, ReasonHashMismatches
	default:
		return false, ReasonNone
	}
}

// ResetRecoveryFlags clears only the triggering conditions: the mismatch
// streak, the gap flag, and the out-of-order counter. Intended to be called
// once a resync snapshot has been applied. Lifetime counters survive for
// observability.
func (m *Monitor) ResetRecoveryFlags() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.mismatchStreak = 0
	m.gapFlag = false
	m.gapSize = 0
	m.outOfOrderCount = 0
}

// Reset clears everything, including lifetime counters and the last-seen
// sequence. Intended for a full disconnect.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.hashChecks = 0
	m.hashMismatches = 0
	m.mismatchStreak = 0
	m.seen = false
	m.lastServerSeq = 0
	m.totalMissed = 0
	m.outOfOrderCount = 0
	m.seqObservations = 0
	m.gapFlag = false
	m.gapSize = 0
}

// GetMetrics returns an observability snapshot.
func (m *Monitor) GetMetrics() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Metrics{
		HashChecks:      m.hashChecks,
		HashMismatches:  m.hashMismatches,
		MismatchStreak:  m.mismatchStreak,
		LastServerSeq:   m.lastServerSeq,
		TotalMissed:     m.totalMissed,
		OutOfOrderCount: m.outOfOrderCount,
		GapRecoveryFlag: m.gapFlag,
		GapRecoverySize: m.gapSize,
		SeqObservations: m.seqObservations,
	}
}
