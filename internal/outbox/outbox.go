// Package outbox buffers outgoing mutations while a client is offline.
//
// Admission is priority-aware: structural must-not-lose messages survive
// overflow, regeneratable chatter is evicted first, and messages that are
// meaningless once stale are never admitted at all. Replay on reconnect is
// priority-major and enqueue-time-minor, drops stale or oversized entries,
// and always leaves the queue empty: replay is at-most-once per reconnect
// cycle.
//
// The queue has no internal locking beyond one mutex; it is designed for a
// single logical thread of control on the client.
package outbox

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/adewale/keyboardia/internal/message"
	"github.com/adewale/keyboardia/internal/state"
)

// Defaults for queue tuning; overridable through Options.
const (
	DefaultMaxSize = 256
	DefaultMaxAge  = 2 * time.Minute
)

// Entry is one buffered message with its admission bookkeeping.
type Entry struct {
	Msg        message.Message
	Priority   message.Priority
	EnqueuedAt time.Time
}

// Options tunes queue capacity and staleness.
type Options struct {
	// MaxSize bounds the number of buffered entries. Zero means
	// DefaultMaxSize.
	MaxSize int
	// MaxAge is the oldest an entry may be at replay time. Zero means
	// DefaultMaxAge.
	MaxAge time.Duration
	// Now overrides the clock for tests. Nil means time.Now.
	Now func() time.Time
}

// Queue is the client-side offline message buffer.
type Queue struct {
	mu      sync.Mutex
	entries []Entry
	maxSize int
	maxAge  time.Duration
	now     func() time.Time

	dropped uint64
	evicted uint64
}

// New creates an empty queue.
func New(opts Options) *Queue {
	if opts.MaxSize <= 0 {
		opts.MaxSize = DefaultMaxSize
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = DefaultMaxAge
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Queue{
		maxSize: opts.MaxSize,
		maxAge:  opts.MaxAge,
		now:     opts.Now,
	}
}

// Enqueue admits a message to the buffer.
//
// Never-queued variants are dropped unconditionally. On overflow the oldest
// low-priority entry is evicted; failing that, the oldest normal-priority
// entry; if only high-priority entries remain, the incoming message is
// dropped instead. Returns true if the message was admitted.
func (q *Queue) Enqueue(m message.Message) bool {
	if !message.Queueable(m) {
		return false
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) >= q.maxSize {
		if !q.evictOne() {
			q.dropped++
			slog.Debug("outbox full of high-priority entries, dropping message",
				"type", m.Type(),
			)
			return false
		}
	}

	q.entries = append(q.entries, Entry{
		Msg:        m,
		Priority:   message.Classify(m),
		EnqueuedAt: q.now(),
	})
	return true
}

// evictOne removes the oldest evictable entry. High priority is never
// evicted. Caller holds the lock.
func (q *Queue) evictOne() bool {
	for _, class := range []message.Priority{message.PriorityLow, message.PriorityNormal} {
		oldest := -1
		for i, e := range q.entries {
			if e.Priority != class {
				continue
			}
			if oldest < 0 || e.EnqueuedAt.Before(q.entries[oldest].EnqueuedAt) {
				oldest = i
			}
		}
		if oldest >= 0 {
			evictedType := q.entries[oldest].Msg.Type()
			q.entries = append(q.entries[:oldest], q.entries[oldest+1:]...)
			q.evicted++
			slog.Debug("outbox evicted entry",
				"type", evictedType,
				"priority", class.String(),
			)
			return true
		}
	}
	return false
}

// Replay delivers buffered messages to sink in priority-major,
// enqueue-time-minor order. Entries past MaxAge and entries whose encoded
// size exceeds the transport ceiling are dropped, not sent. The queue is
// cleared unconditionally afterwards, whether or not the sink failed on
// some message. Returns the number of messages delivered.
func (q *Queue) Replay(sink func(message.Message) error) int {
	q.mu.Lock()
	entries := q.entries
	q.entries = nil
	q.mu.Unlock()

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Priority != entries[j].Priority {
			return entries[i].Priority < entries[j].Priority
		}
		return entries[i].EnqueuedAt.Before(entries[j].EnqueuedAt)
	})

	now := q.now()
	sent := 0
	for _, e := range entries {
		if now.Sub(e.EnqueuedAt) > q.maxAge {
			slog.Debug("outbox dropping stale entry", "type", e.Msg.Type())
			continue
		}
		if message.EncodedSize(e.Msg) > state.MaxMessageBytes {
			slog.Warn("outbox dropping oversized entry", "type", e.Msg.Type())
			continue
		}
		if err := sink(e.Msg); err != nil {
			slog.Warn("outbox replay send failed",
				"type", e.Msg.Type(),
				"error", err,
			)
			continue
		}
		sent++
	}
	return sent
}

// Clear discards every buffered entry.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = nil
}

// Len returns the number of buffered entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Entries returns a copy of the buffer in admission order. For tests and
// diagnostics.
func (q *Queue) Entries() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Entry, len(q.entries))
	copy(out, q.entries)
	return out
}

// Stats reports lifetime drop and eviction counts.
func (q *Queue) Stats() (dropped, evicted uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped, q.evicted
}
