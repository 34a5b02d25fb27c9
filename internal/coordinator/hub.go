package coordinator

import (
	"context"
	"log/slog"
	"sync"

	"github.com/adewale/keyboardia/internal/store"
)

// Hub owns the live sessions of one server process. Sessions are created
// lazily on first access, restored from the store when they have history.
type Hub struct {
	store         *store.Store
	snapshotEvery int64

	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	sessions map[string]*Session
}

// HubOption configures a hub.
type HubOption func(*Hub)

// WithHubSnapshotEvery sets the snapshot interval for sessions the hub
// creates.
func WithHubSnapshotEvery(n int64) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.snapshotEvery = n
		}
	}
}

// NewHub creates a hub backed by the given store.
func NewHub(st *store.Store, opts ...HubOption) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		store:         st,
		snapshotEvery: DefaultSnapshotEvery,
		ctx:           ctx,
		cancel:        cancel,
		sessions:      make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Open returns the live session for id, restoring it from the store or
// creating it fresh. The session loop is started on first access.
func (h *Hub) Open(ctx context.Context, id string) (*Session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sess, ok := h.sessions[id]; ok {
		return sess, nil
	}

	if err := h.store.EnsureSession(ctx, id); err != nil {
		return nil, err
	}
	doc, lastSeq, err := h.store.ReplaySession(ctx, id)
	if err != nil {
		return nil, err
	}

	sess := NewSession(id, doc, lastSeq, h.store, WithSnapshotEvery(h.snapshotEvery))
	h.sessions[id] = sess

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if err := sess.Run(h.ctx); err != nil && err != context.Canceled {
			slog.Error("session loop exited", "session", id, "error", err)
		}
		h.mu.Lock()
		delete(h.sessions, id)
		h.mu.Unlock()
	}()

	slog.Info("session opened", "session", id, "seq", lastSeq)
	return sess, nil
}

// Len returns the number of live sessions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Close stops every session loop and waits for them to drain.
func (h *Hub) Close() {
	h.cancel()
	h.wg.Wait()
}
