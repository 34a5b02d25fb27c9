package coordinator

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/adewale/keyboardia/internal/engine"
	"github.com/adewale/keyboardia/internal/message"
	"github.com/adewale/keyboardia/internal/state"
	"github.com/adewale/keyboardia/internal/store"
)

// DefaultSnapshotEvery is how many accepted mutations elapse between
// durable snapshots.
const DefaultSnapshotEvery = 64

// DefaultSubscriberBuffer is the outbound frame buffer per subscriber.
// A subscriber that falls this far behind starts losing frames, which its
// own sync health monitor will detect as a gap and repair via snapshot.
const DefaultSubscriberBuffer = 256

// Session is the single-writer authority for one shared document.
type Session struct {
	id            string
	store         *store.Store // nil for in-memory sessions
	clock         *Clock
	queue         *eventQueue
	snapshotEvery int64

	mu   sync.Mutex
	cur  *state.SessionState
	subs map[string]chan []byte
}

// SessionOption configures a session.
type SessionOption func(*Session)

// WithSnapshotEvery sets the mutation interval between durable snapshots.
func WithSnapshotEvery(n int64) SessionOption {
	return func(s *Session) {
		if n > 0 {
			s.snapshotEvery = n
		}
	}
}

// NewSession creates a session resuming from the given document and last
// server sequence. Pass a nil store for an in-memory session.
func NewSession(id string, doc *state.SessionState, lastSeq int64, st *store.Store, opts ...SessionOption) *Session {
	if doc == nil {
		doc = state.NewSessionState()
	}
	s := &Session{
		id:            id,
		store:         st,
		clock:         NewClockAt(lastSeq),
		queue:         newEventQueue(),
		snapshotEvery: DefaultSnapshotEvery,
		cur:           doc,
		subs:          make(map[string]chan []byte),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Seq returns the last assigned server sequence number.
func (s *Session) Seq() int64 { return s.clock.Current() }

// Submit enqueues a client message for authoritative processing.
// Safe from any goroutine. Returns false if the session has stopped.
func (s *Session) Submit(ev Event) bool {
	return s.queue.Enqueue(ev)
}

// Subscribe registers a connection for broadcast frames. Returns the frame
// channel and an unsubscribe function. A slow subscriber loses frames
// rather than stalling the loop.
func (s *Session) Subscribe(clientID string) (<-chan []byte, func()) {
	ch := make(chan []byte, DefaultSubscriberBuffer)

	s.mu.Lock()
	s.subs[clientID] = ch
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		if cur, ok := s.subs[clientID]; ok && cur == ch {
			delete(s.subs, clientID)
		}
		s.mu.Unlock()
	}
}

// State returns a deep copy of the current document.
func (s *Session) State() *state.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur.Clone()
}

// SnapshotFrame builds a snapshot frame of the current document, anchored
// at the current server sequence.
func (s *Session) SnapshotFrame() ([]byte, error) {
	s.mu.Lock()
	doc := s.cur
	s.mu.Unlock()

	stateJSON, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return message.EncodeFrame(&message.ServerFrame{
		Type:      message.FrameSnapshot,
		State:     stateJSON,
		ServerSeq: s.clock.Current(),
	})
}

// Run starts the single-writer event loop. Blocks until the context is
// cancelled or Stop is called.
//
// On processing failure the error is logged with event context and the
// loop continues: retries would make replay non-deterministic, and a
// skipped event is repaired by the next client snapshot cycle.
func (s *Session) Run(ctx context.Context) error {
	slog.Info("session starting", "session", s.id, "seq", s.clock.Current())

	for {
		ev, ok := s.queue.TryDequeue()
		if ok {
			if err := s.processEvent(ctx, ev); err != nil {
				slog.Error("event processing failed",
					"session", s.id,
					"client", ev.ClientID,
					"type", ev.Msg.Type(),
					"error", err,
				)
			}
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("session stopping: context cancelled", "session", s.id)
			s.queue.Close()
			return ctx.Err()

		case <-s.queue.Wait():
			if s.queue.Len() == 0 {
				slog.Info("session stopping: queue closed", "session", s.id)
				return nil
			}
		}
	}
}

// Stop gracefully shuts down the session loop.
func (s *Session) Stop() {
	s.queue.Close()
}

// processEvent routes one event. Called only from the Run goroutine.
func (s *Session) processEvent(ctx context.Context, ev Event) error {
	if !message.Mutating(ev.Msg) {
		return s.processTransient(ev)
	}

	if message.LocalOnly(ev.Msg) {
		// Mute/solo are per-client; a client that sends one anyway gets
		// it ignored rather than sequenced into the shared log.
		slog.Debug("ignoring local-only message",
			"session", s.id,
			"client", ev.ClientID,
			"type", ev.Msg.Type(),
		)
		return nil
	}

	seq := s.clock.Next()

	s.mu.Lock()
	next := engine.Apply(s.cur, ev.Msg)
	next.Version = seq
	s.cur = next
	hash := next.Hash()
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.AppendMutation(ctx, s.id, seq, ev.ClientID, ev.Msg); err != nil {
			// Log and continue: the in-memory document stays authoritative
			// for connected clients; durability catches up at the next
			// snapshot.
			slog.Error("append mutation failed",
				"session", s.id,
				"seq", seq,
				"error", err,
			)
		}
		if seq%s.snapshotEvery == 0 {
			s.persistSnapshot(ctx, seq)
		}
	}

	payload, err := message.Encode(ev.Msg)
	if err != nil {
		return err
	}
	frame, err := message.EncodeFrame(&message.ServerFrame{
		Type:      message.FrameMutation,
		Seq:       seq,
		ClientID:  ev.ClientID,
		ClientSeq: ev.ClientSeq,
		Hash:      hash,
		Payload:   payload,
	})
	if err != nil {
		return err
	}
	s.broadcast(frame)

	slog.Debug("mutation applied",
		"session", s.id,
		"seq", seq,
		"type", ev.Msg.Type(),
		"client", ev.ClientID,
	)
	return nil
}

// processTransient handles the non-mutating variants: snapshot requests,
// hash checks, clock sync, and relayed transport/cursor chatter.
func (s *Session) processTransient(ev Event) error {
	switch msg := ev.Msg.(type) {
	case *message.RequestSnapshot:
		frame, err := s.SnapshotFrame()
		if err != nil {
			return err
		}
		s.sendTo(ev.ClientID, frame)
		return nil

	case *message.StateHash:
		s.mu.Lock()
		matched := s.cur.Hash() == msg.Hash
		s.mu.Unlock()
		frame, err := message.EncodeFrame(&message.ServerFrame{
			Type:      message.FrameHashResult,
			Matched:   &matched,
			ServerSeq: s.clock.Current(),
		})
		if err != nil {
			return err
		}
		s.sendTo(ev.ClientID, frame)
		return nil

	case *message.ClockSyncRequest:
		frame, err := message.EncodeFrame(&message.ServerFrame{
			Type:       message.FrameClockSync,
			ClientTime: msg.ClientTime,
			ServerTime: time.Now().UnixMilli(),
		})
		if err != nil {
			return err
		}
		s.sendTo(ev.ClientID, frame)
		return nil

	default:
		// play / stop / cursor_move relay to everyone without a sequence.
		payload, err := message.Encode(ev.Msg)
		if err != nil {
			return err
		}
		frame, err := message.EncodeFrame(&message.ServerFrame{
			Type:     message.FrameTransient,
			ClientID: ev.ClientID,
			Payload:  payload,
		})
		if err != nil {
			return err
		}
		s.broadcast(frame)
		return nil
	}
}

func (s *Session) persistSnapshot(ctx context.Context, seq int64) {
	s.mu.Lock()
	doc := s.cur.Clone()
	s.mu.Unlock()

	if err := s.store.SaveSnapshot(ctx, s.id, seq, doc); err != nil {
		slog.Error("save snapshot failed", "session", s.id, "seq", seq, "error", err)
		return
	}
	if err := s.store.PruneSnapshots(ctx, s.id); err != nil {
		slog.Warn("prune snapshots failed", "session", s.id, "error", err)
	}
}

// broadcast fans a frame out to every subscriber without blocking the
// loop. A full subscriber buffer drops the frame; the subscriber's health
// monitor sees the sequence gap and recovers via snapshot.
func (s *Session) broadcast(frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for clientID, ch := range s.subs {
		select {
		case ch <- frame:
		default:
			slog.Warn("subscriber buffer full, dropping frame",
				"session", s.id,
				"client", clientID,
			)
		}
	}
}

func (s *Session) sendTo(clientID string, frame []byte) {
	s.mu.Lock()
	ch, ok := s.subs[clientID]
	s.mu.Unlock()

	if !ok {
		return
	}
	select {
	case ch <- frame:
	default:
		slog.Warn("subscriber buffer full, dropping frame",
			"session", s.id,
			"client", clientID,
		)
	}
}
