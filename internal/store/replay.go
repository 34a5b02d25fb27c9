package store

import (
	"context"
	"fmt"

	"github.com/adewale/keyboardia/internal/engine"
	"github.com/adewale/keyboardia/internal/state"
)

// ReplaySession reconstructs a session document from durable storage:
// latest snapshot (or an empty document) plus every logged mutation after
// it, folded through the pure reducer in sequence order. Returns the
// document and the sequence it is current to.
//
// Replay of the same log always yields the same document; the reducer is
// deterministic and the log order is total.
func (s *Store) ReplaySession(ctx context.Context, sessionID string) (*state.SessionState, int64, error) {
	if _, err := s.SessionInfo(ctx, sessionID); err != nil {
		return nil, 0, err
	}

	doc, seq, err := s.LoadLatestSnapshot(ctx, sessionID)
	if err != nil {
		return nil, 0, fmt.Errorf("replay %s: %w", sessionID, err)
	}
	if doc == nil {
		doc = state.NewSessionState()
	}

	records, err := s.ReadMutationsSince(ctx, sessionID, seq)
	if err != nil {
		return nil, 0, fmt.Errorf("replay %s: %w", sessionID, err)
	}

	for _, rec := range records {
		doc = engine.Apply(doc, rec.Msg)
		doc.Version = rec.Seq
		seq = rec.Seq
	}

	return doc, seq, nil
}
