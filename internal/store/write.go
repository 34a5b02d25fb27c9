package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/adewale/keyboardia/internal/message"
	"github.com/adewale/keyboardia/internal/state"
)

// EnsureSession creates a session row if it does not exist. Idempotent.
func (s *Store) EnsureSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id) VALUES (?)
		ON CONFLICT(id) DO NOTHING
	`, sessionID)
	if err != nil {
		return fmt.Errorf("ensure session %s: %w", sessionID, err)
	}
	return nil
}

// AppendMutation appends one accepted mutation to the session log at the
// given server sequence number and advances the session's last_seq.
//
// Uses ON CONFLICT DO NOTHING on (session_id, seq) for idempotency: a
// crash-recovery replay of the same sequence is silently ignored.
func (s *Store) AppendMutation(ctx context.Context, sessionID string, seq int64, clientID string, m message.Message) error {
	payload, err := message.Encode(m)
	if err != nil {
		return fmt.Errorf("append mutation: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append mutation: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO mutations (session_id, seq, type, payload, client_id)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id, seq) DO NOTHING
	`, sessionID, seq, m.Type(), string(payload), clientID)
	if err != nil {
		return fmt.Errorf("append mutation: insert: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE sessions SET last_seq = MAX(last_seq, ?) WHERE id = ?
	`, seq, sessionID)
	if err != nil {
		return fmt.Errorf("append mutation: advance last_seq: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append mutation: commit: %w", err)
	}
	return nil
}

// SaveSnapshot stores a full document at the given server sequence.
// Snapshots bound replay cost; the mutation log remains the authority.
//
// Snapshots use the full JSON form, not the canonical form: canonical JSON
// deliberately drops Version, which a restored session needs.
func (s *Store) SaveSnapshot(ctx context.Context, sessionID string, seq int64, doc *state.SessionState) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("save snapshot %s@%d: %w", sessionID, seq, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (session_id, seq, state)
		VALUES (?, ?, ?)
		ON CONFLICT(session_id, seq) DO NOTHING
	`, sessionID, seq, string(payload))
	if err != nil {
		return fmt.Errorf("save snapshot %s@%d: %w", sessionID, seq, err)
	}
	return nil
}

// PruneSnapshots removes all but the most recent snapshot of a session.
func (s *Store) PruneSnapshots(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM snapshots
		WHERE session_id = ?
		  AND seq < (SELECT MAX(seq) FROM snapshots WHERE session_id = ?)
	`, sessionID, sessionID)
	if err != nil {
		return fmt.Errorf("prune snapshots %s: %w", sessionID, err)
	}
	return nil
}
