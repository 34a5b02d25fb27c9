package client

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/adewale/keyboardia/internal/engine"
	"github.com/adewale/keyboardia/internal/message"
	"github.com/adewale/keyboardia/internal/state"
)

// textMessage mirrors websocket.TextMessage without forcing the gorilla
// dependency on alternate Conn implementations.
const textMessage = websocket.TextMessage

func dialWebsocket(ctx context.Context, url string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Connect dials the session endpoint and starts the receive loop. The
// initial dial retries with exponential backoff until the context is
// cancelled. Once connected the offline queue replays and a snapshot is
// requested so the local document starts from the coordinator's truth.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.conn != nil {
		c.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	conn, err := c.dial(runCtx)
	if err != nil {
		cancel()
		return err
	}
	c.attach(runCtx, conn)
	return nil
}

// Close tears down the connection and stops reconnecting.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.conn = nil
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
	c.wg.Wait()
	return nil
}

func (c *Client) dial(ctx context.Context) (Conn, error) {
	var conn Conn
	op := func() error {
		var err error
		conn, err = c.dialer(ctx, c.url)
		if err != nil {
			slog.Warn("dial failed, retrying", "client", c.id, "error", err)
		}
		return err
	}
	bo := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, err
	}
	return conn, nil
}

// attach installs a live connection, replays the offline queue, requests
// a fresh snapshot, and starts the receive loop.
func (c *Client) attach(ctx context.Context, conn Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	sent := c.outbox.Replay(func(m message.Message) error {
		var clientSeq int64
		if message.Mutating(m) {
			clientSeq = c.tracker.Track(m)
		}
		if err := c.send(conn, m, clientSeq); err != nil {
			// A mutation the queue discards must not stay pending, or
			// every snapshot would replay an edit nobody delivered.
			if clientSeq != 0 {
				c.tracker.Fail(clientSeq)
			}
			return err
		}
		return nil
	})
	if sent > 0 {
		slog.Info("offline queue replayed", "client", c.id, "sent", sent)
	}

	// Reconnection means frames were missed; only a snapshot restores
	// certainty about the document.
	if err := c.send(conn, &message.RequestSnapshot{}, 0); err != nil {
		slog.Warn("snapshot request failed", "client", c.id, "error", err)
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.readLoop(ctx, conn)
	}()
}

// readLoop consumes server frames until the connection drops, then hands
// off to the reconnect loop.
func (c *Client) readLoop(ctx context.Context, conn Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closed := c.closed
			if c.conn == conn {
				c.conn = nil
			}
			c.mu.Unlock()
			_ = conn.Close()

			if closed || ctx.Err() != nil {
				return
			}
			slog.Warn("connection lost, reconnecting", "client", c.id, "error", err)
			c.reconnect(ctx)
			return
		}

		frame, err := message.DecodeFrame(data)
		if err != nil {
			slog.Warn("undecodable frame", "client", c.id, "error", err)
			continue
		}
		c.handleFrame(frame)
		c.maybeRecover()
	}
}

func (c *Client) reconnect(ctx context.Context) {
	conn, err := c.dial(ctx)
	if err != nil {
		slog.Error("reconnect abandoned", "client", c.id, "error", err)
		return
	}
	slog.Info("reconnected", "client", c.id)
	c.attach(ctx, conn)
}

func (c *Client) handleFrame(f *message.ServerFrame) {
	switch f.Type {
	case message.FrameMutation:
		c.handleMutation(f)

	case message.FrameSnapshot:
		doc := state.NewSessionState()
		if err := json.Unmarshal(f.State, doc); err != nil {
			slog.Error("undecodable snapshot", "client", c.id, "error", err)
			return
		}
		for _, t := range doc.Tracks {
			t.Normalize()
		}
		c.applySnapshot(doc, f.ServerSeq)

	case message.FrameHashResult:
		if f.Matched != nil {
			c.health.RecordHashCheck(*f.Matched)
		}

	case message.FrameClockSync:
		now := time.Now().UnixMilli()
		rtt := now - f.ClientTime
		offset := f.ServerTime - (f.ClientTime + rtt/2)
		c.mu.Lock()
		c.clockOffset = time.Duration(offset) * time.Millisecond
		c.mu.Unlock()

	case message.FrameTransient:
		if c.onTransient == nil {
			return
		}
		m, err := message.Decode(f.Payload)
		if err != nil {
			slog.Warn("undecodable transient payload", "client", c.id, "error", err)
			return
		}
		c.onTransient(f.ClientID, m)

	case message.FrameError:
		slog.Warn("server rejected message", "client", c.id, "error", f.Error)

	default:
		slog.Warn("unknown frame type", "client", c.id, "type", f.Type)
	}
}

// handleMutation folds one sequenced mutation into the local document.
// The client's own echoes were already applied optimistically and only
// need confirming; remote mutations apply here. Either way the frame's
// hash is compared against the local document to detect divergence.
func (c *Client) handleMutation(f *message.ServerFrame) {
	c.health.RecordServerSeq(f.Seq)

	own := f.ClientID == c.id
	if own {
		c.tracker.Confirm(f.ClientSeq, f.Seq)
	}

	c.mu.Lock()
	if !own {
		m, err := message.Decode(f.Payload)
		if err != nil {
			c.mu.Unlock()
			slog.Error("undecodable mutation payload", "client", c.id, "seq", f.Seq, "error", err)
			return
		}
		c.doc = engine.Apply(c.doc, m)
	}
	c.doc.Version = f.Seq
	c.serverSeq = f.Seq
	localHash := c.doc.Hash()
	c.mu.Unlock()

	if f.Hash != "" {
		c.health.RecordHashCheck(localHash == f.Hash)
	}
}

// maybeRecover requests a snapshot when the health monitor reports
// divergence. One recovery at a time; the flag clears when the snapshot
// lands.
func (c *Client) maybeRecover() {
	need, reason := c.health.NeedsRecovery()
	if !need {
		return
	}

	c.mu.Lock()
	if c.recovering || c.conn == nil {
		c.mu.Unlock()
		return
	}
	c.recovering = true
	conn := c.conn
	c.mu.Unlock()

	slog.Info("requesting recovery snapshot", "client", c.id, "reason", reason)
	if err := c.send(conn, &message.RequestSnapshot{}, 0); err != nil {
		slog.Warn("recovery request failed", "client", c.id, "error", err)
		c.mu.Lock()
		c.recovering = false
		c.mu.Unlock()
	}
}
