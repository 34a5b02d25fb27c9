package client

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/adewale/keyboardia/internal/engine"
	"github.com/adewale/keyboardia/internal/message"
	"github.com/adewale/keyboardia/internal/outbox"
	"github.com/adewale/keyboardia/internal/state"
	"github.com/adewale/keyboardia/internal/synchealth"
	"github.com/adewale/keyboardia/internal/tracker"
)

// ErrClosed is returned once Close has been called.
var ErrClosed = errors.New("client closed")

// ErrDropped is returned when a message can be neither sent nor queued.
var ErrDropped = errors.New("message dropped")

// Conn is the transport surface the client needs. *websocket.Conn
// satisfies it.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens a transport connection to the session endpoint.
type Dialer func(ctx context.Context, url string) (Conn, error)

// TransientHandler receives relayed non-mutating messages (play, stop,
// cursor moves) from other clients.
type TransientHandler func(clientID string, m message.Message)

// Client synchronizes one local copy of a session document.
type Client struct {
	id     string
	url    string
	dialer Dialer

	outbox  *outbox.Queue
	health  *synchealth.Monitor
	tracker *tracker.Tracker

	onTransient TransientHandler

	mu          sync.Mutex
	doc         *state.SessionState
	serverSeq   int64
	clockOffset time.Duration
	conn        Conn
	recovering  bool
	closed      bool

	writeMu sync.Mutex
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

// Option configures a client.
type Option func(*Client)

// WithClientID fixes the client identity instead of generating one.
func WithClientID(id string) Option {
	return func(c *Client) { c.id = id }
}

// WithDialer replaces the transport dialer.
func WithDialer(d Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// WithOutbox replaces the offline queue.
func WithOutbox(q *outbox.Queue) Option {
	return func(c *Client) { c.outbox = q }
}

// WithHealthMonitor replaces the sync health monitor.
func WithHealthMonitor(m *synchealth.Monitor) Option {
	return func(c *Client) { c.health = m }
}

// WithTracker replaces the delivery tracker.
func WithTracker(t *tracker.Tracker) Option {
	return func(c *Client) { c.tracker = t }
}

// WithTransientHandler sets the callback for relayed transport messages.
func WithTransientHandler(h TransientHandler) Option {
	return func(c *Client) { c.onTransient = h }
}

// New creates a disconnected client for the given WebSocket URL.
func New(url string, opts ...Option) *Client {
	c := &Client{
		id:      uuid.NewString(),
		url:     url,
		dialer:  dialWebsocket,
		outbox:  outbox.New(outbox.Options{}),
		health:  synchealth.New(synchealth.Config{}),
		tracker: tracker.New(tracker.Options{}),
		doc:     state.NewSessionState(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ID returns the client identity.
func (c *Client) ID() string { return c.id }

// State returns a deep copy of the local document.
func (c *Client) State() *state.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.doc.Clone()
}

// Hash returns the canonical hash of the local document.
func (c *Client) Hash() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.doc.Hash()
}

// ServerSeq returns the last server sequence folded into the local
// document.
func (c *Client) ServerSeq() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serverSeq
}

// ClockOffset returns the estimated server clock offset from the last
// clock sync exchange.
func (c *Client) ClockOffset() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clockOffset
}

// Health returns the sync health monitor, for metrics export.
func (c *Client) Health() *synchealth.Monitor { return c.health }

// Outbox returns the offline queue, for metrics export.
func (c *Client) Outbox() *outbox.Queue { return c.outbox }

// Tracker returns the delivery tracker, for metrics export.
func (c *Client) Tracker() *tracker.Tracker { return c.tracker }

// Do applies a message locally and dispatches it. Mutations apply
// optimistically before the coordinator confirms them; local-only
// messages (mute, solo) never leave the process. While disconnected,
// queueable messages buffer in the outbox and ephemeral ones drop.
func (c *Client) Do(m message.Message) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}

	if message.Mutating(m) {
		c.doc = engine.Apply(c.doc, m)
	}
	if message.LocalOnly(m) {
		c.mu.Unlock()
		return nil
	}
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		// Offline messages are tracked when the queue replays on
		// reconnect, not before: a second tracking here would leave a
		// duplicate pending entry that snapshots replay forever.
		if c.outbox.Enqueue(m) {
			return nil
		}
		return ErrDropped
	}

	var clientSeq int64
	if message.Mutating(m) {
		clientSeq = c.tracker.Track(m)
	}
	if err := c.send(conn, m, clientSeq); err != nil {
		if clientSeq != 0 {
			c.tracker.Fail(clientSeq)
		}
		if c.outbox.Enqueue(m) {
			return nil
		}
		return err
	}
	return nil
}

// VerifyHash asks the coordinator to compare the local document hash
// against its own. The result arrives as a hash_result frame.
func (c *Client) VerifyHash() error {
	c.mu.Lock()
	conn := c.conn
	hash := c.doc.Hash()
	version := c.doc.Version
	c.mu.Unlock()

	if conn == nil {
		// Hash probes are meaningless offline; never queued.
		return nil
	}
	return c.send(conn, &message.StateHash{Hash: hash, Version: version}, 0)
}

// SyncClock initiates a clock sync exchange.
func (c *Client) SyncClock() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	return c.send(conn, &message.ClockSyncRequest{ClientTime: time.Now().UnixMilli()}, 0)
}

// RequestSnapshot asks the coordinator for the full document.
func (c *Client) RequestSnapshot() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		c.outbox.Enqueue(&message.RequestSnapshot{})
		return nil
	}
	return c.send(conn, &message.RequestSnapshot{}, 0)
}

// send encodes and writes one message. Serialized: gorilla connections
// allow a single concurrent writer.
func (c *Client) send(conn Conn, m message.Message, clientSeq int64) error {
	data, err := message.EncodeClient(m, clientSeq)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(textMessage, data)
}

// applySnapshot replaces the local document with the coordinator's and
// replays still-pending optimistic mutations on top.
func (c *Client) applySnapshot(doc *state.SessionState, serverSeq int64) {
	swept := c.tracker.SweepSnapshot(serverSeq)
	swept += c.tracker.SweepStale()

	pending := c.tracker.Pending()
	for _, tm := range pending {
		doc = engine.Apply(doc, tm.Msg)
	}

	c.mu.Lock()
	c.doc = doc
	c.serverSeq = serverSeq
	c.recovering = false
	c.mu.Unlock()

	c.health.ResetRecoveryFlags()

	slog.Debug("snapshot applied",
		"client", c.id,
		"serverSeq", serverSeq,
		"swept", swept,
		"replayedPending", len(pending),
	)
}
