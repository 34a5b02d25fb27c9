package client

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adewale/keyboardia/internal/engine"
	"github.com/adewale/keyboardia/internal/message"
	"github.com/adewale/keyboardia/internal/state"
	"github.com/adewale/keyboardia/internal/synchealth"
	"github.com/adewale/keyboardia/internal/testutil"
	"github.com/adewale/keyboardia/internal/tracker"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

// fakeConn is an in-memory Conn: reads block on a pushed-frame channel,
// writes are recorded for inspection.
type fakeConn struct {
	inbox chan []byte

	mu     sync.Mutex
	writes [][]byte
	// failFor, when set, fails writes of the named message type.
	failFor string

	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbox:  make(chan []byte, 32),
		closed: make(chan struct{}),
	}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-f.inbox:
		return textMessage, data, nil
	case <-f.closed:
		return 0, nil, errors.New("use of closed connection")
	}
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	select {
	case <-f.closed:
		return errors.New("use of closed connection")
	default:
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor != "" {
		if m, _, err := message.DecodeClient(data); err == nil && m.Type() == f.failFor {
			return errors.New("broken pipe")
		}
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	f.writes = append(f.writes, cp)
	return nil
}

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) push(t *testing.T, frame *message.ServerFrame) {
	t.Helper()
	data, err := message.EncodeFrame(frame)
	require.NoError(t, err)
	f.inbox <- data
}

// sentTypes decodes every recorded write into its message type.
func (f *fakeConn) sentTypes(t *testing.T) []string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.writes))
	for _, data := range f.writes {
		m, _, err := message.DecodeClient(data)
		require.NoError(t, err)
		out = append(out, m.Type())
	}
	return out
}

// lastSentSeq returns the clientSeq of the most recent write.
func (f *fakeConn) lastSentSeq(t *testing.T) int64 {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.writes)
	_, seq, err := message.DecodeClient(f.writes[len(f.writes)-1])
	require.NoError(t, err)
	return seq
}

func countType(types []string, want string) int {
	n := 0
	for _, tp := range types {
		if tp == want {
			n++
		}
	}
	return n
}

func newConnectedClient(t *testing.T, opts ...Option) (*Client, *fakeConn) {
	t.Helper()
	fc := newFakeConn()
	opts = append([]Option{
		WithClientID("cli-self"),
		WithDialer(func(context.Context, string) (Conn, error) { return fc, nil }),
	}, opts...)
	c := New("ws://test/ws/sess-1", opts...)
	require.NoError(t, c.Connect(context.Background()))
	t.Cleanup(func() { c.Close() })
	return c, fc
}

func snapshotFrame(t *testing.T, doc *state.SessionState, serverSeq int64) *message.ServerFrame {
	t.Helper()
	stateJSON, err := json.Marshal(doc)
	require.NoError(t, err)
	return &message.ServerFrame{
		Type:      message.FrameSnapshot,
		State:     stateJSON,
		ServerSeq: serverSeq,
	}
}

func mutationFrame(t *testing.T, seq int64, clientID string, clientSeq int64, m message.Message, hash string) *message.ServerFrame {
	t.Helper()
	payload, err := message.Encode(m)
	require.NoError(t, err)
	return &message.ServerFrame{
		Type:      message.FrameMutation,
		Seq:       seq,
		ClientID:  clientID,
		ClientSeq: clientSeq,
		Hash:      hash,
		Payload:   payload,
	}
}

func TestConnect_RequestsSnapshot(t *testing.T) {
	_, fc := newConnectedClient(t)
	assert.Equal(t, []string{message.TypeRequestSnapshot}, fc.sentTypes(t))
}

func TestDo_OptimisticApplyAndSend(t *testing.T) {
	c, fc := newConnectedClient(t)

	require.NoError(t, c.Do(&message.AddTrack{Track: testutil.NewTestTrack(1)}))
	require.NoError(t, c.Do(&message.ToggleStep{TrackID: "trk-1", Step: 3}))

	doc := c.State()
	require.Len(t, doc.Tracks, 1)
	assert.True(t, doc.Tracks[0].Steps[3], "mutations apply before confirmation")

	types := fc.sentTypes(t)
	assert.Equal(t, []string{message.TypeRequestSnapshot, message.TypeAddTrack, message.TypeToggleStep}, types)
	assert.Equal(t, int64(2), fc.lastSentSeq(t))
	assert.Equal(t, 2, c.Tracker().PendingCount())
}

func TestDo_OfflineQueues(t *testing.T) {
	c := New("ws://test", WithClientID("cli-self"))
	defer c.Close()

	require.NoError(t, c.Do(&message.AddTrack{Track: testutil.NewTestTrack(1)}))

	require.Len(t, c.State().Tracks, 1, "offline mutations still apply locally")
	assert.Equal(t, 1, c.Outbox().Len())
	assert.Zero(t, c.Tracker().Len(), "tracking happens at send time")
}

func TestDo_LocalOnlyNeverLeaves(t *testing.T) {
	c, fc := newConnectedClient(t)
	require.NoError(t, c.Do(&message.AddTrack{Track: testutil.NewTestTrack(1)}))

	require.NoError(t, c.Do(&message.SetTrackMute{TrackID: "trk-1", Muted: true}))

	assert.True(t, c.State().Tracks[0].Muted)
	assert.Zero(t, countType(fc.sentTypes(t), message.TypeSetTrackMute))
	assert.Zero(t, c.Outbox().Len())
}

func TestConnect_ReplaysOutbox(t *testing.T) {
	fc := newFakeConn()
	c := New("ws://test",
		WithClientID("cli-self"),
		WithDialer(func(context.Context, string) (Conn, error) { return fc, nil }),
	)
	defer c.Close()

	require.NoError(t, c.Do(&message.AddTrack{Track: testutil.NewTestTrack(1)}))
	require.NoError(t, c.Do(&message.SetTempo{Tempo: 150}))
	require.Equal(t, 2, c.Outbox().Len())

	require.NoError(t, c.Connect(context.Background()))

	types := fc.sentTypes(t)
	// Replay is priority-major: the structural add precedes the tempo
	// change, and the snapshot request follows the whole replay.
	assert.Equal(t, []string{message.TypeAddTrack, message.TypeSetTempo, message.TypeRequestSnapshot}, types)
	assert.Zero(t, c.Outbox().Len())
	assert.Equal(t, 2, c.Tracker().PendingCount())
}

func TestConnect_ReplaySendFailureNotLeftPending(t *testing.T) {
	fc := newFakeConn()
	fc.failFor = message.TypeSetTempo
	c := New("ws://test",
		WithClientID("cli-self"),
		WithDialer(func(context.Context, string) (Conn, error) { return fc, nil }),
	)
	defer c.Close()

	require.NoError(t, c.Do(&message.SetTempo{Tempo: 150}))
	require.NoError(t, c.Connect(context.Background()))

	// The queue discards the entry on a failed send; the tracker must not
	// keep it pending, or every snapshot would replay the lost edit.
	assert.Zero(t, c.Outbox().Len())
	assert.Zero(t, c.Tracker().PendingCount())

	// The replica adopts the authoritative snapshot without the undelivered
	// tempo change resurfacing on top of it.
	doc := state.NewSessionState()
	doc.Tempo = 110
	fc.push(t, snapshotFrame(t, doc, 10))
	require.Eventually(t, func() bool { return c.ServerSeq() == 10 }, waitFor, tick)
	assert.Equal(t, float64(110), c.State().Tempo)
	assert.Equal(t, doc.Hash(), c.Hash())
}

func TestSnapshot_SweepsAndReplaysPending(t *testing.T) {
	fc := newFakeConn()
	c := New("ws://test",
		WithClientID("cli-self"),
		WithDialer(func(context.Context, string) (Conn, error) { return fc, nil }),
	)
	defer c.Close()

	require.NoError(t, c.Do(&message.AddTrack{Track: testutil.NewTestTrack(1)}))
	require.NoError(t, c.Connect(context.Background()))

	// The coordinator's snapshot predates our pending add; the local
	// replica keeps the optimistic track by replaying it on top.
	fc.push(t, snapshotFrame(t, state.NewSessionState(), 10))
	require.Eventually(t, func() bool { return c.ServerSeq() == 10 }, waitFor, tick)
	require.Len(t, c.State().Tracks, 1)
	assert.Equal(t, 1, c.Tracker().PendingCount())

	// Echo confirms the add at seq 11.
	fc.push(t, mutationFrame(t, 11, "cli-self", 1, &message.AddTrack{Track: testutil.NewTestTrack(1)}, ""))
	require.Eventually(t, func() bool { return c.ServerSeq() == 11 }, waitFor, tick)
	assert.Zero(t, c.Tracker().PendingCount())
	assert.Equal(t, 1, c.Tracker().Len(), "confirmed entries wait for a snapshot sweep")

	// A snapshot at or past the confirmation sweeps the bookkeeping.
	final := state.NewSessionState()
	final.Tracks = append(final.Tracks, testutil.NewTestTrack(1))
	fc.push(t, snapshotFrame(t, final, 11))
	require.Eventually(t, func() bool { return c.Tracker().Len() == 0 }, waitFor, tick)
}

func TestOwnEcho_ConfirmsWithoutReapplying(t *testing.T) {
	c, fc := newConnectedClient(t)

	base := state.NewSessionState()
	base.Tracks = append(base.Tracks, testutil.NewTestTrack(1))
	fc.push(t, snapshotFrame(t, base, 5))
	require.Eventually(t, func() bool { return c.ServerSeq() == 5 }, waitFor, tick)

	require.NoError(t, c.Do(&message.ToggleStep{TrackID: "trk-1", Step: 0}))
	require.True(t, c.State().Tracks[0].Steps[0])
	clientSeq := fc.lastSentSeq(t)

	fc.push(t, mutationFrame(t, 6, "cli-self", clientSeq, &message.ToggleStep{TrackID: "trk-1", Step: 0}, ""))
	require.Eventually(t, func() bool { return c.ServerSeq() == 6 }, waitFor, tick)

	doc := c.State()
	assert.True(t, doc.Tracks[0].Steps[0], "an echo must not re-toggle the step")
	assert.Equal(t, int64(6), doc.Version)

	tm := c.Tracker().Get(clientSeq)
	require.NotNil(t, tm)
	assert.Equal(t, tracker.StateConfirmed, tm.State)
	assert.Equal(t, int64(6), tm.ConfirmedAtServerSeq)
}

func TestRemoteMutation_AppliesAndChecksHash(t *testing.T) {
	c, fc := newConnectedClient(t)

	base := state.NewSessionState()
	base.Tracks = append(base.Tracks, testutil.NewTestTrack(1))
	fc.push(t, snapshotFrame(t, base, 1))
	require.Eventually(t, func() bool { return c.ServerSeq() == 1 }, waitFor, tick)

	msg := &message.ToggleStep{TrackID: "trk-1", Step: 2}
	expected := engine.Apply(c.State(), msg).Hash()

	fc.push(t, mutationFrame(t, 2, "cli-other", 0, msg, expected))
	require.Eventually(t, func() bool { return c.ServerSeq() == 2 }, waitFor, tick)

	assert.True(t, c.State().Tracks[0].Steps[2])
	assert.Equal(t, expected, c.Hash())

	metrics := c.Health().GetMetrics()
	assert.Equal(t, uint64(1), metrics.HashChecks)
	assert.Zero(t, metrics.HashMismatches)
}

func TestHashMismatch_TriggersSingleRecovery(t *testing.T) {
	c, fc := newConnectedClient(t, WithHealthMonitor(synchealth.New(synchealth.Config{
		MismatchStreakThreshold: 1,
	})))

	fc.push(t, mutationFrame(t, 1, "cli-other", 0, &message.SetTempo{Tempo: 99}, "bogus"))
	require.Eventually(t, func() bool {
		return countType(fc.sentTypes(t), message.TypeRequestSnapshot) == 2
	}, waitFor, tick, "mismatch should trigger one recovery request past the connect-time one")

	// Further mismatches while a recovery is in flight do not stack.
	fc.push(t, mutationFrame(t, 2, "cli-other", 0, &message.SetTempo{Tempo: 98}, "bogus"))
	require.Eventually(t, func() bool { return c.ServerSeq() == 2 }, waitFor, tick)
	assert.Equal(t, 2, countType(fc.sentTypes(t), message.TypeRequestSnapshot))

	// The snapshot clears the flags and re-arms recovery.
	fc.push(t, snapshotFrame(t, state.NewSessionState(), 2))
	require.Eventually(t, func() bool {
		need, _ := c.Health().NeedsRecovery()
		return !need
	}, waitFor, tick)

	fc.push(t, mutationFrame(t, 3, "cli-other", 0, &message.SetTempo{Tempo: 97}, "bogus"))
	require.Eventually(t, func() bool {
		return countType(fc.sentTypes(t), message.TypeRequestSnapshot) == 3
	}, waitFor, tick)
}

func TestClockSync(t *testing.T) {
	c, fc := newConnectedClient(t)

	require.NoError(t, c.SyncClock())
	types := fc.sentTypes(t)
	require.Equal(t, message.TypeClockSyncRequest, types[len(types)-1])

	fc.mu.Lock()
	last := fc.writes[len(fc.writes)-1]
	fc.mu.Unlock()
	sent, _, err := message.DecodeClient(last)
	require.NoError(t, err)
	clientTime := sent.(*message.ClockSyncRequest).ClientTime

	fc.push(t, &message.ServerFrame{
		Type:       message.FrameClockSync,
		ClientTime: clientTime,
		ServerTime: clientTime + 500,
	})
	require.Eventually(t, func() bool { return c.ClockOffset() != 0 }, waitFor, tick)
	assert.InDelta(t, float64(500*time.Millisecond), float64(c.ClockOffset()), float64(100*time.Millisecond))
}

func TestTransientHandler(t *testing.T) {
	var (
		mu   sync.Mutex
		from string
		got  message.Message
	)
	c, fc := newConnectedClient(t, WithTransientHandler(func(clientID string, m message.Message) {
		mu.Lock()
		defer mu.Unlock()
		from = clientID
		got = m
	}))
	defer c.Close()

	payload, err := message.Encode(&message.Play{})
	require.NoError(t, err)
	fc.push(t, &message.ServerFrame{
		Type:     message.FrameTransient,
		ClientID: "cli-other",
		Payload:  payload,
	})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return got != nil
	}, waitFor, tick)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "cli-other", from)
	assert.IsType(t, &message.Play{}, got)
}

func TestReconnect_AfterConnectionLoss(t *testing.T) {
	first := newFakeConn()
	second := newFakeConn()
	conns := []*fakeConn{first, second}
	var dialCount int
	var mu sync.Mutex

	c := New("ws://test",
		WithClientID("cli-self"),
		WithDialer(func(context.Context, string) (Conn, error) {
			mu.Lock()
			defer mu.Unlock()
			conn := conns[dialCount]
			dialCount++
			return conn, nil
		}),
	)
	defer c.Close()
	require.NoError(t, c.Connect(context.Background()))

	// Server-side drop: the read loop redials and requests a snapshot on
	// the new connection.
	first.Close()
	require.Eventually(t, func() bool {
		return countType(second.sentTypes(t), message.TypeRequestSnapshot) == 1
	}, waitFor, tick)
	fc := second
	fc.push(t, snapshotFrame(t, state.NewSessionState(), 3))
	require.Eventually(t, func() bool { return c.ServerSeq() == 3 }, waitFor, tick)
}

func TestClose(t *testing.T) {
	c, _ := newConnectedClient(t)
	require.NoError(t, c.Close())

	assert.ErrorIs(t, c.Do(&message.SetTempo{Tempo: 100}), ErrClosed)
	assert.ErrorIs(t, c.Connect(context.Background()), ErrClosed)
	assert.NoError(t, c.Close(), "close is idempotent")
}
