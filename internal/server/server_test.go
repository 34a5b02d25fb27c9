package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adewale/keyboardia/internal/coordinator"
	"github.com/adewale/keyboardia/internal/message"
	"github.com/adewale/keyboardia/internal/store"
)

func newTestServer(t *testing.T) (*httptest.Server, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	hub := coordinator.NewHub(st)
	ts := httptest.NewServer(New(hub, st).Router())
	t.Cleanup(func() {
		ts.Close()
		hub.Close()
		st.Close()
	})
	return ts, st
}

func wsURL(ts *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + path
}

func dialWS(t *testing.T, ts *httptest.Server, session, client string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "/ws/"+session+"?client="+client), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) *message.ServerFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	f, err := message.DecodeFrame(data)
	require.NoError(t, err)
	return f
}

func TestHealthz(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestGetSession_NotFound(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/sessions/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListSessions(t *testing.T) {
	ts, st := newTestServer(t)

	resp, err := http.Get(ts.URL + "/sessions")
	require.NoError(t, err)
	var infos []store.SessionInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&infos))
	resp.Body.Close()
	assert.Empty(t, infos)

	require.NoError(t, st.EnsureSession(t.Context(), "sess-1"))

	resp, err = http.Get(ts.URL + "/sessions")
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&infos))
	resp.Body.Close()
	require.Len(t, infos, 1)
	assert.Equal(t, "sess-1", infos[0].ID)
}

func TestWebSocket_SnapshotFirst(t *testing.T) {
	ts, _ := newTestServer(t)
	conn := dialWS(t, ts, "sess-1", "cli-a")

	f := readFrame(t, conn)
	assert.Equal(t, message.FrameSnapshot, f.Type, "a fresh connection gets the document before anything else")
	assert.NotEmpty(t, f.State)
}

func TestWebSocket_MutationRoundTrip(t *testing.T) {
	ts, _ := newTestServer(t)

	a := dialWS(t, ts, "sess-1", "cli-a")
	b := dialWS(t, ts, "sess-1", "cli-b")
	readFrame(t, a) // connect snapshots
	readFrame(t, b)

	data, err := message.EncodeClient(&message.SetTempo{Tempo: 150}, 3)
	require.NoError(t, err)
	require.NoError(t, a.WriteMessage(websocket.TextMessage, data))

	for _, conn := range []*websocket.Conn{a, b} {
		f := readFrame(t, conn)
		assert.Equal(t, message.FrameMutation, f.Type)
		assert.Equal(t, int64(1), f.Seq)
		assert.Equal(t, "cli-a", f.ClientID)
		assert.Equal(t, int64(3), f.ClientSeq)
		m, err := message.Decode(f.Payload)
		require.NoError(t, err)
		assert.Equal(t, float64(150), m.(*message.SetTempo).Tempo)
	}
}

func TestWebSocket_MalformedMessageGetsErrorFrame(t *testing.T) {
	ts, _ := newTestServer(t)
	conn := dialWS(t, ts, "sess-1", "cli-a")
	readFrame(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"tempo":150}`)))

	f := readFrame(t, conn)
	assert.Equal(t, message.FrameError, f.Type)
	assert.NotEmpty(t, f.Error)

	// The connection survives the rejection.
	data, err := message.EncodeClient(&message.SetSwing{Swing: 25}, 1)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
	f = readFrame(t, conn)
	assert.Equal(t, message.FrameMutation, f.Type)
}

func TestWebSocket_SessionSurvivesReconnect(t *testing.T) {
	ts, _ := newTestServer(t)

	conn := dialWS(t, ts, "sess-1", "cli-a")
	readFrame(t, conn)
	data, err := message.EncodeClient(&message.SetTempo{Tempo: 99}, 1)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
	readFrame(t, conn)
	conn.Close()

	again := dialWS(t, ts, "sess-1", "cli-a")
	f := readFrame(t, again)
	require.Equal(t, message.FrameSnapshot, f.Type)
	assert.Equal(t, int64(1), f.ServerSeq)
	var doc struct {
		Tempo float64 `json:"tempo"`
	}
	require.NoError(t, json.Unmarshal(f.State, &doc))
	assert.Equal(t, float64(99), doc.Tempo)
}
