package coordinator

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adewale/keyboardia/internal/message"
	"github.com/adewale/keyboardia/internal/store"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	h := NewHub(st)
	t.Cleanup(func() {
		h.Close()
		st.Close()
	})
	return h
}

func TestHub_OpenIsIdempotent(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	a, err := h.Open(ctx, "sess-1")
	require.NoError(t, err)
	b, err := h.Open(ctx, "sess-1")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 1, h.Len())

	_, err = h.Open(ctx, "sess-2")
	require.NoError(t, err)
	assert.Equal(t, 2, h.Len())
}

func TestHub_RestoresFromStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	st, err := store.Open(path)
	require.NoError(t, err)
	require.NoError(t, st.EnsureSession(ctx, "sess-1"))
	require.NoError(t, st.AppendMutation(ctx, "sess-1", 1, "cli-a", &message.SetTempo{Tempo: 150}))
	require.NoError(t, st.Close())

	st, err = store.Open(path)
	require.NoError(t, err)
	defer st.Close()
	h := NewHub(st)
	defer h.Close()

	sess, err := h.Open(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), sess.Seq())
	assert.Equal(t, float64(150), sess.State().Tempo)
}

func TestHub_CloseStopsSessions(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer st.Close()

	h := NewHub(st)
	sess, err := h.Open(context.Background(), "sess-1")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		h.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("hub close did not drain session loops")
	}

	assert.False(t, sess.Submit(Event{Msg: &message.Play{}}), "stopped sessions reject events")
	assert.Zero(t, h.Len())
}
