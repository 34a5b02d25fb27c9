package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adewale/keyboardia/internal/message"
	"github.com/adewale/keyboardia/internal/testutil"
)

func TestTrack_AssignsMonotonicSeqs(t *testing.T) {
	tr := New(Options{})
	s1 := tr.Track(&message.ToggleStep{TrackID: "trk-1", Step: 0})
	s2 := tr.Track(&message.SetTempo{Tempo: 130})
	assert.Equal(t, int64(1), s1)
	assert.Equal(t, int64(2), s2)
	assert.Equal(t, 2, tr.Len())
	assert.Equal(t, 2, tr.PendingCount())
}

func TestConfirm_RetainedUntilSweep(t *testing.T) {
	tr := New(Options{})
	seq := tr.Track(&message.ToggleStep{Step: 1})

	tr.Confirm(seq, 40)

	tm := tr.Get(seq)
	require.NotNil(t, tm)
	assert.Equal(t, StateConfirmed, tm.State)
	assert.Equal(t, int64(40), tm.ConfirmedAtServerSeq)
	assert.Equal(t, 1, tr.Len(), "confirmation alone must not delete")
	assert.Zero(t, tr.PendingCount())
}

func TestConfirm_UnknownSeqIgnored(t *testing.T) {
	tr := New(Options{})
	tr.Confirm(99, 5)
	assert.Zero(t, tr.Len())
}

func TestSweepSnapshot_CutLine(t *testing.T) {
	tr := New(Options{})
	before := tr.Track(&message.ToggleStep{Step: 1})
	at := tr.Track(&message.ToggleStep{Step: 2})
	after := tr.Track(&message.ToggleStep{Step: 3})
	pending := tr.Track(&message.ToggleStep{Step: 4})

	tr.Confirm(before, 10)
	tr.Confirm(at, 20)
	tr.Confirm(after, 21)

	swept := tr.SweepSnapshot(20)
	assert.Equal(t, 2, swept, "confirmed at or before the snapshot seq is swept")

	assert.Nil(t, tr.Get(before))
	assert.Nil(t, tr.Get(at))
	assert.NotNil(t, tr.Get(after), "confirmed past the snapshot survives")
	assert.NotNil(t, tr.Get(pending), "pending always survives")
}

func TestSweepStale_AgeFallback(t *testing.T) {
	now, advance := testutil.FrozenTime(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	tr := New(Options{MaxConfirmedAge: time.Minute, Now: now})

	old := tr.Track(&message.ToggleStep{Step: 1})
	failed := tr.Track(&message.ToggleStep{Step: 2})
	stalePending := tr.Track(&message.ToggleStep{Step: 3})
	tr.Confirm(old, 5)
	tr.Fail(failed)

	advance(2 * time.Minute)
	fresh := tr.Track(&message.ToggleStep{Step: 4})
	tr.Confirm(fresh, 6)

	swept := tr.SweepStale()
	assert.Equal(t, 2, swept)

	assert.Nil(t, tr.Get(old))
	assert.Nil(t, tr.Get(failed))
	assert.NotNil(t, tr.Get(stalePending), "pending is never age-swept")
	assert.NotNil(t, tr.Get(fresh))
}

func TestFail(t *testing.T) {
	tr := New(Options{})
	seq := tr.Track(&message.ToggleStep{Step: 1})
	tr.Fail(seq)

	tm := tr.Get(seq)
	require.NotNil(t, tm)
	assert.Equal(t, StateFailed, tm.State)
	assert.Zero(t, tr.PendingCount())
}

func TestPending_OrderAndFiltering(t *testing.T) {
	tr := New(Options{})
	s1 := tr.Track(&message.ToggleStep{Step: 1})
	s2 := tr.Track(&message.ToggleStep{Step: 2})
	s3 := tr.Track(&message.ToggleStep{Step: 3})
	tr.Confirm(s2, 7)

	got := tr.Pending()
	require.Len(t, got, 2)
	assert.Equal(t, s1, got[0].ClientSeq)
	assert.Equal(t, s3, got[1].ClientSeq)
}

func TestPending_ReturnsCopies(t *testing.T) {
	tr := New(Options{})
	seq := tr.Track(&message.ToggleStep{Step: 1})

	tr.Pending()[0].State = StateFailed
	assert.Equal(t, StatePending, tr.Get(seq).State)
}

func TestGet_CopySemantics(t *testing.T) {
	tr := New(Options{})
	seq := tr.Track(&message.ToggleStep{Step: 1})

	tr.Get(seq).State = StateConfirmed
	assert.Equal(t, StatePending, tr.Get(seq).State)
	assert.Nil(t, tr.Get(999))
}

func TestReset(t *testing.T) {
	tr := New(Options{})
	tr.Track(&message.ToggleStep{Step: 1})
	tr.Reset()
	assert.Zero(t, tr.Len())

	// Sequence numbering continues; Reset drops bookkeeping only.
	seq := tr.Track(&message.ToggleStep{Step: 2})
	assert.Equal(t, int64(2), seq)
}
