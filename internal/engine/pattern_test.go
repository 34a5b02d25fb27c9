package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adewale/keyboardia/internal/message"
	"github.com/adewale/keyboardia/internal/state"
	"github.com/adewale/keyboardia/internal/testutil"
)

func activeSteps(tr *state.Track) []int {
	var out []int
	for i, on := range tr.Steps {
		if on {
			out = append(out, i)
		}
	}
	return out
}

func patternSession(t *testing.T, stepCount int, active ...int) (*state.SessionState, *state.Track) {
	t.Helper()
	s := testutil.NewTestSession(1)
	tr := s.Tracks[0]
	tr.StepCount = stepCount
	testutil.WithPattern(tr, active...)
	return s, tr
}

func TestRotatePattern_RightWraps(t *testing.T) {
	s, tr := patternSession(t, 8, 0, 2, 7)
	out := Apply(s, &message.RotatePattern{TrackID: tr.ID, Direction: message.DirectionRight})
	assert.Equal(t, []int{0, 1, 3}, activeSteps(out.Tracks[0]))
}

func TestRotatePattern_LeftWraps(t *testing.T) {
	s, tr := patternSession(t, 8, 0, 2, 7)
	out := Apply(s, &message.RotatePattern{TrackID: tr.ID, Direction: message.DirectionLeft})
	assert.Equal(t, []int{1, 6, 7}, activeSteps(out.Tracks[0]))
}

func TestRotatePattern_RoundTrip(t *testing.T) {
	s, tr := patternSession(t, 16, 1, 5, 11)
	tr.Locks[5] = &state.ParameterLock{Pitch: 2}

	right := Apply(s, &message.RotatePattern{TrackID: tr.ID, Direction: message.DirectionRight})
	back := Apply(right, &message.RotatePattern{TrackID: tr.ID, Direction: message.DirectionLeft})
	assert.True(t, state.EqualCanonical(s, back))
}

func TestRotatePattern_LocksTravel(t *testing.T) {
	s, tr := patternSession(t, 8, 3)
	tr.Locks[3] = &state.ParameterLock{Pitch: 5, Volume: 0.5}

	out := Apply(s, &message.RotatePattern{TrackID: tr.ID, Direction: message.DirectionRight})
	assert.Nil(t, out.Tracks[0].Locks[3])
	require.NotNil(t, out.Tracks[0].Locks[4])
	assert.Equal(t, 5, out.Tracks[0].Locks[4].Pitch)

	// The travelled lock is a copy, not an alias.
	out.Tracks[0].Locks[4].Pitch = 9
	assert.Equal(t, 5, s.Tracks[0].Locks[3].Pitch)
}

func TestRotatePattern_OutsideWindowUntouched(t *testing.T) {
	s, tr := patternSession(t, 8, 0, 10)
	out := Apply(s, &message.RotatePattern{TrackID: tr.ID, Direction: message.DirectionRight})
	assert.True(t, out.Tracks[0].Steps[10], "steps beyond the window must not move")
	assert.Equal(t, []int{1, 10}, activeSteps(out.Tracks[0]))
}

func TestRotatePattern_TinyWindowIsNoop(t *testing.T) {
	s, tr := patternSession(t, 1, 0)
	out := Apply(s, &message.RotatePattern{TrackID: tr.ID, Direction: message.DirectionRight})
	assert.True(t, state.EqualCanonical(s, out))
}

func TestInvertPattern(t *testing.T) {
	s, tr := patternSession(t, 4, 0, 2)
	tr.Locks[0] = &state.ParameterLock{Pitch: 1}
	tr.Locks[1] = &state.ParameterLock{Pitch: 2}

	out := Apply(s, &message.InvertPattern{TrackID: tr.ID})
	assert.Equal(t, []int{1, 3}, activeSteps(out.Tracks[0]))
	assert.Nil(t, out.Tracks[0].Locks[0], "deactivated step loses its lock")
	require.NotNil(t, out.Tracks[0].Locks[1], "newly active step keeps a persisted lock")
	assert.Equal(t, 2, out.Tracks[0].Locks[1].Pitch)
}

func TestReversePattern(t *testing.T) {
	s, tr := patternSession(t, 8, 0, 1)
	tr.Locks[1] = &state.ParameterLock{Pitch: 3}

	out := Apply(s, &message.ReversePattern{TrackID: tr.ID})
	assert.Equal(t, []int{6, 7}, activeSteps(out.Tracks[0]))
	require.NotNil(t, out.Tracks[0].Locks[6])
	assert.Equal(t, 3, out.Tracks[0].Locks[6].Pitch)
}

func TestReversePattern_Involution(t *testing.T) {
	s, tr := patternSession(t, 16, 0, 3, 9, 14)
	tr.Locks[3] = &state.ParameterLock{Pitch: -4, Volume: 0.6, Tie: true}

	rev := &message.ReversePattern{TrackID: tr.ID}
	assert.True(t, state.EqualCanonical(s, Apply(Apply(s, rev), rev)))
}

func TestMirrorPattern_Right(t *testing.T) {
	// First half onto second: window 8, active {0,1} mirrors to {6,7}.
	s, tr := patternSession(t, 8, 0, 1)
	out := Apply(s, &message.MirrorPattern{TrackID: tr.ID, Direction: message.DirectionRight})
	assert.Equal(t, []int{0, 1, 6, 7}, activeSteps(out.Tracks[0]))
}

func TestMirrorPattern_Left(t *testing.T) {
	// Second half onto first: window 8, active {6} mirrors to {1}.
	s, tr := patternSession(t, 8, 6)
	out := Apply(s, &message.MirrorPattern{TrackID: tr.ID, Direction: message.DirectionLeft})
	assert.Equal(t, []int{1, 6}, activeSteps(out.Tracks[0]))
}

func TestMirrorPattern_OddWindowMiddleStays(t *testing.T) {
	s, tr := patternSession(t, 5, 2)
	out := Apply(s, &message.MirrorPattern{TrackID: tr.ID, Direction: message.DirectionRight})
	assert.Equal(t, []int{2}, activeSteps(out.Tracks[0]))
}

func TestEuclideanFill(t *testing.T) {
	tests := []struct {
		name   string
		window int
		hits   int
		want   []int
	}{
		{"four on the floor", 16, 4, []int{0, 4, 8, 12}},
		{"every step", 8, 8, []int{0, 1, 2, 3, 4, 5, 6, 7}},
		{"single hit", 8, 1, []int{0}},
		{"zero hits", 8, 0, nil},
		{"saturates to window", 4, 99, []int{0, 1, 2, 3}},
		{"negative clamps to zero", 8, -3, nil},
		{"three against eight", 8, 3, []int{0, 3, 6}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			s, tr := patternSession(t, tt.window)
			out := Apply(s, &message.EuclideanFill{TrackID: tr.ID, Hits: tt.hits})
			assert.Equal(t, tt.want, activeSteps(out.Tracks[0]))
		})
	}
}

func TestEuclideanFill_ClearsLocksOnInactiveSteps(t *testing.T) {
	s, tr := patternSession(t, 8, 1)
	tr.Locks[1] = &state.ParameterLock{Pitch: 1}
	tr.Locks[0] = &state.ParameterLock{Pitch: 2}

	out := Apply(s, &message.EuclideanFill{TrackID: tr.ID, Hits: 4})
	// Active steps are 0,2,4,6; step 1 is now inactive.
	assert.Nil(t, out.Tracks[0].Locks[1])
	require.NotNil(t, out.Tracks[0].Locks[0])
}
