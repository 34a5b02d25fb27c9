package testutil

import (
	"fmt"

	"github.com/adewale/keyboardia/internal/state"
)

// NewTestTrack returns a normalized track with a predictable id of the
// form "trk-<n>".
func NewTestTrack(n int) *state.Track {
	t := state.NewTrack(fmt.Sprintf("trk-%d", n), fmt.Sprintf("Track %d", n), fmt.Sprintf("sample-%d", n))
	return t
}

// NewTestSession returns a document with n normalized tracks.
func NewTestSession(n int) *state.SessionState {
	s := state.NewSessionState()
	for i := 0; i < n; i++ {
		s.Tracks = append(s.Tracks, NewTestTrack(i))
	}
	return s
}

// WithPattern activates the given step indices on a track and returns it.
func WithPattern(t *state.Track, steps ...int) *state.Track {
	for _, i := range steps {
		if state.ValidStepIndex(i) {
			t.Steps[i] = true
		}
	}
	return t
}
