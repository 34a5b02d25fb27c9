package state

// Copy-on-write helpers for the pure reducer. Cloning is at the granularity
// of one track or one top-level field: the returned document shares every
// track pointer that did not change.

// ShallowClone copies the document header and the track pointer slice.
// Individual tracks remain shared; callers must replace (not mutate) any
// track they intend to change.
func (s *SessionState) ShallowClone() *SessionState {
	out := *s
	out.Tracks = make([]*Track, len(s.Tracks))
	copy(out.Tracks, s.Tracks)
	if s.Effects != nil {
		e := *s.Effects
		out.Effects = &e
	}
	if s.LoopRegion != nil {
		r := *s.LoopRegion
		out.LoopRegion = &r
	}
	return &out
}

// Clone deep-copies the document, including every track and lock.
func (s *SessionState) Clone() *SessionState {
	out := s.ShallowClone()
	for i, t := range out.Tracks {
		out.Tracks[i] = t.Clone()
	}
	return out
}

// WithTrack returns a shallow clone with the track at index i replaced.
// Returns the receiver unchanged if i is out of range.
func (s *SessionState) WithTrack(i int, t *Track) *SessionState {
	if i < 0 || i >= len(s.Tracks) {
		return s
	}
	out := s.ShallowClone()
	out.Tracks[i] = t
	return out
}

// Clone deep-copies the track, its step array, and every lock.
func (t *Track) Clone() *Track {
	out := *t
	out.Steps = make([]bool, len(t.Steps))
	copy(out.Steps, t.Steps)
	out.Locks = make([]*ParameterLock, len(t.Locks))
	for i, l := range t.Locks {
		out.Locks[i] = l.Clone()
	}
	return &out
}

// Clone copies a lock. Returns nil for a nil lock.
func (l *ParameterLock) Clone() *ParameterLock {
	if l == nil {
		return nil
	}
	out := *l
	return &out
}

// Normalize clamps every field of an externally supplied track and resizes
// its arrays to the fixed capacity. Used when a client-minted track arrives
// in an add_track message: whatever shape the client sent, the stored track
// satisfies the document invariants.
func (t *Track) Normalize() {
	steps := make([]bool, MaxStepsPerTrack)
	copy(steps, t.Steps)
	t.Steps = steps

	locks := make([]*ParameterLock, MaxStepsPerTrack)
	for i := 0; i < len(t.Locks) && i < MaxStepsPerTrack; i++ {
		l := t.Locks[i].Clone()
		if l != nil {
			l.Pitch = clampInt(l.Pitch, MinTranspose, MaxTranspose)
			l.Volume = ClampUnit(l.Volume)
		}
		locks[i] = l
	}
	t.Locks = locks

	t.Volume = ClampVolume(t.Volume)
	t.Transpose = clampInt(t.Transpose, MinTranspose, MaxTranspose)
	if t.StepCount == 0 {
		t.StepCount = DefaultStepCount
	}
	t.StepCount = ClampStepCount(t.StepCount)
	t.Name = ClampName(t.Name)
}
