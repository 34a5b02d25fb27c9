package state

// SessionState is the authoritative shared document: an ordered list of
// tracks plus session-wide playback settings.
//
// Track order is significant (it is the UI ordering). Track IDs are unique
// within the list.
//
// Version is the server sequence number of the last mutation applied by the
// coordinator. It is stamped by the coordinator, never by the pure reducer,
// and is excluded from canonical equality.
type SessionState struct {
	Tracks     []*Track    `json:"tracks"`
	Tempo      float64     `json:"tempo"`
	Swing      float64     `json:"swing"`
	Effects    *Effects    `json:"effects,omitempty"`
	Scale      string      `json:"scale,omitempty"`
	LoopRegion *LoopRegion `json:"loopRegion,omitempty"`
	Version    int64       `json:"version"`
}

// Track is one row of the sequencer grid.
//
// Steps and Locks are parallel arrays of exactly MaxStepsPerTrack entries.
// Only the first StepCount entries are active, but all entries persist.
//
// Muted and Soloed are local-only: each client owns its own values and they
// are excluded from canonical equality and state hashing.
type Track struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	SampleID  string           `json:"sampleId"`
	Steps     []bool           `json:"steps"`
	Locks     []*ParameterLock `json:"locks"`
	Volume    float64          `json:"volume"`
	Transpose int              `json:"transpose"`
	StepCount int              `json:"stepCount"`
	Muted     bool             `json:"muted"`
	Soloed    bool             `json:"soloed"`
}

// ParameterLock is a per-step override of track-level playback parameters.
type ParameterLock struct {
	Pitch  int     `json:"pitch"`
	Volume float64 `json:"volume"`
	Tie    bool    `json:"tie"`
}

// Effects holds session-wide effect sends, each in [0, 1].
type Effects struct {
	Reverb  float64 `json:"reverb"`
	Delay   float64 `json:"delay"`
	LowPass float64 `json:"lowPass"`
}

// LoopRegion restricts playback to a step window. Both bounds are inclusive
// step indices with Start <= End.
type LoopRegion struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// NewSessionState returns an empty document with default playback settings.
func NewSessionState() *SessionState {
	return &SessionState{
		Tracks: []*Track{},
		Tempo:  DefaultTempo,
		Swing:  MinSwing,
	}
}

// NewTrack returns a track with full-capacity step and lock arrays and the
// default step count. The caller supplies the client-minted id.
func NewTrack(id, name, sampleID string) *Track {
	return &Track{
		ID:        id,
		Name:      name,
		SampleID:  sampleID,
		Steps:     make([]bool, MaxStepsPerTrack),
		Locks:     make([]*ParameterLock, MaxStepsPerTrack),
		Volume:    DefaultVolume,
		StepCount: DefaultStepCount,
	}
}

// TrackByID returns the track with the given id, or nil if absent.
func (s *SessionState) TrackByID(id string) *Track {
	for _, t := range s.Tracks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// TrackIndex returns the position of the track with the given id, or -1.
func (s *SessionState) TrackIndex(id string) int {
	for i, t := range s.Tracks {
		if t.ID == id {
			return i
		}
	}
	return -1
}
