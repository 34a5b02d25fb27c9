package message

import "github.com/adewale/keyboardia/internal/state"

// Message is the closed union of everything a client can say to the
// coordinator. The unexported marker method keeps the union closed to this
// package.
type Message interface {
	// Type returns the wire discriminator, e.g. "toggle_step".
	Type() string

	isMessage()
}

// Wire discriminators for every variant.
const (
	TypeToggleStep        = "toggle_step"
	TypeSetTempo          = "set_tempo"
	TypeSetSwing          = "set_swing"
	TypeSetParameterLock  = "set_parameter_lock"
	TypeAddTrack          = "add_track"
	TypeDeleteTrack       = "delete_track"
	TypeClearTrack        = "clear_track"
	TypeSetTrackSample    = "set_track_sample"
	TypeSetTrackVolume    = "set_track_volume"
	TypeSetTrackTranspose = "set_track_transpose"
	TypeSetTrackStepCount = "set_track_step_count"
	TypeSetTrackName      = "set_track_name"
	TypeSetTrackMute      = "set_track_mute"
	TypeSetTrackSolo      = "set_track_solo"
	TypeSetEffects        = "set_effects"
	TypeSetScale          = "set_scale"
	TypeSetLoopRegion     = "set_loop_region"
	TypeCopySequence      = "copy_sequence"
	TypeMoveSequence      = "move_sequence"
	TypeRotatePattern     = "rotate_pattern"
	TypeInvertPattern     = "invert_pattern"
	TypeReversePattern    = "reverse_pattern"
	TypeMirrorPattern     = "mirror_pattern"
	TypeEuclideanFill     = "euclidean_fill"
	TypeReorderTracks     = "reorder_tracks"
	TypePlay              = "play"
	TypeStop              = "stop"
	TypeCursorMove        = "cursor_move"
	TypeStateHash         = "state_hash"
	TypeRequestSnapshot   = "request_snapshot"
	TypeClockSyncRequest  = "clock_sync_request"
)

// Pattern transform directions.
const (
	DirectionLeft  = "left"
	DirectionRight = "right"
)

// ToggleStep flips one step of a track.
type ToggleStep struct {
	TrackID string `json:"trackId"`
	Step    int    `json:"step"`
}

// SetTempo sets the session tempo in BPM.
type SetTempo struct {
	Tempo float64 `json:"tempo"`
}

// SetSwing sets the session swing percent.
type SetSwing struct {
	Swing float64 `json:"swing"`
}

// SetParameterLock sets or clears (Lock == nil) a per-step override.
type SetParameterLock struct {
	TrackID string               `json:"trackId"`
	Step    int                  `json:"step"`
	Lock    *state.ParameterLock `json:"lock"`
}

// AddTrack appends a client-minted track to the session.
type AddTrack struct {
	Track *state.Track `json:"track"`
}

// DeleteTrack removes a track by id.
type DeleteTrack struct {
	TrackID string `json:"trackId"`
}

// ClearTrack deactivates every step and clears every lock of a track.
type ClearTrack struct {
	TrackID string `json:"trackId"`
}

// SetTrackSample swaps the instrument referenced by a track.
type SetTrackSample struct {
	TrackID  string `json:"trackId"`
	SampleID string `json:"sampleId"`
	Name     string `json:"name"`
}

// SetTrackVolume sets a track volume in [0, 1].
type SetTrackVolume struct {
	TrackID string  `json:"trackId"`
	Volume  float64 `json:"volume"`
}

// SetTrackTranspose sets a track transpose in semitones. Fractional input
// rounds to the nearest semitone.
type SetTrackTranspose struct {
	TrackID   string  `json:"trackId"`
	Transpose float64 `json:"transpose"`
}

// SetTrackStepCount changes the active step prefix of a track. Shrinking is
// non-destructive: trailing steps and locks persist.
type SetTrackStepCount struct {
	TrackID   string `json:"trackId"`
	StepCount int    `json:"stepCount"`
}

// SetTrackName renames a track.
type SetTrackName struct {
	TrackID string `json:"trackId"`
	Name    string `json:"name"`
}

// SetTrackMute sets the local-only mute flag. Never transmitted; applied to
// the local replica only.
type SetTrackMute struct {
	TrackID string `json:"trackId"`
	Muted   bool   `json:"muted"`
}

// SetTrackSolo sets the local-only solo flag. Never transmitted.
type SetTrackSolo struct {
	TrackID string `json:"trackId"`
	Soloed  bool   `json:"soloed"`
}

// SetEffects replaces (or clears, when nil) the session effect sends.
type SetEffects struct {
	Effects *state.Effects `json:"effects"`
}

// SetScale sets the session scale name; empty clears it.
type SetScale struct {
	Scale string `json:"scale"`
}

// SetLoopRegion sets (or clears, when nil) the playback loop window.
type SetLoopRegion struct {
	Region *state.LoopRegion `json:"region"`
}

// CopySequence copies steps and locks from one track onto another.
type CopySequence struct {
	FromTrackID string `json:"fromTrackId"`
	ToTrackID   string `json:"toTrackId"`
}

// MoveSequence copies steps and locks onto another track and clears the
// source pattern.
type MoveSequence struct {
	FromTrackID string `json:"fromTrackId"`
	ToTrackID   string `json:"toTrackId"`
}

// RotatePattern shifts the active steps of a track one position left or
// right, wrapping within the active window. Locks travel with their steps.
type RotatePattern struct {
	TrackID   string `json:"trackId"`
	Direction string `json:"direction"`
}

// InvertPattern flips every active-window step. Steps that become inactive
// lose their locks.
type InvertPattern struct {
	TrackID string `json:"trackId"`
}

// ReversePattern reverses the active window. Locks travel with their steps.
type ReversePattern struct {
	TrackID string `json:"trackId"`
}

// MirrorPattern reflects one half of the active window onto the other.
// DirectionRight mirrors the first half onto the second; DirectionLeft the
// reverse.
type MirrorPattern struct {
	TrackID   string `json:"trackId"`
	Direction string `json:"direction"`
}

// EuclideanFill distributes the given number of hits evenly across the
// active window, replacing the current pattern.
type EuclideanFill struct {
	TrackID string `json:"trackId"`
	Hits    int    `json:"hits"`
}

// ReorderTracks moves the track at FromIndex to ToIndex.
type ReorderTracks struct {
	FromIndex int `json:"fromIndex"`
	ToIndex   int `json:"toIndex"`
}

// Play starts transport. Non-mutating: passes through the reducer unchanged.
type Play struct{}

// Stop halts transport. Non-mutating.
type Stop struct{}

// CursorMove reports a client cursor position. Non-mutating and
// regenerated continuously, so it is a low-priority queue citizen.
type CursorMove struct {
	ClientID string `json:"clientId"`
	TrackID  string `json:"trackId"`
	Step     int    `json:"step"`
}

// StateHash reports a replica's convergence hash for divergence detection.
// Meaningless once stale; never queued offline.
type StateHash struct {
	Hash    string `json:"hash"`
	Version int64  `json:"version"`
}

// RequestSnapshot asks the coordinator for a full-state snapshot.
type RequestSnapshot struct{}

// ClockSyncRequest carries a client timestamp for transport clock sync.
// Meaningless once stale; never queued offline.
type ClockSyncRequest struct {
	ClientTime int64 `json:"clientTime"`
}

func (*ToggleStep) Type() string        { return TypeToggleStep }
func (*SetTempo) Type() string          { return TypeSetTempo }
func (*SetSwing) Type() string          { return TypeSetSwing }
func (*SetParameterLock) Type() string  { return TypeSetParameterLock }
func (*AddTrack) Type() string          { return TypeAddTrack }
func (*DeleteTrack) Type() string       { return TypeDeleteTrack }
func (*ClearTrack) Type() string        { return TypeClearTrack }
func (*SetTrackSample) Type() string    { return TypeSetTrackSample }
func (*SetTrackVolume) Type() string    { return TypeSetTrackVolume }
func (*SetTrackTranspose) Type() string { return TypeSetTrackTranspose }
func (*SetTrackStepCount) Type() string { return TypeSetTrackStepCount }
func (*SetTrackName) Type() string      { return TypeSetTrackName }
func (*SetTrackMute) Type() string      { return TypeSetTrackMute }
func (*SetTrackSolo) Type() string      { return TypeSetTrackSolo }
func (*SetEffects) Type() string        { return TypeSetEffects }
func (*SetScale) Type() string          { return TypeSetScale }
func (*SetLoopRegion) Type() string     { return TypeSetLoopRegion }
func (*CopySequence) Type() string      { return TypeCopySequence }
func (*MoveSequence) Type() string      { return TypeMoveSequence }
func (*RotatePattern) Type() string     { return TypeRotatePattern }
func (*InvertPattern) Type() string     { return TypeInvertPattern }
func (*ReversePattern) Type() string    { return TypeReversePattern }
func (*MirrorPattern) Type() string     { return TypeMirrorPattern }
func (*EuclideanFill) Type() string     { return TypeEuclideanFill }
func (*ReorderTracks) Type() string     { return TypeReorderTracks }
func (*Play) Type() string              { return TypePlay }
func (*Stop) Type() string              { return TypeStop }
func (*CursorMove) Type() string        { return TypeCursorMove }
func (*StateHash) Type() string         { return TypeStateHash }
func (*RequestSnapshot) Type() string   { return TypeRequestSnapshot }
func (*ClockSyncRequest) Type() string  { return TypeClockSyncRequest }

func (*ToggleStep) isMessage()        {}
func (*SetTempo) isMessage()          {}
func (*SetSwing) isMessage()          {}
func (*SetParameterLock) isMessage()  {}
func (*AddTrack) isMessage()          {}
func (*DeleteTrack) isMessage()       {}
func (*ClearTrack) isMessage()        {}
func (*SetTrackSample) isMessage()    {}
func (*SetTrackVolume) isMessage()    {}
func (*SetTrackTranspose) isMessage() {}
func (*SetTrackStepCount) isMessage() {}
func (*SetTrackName) isMessage()      {}
func (*SetTrackMute) isMessage()      {}
func (*SetTrackSolo) isMessage()      {}
func (*SetEffects) isMessage()        {}
func (*SetScale) isMessage()          {}
func (*SetLoopRegion) isMessage()     {}
func (*CopySequence) isMessage()      {}
func (*MoveSequence) isMessage()      {}
func (*RotatePattern) isMessage()     {}
func (*InvertPattern) isMessage()     {}
func (*ReversePattern) isMessage()    {}
func (*MirrorPattern) isMessage()     {}
func (*EuclideanFill) isMessage()     {}
func (*ReorderTracks) isMessage()     {}
func (*Play) isMessage()              {}
func (*Stop) isMessage()              {}
func (*CursorMove) isMessage()        {}
func (*StateHash) isMessage()         {}
func (*RequestSnapshot) isMessage()   {}
func (*ClockSyncRequest) isMessage()  {}
