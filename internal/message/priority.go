package message

// Priority classifies a message for offline queue admission and replay
// ordering. Lower values replay first.
type Priority int

const (
	// PriorityHigh marks structural must-not-lose messages. Never evicted.
	PriorityHigh Priority = iota
	// PriorityNormal is everything without a special classification.
	PriorityNormal
	// PriorityLow marks time-sensitive, regeneratable messages. First to
	// be evicted on overflow.
	PriorityLow
)

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityLow:
		return "low"
	default:
		return "normal"
	}
}

// Classify returns the queue priority for a message variant.
func Classify(m Message) Priority {
	switch m.(type) {
	case *AddTrack, *DeleteTrack, *CopySequence, *MoveSequence, *RequestSnapshot:
		return PriorityHigh
	case *CursorMove, *Play, *Stop:
		return PriorityLow
	default:
		return PriorityNormal
	}
}

// Queueable reports whether a message may be held for offline replay.
// Clock-sync requests and hash reports are meaningless once stale and are
// dropped at admission time unconditionally.
func Queueable(m Message) bool {
	switch m.(type) {
	case *ClockSyncRequest, *StateHash:
		return false
	default:
		return true
	}
}

// Mutating reports whether a message variant changes document content.
// Non-mutating variants pass through the reducer unchanged.
func Mutating(m Message) bool {
	switch m.(type) {
	case *Play, *Stop, *CursorMove, *StateHash, *RequestSnapshot, *ClockSyncRequest:
		return false
	default:
		return true
	}
}

// LocalOnly reports whether a message mutates only local-only fields
// (mute/solo). Local-only messages apply to the local replica and are never
// transmitted to the coordinator.
func LocalOnly(m Message) bool {
	switch m.(type) {
	case *SetTrackMute, *SetTrackSolo:
		return true
	default:
		return false
	}
}
