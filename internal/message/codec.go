package message

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/adewale/keyboardia/internal/state"
)

// Boundary decode errors. Per the error taxonomy these are the only
// category surfaced to the sender; everything past the codec is absorbed
// by clamp-or-noop semantics.
var (
	ErrTooLarge    = fmt.Errorf("message exceeds %d bytes", state.MaxMessageBytes)
	ErrUnknownType = fmt.Errorf("unknown message type")
)

// registry maps wire discriminators to fresh variant values.
var registry = map[string]func() Message{
	TypeToggleStep:        func() Message { return &ToggleStep{} },
	TypeSetTempo:          func() Message { return &SetTempo{} },
	TypeSetSwing:          func() Message { return &SetSwing{} },
	TypeSetParameterLock:  func() Message { return &SetParameterLock{} },
	TypeAddTrack:          func() Message { return &AddTrack{} },
	TypeDeleteTrack:       func() Message { return &DeleteTrack{} },
	TypeClearTrack:        func() Message { return &ClearTrack{} },
	TypeSetTrackSample:    func() Message { return &SetTrackSample{} },
	TypeSetTrackVolume:    func() Message { return &SetTrackVolume{} },
	TypeSetTrackTranspose: func() Message { return &SetTrackTranspose{} },
	TypeSetTrackStepCount: func() Message { return &SetTrackStepCount{} },
	TypeSetTrackName:      func() Message { return &SetTrackName{} },
	TypeSetTrackMute:      func() Message { return &SetTrackMute{} },
	TypeSetTrackSolo:      func() Message { return &SetTrackSolo{} },
	TypeSetEffects:        func() Message { return &SetEffects{} },
	TypeSetScale:          func() Message { return &SetScale{} },
	TypeSetLoopRegion:     func() Message { return &SetLoopRegion{} },
	TypeCopySequence:      func() Message { return &CopySequence{} },
	TypeMoveSequence:      func() Message { return &MoveSequence{} },
	TypeRotatePattern:     func() Message { return &RotatePattern{} },
	TypeInvertPattern:     func() Message { return &InvertPattern{} },
	TypeReversePattern:    func() Message { return &ReversePattern{} },
	TypeMirrorPattern:     func() Message { return &MirrorPattern{} },
	TypeEuclideanFill:     func() Message { return &EuclideanFill{} },
	TypeReorderTracks:     func() Message { return &ReorderTracks{} },
	TypePlay:              func() Message { return &Play{} },
	TypeStop:              func() Message { return &Stop{} },
	TypeCursorMove:        func() Message { return &CursorMove{} },
	TypeStateHash:         func() Message { return &StateHash{} },
	TypeRequestSnapshot:   func() Message { return &RequestSnapshot{} },
	TypeClockSyncRequest:  func() Message { return &ClockSyncRequest{} },
}

// Registry returns every wire discriminator in sorted order. Tests use this
// to verify exhaustive handling of the union.
func Registry() []string {
	types := make([]string, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// New returns a fresh zero value for the given discriminator, or nil if the
// discriminator is unknown.
func New(msgType string) Message {
	if mk, ok := registry[msgType]; ok {
		return mk()
	}
	return nil
}

// envelope is the minimal wire shape every message shares.
type envelope struct {
	Type string `json:"type"`
}

// Decode parses one wire message. Unknown discriminators, malformed JSON,
// and oversized payloads are boundary errors; they never reach the reducer.
func Decode(data []byte) (Message, error) {
	if len(data) > state.MaxMessageBytes {
		return nil, ErrTooLarge
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	mk, ok := registry[env.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
	msg := mk()
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", env.Type, err)
	}
	return msg, nil
}

// Encode serializes a message with its type discriminator injected.
func Encode(m Message) ([]byte, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.Type(), err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.Type(), err)
	}
	if fields == nil {
		fields = map[string]json.RawMessage{}
	}
	fields["type"] = json.RawMessage(fmt.Sprintf("%q", m.Type()))
	return json.Marshal(fields)
}

// EncodedSize returns the serialized size of a message in bytes, or 0 if it
// cannot be encoded. The outbox uses this for the payload-ceiling check at
// replay time.
func EncodedSize(m Message) int {
	data, err := Encode(m)
	if err != nil {
		return 0
	}
	return len(data)
}
