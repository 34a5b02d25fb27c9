package message

import (
	"encoding/json"
	"fmt"
)

// Server-to-client frame discriminators.
const (
	FrameMutation   = "mutation"
	FrameSnapshot   = "snapshot"
	FrameTransient  = "transient"
	FrameHashResult = "hash_result"
	FrameClockSync  = "clock_sync"
	FrameError      = "error"
)

// ServerFrame is the envelope the coordinator broadcasts. Exactly one of
// the optional blocks is populated depending on Type:
//
//   - mutation: Seq, ClientID, ClientSeq (echo of the origin), Payload
//     (the wire-encoded mutation), Hash (post-apply convergence hash)
//   - snapshot: State (full document JSON), ServerSeq (the cut line; zero
//     means the snapshot carries no sequence anchor and receivers fall
//     back to age-based sweeping)
//   - transient: Payload (non-mutating message relayed without a sequence)
//   - hash_result: Matched, ServerSeq
//   - clock_sync: ClientTime (echo), ServerTime
//   - error: Error (boundary rejection, the only operator-visible kind)
type ServerFrame struct {
	Type       string          `json:"type"`
	Seq        int64           `json:"seq,omitempty"`
	ClientID   string          `json:"clientId,omitempty"`
	ClientSeq  int64           `json:"clientSeq,omitempty"`
	Hash       string          `json:"hash,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	State      json.RawMessage `json:"state,omitempty"`
	ServerSeq  int64           `json:"serverSeq,omitempty"`
	Matched    *bool           `json:"matched,omitempty"`
	ClientTime int64           `json:"clientTime,omitempty"`
	ServerTime int64           `json:"serverTime,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// EncodeFrame serializes a server frame.
func EncodeFrame(f *ServerFrame) ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode frame %s: %w", f.Type, err)
	}
	return data, nil
}

// DecodeFrame parses a server frame.
func DecodeFrame(data []byte) (*ServerFrame, error) {
	f := &ServerFrame{}
	if err := json.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if f.Type == "" {
		return nil, fmt.Errorf("decode frame: missing type")
	}
	return f, nil
}

// EncodeClient serializes a client message with its type discriminator and
// the client's local sequence number, which the coordinator echoes back on
// the resulting broadcast so the sender can confirm its own mutation.
func EncodeClient(m Message, clientSeq int64) ([]byte, error) {
	data, err := Encode(m)
	if err != nil {
		return nil, err
	}
	if clientSeq == 0 {
		return data, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("encode client %s: %w", m.Type(), err)
	}
	fields["clientSeq"] = json.RawMessage(fmt.Sprintf("%d", clientSeq))
	return json.Marshal(fields)
}

// DecodeClient parses a client wire message and its optional local
// sequence number.
func DecodeClient(data []byte) (Message, int64, error) {
	m, err := Decode(data)
	if err != nil {
		return nil, 0, err
	}
	var aux struct {
		ClientSeq int64 `json:"clientSeq"`
	}
	// The envelope already parsed; clientSeq is best-effort.
	_ = json.Unmarshal(data, &aux)
	return m, aux.ClientSeq, nil
}
