package state

import (
	"bytes"
	"fmt"
	"strconv"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces the canonical JSON form of the document used for
// convergence hashing and canonical equality.
//
// Differences from standard json.Marshal:
//  1. Object keys are emitted in sorted order.
//  2. Strings are NFC normalized; no HTML escaping.
//  3. Floats use shortest round-trip form, so 1.0 and 1.00 agree.
//  4. Version, Muted, and Soloed are omitted entirely: they are replica
//     bookkeeping and a local-only field, not document content.
//
// Every replica holding the same document content produces byte-identical
// output, regardless of how the document was assembled.
func (s *SessionState) MarshalCanonical() []byte {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	if s.Effects != nil {
		writeKey(&buf, &first, "effects")
		writeEffects(&buf, s.Effects)
	}
	if s.LoopRegion != nil {
		writeKey(&buf, &first, "loopRegion")
		writeLoopRegion(&buf, s.LoopRegion)
	}
	if s.Scale != "" {
		writeKey(&buf, &first, "scale")
		writeString(&buf, s.Scale)
	}
	writeKey(&buf, &first, "swing")
	writeFloat(&buf, s.Swing)
	writeKey(&buf, &first, "tempo")
	writeFloat(&buf, s.Tempo)
	writeKey(&buf, &first, "tracks")
	buf.WriteByte('[')
	for i, t := range s.Tracks {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeTrack(&buf, t)
	}
	buf.WriteByte(']')
	buf.WriteByte('}')
	return buf.Bytes()
}

func writeTrack(buf *bytes.Buffer, t *Track) {
	buf.WriteByte('{')
	first := true
	writeKey(buf, &first, "id")
	writeString(buf, t.ID)

	// Locks carry their step index so sparse arrays canonicalize without
	// nulls: only occupied slots appear.
	writeKey(buf, &first, "locks")
	buf.WriteByte('[')
	n := 0
	for i, l := range t.Locks {
		if l == nil {
			continue
		}
		if n > 0 {
			buf.WriteByte(',')
		}
		n++
		fmt.Fprintf(buf, `{"pitch":%d,"step":%d,"tie":%t,"volume":`, l.Pitch, i, l.Tie)
		writeFloat(buf, l.Volume)
		buf.WriteByte('}')
	}
	buf.WriteByte(']')

	writeKey(buf, &first, "name")
	writeString(buf, t.Name)
	writeKey(buf, &first, "sampleId")
	writeString(buf, t.SampleID)
	writeKey(buf, &first, "stepCount")
	buf.WriteString(strconv.Itoa(t.StepCount))
	writeKey(buf, &first, "steps")
	buf.WriteByte('[')
	for i, on := range t.Steps {
		if i > 0 {
			buf.WriteByte(',')
		}
		if on {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	}
	buf.WriteByte(']')
	writeKey(buf, &first, "transpose")
	buf.WriteString(strconv.Itoa(t.Transpose))
	writeKey(buf, &first, "volume")
	writeFloat(buf, t.Volume)
	buf.WriteByte('}')
}

func writeEffects(buf *bytes.Buffer, e *Effects) {
	buf.WriteString(`{"delay":`)
	writeFloat(buf, e.Delay)
	buf.WriteString(`,"lowPass":`)
	writeFloat(buf, e.LowPass)
	buf.WriteString(`,"reverb":`)
	writeFloat(buf, e.Reverb)
	buf.WriteByte('}')
}

func writeLoopRegion(buf *bytes.Buffer, r *LoopRegion) {
	fmt.Fprintf(buf, `{"end":%d,"start":%d}`, r.End, r.Start)
}

func writeKey(buf *bytes.Buffer, first *bool, key string) {
	if !*first {
		buf.WriteByte(',')
	}
	*first = false
	writeString(buf, key)
	buf.WriteByte(':')
}

// writeFloat emits the shortest decimal form that round-trips. Integral
// values print without a fraction (120, not 120.0).
func writeFloat(buf *bytes.Buffer, v float64) {
	buf.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
}

// writeString emits a JSON string with NFC normalization and no HTML
// escaping. Only control characters, quote, and backslash are escaped.
func writeString(buf *bytes.Buffer, s string) {
	s = norm.NFC.String(s)
	buf.WriteByte('"')
	for _, r := range s {
		switch {
		case r == '"':
			buf.WriteString(`\"`)
		case r == '\\':
			buf.WriteString(`\\`)
		case r == '\n':
			buf.WriteString(`\n`)
		case r == '\r':
			buf.WriteString(`\r`)
		case r == '\t':
			buf.WriteString(`\t`)
		case r < 0x20:
			fmt.Fprintf(buf, `\u%04x`, r)
		case r == utf8.RuneError:
			// Invalid UTF-8 byte; canonicalize to the replacement rune.
			buf.WriteRune(utf8.RuneError)
		default:
			buf.WriteRune(r)
		}
	}
	buf.WriteByte('"')
}
