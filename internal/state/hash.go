package state

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
)

// DomainState is the domain prefix for document hashes. The version suffix
// enables future algorithm migration without ambiguity.
const DomainState = "keyboardia/state/v1"

// Hash computes the convergence hash of the document:
// SHA-256(domain + 0x00 + canonical JSON). The null separator prevents
// domain/data boundary ambiguity.
//
// Replicas exchange this hash in state_hash messages; a mismatch means the
// replicas have diverged in document content (Version and local-only fields
// never contribute).
func (s *SessionState) Hash() string {
	h := sha256.New()
	h.Write([]byte(DomainState))
	h.Write([]byte{0x00})
	h.Write(s.MarshalCanonical())
	return hex.EncodeToString(h.Sum(nil))
}

// EqualCanonical reports whether two documents agree modulo Version and the
// local-only Muted/Soloed flags. This is the convergence equality: replicas
// with equal canonical forms render the same document.
func EqualCanonical(a, b *SessionState) bool {
	if a == nil || b == nil {
		return a == b
	}
	return bytes.Equal(a.MarshalCanonical(), b.MarshalCanonical())
}
