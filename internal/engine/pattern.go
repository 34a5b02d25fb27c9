package engine

import (
	"github.com/adewale/keyboardia/internal/message"
	"github.com/adewale/keyboardia/internal/state"
)

// Pattern-shape transforms operate on the active window (the first
// StepCount entries) of a track. Steps and locks move in lockstep: a lock
// that travels with its step is deep-copied to the new index, and a step
// that becomes inactive as a side effect of the transform has its lock
// cleared. Entries beyond the active window are untouched.

// rotatePattern shifts the active window one position, wrapping at the
// window edge. DirectionLeft shifts toward index 0; anything else shifts
// right.
func rotatePattern(dst, src *state.Track, direction string) {
	n := dst.StepCount
	if n < 2 {
		return
	}
	shift := 1
	if direction == message.DirectionLeft {
		shift = n - 1
	}
	for i := 0; i < n; i++ {
		j := (i + shift) % n
		dst.Steps[j] = src.Steps[i]
		dst.Locks[j] = src.Locks[i].Clone()
	}
}

// invertPattern flips every step in the active window. Steps that become
// inactive lose their locks; steps that become active keep whatever lock
// persisted at their index.
func invertPattern(dst, src *state.Track) {
	n := dst.StepCount
	for i := 0; i < n; i++ {
		active := !src.Steps[i]
		dst.Steps[i] = active
		if !active {
			dst.Locks[i] = nil
		}
	}
}

// reversePattern reverses the active window; locks travel with their steps.
func reversePattern(dst, src *state.Track) {
	n := dst.StepCount
	for i := 0; i < n; i++ {
		j := n - 1 - i
		dst.Steps[j] = src.Steps[i]
		dst.Locks[j] = src.Locks[i].Clone()
	}
}

// mirrorPattern reflects one half of the active window onto the other.
// DirectionLeft copies the second half onto the first; anything else
// copies the first half onto the second. The middle step of an odd window
// stays put.
func mirrorPattern(dst, src *state.Track, direction string) {
	n := dst.StepCount
	for i := 0; i < n/2; i++ {
		j := n - 1 - i
		lo, hi := i, j
		if direction == message.DirectionLeft {
			lo, hi = j, i
		}
		dst.Steps[hi] = src.Steps[lo]
		dst.Locks[hi] = src.Locks[lo].Clone()
	}
}

// euclideanFill replaces the active window with hits distributed as evenly
// as the window allows (Bjorklund distribution). Hits saturate to the
// window size. Steps that end up inactive lose their locks; steps that stay
// active keep theirs.
func euclideanFill(dst *state.Track, hits int) {
	n := dst.StepCount
	if n == 0 {
		return
	}
	if hits < 0 {
		hits = 0
	}
	if hits > n {
		hits = n
	}
	for i := 0; i < n; i++ {
		active := hits > 0 && (i*hits)%n < hits
		dst.Steps[i] = active
		if !active {
			dst.Locks[i] = nil
		}
	}
}
