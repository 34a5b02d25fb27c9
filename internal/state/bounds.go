package state

import (
	"math"
	"unicode/utf8"
)

// Document bounds. Out-of-range inputs saturate to these limits rather than
// being rejected, so replicas converge even when a client disagrees about
// current state.
const (
	MinTempo     = 40.0
	MaxTempo     = 180.0
	DefaultTempo = 120.0

	// Swing is a percent of maximum offbeat delay.
	MinSwing = 0.0
	MaxSwing = 100.0

	MinVolume     = 0.0
	MaxVolume     = 1.0
	DefaultVolume = 1.0

	// VolumeStep is the quantization step for volume values. Fractional
	// inputs round to the nearest step before clamping so every replica
	// stores the identical representable value.
	VolumeStep = 0.001

	// Transpose is in semitones.
	MinTranspose = -24
	MaxTranspose = 24

	MaxTracks        = 16
	MaxStepsPerTrack = 64
	MinStepCount     = 1
	DefaultStepCount = 16

	// MaxScaleLen bounds the free-form scale name.
	MaxScaleLen = 64

	// MaxMessageBytes is the transport payload ceiling. Enforced at the
	// boundary and again at outbox replay, not inside the pure reducer.
	MaxMessageBytes = 32 * 1024
)

// ClampTempo saturates a tempo to [MinTempo, MaxTempo].
func ClampTempo(v float64) float64 {
	return clampFloat(v, MinTempo, MaxTempo)
}

// ClampSwing saturates a swing percent to [MinSwing, MaxSwing].
func ClampSwing(v float64) float64 {
	return clampFloat(v, MinSwing, MaxSwing)
}

// ClampVolume quantizes to VolumeStep then saturates to [MinVolume, MaxVolume].
func ClampVolume(v float64) float64 {
	if math.IsNaN(v) {
		return MinVolume
	}
	v = math.Round(v/VolumeStep) * VolumeStep
	return clampFloat(v, MinVolume, MaxVolume)
}

// ClampTranspose rounds a fractional transpose to the nearest semitone then
// saturates to [MinTranspose, MaxTranspose].
func ClampTranspose(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	n := int(math.Round(v))
	return clampInt(n, MinTranspose, MaxTranspose)
}

// ClampStepCount saturates to [MinStepCount, MaxStepsPerTrack].
func ClampStepCount(n int) int {
	return clampInt(n, MinStepCount, MaxStepsPerTrack)
}

// ClampStepIndex saturates to [0, MaxStepsPerTrack-1].
func ClampStepIndex(n int) int {
	return clampInt(n, 0, MaxStepsPerTrack-1)
}

// ClampUnit saturates to [0, 1] for effect sends and lock volume scales.
func ClampUnit(v float64) float64 {
	return clampFloat(v, 0, 1)
}

// ClampName trims a track name or scale to MaxScaleLen bytes, backing up to
// a rune boundary so the result is always valid UTF-8.
func ClampName(s string) string {
	if len(s) <= MaxScaleLen {
		return s
	}
	n := MaxScaleLen
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// ValidStepIndex reports whether n addresses a slot inside the fixed track
// capacity. Index-addressing messages with invalid indices are silently
// ignored rather than clamped.
func ValidStepIndex(n int) bool {
	return n >= 0 && n < MaxStepsPerTrack
}

func clampFloat(v, min, max float64) float64 {
	if math.IsNaN(v) {
		return min
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func clampInt(n, min, max int) int {
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}
