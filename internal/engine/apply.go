package engine

import (
	"github.com/adewale/keyboardia/internal/message"
	"github.com/adewale/keyboardia/internal/state"
)

// Apply computes the document that results from one mutation message.
//
// The input document is never modified; the result shares every track that
// the message did not touch. A message that cannot apply (unknown track,
// invalid index, duplicate id, track limit) returns the input document
// unchanged. Apply does not stamp Version; the coordinator does that when
// it assigns the server sequence number.
func Apply(s *state.SessionState, m message.Message) *state.SessionState {
	switch msg := m.(type) {
	case *message.ToggleStep:
		return applyToTrack(s, msg.TrackID, func(t *state.Track) {
			if !state.ValidStepIndex(msg.Step) {
				return
			}
			// Toggling a step off keeps its lock. Locks persist on
			// inactive steps so toggling twice restores the document
			// exactly.
			t.Steps[msg.Step] = !t.Steps[msg.Step]
		})

	case *message.SetTempo:
		out := s.ShallowClone()
		out.Tempo = state.ClampTempo(msg.Tempo)
		return out

	case *message.SetSwing:
		out := s.ShallowClone()
		out.Swing = state.ClampSwing(msg.Swing)
		return out

	case *message.SetParameterLock:
		return applyToTrack(s, msg.TrackID, func(t *state.Track) {
			if !state.ValidStepIndex(msg.Step) {
				return
			}
			l := msg.Lock.Clone()
			if l != nil {
				l.Pitch = state.ClampTranspose(float64(l.Pitch))
				l.Volume = state.ClampUnit(l.Volume)
			}
			t.Locks[msg.Step] = l
		})

	case *message.AddTrack:
		return applyAddTrack(s, msg)

	case *message.DeleteTrack:
		i := s.TrackIndex(msg.TrackID)
		if i < 0 {
			return s
		}
		out := s.ShallowClone()
		out.Tracks = append(out.Tracks[:i:i], out.Tracks[i+1:]...)
		return out

	case *message.ClearTrack:
		return applyToTrack(s, msg.TrackID, func(t *state.Track) {
			for i := range t.Steps {
				t.Steps[i] = false
				t.Locks[i] = nil
			}
		})

	case *message.SetTrackSample:
		return applyToTrack(s, msg.TrackID, func(t *state.Track) {
			t.SampleID = msg.SampleID
			t.Name = state.ClampName(msg.Name)
		})

	case *message.SetTrackVolume:
		return applyToTrack(s, msg.TrackID, func(t *state.Track) {
			t.Volume = state.ClampVolume(msg.Volume)
		})

	case *message.SetTrackTranspose:
		return applyToTrack(s, msg.TrackID, func(t *state.Track) {
			t.Transpose = state.ClampTranspose(msg.Transpose)
		})

	case *message.SetTrackStepCount:
		return applyToTrack(s, msg.TrackID, func(t *state.Track) {
			t.StepCount = state.ClampStepCount(msg.StepCount)
		})

	case *message.SetTrackName:
		return applyToTrack(s, msg.TrackID, func(t *state.Track) {
			t.Name = state.ClampName(msg.Name)
		})

	case *message.SetTrackMute:
		return applyToTrack(s, msg.TrackID, func(t *state.Track) {
			t.Muted = msg.Muted
		})

	case *message.SetTrackSolo:
		return applyToTrack(s, msg.TrackID, func(t *state.Track) {
			t.Soloed = msg.Soloed
		})

	case *message.SetEffects:
		out := s.ShallowClone()
		if msg.Effects == nil {
			out.Effects = nil
		} else {
			out.Effects = &state.Effects{
				Reverb:  state.ClampUnit(msg.Effects.Reverb),
				Delay:   state.ClampUnit(msg.Effects.Delay),
				LowPass: state.ClampUnit(msg.Effects.LowPass),
			}
		}
		return out

	case *message.SetScale:
		out := s.ShallowClone()
		out.Scale = state.ClampName(msg.Scale)
		return out

	case *message.SetLoopRegion:
		out := s.ShallowClone()
		if msg.Region == nil {
			out.LoopRegion = nil
		} else {
			start := state.ClampStepIndex(msg.Region.Start)
			end := state.ClampStepIndex(msg.Region.End)
			if start > end {
				start, end = end, start
			}
			out.LoopRegion = &state.LoopRegion{Start: start, End: end}
		}
		return out

	case *message.CopySequence:
		return applyCopySequence(s, msg.FromTrackID, msg.ToTrackID, false)

	case *message.MoveSequence:
		return applyCopySequence(s, msg.FromTrackID, msg.ToTrackID, true)

	case *message.RotatePattern:
		return applyPattern(s, msg.TrackID, func(t, src *state.Track) {
			rotatePattern(t, src, msg.Direction)
		})

	case *message.InvertPattern:
		return applyPattern(s, msg.TrackID, invertPattern)

	case *message.ReversePattern:
		return applyPattern(s, msg.TrackID, reversePattern)

	case *message.MirrorPattern:
		return applyPattern(s, msg.TrackID, func(t, src *state.Track) {
			mirrorPattern(t, src, msg.Direction)
		})

	case *message.EuclideanFill:
		return applyPattern(s, msg.TrackID, func(t, src *state.Track) {
			euclideanFill(t, msg.Hits)
		})

	case *message.ReorderTracks:
		return applyReorder(s, msg.FromIndex, msg.ToIndex)

	case *message.Play, *message.Stop, *message.CursorMove,
		*message.StateHash, *message.RequestSnapshot, *message.ClockSyncRequest:
		// Non-mutating variants pass through unchanged.
		return s

	default:
		// Closed union; the codec rejects unknown discriminators and the
		// exhaustiveness test covers every registered variant.
		return s
	}
}

// applyToTrack clones the addressed track, mutates the clone, and returns a
// document with the clone substituted. Unknown track ids return the input
// document unchanged.
func applyToTrack(s *state.SessionState, trackID string, mutate func(*state.Track)) *state.SessionState {
	i := s.TrackIndex(trackID)
	if i < 0 {
		return s
	}
	t := s.Tracks[i].Clone()
	mutate(t)
	return s.WithTrack(i, t)
}

// applyPattern runs a pattern-shape transform. The transform receives the
// cloned destination track and the untouched source track so it can move
// steps and locks without aliasing.
func applyPattern(s *state.SessionState, trackID string, transform func(dst, src *state.Track)) *state.SessionState {
	i := s.TrackIndex(trackID)
	if i < 0 {
		return s
	}
	src := s.Tracks[i]
	dst := src.Clone()
	transform(dst, src)
	return s.WithTrack(i, dst)
}

func applyAddTrack(s *state.SessionState, msg *message.AddTrack) *state.SessionState {
	if msg.Track == nil || msg.Track.ID == "" {
		return s
	}
	if len(s.Tracks) >= state.MaxTracks {
		return s
	}
	if s.TrackByID(msg.Track.ID) != nil {
		// Duplicate id: idempotent rejection.
		return s
	}
	t := msg.Track.Clone()
	t.Normalize()
	out := s.ShallowClone()
	out.Tracks = append(out.Tracks, t)
	return out
}

func applyCopySequence(s *state.SessionState, fromID, toID string, clearSource bool) *state.SessionState {
	if fromID == toID {
		return s
	}
	fi := s.TrackIndex(fromID)
	ti := s.TrackIndex(toID)
	if fi < 0 || ti < 0 {
		return s
	}
	from := s.Tracks[fi]

	to := s.Tracks[ti].Clone()
	copy(to.Steps, from.Steps)
	for i, l := range from.Locks {
		to.Locks[i] = l.Clone()
	}
	to.StepCount = from.StepCount

	out := s.WithTrack(ti, to)
	if clearSource {
		cleared := from.Clone()
		for i := range cleared.Steps {
			cleared.Steps[i] = false
			cleared.Locks[i] = nil
		}
		out = out.WithTrack(fi, cleared)
	}
	return out
}

func applyReorder(s *state.SessionState, from, to int) *state.SessionState {
	n := len(s.Tracks)
	if n == 0 {
		return s
	}
	from = clampIndex(from, n)
	to = clampIndex(to, n)
	if from == to {
		return s
	}
	out := s.ShallowClone()
	t := out.Tracks[from]
	out.Tracks = append(out.Tracks[:from:from], out.Tracks[from+1:]...)
	rest := make([]*state.Track, 0, n)
	rest = append(rest, out.Tracks[:to]...)
	rest = append(rest, t)
	rest = append(rest, out.Tracks[to:]...)
	out.Tracks = rest
	return out
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
