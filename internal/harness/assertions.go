package harness

import (
	"fmt"
	"math"

	"github.com/adewale/keyboardia/internal/state"
)

const floatTolerance = 1e-9

// CheckAssertions validates every assertion against the final document.
// All failures are collected, not just the first.
func CheckAssertions(scenario *Scenario, doc *state.SessionState) []error {
	var errs []error
	for i, a := range scenario.Assertions {
		if err := checkAssertion(a, doc); err != nil {
			errs = append(errs, fmt.Errorf("assertions[%d] (%s): %w", i, a.Type, err))
		}
	}
	return errs
}

func checkAssertion(a Assertion, doc *state.SessionState) error {
	switch a.Type {
	case AssertTempo:
		if !floatEq(doc.Tempo, a.Value) {
			return fmt.Errorf("tempo = %g, want %g", doc.Tempo, a.Value)
		}

	case AssertSwing:
		if !floatEq(doc.Swing, a.Value) {
			return fmt.Errorf("swing = %g, want %g", doc.Swing, a.Value)
		}

	case AssertScale:
		if doc.Scale != a.Name {
			return fmt.Errorf("scale = %q, want %q", doc.Scale, a.Name)
		}

	case AssertTrackCount:
		if len(doc.Tracks) != a.Count {
			return fmt.Errorf("track count = %d, want %d", len(doc.Tracks), a.Count)
		}

	case AssertStep:
		t, err := trackAt(doc, a.Track)
		if err != nil {
			return err
		}
		if !state.ValidStepIndex(a.Step) {
			return fmt.Errorf("step index %d out of range", a.Step)
		}
		if t.Steps[a.Step] != a.Active {
			return fmt.Errorf("track %d step %d active = %t, want %t", a.Track, a.Step, t.Steps[a.Step], a.Active)
		}

	case AssertStepCount:
		t, err := trackAt(doc, a.Track)
		if err != nil {
			return err
		}
		if t.StepCount != a.Count {
			return fmt.Errorf("track %d step count = %d, want %d", a.Track, t.StepCount, a.Count)
		}

	case AssertTrackVolume:
		t, err := trackAt(doc, a.Track)
		if err != nil {
			return err
		}
		if !floatEq(t.Volume, a.Value) {
			return fmt.Errorf("track %d volume = %g, want %g", a.Track, t.Volume, a.Value)
		}

	case AssertLock:
		t, err := trackAt(doc, a.Track)
		if err != nil {
			return err
		}
		if !state.ValidStepIndex(a.Step) {
			return fmt.Errorf("step index %d out of range", a.Step)
		}
		has := t.Locks[a.Step] != nil
		if has != a.Active {
			return fmt.Errorf("track %d step %d lock present = %t, want %t", a.Track, a.Step, has, a.Active)
		}
	}
	return nil
}

func trackAt(doc *state.SessionState, i int) (*state.Track, error) {
	if i < 0 || i >= len(doc.Tracks) {
		return nil, fmt.Errorf("track index %d out of range (have %d)", i, len(doc.Tracks))
	}
	return doc.Tracks[i], nil
}

func floatEq(a, b float64) bool {
	return math.Abs(a-b) < floatTolerance
}
