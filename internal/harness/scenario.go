package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines a reducer conformance scenario: a mutation sequence
// applied to an empty document plus assertions on the result.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Steps is the mutation sequence, applied in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final document.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one wire-form mutation.
type Step struct {
	// Apply is the message type discriminator (e.g. "toggle_step").
	Apply string `yaml:"apply"`

	// Args holds the message fields by wire name.
	Args map[string]interface{} `yaml:"args,omitempty"`
}

// Assertion validates one property of the final document.
type Assertion struct {
	// Type specifies the assertion:
	//   - "tempo": session tempo equals Value
	//   - "swing": session swing equals Value
	//   - "scale": session scale equals Name
	//   - "track_count": number of tracks equals Count
	//   - "step": step Step of track index Track has activity Active
	//   - "step_count": track index Track has active window Count
	//   - "track_volume": track index Track has volume Value
	//   - "lock": step Step of track index Track has (Active) or lacks
	//     (!Active) a parameter lock
	Type string `yaml:"type"`

	Track  int     `yaml:"track,omitempty"`
	Step   int     `yaml:"step,omitempty"`
	Active bool    `yaml:"active,omitempty"`
	Count  int     `yaml:"count,omitempty"`
	Value  float64 `yaml:"value,omitempty"`
	Name   string  `yaml:"name,omitempty"`
}

// Assertion type constants.
const (
	AssertTempo       = "tempo"
	AssertSwing       = "swing"
	AssertScale       = "scale"
	AssertTrackCount  = "track_count"
	AssertStep        = "step"
	AssertStepCount   = "step_count"
	AssertTrackVolume = "track_volume"
	AssertLock        = "lock"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	for i, step := range s.Steps {
		if step.Apply == "" {
			return fmt.Errorf("steps[%d]: apply is required", i)
		}
	}
	for i, a := range s.Assertions {
		switch a.Type {
		case AssertTempo, AssertSwing, AssertScale, AssertTrackCount,
			AssertStep, AssertStepCount, AssertTrackVolume, AssertLock:
		case "":
			return fmt.Errorf("assertions[%d]: type is required", i)
		default:
			return fmt.Errorf("assertions[%d]: unknown assertion type %q", i, a.Type)
		}
	}
	return nil
}
