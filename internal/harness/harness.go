package harness

import (
	"encoding/json"
	"fmt"

	"github.com/adewale/keyboardia/internal/engine"
	"github.com/adewale/keyboardia/internal/message"
	"github.com/adewale/keyboardia/internal/state"
)

// StepTrace records one applied step and the document hash after it.
type StepTrace struct {
	Type string `json:"type"`
	Hash string `json:"hash"`
}

// Result holds the outcome of running a scenario.
type Result struct {
	Final *state.SessionState
	Trace []StepTrace
}

// Run folds the scenario's steps over an empty document.
func Run(scenario *Scenario) (*Result, error) {
	doc := state.NewSessionState()
	trace := make([]StepTrace, 0, len(scenario.Steps))

	for i, step := range scenario.Steps {
		m, err := decodeStep(step)
		if err != nil {
			return nil, fmt.Errorf("steps[%d] (%s): %w", i, step.Apply, err)
		}
		doc = engine.Apply(doc, m)
		trace = append(trace, StepTrace{Type: step.Apply, Hash: doc.Hash()})
	}

	return &Result{Final: doc, Trace: trace}, nil
}

// decodeStep converts a scenario step into a typed message through the
// wire codec, so scenarios exercise the exact decode path clients use.
func decodeStep(step Step) (message.Message, error) {
	envelope := make(map[string]interface{}, len(step.Args)+1)
	for k, v := range step.Args {
		envelope[k] = v
	}
	envelope["type"] = step.Apply

	data, err := json.Marshal(envelope)
	if err != nil {
		return nil, err
	}
	return message.Decode(data)
}
