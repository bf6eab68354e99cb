package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/nestwrite/internal/ir"
)

// Snapshot is what a golden file records for one scenario run: the reply
// without its request id, and the write log.
type Snapshot struct {
	ScenarioName string
	Result       *Result
}

// toCanonicalMap converts a Snapshot for canonical JSON serialization.
// ir.MarshalCanonical only handles IR types and plain Go shapes.
func (s *Snapshot) toCanonicalMap() map[string]any {
	writes := make([]any, len(s.Result.Writes))
	for i, w := range s.Result.Writes {
		entry := map[string]any{
			"seq":    w.Seq,
			"op":     string(w.Op),
			"entity": w.Entity,
			"key":    w.Key,
		}
		if w.Target != "" {
			entry["target"] = w.Target
		}
		writes[i] = entry
	}

	out := map[string]any{
		"scenario_name": s.ScenarioName,
		"writes":        writes,
	}
	if s.Result.Outcome != nil {
		out["outcome"] = s.Result.Outcome.Document()
	}
	if s.Result.Err != nil {
		out["error"] = s.Result.Err.Error()
	}
	return out
}

// MarshalSnapshot renders the golden form of a result.
func MarshalSnapshot(scenarioName string, result *Result) ([]byte, error) {
	s := Snapshot{ScenarioName: scenarioName, Result: result}
	return ir.MarshalCanonical(s.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can also check Pass. Test failure (via
// goldie) occurs if the snapshot doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := MarshalSnapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
