package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/nestwrite/internal/ir"
	"github.com/roach88/nestwrite/internal/store"
)

// Scenario is one persist request plus what it must leave behind.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is the CUE schema directory. Relative paths are resolved
	// against the scenario file.
	Schema string `yaml:"schema"`

	// Registry overrides Schema for scenarios built in code.
	Registry *ir.Registry `yaml:"-"`

	// BareVerb is the verb of bare persisted references: link (default)
	// or update.
	BareVerb string `yaml:"bare_verb,omitempty"`

	// Seed rows are written before the payload, without validation.
	Seed []SeedRow `yaml:"seed,omitempty"`

	// Rejections make the store refuse matching writes.
	Rejections []Rejection `yaml:"rejections,omitempty"`

	Payload ir.Payload `yaml:"payload"`

	Expect Expectation `yaml:"expect"`

	// Assertions validate the tables after the run.
	Assertions []Assertion `yaml:"assertions"`
}

// SeedRow is one row written before the payload.
type SeedRow struct {
	Type       string   `yaml:"type"`
	Attributes ir.Attrs `yaml:"attributes"`
	// Joins maps a many_to_many relationship to the target keys paired
	// with this row.
	Joins map[string][]string `yaml:"joins,omitempty"`
}

// Rejection registers a store validator. An empty Op matches every
// operation.
type Rejection struct {
	Type    string   `yaml:"type"`
	Op      string   `yaml:"op,omitempty"`
	Field   string   `yaml:"field"`
	Message string   `yaml:"message"`
	When    ir.Attrs `yaml:"when,omitempty"`
}

// Validator returns the store option for r.
func (r Rejection) Validator() (store.Option, error) {
	var op store.Op
	if r.Op != "" {
		var err error
		if op, err = store.ParseOp(r.Op); err != nil {
			return nil, err
		}
	}
	return store.WithValidator(r.Type, store.Reject(op, r.Field, r.Message, r.When)), nil
}

// Outcome kinds of an Expectation.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	// OutcomeError means Persist must return an error before any write.
	OutcomeError = "error"
)

// Expectation describes the persist reply.
type Expectation struct {
	Outcome string `yaml:"outcome"`

	// FailingType and FailingID name the rejected resource
	// (outcome: failure). FailingID may be a key or a temp-id.
	FailingType string `yaml:"failing_type,omitempty"`
	FailingID   string `yaml:"failing_id,omitempty"`

	// Errors lists the expected field messages (outcome: failure).
	Errors map[string][]string `yaml:"errors,omitempty"`

	// ErrorContains is a substring of the returned error (outcome: error).
	ErrorContains string `yaml:"error_contains,omitempty"`

	// Sideloaded lists the expected side-loaded nodes in order. Nil skips
	// the check; an empty list requires none.
	Sideloaded []SideloadedRef `yaml:"sideloaded,omitempty"`
}

// SideloadedRef identifies one side-loaded node. An empty ID matches any.
type SideloadedRef struct {
	Type string `yaml:"type"`
	ID   string `yaml:"id,omitempty"`
}

// Assertion validates the final tables or the write log.
type Assertion struct {
	// Type is one of the Assert constants.
	Type string `yaml:"type"`

	Table string   `yaml:"table,omitempty"`
	Where ir.Attrs `yaml:"where,omitempty"`

	// Expect holds the expected column values (final_state). Subset match;
	// null requires NULL.
	Expect ir.Attrs `yaml:"expect,omitempty"`

	Count int `yaml:"count,omitempty"`
	Delta int `yaml:"delta,omitempty"`

	// Columns are the pair columns (no_duplicate_pairs).
	Columns []string `yaml:"columns,omitempty"`

	// Types is the expected write order (write_order).
	Types []string `yaml:"types,omitempty"`
}

// Assertion type constants.
const (
	AssertRowCount         = "row_count"
	AssertRowDelta         = "row_delta"
	AssertFinalState       = "final_state"
	AssertAbsent           = "absent"
	AssertNoDuplicatePairs = "no_duplicate_pairs"
	AssertWriteOrder       = "write_order"
)

// LoadScenario reads and parses a scenario YAML file. The schema path is
// resolved against the file's directory.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Schema != "" && !filepath.IsAbs(scenario.Schema) {
		scenario.Schema = filepath.Join(filepath.Dir(path), scenario.Schema)
	}
	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	if _, err := os.Stat(scenario.Schema); err != nil {
		return nil, fmt.Errorf("invalid scenario: schema directory not found: %s", scenario.Schema)
	}
	return scenario, nil
}

// ParseScenario decodes a scenario document without resolving paths.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Schema == "" && s.Registry == nil {
		return fmt.Errorf("schema is required")
	}
	if s.Payload.Data.Type == "" {
		return fmt.Errorf("payload.data.type is required")
	}
	switch s.BareVerb {
	case "", "link", "update":
	default:
		return fmt.Errorf("bare_verb must be link or update, got %q", s.BareVerb)
	}

	for i, row := range s.Seed {
		if row.Type == "" {
			return fmt.Errorf("seed[%d]: type is required", i)
		}
	}
	for i, r := range s.Rejections {
		if r.Type == "" || r.Field == "" || r.Message == "" {
			return fmt.Errorf("rejections[%d]: type, field and message are required", i)
		}
		if r.Op != "" {
			if _, err := store.ParseOp(r.Op); err != nil {
				return fmt.Errorf("rejections[%d]: %w", i, err)
			}
		}
	}

	if err := validateExpectation(&s.Expect); err != nil {
		return err
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateExpectation(e *Expectation) error {
	switch e.Outcome {
	case OutcomeSuccess:
		if e.FailingType != "" || len(e.Errors) > 0 {
			return fmt.Errorf("expect: failing_type and errors require outcome failure")
		}
	case OutcomeFailure:
		if e.FailingType == "" {
			return fmt.Errorf("expect: failing_type is required for outcome failure")
		}
	case OutcomeError:
		if e.ErrorContains == "" {
			return fmt.Errorf("expect: error_contains is required for outcome error")
		}
	case "":
		return fmt.Errorf("expect.outcome is required")
	default:
		return fmt.Errorf("expect: unknown outcome %q", e.Outcome)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertRowCount, AssertRowDelta, AssertAbsent:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for %s", index, a.Type)
		}
		if a.Type == AssertRowCount && a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for row_count", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertNoDuplicatePairs:
		if a.Table == "" || len(a.Columns) < 2 {
			return fmt.Errorf("assertions[%d]: table and two or more columns are required for no_duplicate_pairs", index)
		}
	case AssertWriteOrder:
		if len(a.Types) < 2 {
			return fmt.Errorf("assertions[%d]: two or more types are required for write_order", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
