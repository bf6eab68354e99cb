package harness

import (
	"github.com/roach88/nestwrite/internal/engine"
	"github.com/roach88/nestwrite/internal/ir"
)

// Result is the outcome of one scenario run.
type Result struct {
	// Pass is true when the expectation and every assertion held.
	Pass bool `json:"pass"`

	// Outcome is the persist reply. Nil when the payload was rejected
	// before the transaction began; see Err.
	Outcome *ir.Outcome `json:"outcome,omitempty"`

	// Err is the error Persist returned, if any.
	Err error `json:"-"`

	// Writes lists the storage writes in order.
	Writes engine.WriteLog `json:"writes"`

	// Errors lists the failed checks. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is every table after the run.
	State map[string][]ir.Attrs `json:"state,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Writes: engine.WriteLog{},
		Errors: []string{},
	}
}

// AddError records a failed check and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
