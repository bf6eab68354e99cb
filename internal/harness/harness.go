package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/roach88/nestwrite/internal/compiler"
	"github.com/roach88/nestwrite/internal/engine"
	"github.com/roach88/nestwrite/internal/graph"
	"github.com/roach88/nestwrite/internal/ir"
	"github.com/roach88/nestwrite/internal/store"
	"github.com/roach88/nestwrite/internal/testutil"
)

// Harness is the state of one scenario run.
type Harness struct {
	store     *store.Store
	registry  *ir.Registry
	persister *engine.Persister
	logger    *slog.Logger
	// before holds row counts taken after seeding, for row_delta.
	before map[string]int
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
//  1. Compile the schema and migrate a fresh database
//  2. Write the seed rows
//  3. Persist the payload
//  4. Check the expectation and evaluate assertions
//
// An error means the scenario itself could not run; failed checks are
// reported in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	reg := scenario.Registry
	if reg == nil {
		loaded, err := compiler.LoadDir(scenario.Schema)
		if err != nil {
			return nil, fmt.Errorf("failed to load schema: %w", err)
		}
		reg = loaded.Registry
	}

	var opts []store.Option
	for i, r := range scenario.Rejections {
		opt, err := r.Validator()
		if err != nil {
			return nil, fmt.Errorf("rejections[%d]: %w", i, err)
		}
		opts = append(opts, opt)
	}

	st, err := store.Open("sqlite3", ":memory:", reg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()
	if err := st.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	persistOpts := []engine.Option{
		engine.WithClock(testutil.NewDeterministicClock()),
		engine.WithRequestIDs(testutil.NewSequentialRequestIDs("")),
		engine.WithLogger(logger),
	}
	if scenario.BareVerb != "" {
		verb, err := ir.ParseVerb(scenario.BareVerb)
		if err != nil {
			return nil, fmt.Errorf("bare_verb: %w", err)
		}
		persistOpts = append(persistOpts, engine.WithGraphOptions(graph.WithBareVerb(verb)))
	}

	h := &Harness{
		store:     st,
		registry:  reg,
		persister: engine.New(st, reg, persistOpts...),
		logger:    logger,
		before:    map[string]int{},
	}

	if err := h.seed(ctx, scenario.Seed); err != nil {
		return nil, fmt.Errorf("failed to seed: %w", err)
	}
	if err := h.countBefore(ctx, scenario.Assertions); err != nil {
		return nil, err
	}

	result := NewResult()
	res, err := h.persister.Persist(ctx, scenario.Payload)
	if err != nil {
		var se *engine.StorageError
		if errors.As(err, &se) {
			return nil, fmt.Errorf("persist: %w", err)
		}
		result.Err = err
	} else {
		result.Outcome = &res.Outcome
		result.Writes = res.Writes
	}

	for _, msg := range checkExpectation(scenario.Expect, result) {
		result.AddError(msg)
	}

	actx := &AssertionContext{Store: st, Ctx: ctx, Before: h.before, Writes: result.Writes}
	for _, msg := range EvaluateAssertions(scenario.Assertions, actx) {
		result.AddError(msg)
	}

	if result.State, err = st.Snapshot(ctx); err != nil {
		return nil, fmt.Errorf("failed to read final state: %w", err)
	}
	h.logger.Info("scenario complete", "scenario", scenario.Name, "pass", result.Pass, "writes", len(result.Writes))
	return result, nil
}

// seed writes the seed rows and their join pairs in order.
func (h *Harness) seed(ctx context.Context, rows []SeedRow) error {
	for i, row := range rows {
		e, ok := h.registry.Entity(row.Type)
		if !ok {
			return fmt.Errorf("seed[%d]: unknown entity type %q", i, row.Type)
		}
		key, err := h.store.Seed(ctx, row.Type, row.Attributes)
		if err != nil {
			return fmt.Errorf("seed[%d]: %w", i, err)
		}

		names := make([]string, 0, len(row.Joins))
		for name := range row.Joins {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			rel, ok := e.Relationship(name)
			if !ok || rel.Through == nil {
				return fmt.Errorf("seed[%d]: %s has no many_to_many relationship %q", i, row.Type, name)
			}
			for _, target := range row.Joins[name] {
				if err := h.store.SeedJoin(ctx, *rel.Through, key, target); err != nil {
					return fmt.Errorf("seed[%d]: %w", i, err)
				}
			}
		}
		h.logger.Debug("seeded", "type", row.Type, "key", key)
	}
	return nil
}

func (h *Harness) countBefore(ctx context.Context, assertions []Assertion) error {
	for _, a := range assertions {
		if a.Type != AssertRowDelta {
			continue
		}
		n, err := h.store.Count(ctx, a.Table, nil)
		if err != nil {
			return fmt.Errorf("row_delta %s: %w", a.Table, err)
		}
		h.before[a.Table] = n
	}
	return nil
}

// checkExpectation compares the persist reply with the expectation.
func checkExpectation(want Expectation, r *Result) []string {
	var errs []string

	if want.Outcome == OutcomeError {
		switch {
		case r.Err == nil:
			errs = append(errs, fmt.Sprintf("expected persist error containing %q, got outcome %s", want.ErrorContains, outcomeKind(r.Outcome)))
		case !strings.Contains(r.Err.Error(), want.ErrorContains):
			errs = append(errs, fmt.Sprintf("expected persist error containing %q, got %q", want.ErrorContains, r.Err.Error()))
		}
		return errs
	}
	if r.Err != nil {
		return append(errs, fmt.Sprintf("expected outcome %s, persist failed: %v", want.Outcome, r.Err))
	}

	if got := outcomeKind(r.Outcome); got != want.Outcome {
		msg := fmt.Sprintf("expected outcome %s, got %s", want.Outcome, got)
		if f := r.Outcome.Failure; f != nil {
			msg += fmt.Sprintf(" (%s: %v)", f.Resource, f.Errors)
		}
		return append(errs, msg)
	}

	if want.Outcome == OutcomeFailure {
		f := r.Outcome.Failure
		if f.Resource.Type != want.FailingType || (want.FailingID != "" && !identifies(f.Resource.ID, want.FailingID)) {
			errs = append(errs, fmt.Sprintf("expected failing resource %s(%s), got %s", want.FailingType, want.FailingID, f.Resource))
		}
		for _, field := range sortedFields(want.Errors) {
			if !slices.Equal(f.Errors[field], want.Errors[field]) {
				errs = append(errs, fmt.Sprintf("expected errors on %q = %v, got %v", field, want.Errors[field], f.Errors[field]))
			}
		}
		return errs
	}

	if want.Sideloaded != nil {
		got := r.Outcome.Sideloaded
		if len(got) != len(want.Sideloaded) {
			return append(errs, fmt.Sprintf("expected %d side-loaded nodes, got %d", len(want.Sideloaded), len(got)))
		}
		for i, ref := range want.Sideloaded {
			if got[i].Type != ref.Type || (ref.ID != "" && got[i].ID != ref.ID) {
				errs = append(errs, fmt.Sprintf("sideloaded[%d]: expected %s(%s), got %s(%s)", i, ref.Type, ref.ID, got[i].Type, got[i].ID))
			}
		}
	}
	return errs
}

func outcomeKind(o *ir.Outcome) string {
	switch {
	case o == nil:
		return "none"
	case o.Succeeded():
		return OutcomeSuccess
	}
	return OutcomeFailure
}

func identifies(id ir.Identity, want string) bool {
	if key, ok := id.Key(); ok {
		return key == want
	}
	token, _ := id.Token()
	return token == want
}

func sortedFields(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
