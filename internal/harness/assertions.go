package harness

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/nestwrite/internal/engine"
	"github.com/roach88/nestwrite/internal/ir"
	"github.com/roach88/nestwrite/internal/store"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	// Writes is the write log, for write_order failures.
	Writes engine.WriteLog
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Writes) > 0 {
		fmt.Fprintf(&buf, "\nWrites:\n")
		for _, w := range e.Writes {
			fmt.Fprintf(&buf, "  [%d] %s %s %s\n", w.Seq, w.Op, w.Entity, w.Key)
		}
	}
	return buf.String()
}

// AssertionContext provides what assertions evaluate against.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
	// Before holds row counts taken before the payload, for row_delta.
	Before map[string]int
	Writes engine.WriteLog
}

// EvaluateAssertions evaluates all assertions.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertWriteOrder:
			var writes engine.WriteLog
			if actx != nil {
				writes = actx.Writes
			}
			err = assertWriteOrder(writes, assertion)
		case AssertRowCount, AssertRowDelta, AssertFinalState, AssertAbsent, AssertNoDuplicatePairs:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: %s requires database context", i, assertion.Type)
				break
			}
			switch assertion.Type {
			case AssertRowCount:
				err = assertRowCount(actx, assertion)
			case AssertRowDelta:
				err = assertRowDelta(actx, assertion)
			case AssertFinalState:
				err = assertFinalState(actx, assertion)
			case AssertAbsent:
				err = assertAbsent(actx, assertion)
			case AssertNoDuplicatePairs:
				err = assertNoDuplicatePairs(actx, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

func assertRowCount(actx *AssertionContext, a Assertion) error {
	n, err := actx.Store.Count(actx.Ctx, a.Table, a.Where)
	if err != nil {
		return queryFailed(a, err)
	}
	if n != a.Count {
		return &AssertionError{
			Type:     AssertRowCount,
			Expected: fmt.Sprintf("%d rows in %s where %s", a.Count, a.Table, formatWhere(a.Where)),
			Actual:   fmt.Sprintf("%d rows", n),
		}
	}
	return nil
}

func assertRowDelta(actx *AssertionContext, a Assertion) error {
	before, ok := actx.Before[a.Table]
	if !ok {
		return fmt.Errorf("row_delta %s: no count was taken before the payload", a.Table)
	}
	after, err := actx.Store.Count(actx.Ctx, a.Table, nil)
	if err != nil {
		return queryFailed(a, err)
	}
	if got := after - before; got != a.Delta {
		return &AssertionError{
			Type:     AssertRowDelta,
			Expected: fmt.Sprintf("%s to change by %+d rows", a.Table, a.Delta),
			Actual:   fmt.Sprintf("changed by %+d (%d -> %d)", got, before, after),
		}
	}
	return nil
}

// assertFinalState checks that exactly one row matches where and that it
// carries every expected value (subset semantics).
func assertFinalState(actx *AssertionContext, a Assertion) error {
	rows, err := actx.Store.Rows(actx.Ctx, a.Table, a.Where)
	if err != nil {
		return queryFailed(a, err)
	}
	switch len(rows) {
	case 0:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %s", a.Table, formatWhere(a.Where)),
			Actual:   "row not found",
		}
	case 1:
	default:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one row in %s where %s", a.Table, formatWhere(a.Where)),
			Actual:   fmt.Sprintf("%d rows matched (assertion is ambiguous)", len(rows)),
		}
	}

	row := rows[0]
	for _, key := range a.Expect.SortedKeys() {
		want := a.Expect[key]
		got, exists := row[key]
		if !exists {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("field %q not present in %s (columns: %s)", key, a.Table, strings.Join(row.SortedKeys(), ", ")),
			}
		}
		if !stateValuesEqual(want, got) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = %s", key, describe(want)),
				Actual:   fmt.Sprintf("field %q = %s", key, describe(got)),
			}
		}
	}
	return nil
}

func assertAbsent(actx *AssertionContext, a Assertion) error {
	n, err := actx.Store.Count(actx.Ctx, a.Table, a.Where)
	if err != nil {
		return queryFailed(a, err)
	}
	if n != 0 {
		return &AssertionError{
			Type:     AssertAbsent,
			Expected: fmt.Sprintf("no row in %s where %s", a.Table, formatWhere(a.Where)),
			Actual:   fmt.Sprintf("%d rows matched", n),
		}
	}
	return nil
}

func assertNoDuplicatePairs(actx *AssertionContext, a Assertion) error {
	rows, err := actx.Store.Rows(actx.Ctx, a.Table, nil)
	if err != nil {
		return queryFailed(a, err)
	}
	seen := make(map[string]bool, len(rows))
	for _, row := range rows {
		parts := make([]string, len(a.Columns))
		for i, col := range a.Columns {
			v, ok := row[col]
			if !ok {
				return fmt.Errorf("no_duplicate_pairs: %s has no column %q", a.Table, col)
			}
			parts[i] = describe(v)
		}
		pair := strings.Join(parts, ", ")
		if seen[pair] {
			return &AssertionError{
				Type:     AssertNoDuplicatePairs,
				Expected: fmt.Sprintf("unique (%s) in %s", strings.Join(a.Columns, ", "), a.Table),
				Actual:   fmt.Sprintf("(%s) appears more than once", pair),
			}
		}
		seen[pair] = true
	}
	return nil
}

// assertWriteOrder checks that each type's first write comes after the
// previous type's first write.
func assertWriteOrder(writes engine.WriteLog, a Assertion) error {
	positions := make([]int, len(a.Types))
	for i, typ := range a.Types {
		positions[i] = -1
		for j, w := range writes {
			if w.Entity == typ {
				positions[i] = j
				break
			}
		}
		if positions[i] < 0 {
			return &AssertionError{
				Type:     AssertWriteOrder,
				Expected: fmt.Sprintf("writes to all of %v", a.Types),
				Actual:   fmt.Sprintf("no write to %s", typ),
				Writes:   writes,
			}
		}
	}

	for i := 1; i < len(a.Types); i++ {
		if positions[i-1] >= positions[i] {
			return &AssertionError{
				Type:     AssertWriteOrder,
				Expected: fmt.Sprintf("writes in order: %v", a.Types),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					a.Types[i-1], positions[i-1]+1, a.Types[i], positions[i]+1),
				Writes: writes,
			}
		}
	}
	return nil
}

func queryFailed(a Assertion, err error) error {
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("query table %s", a.Table),
		Actual:   fmt.Sprintf("query error: %v", err),
	}
}

// formatWhere creates a human-readable description of where conditions.
func formatWhere(where ir.Attrs) string {
	if len(where) == 0 {
		return "(no conditions)"
	}
	parts := make([]string, 0, len(where))
	for _, k := range where.SortedKeys() {
		parts = append(parts, fmt.Sprintf("%s=%s", k, describe(where[k])))
	}
	return strings.Join(parts, " AND ")
}

func describe(v ir.Value) string {
	switch val := v.(type) {
	case nil, ir.Null:
		return "null"
	case ir.String:
		return strconv.Quote(string(val))
	}
	return fmt.Sprint(ir.ToGo(v))
}

// stateValuesEqual compares an expected value with a stored one. Keys
// written as strings in a scenario match integer key columns.
func stateValuesEqual(expected, actual ir.Value) bool {
	if ir.Equal(expected, actual) {
		return true
	}
	exp, isString := expected.(ir.String)
	act, isInt := actual.(ir.Int)
	return isString && isInt && string(exp) == strconv.FormatInt(int64(act), 10)
}
