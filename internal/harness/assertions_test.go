package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nestwrite/internal/engine"
	"github.com/roach88/nestwrite/internal/ir"
	"github.com/roach88/nestwrite/internal/store"
	"github.com/roach88/nestwrite/internal/testutil"
)

func assertionContext(t *testing.T) *AssertionContext {
	t.Helper()
	ctx := context.Background()
	st, err := store.Open("sqlite3", ":memory:", testutil.EmployeeRegistry())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(ctx))

	for _, row := range []struct {
		typ   string
		attrs ir.Attrs
	}{
		{"employees", ir.Attrs{"id": ir.Int(1), "first_name": ir.String("Ada")}},
		{"positions", ir.Attrs{"id": ir.Int(1), "title": ir.String("CEO"), "employee_id": ir.Int(1)}},
		{"positions", ir.Attrs{"id": ir.Int(2), "title": ir.String("CEO")}},
	} {
		_, err := st.Seed(ctx, row.typ, row.attrs)
		require.NoError(t, err)
	}

	return &AssertionContext{
		Store:  st,
		Ctx:    ctx,
		Before: map[string]int{"positions": 1},
		Writes: engine.WriteLog{
			{Seq: 1, Op: engine.OpInsert, Entity: "employees", Key: "1"},
			{Seq: 2, Op: engine.OpInsert, Entity: "positions", Key: "1"},
			{Seq: 3, Op: engine.OpUpdate, Entity: "employees", Key: "1"},
		},
	}
}

func TestEvaluateAssertions_Passing(t *testing.T) {
	actx := assertionContext(t)
	errs := EvaluateAssertions([]Assertion{
		{Type: AssertRowCount, Table: "positions", Count: 2},
		{Type: AssertRowCount, Table: "positions", Where: ir.Attrs{"employee_id": ir.Null{}}, Count: 1},
		{Type: AssertRowDelta, Table: "positions", Delta: 1},
		{Type: AssertFinalState, Table: "positions", Where: ir.Attrs{"id": ir.Int(1)}, Expect: ir.Attrs{"employee_id": ir.String("1"), "title": ir.String("CEO")}},
		{Type: AssertFinalState, Table: "positions", Where: ir.Attrs{"id": ir.Int(2)}, Expect: ir.Attrs{"employee_id": ir.Null{}}},
		{Type: AssertAbsent, Table: "employees", Where: ir.Attrs{"first_name": ir.String("Grace")}},
		{Type: AssertNoDuplicatePairs, Table: "positions", Columns: []string{"id", "title"}},
		{Type: AssertWriteOrder, Types: []string{"employees", "positions"}},
	}, actx)
	assert.Empty(t, errs)
}

func TestEvaluateAssertions_Failures(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		want      string
	}{
		{
			name:      "row_count",
			assertion: Assertion{Type: AssertRowCount, Table: "employees", Count: 3},
			want:      "Actual: 1 rows",
		},
		{
			name:      "row_delta",
			assertion: Assertion{Type: AssertRowDelta, Table: "positions", Delta: 0},
			want:      "changed by +1 (1 -> 2)",
		},
		{
			name:      "row_delta without baseline",
			assertion: Assertion{Type: AssertRowDelta, Table: "teams", Delta: 0},
			want:      "no count was taken before the payload",
		},
		{
			name:      "final_state missing row",
			assertion: Assertion{Type: AssertFinalState, Table: "positions", Where: ir.Attrs{"id": ir.Int(9)}, Expect: ir.Attrs{"title": ir.String("x")}},
			want:      "row not found",
		},
		{
			name:      "final_state ambiguous",
			assertion: Assertion{Type: AssertFinalState, Table: "positions", Where: ir.Attrs{"title": ir.String("CEO")}, Expect: ir.Attrs{"title": ir.String("CEO")}},
			want:      "2 rows matched (assertion is ambiguous)",
		},
		{
			name:      "final_state mismatch",
			assertion: Assertion{Type: AssertFinalState, Table: "positions", Where: ir.Attrs{"id": ir.Int(2)}, Expect: ir.Attrs{"employee_id": ir.Int(1)}},
			want:      `Actual: field "employee_id" = null`,
		},
		{
			name:      "final_state unknown column",
			assertion: Assertion{Type: AssertFinalState, Table: "positions", Where: ir.Attrs{"id": ir.Int(1)}, Expect: ir.Attrs{"salary": ir.Int(1)}},
			want:      `field "salary" not present in positions`,
		},
		{
			name:      "absent",
			assertion: Assertion{Type: AssertAbsent, Table: "positions", Where: ir.Attrs{"title": ir.String("CEO")}},
			want:      "2 rows matched",
		},
		{
			name:      "duplicate pairs",
			assertion: Assertion{Type: AssertNoDuplicatePairs, Table: "positions", Columns: []string{"title", "title"}},
			want:      `("CEO", "CEO") appears more than once`,
		},
		{
			name:      "write_order missing type",
			assertion: Assertion{Type: AssertWriteOrder, Types: []string{"employees", "teams"}},
			want:      "no write to teams",
		},
		{
			name:      "write_order wrong order",
			assertion: Assertion{Type: AssertWriteOrder, Types: []string{"positions", "employees"}},
			want:      "positions (pos 2) should be before employees (pos 1)",
		},
		{
			name:      "unknown table",
			assertion: Assertion{Type: AssertRowCount, Table: "robots"},
			want:      "query error",
		},
		{
			name:      "unknown type",
			assertion: Assertion{Type: "trace_count"},
			want:      `unknown assertion type "trace_count"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := EvaluateAssertions([]Assertion{tt.assertion}, assertionContext(t))
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0], tt.want)
		})
	}
}

func TestEvaluateAssertions_NoStore(t *testing.T) {
	errs := EvaluateAssertions([]Assertion{{Type: AssertRowCount, Table: "teams"}}, &AssertionContext{})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "row_count requires database context")
}

func TestAssertionError_IncludesWrites(t *testing.T) {
	err := &AssertionError{
		Type:     AssertWriteOrder,
		Expected: "a",
		Actual:   "b",
		Writes:   engine.WriteLog{{Seq: 4, Op: engine.OpDelete, Entity: "teams", Key: "2"}},
	}
	assert.Contains(t, err.Error(), "Assertion failed: write_order")
	assert.Contains(t, err.Error(), "[4] delete teams 2")
}

func TestStateValuesEqual(t *testing.T) {
	assert.True(t, stateValuesEqual(ir.Int(20), ir.Float(20)))
	assert.True(t, stateValuesEqual(ir.String("5"), ir.Int(5)))
	assert.True(t, stateValuesEqual(ir.Null{}, nil))
	assert.False(t, stateValuesEqual(ir.String("05"), ir.Int(5)))
	assert.False(t, stateValuesEqual(ir.Int(5), ir.String("5")))
}
