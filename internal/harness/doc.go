// Package harness runs persistence scenarios against a fresh database.
//
// A scenario seeds rows, persists one payload and checks the outcome and
// the tables that result.
//
// # Scenario Format
//
//	name: nested_owned_create
//	description: "Nested has_one create gets the new employee's key"
//	schema: ../schema
//	seed:
//	  - type: teams
//	    attributes: {id: 1, name: Core}
//	rejections:
//	  - type: employees
//	    op: delete
//	    field: base
//	    message: Forced validation error
//	payload:
//	  data:
//	    type: employees
//	    attributes: {first_name: Ada}
//	    relationships:
//	      salary:
//	        data: {type: salaries, temp-id: s1}
//	  included:
//	    - type: salaries
//	      temp-id: s1
//	      attributes: {base_rate: 20}
//	expect:
//	  outcome: success
//	  sideloaded:
//	    - {type: salaries, id: "1"}
//	assertions:
//	  - {type: row_delta, table: salaries, delta: 1}
//	  - type: final_state
//	    table: salaries
//	    where: {id: 1}
//	    expect: {employee_id: 1}
//
// # Assertion Types
//
//   - row_count: the table holds exactly count rows matching where
//   - row_delta: the table gained delta rows (negative for removals)
//   - final_state: exactly one row matches where and carries expect
//   - absent: no row matches where
//   - no_duplicate_pairs: no two rows share the values of columns
//   - write_order: each type is first written after the one before it
//
// # Deterministic Runs
//
// Every scenario runs in its own in-memory SQLite database with a
// deterministic write clock and sequential request ids, so the outcome
// and write log are identical across runs. RunWithGolden compares them
// against testdata/golden/<name>.golden.
package harness
