package queryir

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/nestwrite/internal/ir"
)

// ValidationResult lists the problems found in a statement.
type ValidationResult struct {
	// Valid is true when Problems is empty.
	Valid    bool
	Problems []string
}

// Err returns the problems as one error, or nil for a valid statement.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return fmt.Errorf("invalid statement: %s", strings.Join(r.Problems, "; "))
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether name is safe to render as a table or
// column name.
func ValidIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// Validate checks a statement before rendering. It collects every problem
// rather than stopping at the first.
//
// Rules:
//  1. Table and column names are plain identifiers
//  2. Columns and Values have the same length
//  3. Values are scalars: lists and objects have no column type
//  4. Update and Delete carry a filter; Update sets at least one column
//  5. Equals never compares against NULL (use IsNull)
//  6. Select names its columns
func Validate(stmt Statement) ValidationResult {
	v := &validator{problems: []string{}}
	v.statement(stmt)
	return ValidationResult{Valid: len(v.problems) == 0, Problems: v.problems}
}

type validator struct {
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) statement(stmt Statement) {
	switch s := stmt.(type) {
	case nil:
		v.addProblem("nil statement")
	case Insert:
		v.identifier("table", s.Table)
		v.assignments(s.Columns, s.Values)
		if s.Returning != "" {
			v.identifier("returning column", s.Returning)
		}
	case Update:
		v.identifier("table", s.Table)
		if len(s.Columns) == 0 {
			v.addProblem("update of %s sets no columns", s.Table)
		}
		v.assignments(s.Columns, s.Values)
		v.requiredFilter("update", s.Table, s.Filter)
	case Delete:
		v.identifier("table", s.Table)
		v.requiredFilter("delete", s.Table, s.Filter)
	case Select:
		v.identifier("table", s.From)
		if len(s.Columns) == 0 {
			v.addProblem("select from %s names no columns", s.From)
		}
		for _, c := range s.Columns {
			v.identifier("column", c)
		}
		for _, c := range s.OrderBy {
			v.identifier("order column", c)
		}
		v.predicate(s.Filter)
	case Count:
		v.identifier("table", s.From)
		v.predicate(s.Filter)
	default:
		v.addProblem("unknown statement type %T", stmt)
	}
}

func (v *validator) identifier(what, name string) {
	if !ValidIdentifier(name) {
		v.addProblem("invalid %s name %q", what, name)
	}
}

func (v *validator) assignments(columns []string, values []ir.Value) {
	if len(columns) != len(values) {
		v.addProblem("%d columns but %d values", len(columns), len(values))
	}
	for _, c := range columns {
		v.identifier("column", c)
	}
	for i, val := range values {
		if !scalar(val) {
			col := "?"
			if i < len(columns) {
				col = columns[i]
			}
			v.addProblem("column %q takes a %T, not a scalar", col, val)
		}
	}
}

func (v *validator) requiredFilter(verb, table string, p Predicate) {
	if p == nil {
		v.addProblem("%s of %s has no filter", verb, table)
		return
	}
	if and, ok := p.(And); ok && len(and.Predicates) == 0 {
		v.addProblem("%s of %s has an empty filter", verb, table)
		return
	}
	v.predicate(p)
}

func (v *validator) predicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
	case Equals:
		v.identifier("column", pred.Column)
		if pred.Value == nil || ir.IsNull(pred.Value) {
			v.addProblem("column %q compared to NULL, use IsNull", pred.Column)
		} else if !scalar(pred.Value) {
			v.addProblem("column %q compared to a %T", pred.Column, pred.Value)
		}
	case IsNull:
		v.identifier("column", pred.Column)
	case And:
		for _, sub := range pred.Predicates {
			v.predicate(sub)
		}
	default:
		v.addProblem("unknown predicate type %T", p)
	}
}

func scalar(val ir.Value) bool {
	switch val.(type) {
	case nil, ir.Null, ir.String, ir.Int, ir.Float, ir.Bool:
		return true
	}
	return false
}
