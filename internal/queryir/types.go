package queryir

import "github.com/roach88/nestwrite/internal/ir"

// Statement is a sealed interface; only types in this package implement it,
// so renderers can switch exhaustively.
type Statement interface {
	statementNode()
}

// Predicate is a sealed interface for filter conditions.
type Predicate interface {
	predicateNode()
}

// Insert adds one row.
//
//	INSERT INTO <table> (<columns>) VALUES (...) [ON CONFLICT DO NOTHING] [RETURNING <returning>]
//
// Columns and Values are parallel. An insert with no columns writes a row of
// defaults.
type Insert struct {
	Table          string
	Columns        []string
	Values         []ir.Value
	Returning      string // column to return, "" for none
	IgnoreConflict bool   // ON CONFLICT DO NOTHING
}

func (Insert) statementNode() {}

// Update sets columns on every row matching Filter.
type Update struct {
	Table   string
	Columns []string
	Values  []ir.Value
	Filter  Predicate
}

func (Update) statementNode() {}

// Delete removes every row matching Filter. Filter is required.
type Delete struct {
	Table  string
	Filter Predicate
}

func (Delete) statementNode() {}

// Select reads columns from matching rows. Results are always ordered:
// by OrderBy when given, otherwise by Columns in order.
type Select struct {
	From    string
	Columns []string
	Filter  Predicate // nil selects every row
	OrderBy []string
}

func (Select) statementNode() {}

// Count returns the number of rows matching Filter.
type Count struct {
	From   string
	Filter Predicate
}

func (Count) statementNode() {}

// Equals compares a column to a literal. Use IsNull for NULL checks: a NULL
// literal never equals anything.
type Equals struct {
	Column string
	Value  ir.Value
}

func (Equals) predicateNode() {}

// IsNull matches rows whose column is NULL.
type IsNull struct {
	Column string
}

func (IsNull) predicateNode() {}

// And is a conjunction. An empty And is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Where builds the conjunction of column = value for every attribute, in
// sorted column order. ir.Null values become IsNull.
func Where(attrs ir.Attrs) Predicate {
	keys := attrs.SortedKeys()
	if len(keys) == 1 {
		return match(keys[0], attrs[keys[0]])
	}
	preds := make([]Predicate, len(keys))
	for i, k := range keys {
		preds[i] = match(k, attrs[k])
	}
	return And{Predicates: preds}
}

func match(column string, v ir.Value) Predicate {
	if ir.IsNull(v) {
		return IsNull{Column: column}
	}
	return Equals{Column: column, Value: v}
}

// Columns splits attrs into parallel column and value slices in sorted
// column order.
func Columns(attrs ir.Attrs) ([]string, []ir.Value) {
	keys := attrs.SortedKeys()
	values := make([]ir.Value, len(keys))
	for i, k := range keys {
		values[i] = attrs[k]
	}
	return keys, values
}
