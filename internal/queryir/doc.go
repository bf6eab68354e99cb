// Package queryir is the statement representation the storage engine
// speaks before SQL is rendered.
//
// A statement names a table, the columns it touches and, for reads and
// writes that target existing rows, a filter predicate:
//
//	Insert{Table, Columns, Values, Returning, IgnoreConflict}
//	Update{Table, Columns, Values, Filter}
//	Delete{Table, Filter}
//	Select{From, Columns, Filter, OrderBy}
//	Count{From, Filter}
//
// Predicates are restricted to what a key-addressed row store needs:
//
//	Equals{Column, Value}   column = value
//	IsNull{Column}          column IS NULL
//	And{Predicates}         conjunction, empty is always true
//
// Values are ir.Value so attribute maps flow through unchanged. Rendering
// to a dialect lives in internal/querysql; Validate rejects statements no
// dialect should render, such as unsafe identifiers or an unfiltered
// DELETE.
package queryir
