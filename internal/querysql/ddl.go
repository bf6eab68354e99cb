package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/nestwrite/internal/ir"
)

var fieldKinds = map[ir.FieldType]columnKind{
	ir.FieldString: kindString,
	ir.FieldInt:    kindInt,
	ir.FieldFloat:  kindFloat,
	ir.FieldBool:   kindBool,
}

// joinRefs is a join table with the tables its two key columns point at.
type joinRefs struct {
	ir.JoinTable
	ownerTable  string
	targetTable string
}

// CreateTables renders the DDL for every table the registry describes:
// one table per entity (an integer id, its fields, then its key columns),
// one table per join table keyed by the (owner, target) pair, and an index
// per key column. Statements are idempotent.
func (c *Compiler) CreateTables(reg *ir.Registry) ([]string, error) {
	d := c.dialect
	var stmts, indexes []string

	for _, e := range reg.Entities() {
		cols := []string{d.Quote("id") + " " + d.columnType(kindPrimaryKey)}

		for _, f := range e.Fields {
			kind, ok := fieldKinds[f.Type]
			if !ok {
				return nil, fmt.Errorf("%s.%s: unsupported field type %q", e.Name, f.Name, f.Type)
			}
			cols = append(cols, d.Quote(f.Name)+" "+d.columnType(kind))
		}

		for _, fk := range reg.ForeignKeyColumns(e.Name) {
			if _, isField := e.Field(fk.Column); isField {
				continue
			}
			col := d.Quote(fk.Column) + " " + d.columnType(kindKey)
			if fk.References != "" && d.ForeignKeys() {
				col += " REFERENCES " + d.Quote(fk.References) + " (" + d.Quote("id") + ")"
			}
			cols = append(cols, col)
			if fk.TypeColumn != "" {
				cols = append(cols, d.Quote(fk.TypeColumn)+" "+d.columnType(kindString))
			}
			indexes = append(indexes, c.index(e.Table, fk.Column))
		}

		stmts = append(stmts, createTable(d, e.Table, cols))
	}

	for _, jt := range joinTables(reg) {
		key := d.columnType(kindKey) + " NOT NULL"
		owner := d.Quote(jt.OwnerKey) + " " + key
		target := d.Quote(jt.TargetKey) + " " + key
		if d.ForeignKeys() {
			owner += " REFERENCES " + d.Quote(jt.ownerTable) + " (" + d.Quote("id") + ")"
			target += " REFERENCES " + d.Quote(jt.targetTable) + " (" + d.Quote("id") + ")"
		}
		pk := "PRIMARY KEY (" + d.Quote(jt.OwnerKey) + ", " + d.Quote(jt.TargetKey) + ")"
		stmts = append(stmts, createTable(d, jt.Table, []string{owner, target, pk}))
		indexes = append(indexes, c.index(jt.Table, jt.TargetKey))
	}

	return append(stmts, indexes...), nil
}

func createTable(d Dialect, table string, cols []string) string {
	return "CREATE TABLE IF NOT EXISTS " + d.Quote(table) + " (" + strings.Join(cols, ", ") + ")"
}

func (c *Compiler) index(table, column string) string {
	d := c.dialect
	name := "idx_" + table + "_" + column
	return "CREATE INDEX IF NOT EXISTS " + d.Quote(name) + " ON " + d.Quote(table) + " (" + d.Quote(column) + ")"
}

// joinTables collects join tables with their referenced tables, first
// declaration wins.
func joinTables(reg *ir.Registry) []joinRefs {
	var out []joinRefs
	seen := map[string]bool{}
	for _, e := range reg.Entities() {
		for _, rel := range e.Relationships {
			if rel.Cardinality != ir.ToManyThrough || rel.Through == nil || seen[rel.Through.Table] {
				continue
			}
			target, ok := reg.Entity(rel.Target)
			if !ok {
				continue
			}
			seen[rel.Through.Table] = true
			out = append(out, joinRefs{JoinTable: *rel.Through, ownerTable: e.Table, targetTable: target.Table})
		}
	}
	return out
}
