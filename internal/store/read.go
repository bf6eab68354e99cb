package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/roach88/nestwrite/internal/ir"
	"github.com/roach88/nestwrite/internal/queryir"
)

// Count returns the number of rows in table matching every value in where.
// An empty where counts every row.
func (s *Store) Count(ctx context.Context, table string, where ir.Attrs) (int, error) {
	stmt := queryir.Count{From: table}
	if len(where) > 0 {
		stmt.Filter = queryir.Where(where)
	}
	query, params, err := s.compiler.Compile(stmt)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}

	var n int
	if err := s.db.QueryRowContext(ctx, query, params...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// Rows returns the rows of table matching where, every column included.
// Entity rows are ordered by id, join rows by (owner, target).
//
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) Rows(ctx context.Context, table string, where ir.Attrs) ([]ir.Attrs, error) {
	cols, ok := s.tableColumns(table)
	if !ok {
		return nil, fmt.Errorf("rows: unknown table %q", table)
	}
	stmt := queryir.Select{From: table, Columns: cols}
	if len(where) > 0 {
		stmt.Filter = queryir.Where(where)
	}
	if cols[0] == "id" {
		stmt.OrderBy = []string{"id"}
	}
	query, params, err := s.compiler.Compile(stmt)
	if err != nil {
		return nil, fmt.Errorf("rows %s: %w", table, err)
	}

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	out := []ir.Attrs{}
	for rows.Next() {
		row, err := scanRow(rows.Scan, cols)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}
	return out, nil
}

// JoinPairs returns every (owner, target) pair of a join table as key
// strings, ordered by owner then target.
func (s *Store) JoinPairs(ctx context.Context, jt ir.JoinTable) ([][2]string, error) {
	rows, err := s.Rows(ctx, jt.Table, nil)
	if err != nil {
		return nil, err
	}
	pairs := make([][2]string, len(rows))
	for i, row := range rows {
		pairs[i] = [2]string{render(row[jt.OwnerKey]), render(row[jt.TargetKey])}
	}
	return pairs, nil
}

// Seed inserts a row as-is, bypassing validation. attrs may carry an
// explicit "id". Used to prepare fixtures.
func (s *Store) Seed(ctx context.Context, entity string, attrs ir.Attrs) (string, error) {
	e, err := s.entity(entity)
	if err != nil {
		return "", err
	}
	cols, vals := queryir.Columns(s.bindable(e, attrs))
	query, params, err := s.compiler.Compile(queryir.Insert{
		Table:     e.Table,
		Columns:   cols,
		Values:    vals,
		Returning: "id",
	})
	if err != nil {
		return "", fmt.Errorf("seed %s: %w", entity, err)
	}

	var id any
	if err := s.db.QueryRowContext(ctx, query, params...).Scan(&id); err != nil {
		return "", fmt.Errorf("seed %s: %w", entity, err)
	}
	return keyString(id)
}

// SeedJoin inserts one pair into a join table.
func (s *Store) SeedJoin(ctx context.Context, jt ir.JoinTable, ownerKey, targetKey string) error {
	query, params, err := s.compiler.Compile(queryir.Insert{
		Table:          jt.Table,
		Columns:        []string{jt.OwnerKey, jt.TargetKey},
		Values:         []ir.Value{keyValue(ownerKey), keyValue(targetKey)},
		IgnoreConflict: true,
	})
	if err != nil {
		return fmt.Errorf("seed %s: %w", jt.Table, err)
	}
	if _, err := s.db.ExecContext(ctx, query, params...); err != nil {
		return fmt.Errorf("seed %s: %w", jt.Table, err)
	}
	return nil
}

// Snapshot reads every table of the schema: entity tables in name order,
// then join tables.
func (s *Store) Snapshot(ctx context.Context) (map[string][]ir.Attrs, error) {
	out := map[string][]ir.Attrs{}
	tables := []string{}
	for _, e := range s.registry.Entities() {
		tables = append(tables, e.Table)
	}
	for _, jt := range s.registry.JoinTables() {
		tables = append(tables, jt.Table)
	}
	for _, table := range tables {
		rows, err := s.Rows(ctx, table, nil)
		if err != nil {
			return nil, fmt.Errorf("snapshot: %w", err)
		}
		out[table] = rows
	}
	return out, nil
}

func render(v ir.Value) string {
	switch val := v.(type) {
	case ir.Int:
		return strconv.FormatInt(int64(val), 10)
	case ir.String:
		return string(val)
	case nil, ir.Null:
		return ""
	}
	return fmt.Sprint(ir.ToGo(v))
}
