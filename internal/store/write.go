package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/nestwrite/internal/ir"
	"github.com/roach88/nestwrite/internal/queryir"
)

// Tx is one persist request's transaction. It satisfies engine.Tx.
type Tx struct {
	tx *sql.Tx
	s  *Store
}

func (t *Tx) exec(ctx context.Context, stmt queryir.Statement) (sql.Result, error) {
	query, params, err := t.s.compiler.Compile(stmt)
	if err != nil {
		return nil, err
	}
	res, err := t.tx.ExecContext(ctx, query, params...)
	if err != nil {
		return nil, rejectConstraint(err)
	}
	return res, nil
}

// Insert validates attrs and writes a new row, returning its id.
func (t *Tx) Insert(ctx context.Context, entity string, attrs ir.Attrs) (string, error) {
	e, err := t.s.entity(entity)
	if err != nil {
		return "", err
	}

	errs := ir.FieldErrors{}
	t.s.checkAttrs(e, attrs, errs)
	checkRequired(e, attrs, errs)
	if len(errs) == 0 {
		t.s.runValidators(e, OpInsert, attrs, errs)
	}
	if err := failure(errs); err != nil {
		return "", err
	}

	cols, vals := queryir.Columns(t.s.bindable(e, attrs))
	query, params, err := t.s.compiler.Compile(queryir.Insert{
		Table:     e.Table,
		Columns:   cols,
		Values:    vals,
		Returning: "id",
	})
	if err != nil {
		return "", fmt.Errorf("insert %s: %w", entity, err)
	}

	var id any
	if err := t.tx.QueryRowContext(ctx, query, params...).Scan(&id); err != nil {
		if IsConstraintError(err) {
			return "", rejectConstraint(err)
		}
		return "", fmt.Errorf("insert %s: %w", entity, err)
	}
	key, err := keyString(id)
	if err != nil {
		return "", fmt.Errorf("insert %s: %w", entity, err)
	}
	return key, nil
}

// Update validates the merged row and writes attrs. Empty attrs re-save the
// row: validation runs and nothing is written.
func (t *Tx) Update(ctx context.Context, entity, key string, attrs ir.Attrs) error {
	e, err := t.s.entity(entity)
	if err != nil {
		return err
	}
	current, err := t.load(ctx, e, key)
	if err != nil {
		return err
	}

	errs := ir.FieldErrors{}
	t.s.checkAttrs(e, attrs, errs)
	merged := current.Merge(attrs)
	checkRequired(e, merged, errs)
	if len(errs) == 0 {
		t.s.runValidators(e, OpUpdate, merged, errs)
	}
	if err := failure(errs); err != nil {
		return err
	}
	if len(attrs) == 0 {
		return nil
	}

	cols, vals := queryir.Columns(t.s.bindable(e, attrs))
	if _, err := t.exec(ctx, queryir.Update{
		Table:   e.Table,
		Columns: cols,
		Values:  vals,
		Filter:  byID(key),
	}); err != nil {
		return wrapUnlessRejected(err, "update %s %s", entity, key)
	}
	return nil
}

// Delete clears every foreign key and join row that points at the row,
// whether or not the caller touched them, then removes it.
func (t *Tx) Delete(ctx context.Context, entity, key string) error {
	e, err := t.s.entity(entity)
	if err != nil {
		return err
	}
	current, err := t.load(ctx, e, key)
	if err != nil {
		return err
	}

	errs := ir.FieldErrors{}
	t.s.runValidators(e, OpDelete, current, errs)
	if err := failure(errs); err != nil {
		return err
	}

	keys, joins := t.s.registry.Inbound(entity)
	for _, in := range keys {
		cols := []string{in.Column}
		vals := []ir.Value{ir.Null{}}
		filter := []queryir.Predicate{queryir.Equals{Column: in.Column, Value: keyValue(key)}}
		if in.TypeColumn != "" {
			cols = append(cols, in.TypeColumn)
			vals = append(vals, ir.Null{})
			filter = append(filter, queryir.Equals{Column: in.TypeColumn, Value: ir.String(in.TypeValue)})
		}
		if _, err := t.exec(ctx, queryir.Update{
			Table:   in.Table,
			Columns: cols,
			Values:  vals,
			Filter:  queryir.And{Predicates: filter},
		}); err != nil {
			return wrapUnlessRejected(err, "clear %s.%s", in.Table, in.Column)
		}
	}
	for _, in := range joins {
		if _, err := t.exec(ctx, queryir.Delete{
			Table:  in.Table,
			Filter: queryir.Equals{Column: in.Column, Value: keyValue(key)},
		}); err != nil {
			return wrapUnlessRejected(err, "clear %s.%s", in.Table, in.Column)
		}
	}

	if _, err := t.exec(ctx, queryir.Delete{Table: e.Table, Filter: byID(key)}); err != nil {
		return wrapUnlessRejected(err, "delete %s %s", entity, key)
	}
	return nil
}

// SetForeignKey writes key columns of an existing row without running
// attribute validation.
func (t *Tx) SetForeignKey(ctx context.Context, entity, key string, columns ir.Attrs) error {
	e, err := t.s.entity(entity)
	if err != nil {
		return err
	}
	keys := t.s.keyColumns(e)
	for _, col := range columns.SortedKeys() {
		if !keys[col] {
			return fmt.Errorf("set foreign key %s: %q is not a key column", entity, col)
		}
	}
	if len(columns) == 0 {
		return nil
	}

	cols, vals := queryir.Columns(t.s.bindable(e, columns))
	res, err := t.exec(ctx, queryir.Update{
		Table:   e.Table,
		Columns: cols,
		Values:  vals,
		Filter:  byID(key),
	})
	if err != nil {
		return wrapUnlessRejected(err, "set foreign key %s %s", entity, key)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound()
	}
	return nil
}

// ListJoinRows returns the target keys paired with ownerKey.
func (t *Tx) ListJoinRows(ctx context.Context, jt ir.JoinTable, ownerKey string) ([]string, error) {
	query, params, err := t.s.compiler.Compile(queryir.Select{
		From:    jt.Table,
		Columns: []string{jt.TargetKey},
		Filter:  queryir.Equals{Column: jt.OwnerKey, Value: keyValue(ownerKey)},
	})
	if err != nil {
		return nil, err
	}
	rows, err := t.tx.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", jt.Table, err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var raw any
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan %s: %w", jt.Table, err)
		}
		key, err := keyString(raw)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", jt.Table, err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", jt.Table, err)
	}
	return keys, nil
}

// InsertJoinRow adds the (owner, target) pair. An existing pair is left alone.
func (t *Tx) InsertJoinRow(ctx context.Context, jt ir.JoinTable, ownerKey, targetKey string) error {
	_, err := t.exec(ctx, queryir.Insert{
		Table:          jt.Table,
		Columns:        []string{jt.OwnerKey, jt.TargetKey},
		Values:         []ir.Value{keyValue(ownerKey), keyValue(targetKey)},
		IgnoreConflict: true,
	})
	if err != nil {
		return wrapUnlessRejected(err, "insert %s row", jt.Table)
	}
	return nil
}

// DeleteJoinRow removes the (owner, target) pair.
func (t *Tx) DeleteJoinRow(ctx context.Context, jt ir.JoinTable, ownerKey, targetKey string) error {
	_, err := t.exec(ctx, queryir.Delete{
		Table: jt.Table,
		Filter: queryir.And{Predicates: []queryir.Predicate{
			queryir.Equals{Column: jt.OwnerKey, Value: keyValue(ownerKey)},
			queryir.Equals{Column: jt.TargetKey, Value: keyValue(targetKey)},
		}},
	})
	if err != nil {
		return wrapUnlessRejected(err, "delete %s row", jt.Table)
	}
	return nil
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	return t.tx.Commit()
}

// Rollback aborts the transaction. Rolling back a finished transaction is
// not an error.
func (t *Tx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

// load reads the current row, or fails validation when it does not exist.
func (t *Tx) load(ctx context.Context, e *ir.EntitySchema, key string) (ir.Attrs, error) {
	cols := t.s.columns(e)
	query, params, err := t.s.compiler.Compile(queryir.Select{
		From:    e.Table,
		Columns: cols,
		Filter:  byID(key),
	})
	if err != nil {
		return nil, err
	}
	row, err := scanRow(t.tx.QueryRowContext(ctx, query, params...).Scan, cols)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound()
	}
	if err != nil {
		return nil, fmt.Errorf("load %s %s: %w", e.Name, key, err)
	}
	return row, nil
}

// bindable converts key column values to integer keys.
func (s *Store) bindable(e *ir.EntitySchema, attrs ir.Attrs) ir.Attrs {
	keys := s.registry.ForeignKeyColumns(e.Name)
	out := attrs.Clone()
	for _, fk := range keys {
		if str, ok := out[fk.Column].(ir.String); ok {
			out[fk.Column] = keyValue(string(str))
		}
	}
	return out
}

func byID(key string) queryir.Predicate {
	return queryir.Equals{Column: "id", Value: keyValue(key)}
}

func notFound() error {
	return ir.NewValidationError("base", "record not found")
}

// wrapUnlessRejected adds context to storage errors and passes validation
// errors through untouched.
func wrapUnlessRejected(err error, format string, args ...any) error {
	var ve *ir.ValidationError
	if errors.As(err, &ve) {
		return err
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
