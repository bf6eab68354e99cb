package engine

import (
	"context"

	"github.com/roach88/nestwrite/internal/ir"
)

// Storage is the storage engine the persister writes through. Each request
// runs in exactly one Tx; the engine never nests transactions.
type Storage interface {
	Begin(ctx context.Context) (Tx, error)
}

// Tx is one storage transaction. Rows are addressed by entity name and a
// string key. A rejected row is reported as *ir.ValidationError; any other
// error is a storage failure.
type Tx interface {
	// Insert writes a new row and returns its key.
	Insert(ctx context.Context, entity string, attrs ir.Attrs) (string, error)
	// Update applies attrs to an existing row. Empty attrs re-save the row,
	// re-running its validation.
	Update(ctx context.Context, entity, key string, attrs ir.Attrs) error
	// Delete removes a row after clearing whatever still references it.
	Delete(ctx context.Context, entity, key string) error
	// SetForeignKey writes key columns only. An ir.Null value clears a column.
	SetForeignKey(ctx context.Context, entity, key string, columns ir.Attrs) error

	ListJoinRows(ctx context.Context, jt ir.JoinTable, ownerKey string) ([]string, error)
	InsertJoinRow(ctx context.Context, jt ir.JoinTable, ownerKey, targetKey string) error
	DeleteJoinRow(ctx context.Context, jt ir.JoinTable, ownerKey, targetKey string) error

	Commit() error
	Rollback() error
}
