// Package store is the reference storage engine behind the persister: one
// table per entity, one pair table per many-to-many relationship, written
// through database/sql.
//
// Two drivers are supported:
//   - sqlite3 (github.com/mattn/go-sqlite3), the default, with WAL mode and
//     foreign key enforcement
//   - postgres (github.com/lib/pq)
//
// # Rows
//
// Every entity table has an integer "id" primary key; row keys travel as
// decimal strings. Attribute columns come from the entity's fields, key
// columns from the relationship schema (see ir.Registry.ForeignKeyColumns).
//
// # Validation
//
// Writes are checked before any SQL runs. A rejected write returns
// *ir.ValidationError so the persister can roll back and report the failing
// node:
//   - unknown attribute names
//   - values whose kind does not match the field type
//   - required fields missing on insert or cleared on update
//   - rows that do not exist on update, delete or key assignment
//   - any Validator registered for the entity with WithValidator
//
// Constraint violations raised by the driver (unique, foreign key, not null,
// check) are reported the same way.
//
// # Deletes
//
// Delete clears every key column and join row that can point at the row
// before removing it, so dangling references never survive a request.
package store
