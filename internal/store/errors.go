package store

import (
	"errors"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/roach88/nestwrite/internal/ir"
)

// ConstraintKind names the class of a constraint violation.
type ConstraintKind string

const (
	ConstraintUnique     ConstraintKind = "unique"
	ConstraintForeignKey ConstraintKind = "foreign key"
	ConstraintNotNull    ConstraintKind = "not-null"
	ConstraintCheck      ConstraintKind = "check"
)

// PostgreSQL SQLSTATE codes for constraint violations (Class 23).
const (
	pgNotNullViolation    = "23502"
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
	pgCheckViolation      = "23514"
)

// ConstraintViolation classifies a driver error raised by a database
// constraint. It reports false for every other error.
func ConstraintViolation(err error) (ConstraintKind, bool) {
	if err == nil {
		return "", false
	}

	var se sqlite3.Error
	if errors.As(err, &se) && se.Code == sqlite3.ErrConstraint {
		switch se.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return ConstraintUnique, true
		case sqlite3.ErrConstraintForeignKey:
			return ConstraintForeignKey, true
		case sqlite3.ErrConstraintNotNull:
			return ConstraintNotNull, true
		case sqlite3.ErrConstraintCheck:
			return ConstraintCheck, true
		}
		return ConstraintCheck, true
	}

	var pe *pq.Error
	if errors.As(err, &pe) {
		switch string(pe.Code) {
		case pgUniqueViolation:
			return ConstraintUnique, true
		case pgForeignKeyViolation:
			return ConstraintForeignKey, true
		case pgNotNullViolation:
			return ConstraintNotNull, true
		case pgCheckViolation:
			return ConstraintCheck, true
		}
	}
	return "", false
}

// IsConstraintError returns true if err resulted from a database constraint
// violation.
func IsConstraintError(err error) bool {
	_, ok := ConstraintViolation(err)
	return ok
}

// rejectConstraint turns a constraint violation into a validation error on
// the record; other errors pass through.
func rejectConstraint(err error) error {
	kind, ok := ConstraintViolation(err)
	if !ok {
		return err
	}
	return ir.NewValidationError("base", "violates a "+string(kind)+" constraint")
}
