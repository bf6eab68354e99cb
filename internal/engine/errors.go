package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/nestwrite/internal/ir"
)

// DependencyCycleError reports not-yet-persisted nodes that each need the
// other's key before they can be written. Path starts and ends on the same
// node. It is raised before any storage I/O.
type DependencyCycleError struct {
	Path []ir.ResourceRef
}

func (e *DependencyCycleError) Error() string {
	parts := make([]string, len(e.Path))
	for i, ref := range e.Path {
		parts[i] = ref.String()
	}
	return "dependency cycle: " + strings.Join(parts, " → ")
}

// IsCycleError returns true if the error is a DependencyCycleError.
// Uses errors.As to handle wrapped errors.
func IsCycleError(err error) bool {
	var ce *DependencyCycleError
	return errors.As(err, &ce)
}

// ValidationFailure is a storage-layer rejection of one node's write. It
// aborts the request and rolls back the transaction.
type ValidationFailure struct {
	Resource ir.ResourceRef
	Errors   ir.FieldErrors
}

func (e *ValidationFailure) Error() string {
	return fmt.Sprintf("%s: %s", e.Resource, (&ir.ValidationError{Errors: e.Errors}).Error())
}

// IsValidationFailure returns true if the error is a ValidationFailure.
func IsValidationFailure(err error) bool {
	var vf *ValidationFailure
	return errors.As(err, &vf)
}

// StorageError wraps a storage call that failed for a reason other than
// validation: a driver error, a lost connection, a failed commit.
type StorageError struct {
	Op       Op
	Resource ir.ResourceRef
	Err      error
}

func (e *StorageError) Error() string {
	if e.Resource.Type == "" {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Resource, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsStorageError returns true if the error is a StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// classify turns a storage call error into a ValidationFailure when the
// storage engine rejected the row, or a StorageError otherwise.
func classify(op Op, ref ir.ResourceRef, err error) error {
	var ve *ir.ValidationError
	if errors.As(err, &ve) {
		return &ValidationFailure{Resource: ref, Errors: ve.Errors}
	}
	return &StorageError{Op: op, Resource: ref, Err: err}
}
