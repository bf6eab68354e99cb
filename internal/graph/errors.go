package graph

import (
	"errors"
	"fmt"

	"github.com/roach88/nestwrite/internal/ir"
)

// BuildErrorCode categorizes malformed payloads.
type BuildErrorCode string

const (
	// ErrCodeUnresolvedReference: a linkage names a resource absent from the payload.
	ErrCodeUnresolvedReference BuildErrorCode = "UNRESOLVED_REFERENCE"
	// ErrCodeDuplicateTempID: two fragments declare the same temp-id.
	ErrCodeDuplicateTempID BuildErrorCode = "DUPLICATE_TEMP_ID"
	// ErrCodeConflictingVerb: one node is given two different explicit methods.
	ErrCodeConflictingVerb BuildErrorCode = "CONFLICTING_VERB"
	// ErrCodeMissingIdentity: a method that needs a persisted id has none.
	ErrCodeMissingIdentity BuildErrorCode = "MISSING_IDENTITY"
	// ErrCodeInvalidPayload: any other structural problem.
	ErrCodeInvalidPayload BuildErrorCode = "INVALID_PAYLOAD"
)

// BuildError is returned by Build. It is always raised before storage I/O.
type BuildError struct {
	Code     BuildErrorCode
	Message  string
	Resource ir.ResourceRef
}

func (e *BuildError) Error() string {
	if e.Resource.Type != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Resource)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsBuildError returns true if the error is a BuildError.
// Uses errors.As to handle wrapped errors.
func IsBuildError(err error) bool {
	var be *BuildError
	return errors.As(err, &be)
}

// HasBuildCode reports whether err is a BuildError with the given code.
func HasBuildCode(err error, code BuildErrorCode) bool {
	var be *BuildError
	return errors.As(err, &be) && be.Code == code
}

// ClassificationErrorCode categorizes schema mismatches.
type ClassificationErrorCode string

const (
	ErrCodeUnknownEntityType      ClassificationErrorCode = "UNKNOWN_ENTITY_TYPE"
	ErrCodeUnknownRelationship    ClassificationErrorCode = "UNKNOWN_RELATIONSHIP"
	ErrCodeUnknownPolymorphicType ClassificationErrorCode = "UNKNOWN_POLYMORPHIC_TYPE"
	// ErrCodeTypeMismatch: a linkage type is not the relationship's target.
	ErrCodeTypeMismatch ClassificationErrorCode = "TYPE_MISMATCH"
	// ErrCodeCardinalityMismatch: array data on a to-one edge, or the reverse.
	ErrCodeCardinalityMismatch ClassificationErrorCode = "CARDINALITY_MISMATCH"
)

// ClassificationError is returned by Classify. It is always raised before
// storage I/O.
type ClassificationError struct {
	Code         ClassificationErrorCode
	Message      string
	Resource     ir.ResourceRef
	Relationship string
}

func (e *ClassificationError) Error() string {
	if e.Relationship != "" {
		return fmt.Sprintf("%s: %s (%s.%s)", e.Code, e.Message, e.Resource, e.Relationship)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Resource)
}

// IsClassificationError returns true if the error is a ClassificationError.
func IsClassificationError(err error) bool {
	var ce *ClassificationError
	return errors.As(err, &ce)
}

// IsUnknownPolymorphicType reports whether err rejects a polymorphic discriminator.
func IsUnknownPolymorphicType(err error) bool {
	var ce *ClassificationError
	return errors.As(err, &ce) && ce.Code == ErrCodeUnknownPolymorphicType
}
