package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/roach88/nestwrite/internal/compiler"
)

// LoadError represents an error that occurred while loading a schema.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadSchema compiles the CUE schema in dir. Every error is a *LoadError.
func LoadSchema(dir string) (*compiler.LoadResult, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("schema directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing schema directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	cueFiles, err := compiler.FindCUEFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(cueFiles) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	result, err := compiler.LoadDir(dir)
	if err != nil {
		return nil, convertCompileError(err)
	}
	return result, nil
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric       = "E001" // Generic/unknown error
	ErrCodeScanError     = "E002" // Directory scan error
	ErrCodeNoFiles       = "E003" // No CUE files found
	ErrCodeLoadFailed    = "E004" // CUE load failed
	ErrCodeNotFound      = "E005" // Path not found
	ErrCodeBuildFailed   = "E006" // CUE build failed
	ErrCodeWriteFailed   = "E007" // File write error
	ErrCodeEntity        = "E008" // Missing or malformed entity
	ErrCodeStorage       = "E009" // Database open, migrate or write failed
	ErrCodeInvalidInput  = "E010" // Payload could not be read or decoded
	ErrCodeRejected      = "E011" // Payload rejected before any write
	ErrCodeInvalidRecord = "E012" // A resource failed validation

	// Schema compile errors
	ErrCodeInvalidKind     = "E101" // Unknown relationship kind
	ErrCodeInvalidField    = "E102" // Malformed field
	ErrCodeInvalidRelation = "E103" // Malformed relationship
	ErrCodeInvalidType     = "E104" // Missing or invalid field type
)

// MapFieldToErrorCode maps a compiler error field path such as
// "relationships.teams.kind" to an error code.
func MapFieldToErrorCode(field string) string {
	switch {
	case field == "cue":
		return ErrCodeBuildFailed
	case field == "entity":
		return ErrCodeEntity
	case strings.HasPrefix(field, "relationships.") && strings.HasSuffix(field, ".kind"):
		return ErrCodeInvalidKind
	case strings.HasPrefix(field, "relationships."):
		return ErrCodeInvalidRelation
	case strings.HasPrefix(field, "fields.") && strings.HasSuffix(field, ".type"):
		return ErrCodeInvalidType
	case strings.HasPrefix(field, "fields."):
		return ErrCodeInvalidField
	default:
		return ErrCodeGeneric
	}
}
