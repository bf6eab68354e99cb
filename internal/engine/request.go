package engine

import "github.com/google/uuid"

// RequestIDGenerator generates the correlation id of one persist request.
// UUIDv7Generator is the default; tests use testutil.SequentialRequestIDs.
type RequestIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-ordered UUIDv7 request ids.
type UUIDv7Generator struct{}

// Generate returns a new UUIDv7 string.
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
