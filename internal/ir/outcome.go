package ir

import (
	"fmt"
	"slices"
	"strings"
)

// FieldErrors maps a field name to its validation messages.
// The "base" field carries record-level messages.
type FieldErrors map[string][]string

// Add appends a message for field.
func (f FieldErrors) Add(field, message string) {
	f[field] = append(f[field], message)
}

// Fields returns the failing field names in sorted order.
func (f FieldErrors) Fields() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func (f FieldErrors) toGo() map[string]any {
	out := make(map[string]any, len(f))
	for k, msgs := range f {
		list := make([]any, len(msgs))
		for i, m := range msgs {
			list[i] = m
		}
		out[k] = list
	}
	return out
}

// ValidationError is returned by the storage engine when a row write
// violates a storage-layer rule. The executor attaches it to the failing
// node and aborts the request.
type ValidationError struct {
	Errors FieldErrors
}

// NewValidationError returns a ValidationError with one message.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Errors: FieldErrors{field: {message}}}
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, field := range e.Errors.Fields() {
		parts = append(parts, fmt.Sprintf("%s %s", field, strings.Join(e.Errors[field], ", ")))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// MutatedIdentity is the post-write state of one node reported back to the
// caller.
type MutatedIdentity struct {
	Type string
	// ID is the storage key after the write.
	ID string
	// TempID echoes the client's temp-id for created nodes.
	TempID     string
	Verb       Verb
	Attributes Attrs
}

func (m MutatedIdentity) toGo() map[string]any {
	out := map[string]any{
		"type":       m.Type,
		"id":         m.ID,
		"method":     m.Verb.String(),
		"attributes": m.Attributes.Clone(),
	}
	if m.TempID != "" {
		out["temp-id"] = m.TempID
	}
	return out
}

// Failure reports the node whose write was rejected and its errors.
type Failure struct {
	Resource ResourceRef
	Errors   FieldErrors
}

// Outcome is the result of one persist request: either a primary result
// with side-loaded nodes, or a failure.
type Outcome struct {
	RequestID  string
	Primary    *MutatedIdentity
	Sideloaded []MutatedIdentity
	Failure    *Failure
}

// Succeeded reports whether the request committed.
func (o Outcome) Succeeded() bool {
	return o.Failure == nil
}

// Sideloads returns the side-loaded nodes of one type, in write order.
func (o Outcome) Sideloads(entityType string) []MutatedIdentity {
	var out []MutatedIdentity
	for _, m := range o.Sideloaded {
		if m.Type == entityType {
			out = append(out, m)
		}
	}
	return out
}

// Document renders the outcome without the request id, in the shape used by
// golden files and CLI output.
func (o Outcome) Document() map[string]any {
	if o.Failure != nil {
		return map[string]any{
			"outcome": "failure",
			"failure": map[string]any{
				"resource": o.Failure.Resource.toGo(),
				"errors":   o.Failure.Errors.toGo(),
			},
		}
	}
	doc := map[string]any{"outcome": "success"}
	if o.Primary != nil {
		doc["data"] = o.Primary.toGo()
	}
	included := make([]any, len(o.Sideloaded))
	for i, m := range o.Sideloaded {
		included[i] = m.toGo()
	}
	doc["included"] = included
	return doc
}

// MarshalJSON implements json.Marshaler using canonical encoding.
func (o Outcome) MarshalJSON() ([]byte, error) {
	doc := o.Document()
	if o.RequestID != "" {
		doc["request_id"] = o.RequestID
	}
	return MarshalCanonical(doc)
}
