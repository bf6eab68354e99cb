package store

import (
	"fmt"

	"github.com/roach88/nestwrite/internal/ir"
)

// Op is the row operation a Validator is asked about.
type Op uint8

const (
	OpInsert Op = iota + 1
	OpUpdate
	OpDelete
)

func (o Op) String() string {
	switch o {
	case OpInsert:
		return "insert"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	}
	return fmt.Sprintf("Op(%d)", uint8(o))
}

// ParseOp parses insert, update or delete.
func ParseOp(s string) (Op, error) {
	for _, op := range []Op{OpInsert, OpUpdate, OpDelete} {
		if op.String() == s {
			return op, nil
		}
	}
	return 0, fmt.Errorf("unknown operation %q (want insert, update or delete)", s)
}

// Validator inspects the row a write would leave behind (for deletes, the
// row being removed) and records problems in errs. Use the "base" field for
// record-level messages.
type Validator func(op Op, row ir.Attrs, errs ir.FieldErrors)

// Reject returns a Validator that adds message to field whenever op runs on
// a row matching every value in when. A zero op matches any operation.
func Reject(op Op, field, message string, when ir.Attrs) Validator {
	return func(got Op, row ir.Attrs, errs ir.FieldErrors) {
		if op != 0 && op != got {
			return
		}
		for k, want := range when {
			if !ir.Equal(row[k], want) {
				return
			}
		}
		errs.Add(field, message)
	}
}

// checkAttrs validates the attribute names and value kinds of a write.
// Key columns are accepted alongside fields.
func (s *Store) checkAttrs(e *ir.EntitySchema, attrs ir.Attrs, errs ir.FieldErrors) {
	keys := s.keyColumns(e)
	for _, name := range attrs.SortedKeys() {
		v := attrs[name]
		if f, ok := e.Field(name); ok {
			if msg, bad := kindProblem(f.Type, v); bad {
				errs.Add(name, msg)
			}
			continue
		}
		if keys[name] {
			switch v.(type) {
			case ir.List, ir.Attrs:
				errs.Add(name, "must be a key")
			}
			continue
		}
		errs.Add(name, fmt.Sprintf("is not an attribute of %s", e.Name))
	}
}

// checkRequired reports required fields that are null in row.
func checkRequired(e *ir.EntitySchema, row ir.Attrs, errs ir.FieldErrors) {
	for _, f := range e.Fields {
		if f.Required && ir.IsNull(row[f.Name]) {
			errs.Add(f.Name, "is required")
		}
	}
}

func (s *Store) runValidators(e *ir.EntitySchema, op Op, row ir.Attrs, errs ir.FieldErrors) {
	for _, v := range s.validators[e.Name] {
		v(op, row, errs)
	}
}

// keyColumns returns the key and type columns stored on e's table.
func (s *Store) keyColumns(e *ir.EntitySchema) map[string]bool {
	out := map[string]bool{}
	for _, fk := range s.registry.ForeignKeyColumns(e.Name) {
		out[fk.Column] = true
		if fk.TypeColumn != "" {
			out[fk.TypeColumn] = true
		}
	}
	return out
}

func kindProblem(t ir.FieldType, v ir.Value) (string, bool) {
	if ir.IsNull(v) {
		return "", false
	}
	switch t {
	case ir.FieldString:
		if _, ok := v.(ir.String); !ok {
			return "must be a string", true
		}
	case ir.FieldInt:
		if _, ok := v.(ir.Int); !ok {
			return "must be an integer", true
		}
	case ir.FieldFloat:
		switch v.(type) {
		case ir.Int, ir.Float:
		default:
			return "must be a number", true
		}
	case ir.FieldBool:
		if _, ok := v.(ir.Bool); !ok {
			return "must be a boolean", true
		}
	}
	return "", false
}

// failure returns errs as a *ir.ValidationError, or nil when empty.
func failure(errs ir.FieldErrors) error {
	if len(errs) == 0 {
		return nil
	}
	return &ir.ValidationError{Errors: errs}
}
