package compiler

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/nestwrite/internal/ir"
)

// Validation error codes (E200-E299)
const (
	ErrUnknownTarget           = "E201" // relationship target is not a declared entity
	ErrPolymorphicWithoutTypes = "E202" // polymorphic relationship declares no types
	ErrUnknownConcreteType     = "E203" // polymorphic type maps to an undeclared entity
	ErrInvalidFieldType        = "E204" // field type is not string, int, float or bool
	ErrForeignKeyCollision     = "E205" // foreign key column clashes with a field or another key
	ErrInvalidIdentifier       = "E206" // table or column name is not a safe SQL identifier
	ErrPolymorphicKind         = "E207" // polymorphism on anything but belongs_to
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// identifierPattern matches lowercase snake_case SQL identifiers.
var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Validate checks a compiled registry for structural problems.
// Returns all errors found (does not fail-fast), in entity order.
func Validate(reg *ir.Registry) []ValidationError {
	var errs []ValidationError

	// column -> meaning, per table. A meaning is "field" or the table a key references.
	columns := map[string]map[string]string{}
	claim := func(table, column, meaning, path string) {
		if columns[table] == nil {
			columns[table] = map[string]string{}
		}
		prev, ok := columns[table][column]
		if !ok {
			columns[table][column] = meaning
			return
		}
		if prev != meaning {
			errs = append(errs, ValidationError{
				Field:   path,
				Message: fmt.Sprintf("column %q on table %q is both %s and %s", column, table, describe(prev), describe(meaning)),
				Code:    ErrForeignKeyCollision,
			})
		}
	}
	identifier := func(name, path string) {
		if !identifierPattern.MatchString(name) {
			errs = append(errs, ValidationError{
				Field:   path,
				Message: fmt.Sprintf("invalid identifier %q", name),
				Code:    ErrInvalidIdentifier,
			})
		}
	}

	for _, e := range reg.Entities() {
		identifier(e.Table, fmt.Sprintf("entity.%s.table", e.Name))

		for _, f := range e.Fields {
			path := fmt.Sprintf("entity.%s.fields.%s", e.Name, f.Name)
			identifier(f.Name, path)
			if !ir.ValidFieldTypes[f.Type] {
				errs = append(errs, ValidationError{
					Field:   path + ".type",
					Message: fmt.Sprintf("invalid type %q for field %q", f.Type, f.Name),
					Code:    ErrInvalidFieldType,
				})
			}
			if f.Name == "id" {
				errs = append(errs, ValidationError{
					Field:   path,
					Message: "id is the primary key and cannot be declared as a field",
					Code:    ErrForeignKeyCollision,
				})
			}
			claim(e.Table, f.Name, "field", path)
		}
	}

	// Foreign keys are claimed after every field so a clash is reported on the key.
	for _, e := range reg.Entities() {
		for _, rel := range e.Relationships {
			path := fmt.Sprintf("entity.%s.relationships.%s", e.Name, rel.Name)
			errs = append(errs, validateRelationship(reg, &rel, path)...)

			switch rel.Cardinality {
			case ir.ToOneOwning:
				identifier(rel.ForeignKey, path+".foreign_key")
				meaning := "poly:" + rel.TypeColumn
				if !rel.Polymorphic {
					if target, ok := reg.Entity(rel.Target); ok {
						meaning = "ref:" + target.Table
					}
				} else {
					identifier(rel.TypeColumn, path+".type_column")
					claim(e.Table, rel.TypeColumn, "type", path+".type_column")
				}
				claim(e.Table, rel.ForeignKey, meaning, path+".foreign_key")
			case ir.ToOneOwned, ir.ToManyOwned:
				identifier(rel.ForeignKey, path+".foreign_key")
				if target, ok := reg.Entity(rel.Target); ok {
					claim(target.Table, rel.ForeignKey, "ref:"+e.Table, path+".foreign_key")
				}
			case ir.ToManyThrough:
				if rel.Through == nil {
					errs = append(errs, ValidationError{
						Field:   path + ".through",
						Message: "many_to_many relationship has no join table",
						Code:    ErrInvalidIdentifier,
					})
					continue
				}
				identifier(rel.Through.Table, path+".through")
				identifier(rel.Through.OwnerKey, path+".owner_key")
				identifier(rel.Through.TargetKey, path+".target_key")
				if rel.Through.OwnerKey == rel.Through.TargetKey {
					errs = append(errs, ValidationError{
						Field:   path + ".target_key",
						Message: fmt.Sprintf("owner_key and target_key are both %q", rel.Through.OwnerKey),
						Code:    ErrForeignKeyCollision,
					})
				}
			}
		}
	}

	return errs
}

func validateRelationship(reg *ir.Registry, rel *ir.RelationshipSchema, path string) []ValidationError {
	var errs []ValidationError

	if !rel.Polymorphic {
		if _, ok := reg.Entity(rel.Target); !ok {
			errs = append(errs, ValidationError{
				Field:   path + ".target",
				Message: fmt.Sprintf("unknown target entity %q", rel.Target),
				Code:    ErrUnknownTarget,
			})
		}
		return errs
	}

	if rel.Cardinality != ir.ToOneOwning {
		errs = append(errs, ValidationError{
			Field:   path + ".polymorphic",
			Message: fmt.Sprintf("only belongs_to relationships can be polymorphic, %q is %s", rel.Name, rel.Cardinality),
			Code:    ErrPolymorphicKind,
		})
	}
	if len(rel.Types) == 0 {
		errs = append(errs, ValidationError{
			Field:   path + ".types",
			Message: "polymorphic relationship must map at least one type",
			Code:    ErrPolymorphicWithoutTypes,
		})
	}
	for _, disc := range rel.Discriminators() {
		if _, ok := reg.Entity(rel.Types[disc]); !ok {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.types.%s", path, disc),
				Message: fmt.Sprintf("unknown concrete entity %q", rel.Types[disc]),
				Code:    ErrUnknownConcreteType,
			})
		}
	}
	return errs
}

func describe(meaning string) string {
	switch {
	case meaning == "field":
		return "an attribute"
	case meaning == "type":
		return "a polymorphic type column"
	case strings.HasPrefix(meaning, "ref:"):
		return "a key to " + strings.TrimPrefix(meaning, "ref:")
	case strings.HasPrefix(meaning, "poly:"):
		return "a polymorphic key"
	}
	return meaning
}
