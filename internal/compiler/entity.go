package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"github.com/go-openapi/inflect"

	"github.com/roach88/nestwrite/internal/ir"
)

// kindCardinality maps the schema's relationship kinds to cardinalities.
var kindCardinality = map[string]ir.Cardinality{
	"belongs_to":   ir.ToOneOwning,
	"has_one":      ir.ToOneOwned,
	"has_many":     ir.ToManyOwned,
	"many_to_many": ir.ToManyThrough,
}

var rules = inflect.NewDefaultRuleset()

// CompileSchema compiles every entity under the top-level `entity` struct
// into a registry. Naming defaults are applied per relationship.
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`entity: employees: { ... }`)
//	reg, err := CompileSchema(v)
func CompileSchema(v cue.Value) (*ir.Registry, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	entitiesVal := v.LookupPath(cue.ParsePath("entity"))
	if !entitiesVal.Exists() {
		return nil, &CompileError{
			Field:   "entity",
			Message: "schema declares no entities",
			Pos:     v.Pos(),
		}
	}

	iter, err := entitiesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	reg := ir.NewRegistry()
	for iter.Next() {
		entity, err := CompileEntity(iter.Value())
		if err != nil {
			return nil, err
		}
		reg.Add(entity)
	}
	return reg, nil
}

// CompileEntity parses one entity struct, e.g. the value at `entity.employees`.
// The entity name is the struct label.
func CompileEntity(v cue.Value) (*ir.EntitySchema, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	entity := &ir.EntitySchema{}
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		entity.Name = labels[len(labels)-1].String()
	}
	if entity.Name == "" {
		return nil, &CompileError{Field: "entity", Message: "entity must be a labelled struct", Pos: v.Pos()}
	}

	entity.Table = entity.Name
	if tableVal := v.LookupPath(cue.ParsePath("table")); tableVal.Exists() {
		table, err := tableVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		entity.Table = table
	}

	var err error
	entity.Fields, err = parseFields(v)
	if err != nil {
		return nil, err
	}

	entity.Relationships, err = parseRelationships(entity.Name, v)
	if err != nil {
		return nil, err
	}
	return entity, nil
}

// parseFields extracts attribute columns. Field order follows the source.
func parseFields(v cue.Value) ([]ir.FieldSpec, error) {
	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return nil, nil
	}

	iter, err := fieldsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var fields []ir.FieldSpec
	for iter.Next() {
		name := iter.Label()
		fv := iter.Value()

		field := ir.FieldSpec{Name: name}

		// Shorthand: `age: "int"`.
		if s, err := fv.String(); err == nil {
			field.Type = ir.FieldType(s)
			fields = append(fields, field)
			continue
		}

		typ, err := lookupString(fv, "type")
		if err != nil {
			return nil, err
		}
		if typ == "" {
			return nil, &CompileError{
				Field:   fmt.Sprintf("fields.%s.type", name),
				Message: "field type is required",
				Pos:     fv.Pos(),
			}
		}
		field.Type = ir.FieldType(typ)

		if reqVal := fv.LookupPath(cue.ParsePath("required")); reqVal.Exists() {
			req, err := reqVal.Bool()
			if err != nil {
				return nil, formatCUEError(err)
			}
			field.Required = req
		}
		fields = append(fields, field)
	}
	return fields, nil
}

// parseRelationships extracts relationships and fills naming defaults.
func parseRelationships(owner string, v cue.Value) ([]ir.RelationshipSchema, error) {
	relsVal := v.LookupPath(cue.ParsePath("relationships"))
	if !relsVal.Exists() {
		return nil, nil
	}

	iter, err := relsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var rels []ir.RelationshipSchema
	for iter.Next() {
		name := iter.Label()
		rv := iter.Value()

		kind, err := lookupString(rv, "kind")
		if err != nil {
			return nil, err
		}
		cardinality, ok := kindCardinality[kind]
		if !ok {
			return nil, &CompileError{
				Field:   fmt.Sprintf("relationships.%s.kind", name),
				Message: fmt.Sprintf("unknown relationship kind %q (want belongs_to, has_one, has_many or many_to_many)", kind),
				Pos:     rv.Pos(),
			}
		}

		rel := ir.RelationshipSchema{Name: name, Cardinality: cardinality}

		if rel.Target, err = lookupString(rv, "target"); err != nil {
			return nil, err
		}
		if polyVal := rv.LookupPath(cue.ParsePath("polymorphic")); polyVal.Exists() {
			if rel.Polymorphic, err = polyVal.Bool(); err != nil {
				return nil, formatCUEError(err)
			}
		}
		if typesVal := rv.LookupPath(cue.ParsePath("types")); typesVal.Exists() {
			if rel.Types, err = parseTypes(typesVal); err != nil {
				return nil, err
			}
		}
		if rel.ForeignKey, err = lookupString(rv, "foreign_key"); err != nil {
			return nil, err
		}
		if rel.TypeColumn, err = lookupString(rv, "type_column"); err != nil {
			return nil, err
		}

		if cardinality == ir.ToManyThrough {
			through := &ir.JoinTable{}
			if through.Table, err = lookupString(rv, "through"); err != nil {
				return nil, err
			}
			if through.OwnerKey, err = lookupString(rv, "owner_key"); err != nil {
				return nil, err
			}
			if through.TargetKey, err = lookupString(rv, "target_key"); err != nil {
				return nil, err
			}
			rel.Through = through
		}

		if rel.Polymorphic && rel.Target != "" {
			return nil, &CompileError{
				Field:   fmt.Sprintf("relationships.%s.target", name),
				Message: "polymorphic relationships name their targets in types, not target",
				Pos:     rv.Pos(),
			}
		}
		if !rel.Polymorphic && rel.Target == "" {
			return nil, &CompileError{
				Field:   fmt.Sprintf("relationships.%s.target", name),
				Message: "target is required",
				Pos:     rv.Pos(),
			}
		}

		applyDefaults(owner, &rel)
		rels = append(rels, rel)
	}
	return rels, nil
}

func parseTypes(v cue.Value) (map[string]string, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	types := make(map[string]string)
	for iter.Next() {
		concrete, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		types[iter.Label()] = concrete
	}
	return types, nil
}

// applyDefaults fills unset key and join-table names.
//
//	belongs_to   foreign_key  <singular(rel)>_id, type_column <singular(rel)>_type
//	has_one/many foreign_key  <singular(owner)>_id
//	many_to_many through      <singular(owner)>_<target>
//	             owner_key    <singular(owner)>_id, target_key <singular(target)>_id
func applyDefaults(owner string, rel *ir.RelationshipSchema) {
	switch rel.Cardinality {
	case ir.ToOneOwning:
		base := Singular(rel.Name)
		if rel.ForeignKey == "" {
			rel.ForeignKey = base + "_id"
		}
		if rel.Polymorphic && rel.TypeColumn == "" {
			rel.TypeColumn = base + "_type"
		}
	case ir.ToOneOwned, ir.ToManyOwned:
		if rel.ForeignKey == "" {
			rel.ForeignKey = Singular(owner) + "_id"
		}
	case ir.ToManyThrough:
		if rel.Through.Table == "" {
			rel.Through.Table = Singular(owner) + "_" + rel.Target
		}
		if rel.Through.OwnerKey == "" {
			rel.Through.OwnerKey = Singular(owner) + "_id"
		}
		if rel.Through.TargetKey == "" {
			rel.Through.TargetKey = Singular(rel.Target) + "_id"
		}
	}
}

// Singular returns the singular form of a table or relationship name.
func Singular(name string) string {
	return rules.Singularize(name)
}

// lookupString returns the string at path, or "" when the path is absent.
func lookupString(v cue.Value, path string) (string, error) {
	pv := v.LookupPath(cue.ParsePath(path))
	if !pv.Exists() {
		return "", nil
	}
	s, err := pv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
