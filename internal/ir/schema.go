package ir

import (
	"fmt"
	"slices"
)

// Cardinality is the structural class of a relationship. It decides which
// side holds the foreign key and therefore the write order.
type Cardinality uint8

const (
	CardinalityUnknown Cardinality = iota
	// ToOneOwning: the owner row holds the foreign key to the target.
	ToOneOwning
	// ToOneOwned: the target row holds the foreign key back to the owner.
	ToOneOwned
	// ToManyOwned: each target row holds the foreign key back to the owner.
	ToManyOwned
	// ToManyThrough: a join table of (owner, target) pairs links the two.
	ToManyThrough
)

var cardinalityNames = [...]string{
	CardinalityUnknown: "unknown",
	ToOneOwning:        "to-one-owning",
	ToOneOwned:         "to-one-owned",
	ToManyOwned:        "to-many-owned",
	ToManyThrough:      "to-many-through",
}

func (c Cardinality) String() string {
	if int(c) < len(cardinalityNames) {
		return cardinalityNames[c]
	}
	return cardinalityNames[CardinalityUnknown]
}

// MarshalText implements encoding.TextMarshaler.
func (c Cardinality) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Cardinality) UnmarshalText(text []byte) error {
	for i, name := range cardinalityNames {
		if name == string(text) {
			*c = Cardinality(i)
			return nil
		}
	}
	return fmt.Errorf("unknown cardinality %q", text)
}

// ToMany reports whether the relationship admits many targets per owner.
func (c Cardinality) ToMany() bool {
	return c == ToManyOwned || c == ToManyThrough
}

// Owned reports whether the target holds the foreign key.
func (c Cardinality) Owned() bool {
	return c == ToOneOwned || c == ToManyOwned
}

// FieldType is the storage type of an attribute.
type FieldType string

const (
	FieldString FieldType = "string"
	FieldInt    FieldType = "int"
	FieldFloat  FieldType = "float"
	FieldBool   FieldType = "bool"
)

// ValidFieldTypes lists the accepted field types.
var ValidFieldTypes = map[FieldType]bool{
	FieldString: true,
	FieldInt:    true,
	FieldFloat:  true,
	FieldBool:   true,
}

// FieldSpec describes one attribute column.
type FieldSpec struct {
	Name     string    `json:"name"`
	Type     FieldType `json:"type"`
	Required bool      `json:"required,omitempty"`
}

// JoinTable describes the pair table behind a to-many-through relationship.
type JoinTable struct {
	Table     string `json:"table"`
	OwnerKey  string `json:"owner_key"`
	TargetKey string `json:"target_key"`
}

// RelationshipSchema is the static description of one named relationship
// of an entity type.
type RelationshipSchema struct {
	Name        string      `json:"name"`
	Cardinality Cardinality `json:"cardinality"`
	// Target is the concrete target entity type. Empty when Polymorphic.
	Target      string `json:"target,omitempty"`
	Polymorphic bool   `json:"polymorphic,omitempty"`
	// Types maps discriminator -> concrete entity type for polymorphic edges.
	Types map[string]string `json:"types,omitempty"`
	// ForeignKey lives on the owner for ToOneOwning and on the target for
	// owned cardinalities. Unused for ToManyThrough.
	ForeignKey string `json:"foreign_key,omitempty"`
	// TypeColumn stores the discriminator of a polymorphic owning edge.
	TypeColumn string     `json:"type_column,omitempty"`
	Through    *JoinTable `json:"through,omitempty"`
}

// Resolve maps a discriminator to the concrete target type.
// Non-polymorphic relationships accept only their target type.
func (r *RelationshipSchema) Resolve(discriminator string) (string, bool) {
	if !r.Polymorphic {
		return r.Target, discriminator == r.Target
	}
	concrete, ok := r.Types[discriminator]
	return concrete, ok
}

// Discriminator returns the discriminator that maps to a concrete type,
// in the order of the sorted discriminator names.
func (r *RelationshipSchema) Discriminator(concrete string) (string, bool) {
	if !r.Polymorphic {
		return concrete, concrete == r.Target
	}
	for _, disc := range r.Discriminators() {
		if r.Types[disc] == concrete {
			return disc, true
		}
	}
	return "", false
}

// Discriminators returns the polymorphic discriminators in sorted order.
func (r *RelationshipSchema) Discriminators() []string {
	keys := make([]string, 0, len(r.Types))
	for k := range r.Types {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Targets returns every concrete type the relationship can point at.
func (r *RelationshipSchema) Targets() []string {
	if !r.Polymorphic {
		return []string{r.Target}
	}
	var out []string
	for _, disc := range r.Discriminators() {
		if c := r.Types[disc]; !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	return out
}

// EntitySchema is one entity type: its table, fields and relationships.
type EntitySchema struct {
	Name          string               `json:"name"`
	Table         string               `json:"table"`
	Fields        []FieldSpec          `json:"fields"`
	Relationships []RelationshipSchema `json:"relationships"`
}

// Field returns the named field.
func (e *EntitySchema) Field(name string) (FieldSpec, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Relationship returns the named relationship.
func (e *EntitySchema) Relationship(name string) (*RelationshipSchema, bool) {
	for i := range e.Relationships {
		if e.Relationships[i].Name == name {
			return &e.Relationships[i], true
		}
	}
	return nil, false
}

// Registry is the relationship schema lookup consumed by the classifier,
// the executor and the storage engine.
type Registry struct {
	entities map[string]*EntitySchema
}

// NewRegistry builds a registry. Later entities replace earlier ones with
// the same name.
func NewRegistry(entities ...*EntitySchema) *Registry {
	r := &Registry{entities: make(map[string]*EntitySchema, len(entities))}
	for _, e := range entities {
		r.Add(e)
	}
	return r
}

// Add registers an entity, defaulting its table to its name.
func (r *Registry) Add(e *EntitySchema) {
	if e.Table == "" {
		e.Table = e.Name
	}
	r.entities[e.Name] = e
}

// Entity returns the named entity schema.
func (r *Registry) Entity(name string) (*EntitySchema, bool) {
	e, ok := r.entities[name]
	return e, ok
}

// Names returns entity names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entities))
	for n := range r.entities {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Entities returns entity schemas in name order.
func (r *Registry) Entities() []*EntitySchema {
	names := r.Names()
	out := make([]*EntitySchema, len(names))
	for i, n := range names {
		out[i] = r.entities[n]
	}
	return out
}

// SchemaFor looks up (entityType, relationshipName).
func (r *Registry) SchemaFor(entityType, relationship string) (*RelationshipSchema, bool) {
	e, ok := r.entities[entityType]
	if !ok {
		return nil, false
	}
	return e.Relationship(relationship)
}

// ResolvePolymorphic maps a discriminator carried on a target fragment to
// the concrete entity type of the (entityType, relationship) edge.
func (r *Registry) ResolvePolymorphic(entityType, relationship, discriminator string) (string, bool) {
	rel, ok := r.SchemaFor(entityType, relationship)
	if !ok {
		return "", false
	}
	return rel.Resolve(discriminator)
}

// ForeignKeyColumn is a foreign key column stored on an entity's table.
type ForeignKeyColumn struct {
	Column string
	// References is the referenced table; empty for polymorphic columns.
	References string
	// TypeColumn is the discriminator column paired with a polymorphic key.
	TypeColumn string
}

// ForeignKeyColumns lists the foreign key columns living on entity's table:
// its own owning keys plus the keys of owned relationships that target it.
// Columns are deduplicated and returned in a stable order.
func (r *Registry) ForeignKeyColumns(entity string) []ForeignKeyColumn {
	var out []ForeignKeyColumn
	seen := map[string]bool{}
	add := func(c ForeignKeyColumn) {
		if seen[c.Column] {
			return
		}
		seen[c.Column] = true
		out = append(out, c)
	}

	if e, ok := r.entities[entity]; ok {
		for _, rel := range e.Relationships {
			if rel.Cardinality != ToOneOwning {
				continue
			}
			c := ForeignKeyColumn{Column: rel.ForeignKey}
			if rel.Polymorphic {
				c.TypeColumn = rel.TypeColumn
			} else if target, ok := r.entities[rel.Target]; ok {
				c.References = target.Table
			}
			add(c)
		}
	}
	for _, owner := range r.Entities() {
		for _, rel := range owner.Relationships {
			if !rel.Cardinality.Owned() || rel.Target != entity {
				continue
			}
			add(ForeignKeyColumn{Column: rel.ForeignKey, References: owner.Table})
		}
	}
	return out
}

// InboundKey is a foreign key column somewhere in the schema that can point
// at rows of a given entity. TypeColumn/TypeValue narrow polymorphic keys.
type InboundKey struct {
	Table      string
	Column     string
	TypeColumn string
	TypeValue  string
}

// InboundJoin is a join-table column that can point at rows of an entity.
type InboundJoin struct {
	Table  string
	Column string
}

// Inbound lists every column that may reference rows of entity. The storage
// engine clears these before deleting a row.
func (r *Registry) Inbound(entity string) ([]InboundKey, []InboundJoin) {
	if _, ok := r.entities[entity]; !ok {
		return nil, nil
	}

	var keys []InboundKey
	var joins []InboundJoin
	seenKey := map[InboundKey]bool{}
	seenJoin := map[InboundJoin]bool{}
	addKey := func(k InboundKey) {
		if !seenKey[k] {
			seenKey[k] = true
			keys = append(keys, k)
		}
	}
	addJoin := func(j InboundJoin) {
		if !seenJoin[j] {
			seenJoin[j] = true
			joins = append(joins, j)
		}
	}

	for _, owner := range r.Entities() {
		for _, rel := range owner.Relationships {
			switch rel.Cardinality {
			case ToOneOwning:
				if rel.Polymorphic {
					for _, disc := range rel.Discriminators() {
						if rel.Types[disc] == entity {
							addKey(InboundKey{Table: owner.Table, Column: rel.ForeignKey, TypeColumn: rel.TypeColumn, TypeValue: disc})
						}
					}
				} else if rel.Target == entity {
					addKey(InboundKey{Table: owner.Table, Column: rel.ForeignKey})
				}
			case ToOneOwned, ToManyOwned:
				if owner.Name == entity {
					if target, ok := r.entities[rel.Target]; ok {
						addKey(InboundKey{Table: target.Table, Column: rel.ForeignKey})
					}
				}
			case ToManyThrough:
				if rel.Through == nil {
					continue
				}
				if owner.Name == entity {
					addJoin(InboundJoin{Table: rel.Through.Table, Column: rel.Through.OwnerKey})
				}
				if rel.Target == entity {
					addJoin(InboundJoin{Table: rel.Through.Table, Column: rel.Through.TargetKey})
				}
			}
		}
	}
	return keys, joins
}

// JoinTables returns every join table in the schema, deduplicated by name.
func (r *Registry) JoinTables() []JoinTable {
	var out []JoinTable
	seen := map[string]bool{}
	for _, e := range r.Entities() {
		for _, rel := range e.Relationships {
			if rel.Cardinality != ToManyThrough || rel.Through == nil || seen[rel.Through.Table] {
				continue
			}
			seen[rel.Through.Table] = true
			out = append(out, *rel.Through)
		}
	}
	return out
}
