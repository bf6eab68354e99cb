package ir

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ResourceRef names one resource by type and identity.
// It is how failures and write-log entries point back at the payload.
type ResourceRef struct {
	Type string
	ID   Identity
}

// String renders the ref as `type(id:5)` or `type(temp-id:abc)`.
func (r ResourceRef) String() string {
	return r.Type + "(" + r.ID.String() + ")"
}

// toGo renders the wire form: {"type", "id"} or {"type", "temp-id"}.
func (r ResourceRef) toGo() map[string]any {
	out := map[string]any{"type": r.Type}
	if key, ok := r.ID.Key(); ok {
		out["id"] = key
	}
	if token, ok := r.ID.Token(); ok {
		out["temp-id"] = token
	}
	return out
}

// MarshalJSON implements json.Marshaler using canonical encoding.
func (r ResourceRef) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(r.toGo())
}

// Linkage is one entry of a relationship's data: a reference to another
// resource plus the verb to apply to it.
type Linkage struct {
	Type string
	ID   Identity
	Verb Verb
}

// Ref returns the linkage target as a ResourceRef.
func (l Linkage) Ref() ResourceRef {
	return ResourceRef{Type: l.Type, ID: l.ID}
}

// Relationship is one named relationship block of a resource.
// Many records whether data was an array; Data keeps payload order.
type Relationship struct {
	Name string
	Many bool
	Data []Linkage
}

// ResourceSpec is one resource as submitted: the primary data or one
// included fragment.
type ResourceSpec struct {
	Type          string
	ID            Identity
	Verb          Verb
	Attributes    Attrs
	Relationships []Relationship
}

// Ref returns the resource's ResourceRef.
func (r ResourceSpec) Ref() ResourceRef {
	return ResourceRef{Type: r.Type, ID: r.ID}
}

// Relationship returns the named relationship block.
func (r ResourceSpec) Relationship(name string) (Relationship, bool) {
	for _, rel := range r.Relationships {
		if rel.Name == name {
			return rel, true
		}
	}
	return Relationship{}, false
}

// HasChanges reports whether the fragment carries attributes or relationships.
func (r ResourceSpec) HasChanges() bool {
	return len(r.Attributes) > 0 || len(r.Relationships) > 0
}

// Payload is a full persist request: the primary resource plus the flat
// list of included fragments.
type Payload struct {
	Data     ResourceSpec   `json:"data" yaml:"data"`
	Included []ResourceSpec `json:"included,omitempty" yaml:"included,omitempty"`
}

// ParsePayload decodes a JSON payload. Numbers keep int64 precision.
func ParsePayload(data []byte) (Payload, error) {
	var p Payload
	if err := decodeJSON(data, &p); err != nil {
		return Payload{}, fmt.Errorf("decode payload: %w", err)
	}
	return p, nil
}

// ParsePayloadYAML decodes a YAML payload.
func ParsePayloadYAML(data []byte) (Payload, error) {
	var p Payload
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Payload{}, fmt.Errorf("decode payload: %w", err)
	}
	return p, nil
}

func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// wireResource is the JSON form of a resource. Relationships are decoded
// separately so their order survives.
type wireResource struct {
	Type          string          `json:"type"`
	ID            json.RawMessage `json:"id,omitempty"`
	TempID        string          `json:"temp-id,omitempty"`
	Method        string          `json:"method,omitempty"`
	Attributes    Attrs           `json:"attributes,omitempty"`
	Relationships json.RawMessage `json:"relationships,omitempty"`
	Meta          json.RawMessage `json:"meta,omitempty"`
}

type wireLinkage struct {
	Type   string          `json:"type"`
	ID     json.RawMessage `json:"id,omitempty"`
	TempID string          `json:"temp-id,omitempty"`
	Method string          `json:"method,omitempty"`
}

type wireRelationship struct {
	Data json.RawMessage `json:"data"`
}

// UnmarshalJSON implements json.Unmarshaler for ResourceSpec.
func (r *ResourceSpec) UnmarshalJSON(data []byte) error {
	var w wireResource
	if err := decodeJSON(data, &w); err != nil {
		return err
	}
	key, err := jsonKey(w.ID)
	if err != nil {
		return err
	}
	id, err := identityOf(key, w.TempID)
	if err != nil {
		return fmt.Errorf("resource of type %q: %w", w.Type, err)
	}
	verb, err := ParseVerb(w.Method)
	if err != nil {
		return fmt.Errorf("resource %s: %w", ResourceRef{Type: w.Type, ID: id}, err)
	}
	rels, err := decodeRelationshipsJSON(w.Relationships)
	if err != nil {
		return fmt.Errorf("resource %s: %w", ResourceRef{Type: w.Type, ID: id}, err)
	}
	*r = ResourceSpec{
		Type:          w.Type,
		ID:            id,
		Verb:          verb,
		Attributes:    w.Attributes,
		Relationships: rels,
	}
	return nil
}

// decodeRelationshipsJSON walks the relationships object token by token so
// blocks come back in payload order.
func decodeRelationshipsJSON(raw json.RawMessage) ([]Relationship, error) {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errors.New("relationships must be an object")
	}

	var rels []Relationship
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("relationship name must be a string, got %v", tok)
		}
		var w wireRelationship
		if err := dec.Decode(&w); err != nil {
			return nil, fmt.Errorf("relationship %q: %w", name, err)
		}
		rel, err := decodeLinkagesJSON(name, w.Data)
		if err != nil {
			return nil, fmt.Errorf("relationship %q: %w", name, err)
		}
		rels = append(rels, rel)
	}
	return rels, nil
}

func decodeLinkagesJSON(name string, raw json.RawMessage) (Relationship, error) {
	rel := Relationship{Name: name}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return rel, nil
	}

	var wires []wireLinkage
	if trimmed[0] == '[' {
		rel.Many = true
		if err := decodeJSON(trimmed, &wires); err != nil {
			return rel, err
		}
	} else {
		var w wireLinkage
		if err := decodeJSON(trimmed, &w); err != nil {
			return rel, err
		}
		wires = []wireLinkage{w}
	}

	for i, w := range wires {
		key, err := jsonKey(w.ID)
		if err != nil {
			return rel, fmt.Errorf("data[%d]: %w", i, err)
		}
		l, err := linkageOf(w.Type, key, w.TempID, w.Method)
		if err != nil {
			return rel, fmt.Errorf("data[%d]: %w", i, err)
		}
		rel.Data = append(rel.Data, l)
	}
	return rel, nil
}

// jsonKey accepts string and numeric ids; both become string keys.
func jsonKey(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", fmt.Errorf("invalid id: %w", err)
		}
		return s, nil
	}
	if _, err := strconv.ParseInt(string(trimmed), 10, 64); err != nil {
		return "", fmt.Errorf("id must be a string or integer, got %s", trimmed)
	}
	return string(trimmed), nil
}

func identityOf(key, tempID string) (Identity, error) {
	switch {
	case key != "" && tempID != "":
		return Identity{}, fmt.Errorf("both id %q and temp-id %q given", key, tempID)
	case key != "":
		return Persisted(key), nil
	case tempID != "":
		return Temporary(tempID), nil
	}
	return Identity{}, nil
}

func linkageOf(typ, key, tempID, method string) (Linkage, error) {
	if typ == "" {
		return Linkage{}, errors.New("linkage is missing type")
	}
	id, err := identityOf(key, tempID)
	if err != nil {
		return Linkage{}, err
	}
	if id.IsZero() {
		return Linkage{}, fmt.Errorf("linkage of type %q has neither id nor temp-id", typ)
	}
	verb, err := ParseVerb(method)
	if err != nil {
		return Linkage{}, err
	}
	return Linkage{Type: typ, ID: id, Verb: verb}, nil
}

// yamlResource mirrors wireResource for YAML documents.
type yamlResource struct {
	Type          string    `yaml:"type"`
	ID            yaml.Node `yaml:"id"`
	TempID        string    `yaml:"temp-id"`
	Method        string    `yaml:"method"`
	Attributes    Attrs     `yaml:"attributes"`
	Relationships yaml.Node `yaml:"relationships"`
}

type yamlLinkage struct {
	Type   string    `yaml:"type"`
	ID     yaml.Node `yaml:"id"`
	TempID string    `yaml:"temp-id"`
	Method string    `yaml:"method"`
}

// UnmarshalYAML implements yaml.Unmarshaler for ResourceSpec.
func (r *ResourceSpec) UnmarshalYAML(node *yaml.Node) error {
	var w yamlResource
	if err := node.Decode(&w); err != nil {
		return err
	}
	key, err := yamlKey(&w.ID)
	if err != nil {
		return err
	}
	id, err := identityOf(key, w.TempID)
	if err != nil {
		return fmt.Errorf("line %d: resource of type %q: %w", node.Line, w.Type, err)
	}
	verb, err := ParseVerb(w.Method)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	rels, err := decodeRelationshipsYAML(&w.Relationships)
	if err != nil {
		return err
	}
	*r = ResourceSpec{
		Type:          w.Type,
		ID:            id,
		Verb:          verb,
		Attributes:    w.Attributes,
		Relationships: rels,
	}
	return nil
}

// decodeRelationshipsYAML reads the mapping node pairwise to keep order.
func decodeRelationshipsYAML(node *yaml.Node) ([]Relationship, error) {
	if node.Kind == 0 || node.Tag == "!!null" {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: relationships must be a mapping", node.Line)
	}

	var rels []Relationship
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		block := node.Content[i+1]
		rel := Relationship{Name: name}

		var data *yaml.Node
		if block.Kind == yaml.MappingNode {
			for j := 0; j+1 < len(block.Content); j += 2 {
				if block.Content[j].Value == "data" {
					data = block.Content[j+1]
				}
			}
		}
		if data != nil && data.Tag != "!!null" {
			var items []*yaml.Node
			if data.Kind == yaml.SequenceNode {
				rel.Many = true
				items = data.Content
			} else {
				items = []*yaml.Node{data}
			}
			for k, item := range items {
				var w yamlLinkage
				if err := item.Decode(&w); err != nil {
					return nil, fmt.Errorf("relationship %q data[%d]: %w", name, k, err)
				}
				key, err := yamlKey(&w.ID)
				if err != nil {
					return nil, fmt.Errorf("relationship %q data[%d]: %w", name, k, err)
				}
				l, err := linkageOf(w.Type, key, w.TempID, w.Method)
				if err != nil {
					return nil, fmt.Errorf("line %d: relationship %q data[%d]: %w", item.Line, name, k, err)
				}
				rel.Data = append(rel.Data, l)
			}
		}
		rels = append(rels, rel)
	}
	return rels, nil
}

func yamlKey(node *yaml.Node) (string, error) {
	if node.Kind == 0 || node.Tag == "!!null" {
		return "", nil
	}
	if node.Kind != yaml.ScalarNode {
		return "", fmt.Errorf("line %d: id must be a scalar", node.Line)
	}
	return node.Value, nil
}
