package ir

import (
	"fmt"
)

// IdentityKind discriminates the Identity union.
type IdentityKind uint8

const (
	// IdentityNone is the zero value: no id and no temp-id.
	IdentityNone IdentityKind = iota
	// IdentityPersisted carries an existing storage key.
	IdentityPersisted
	// IdentityTemporary carries a client-chosen temp-id, scoped to one request.
	IdentityTemporary
)

// Identity is either Persisted(key) or Temporary(token), never both.
//
// Construct with Persisted or Temporary; the zero value is IdentityNone.
type Identity struct {
	kind  IdentityKind
	value string
}

// Persisted returns the identity of an existing row.
func Persisted(key string) Identity {
	return Identity{kind: IdentityPersisted, value: key}
}

// Temporary returns the identity of a row the request will create.
func Temporary(token string) Identity {
	return Identity{kind: IdentityTemporary, value: token}
}

// Kind returns the union discriminator.
func (i Identity) Kind() IdentityKind { return i.kind }

// IsZero reports whether the identity carries neither form.
func (i Identity) IsZero() bool { return i.kind == IdentityNone }

// IsPersisted reports whether the identity names an existing row.
func (i Identity) IsPersisted() bool { return i.kind == IdentityPersisted }

// IsTemporary reports whether the identity is a temp-id.
func (i Identity) IsTemporary() bool { return i.kind == IdentityTemporary }

// Key returns the persisted key.
func (i Identity) Key() (string, bool) {
	if i.kind != IdentityPersisted {
		return "", false
	}
	return i.value, true
}

// Token returns the temp-id token.
func (i Identity) Token() (string, bool) {
	if i.kind != IdentityTemporary {
		return "", false
	}
	return i.value, true
}

// String renders the identity the way it appears on the wire,
// e.g. `id:5` or `temp-id:abc123`.
func (i Identity) String() string {
	switch i.kind {
	case IdentityPersisted:
		return "id:" + i.value
	case IdentityTemporary:
		return "temp-id:" + i.value
	default:
		return "none"
	}
}

// Verb is the operation a node performs on its row.
type Verb uint8

const (
	// VerbUnspecified means the payload omitted "method"; see DefaultVerb.
	VerbUnspecified Verb = iota
	VerbCreate
	VerbUpdate
	VerbDestroy
	VerbDisassociate
	VerbLink
)

var verbNames = [...]string{
	VerbUnspecified:  "",
	VerbCreate:       "create",
	VerbUpdate:       "update",
	VerbDestroy:      "destroy",
	VerbDisassociate: "disassociate",
	VerbLink:         "link",
}

// String returns the wire name of the verb.
func (v Verb) String() string {
	if int(v) < len(verbNames) {
		return verbNames[v]
	}
	return fmt.Sprintf("Verb(%d)", uint8(v))
}

// ParseVerb parses a wire verb name. The empty string parses to VerbUnspecified.
func ParseVerb(s string) (Verb, error) {
	for i, name := range verbNames {
		if name == s {
			return Verb(i), nil
		}
	}
	return VerbUnspecified, fmt.Errorf("unknown method %q (want create, update, destroy, disassociate or link)", s)
}

// MarshalText implements encoding.TextMarshaler.
func (v Verb) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Verb) UnmarshalText(text []byte) error {
	parsed, err := ParseVerb(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Mutates reports whether the verb writes attributes (create or update).
// Only mutating nodes are side-loaded in a persist reply.
func (v Verb) Mutates() bool {
	return v == VerbCreate || v == VerbUpdate
}

// Removes reports whether the verb breaks an association (destroy or disassociate).
func (v Verb) Removes() bool {
	return v == VerbDestroy || v == VerbDisassociate
}

// DefaultVerb resolves the effective verb of a node.
//
// An explicit verb always wins. Otherwise a temp-id (or missing identity)
// means create, a persisted identity carrying attributes or relationships
// means update, and a bare persisted reference uses bare, which defaults
// to link when unspecified.
func DefaultVerb(id Identity, explicit Verb, hasChanges bool, bare Verb) Verb {
	if explicit != VerbUnspecified {
		return explicit
	}
	if !id.IsPersisted() {
		return VerbCreate
	}
	if hasChanges {
		return VerbUpdate
	}
	if bare == VerbUnspecified {
		return VerbLink
	}
	return bare
}
