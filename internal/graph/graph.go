package graph

import (
	"github.com/roach88/nestwrite/internal/ir"
)

// PrimaryToken is the temp-id assigned to a primary resource submitted
// without any identity. It cannot be declared by a client fragment.
const PrimaryToken = "$primary"

// Handle addresses a node in the graph arena.
type Handle int

// Node is one resource operation.
type Node struct {
	Handle Handle
	// Type is the type named in the payload. For polymorphic targets it is
	// the discriminator, which Classify maps to Concrete.
	Type string
	// Concrete is the entity type whose schema governs the row. Set by Classify.
	Concrete   string
	ID         ir.Identity
	Verb       ir.Verb
	Attributes ir.Attrs
	Edges      []Edge
	// Fragment is false for persisted references with no fragment in the payload.
	Fragment bool

	explicit ir.Verb
	spec     *ir.ResourceSpec
}

// Ref returns the payload reference of the node.
func (n *Node) Ref() ir.ResourceRef {
	return ir.ResourceRef{Type: n.Type, ID: n.ID}
}

// TempID returns the client's temp-id, or "" for persisted nodes and the
// reserved primary token.
func (n *Node) TempID() string {
	token, ok := n.ID.Token()
	if !ok || token == PrimaryToken {
		return ""
	}
	return token
}

// Edge is one relationship instance from an owner to a target node.
type Edge struct {
	Name string
	From Handle
	To   Handle
	// Many records whether the payload gave the relationship as an array.
	Many bool
	// Schema is set by Classify.
	Schema *ir.RelationshipSchema
	// Discriminator is the value stored in the type column of a polymorphic
	// owning edge. Set by Classify.
	Discriminator string
}

// Cardinality returns the classified cardinality, or CardinalityUnknown
// before Classify has run.
func (e Edge) Cardinality() ir.Cardinality {
	if e.Schema == nil {
		return ir.CardinalityUnknown
	}
	return e.Schema.Cardinality
}

type nodeKey struct {
	typ string
	id  ir.Identity
}

// Graph is the operation graph of one persist request.
type Graph struct {
	Nodes []*Node
	Root  Handle

	index map[nodeKey]Handle
}

// Node returns the node for h.
func (g *Graph) Node(h Handle) *Node {
	return g.Nodes[h]
}

// RootNode returns the primary node.
func (g *Graph) RootNode() *Node {
	return g.Nodes[g.Root]
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.Nodes)
}

// Lookup finds the node for a payload reference.
func (g *Graph) Lookup(ref ir.ResourceRef) (*Node, bool) {
	h, ok := g.index[keyOf(ref.Type, ref.ID)]
	if !ok {
		return nil, false
	}
	return g.Nodes[h], true
}

// Edges returns every edge in node order.
func (g *Graph) Edges() []Edge {
	var out []Edge
	for _, n := range g.Nodes {
		out = append(out, n.Edges...)
	}
	return out
}

// Temp-ids are unique across types, so they index without the type.
func keyOf(typ string, id ir.Identity) nodeKey {
	if id.IsTemporary() {
		return nodeKey{id: id}
	}
	return nodeKey{typ: typ, id: id}
}
