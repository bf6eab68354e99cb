package graph

import (
	"fmt"

	"github.com/roach88/nestwrite/internal/ir"
)

// Classify annotates every edge with its relationship schema and resolves
// each node's concrete entity type. Nodes are classified in handle order;
// a node is always created by an edge of an earlier node, so its concrete
// type is known before its own edges are looked up.
func Classify(g *Graph, reg *ir.Registry) error {
	root := g.RootNode()
	if _, ok := reg.Entity(root.Type); !ok {
		return &ClassificationError{
			Code:     ErrCodeUnknownEntityType,
			Message:  fmt.Sprintf("unknown entity type %q", root.Type),
			Resource: root.Ref(),
		}
	}
	root.Concrete = root.Type

	for _, n := range g.Nodes {
		entity, ok := reg.Entity(n.Concrete)
		if !ok {
			return &ClassificationError{
				Code:     ErrCodeUnknownEntityType,
				Message:  fmt.Sprintf("unknown entity type %q", n.Type),
				Resource: n.Ref(),
			}
		}
		for i := range n.Edges {
			if err := classifyEdge(g, reg, n, entity, &n.Edges[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

func classifyEdge(g *Graph, reg *ir.Registry, owner *Node, entity *ir.EntitySchema, e *Edge) error {
	fail := func(code ClassificationErrorCode, format string, args ...any) error {
		return &ClassificationError{
			Code:         code,
			Message:      fmt.Sprintf(format, args...),
			Resource:     owner.Ref(),
			Relationship: e.Name,
		}
	}

	rel, ok := entity.Relationship(e.Name)
	if !ok {
		return fail(ErrCodeUnknownRelationship, "%s has no relationship %q", entity.Name, e.Name)
	}
	if e.Many != rel.Cardinality.ToMany() {
		shape := "a single resource"
		if e.Many {
			shape = "an array"
		}
		return fail(ErrCodeCardinalityMismatch, "%s relationship given %s", rel.Cardinality, shape)
	}

	target := g.Node(e.To)
	concrete, ok := rel.Resolve(target.Type)
	if !ok {
		if rel.Polymorphic {
			return fail(ErrCodeUnknownPolymorphicType, "type %q is not one of %v", target.Type, rel.Discriminators())
		}
		return fail(ErrCodeTypeMismatch, "type %q is not %q", target.Type, rel.Target)
	}
	if _, ok := reg.Entity(concrete); !ok {
		return fail(ErrCodeUnknownEntityType, "unknown entity type %q", concrete)
	}
	if target.Concrete != "" && target.Concrete != concrete {
		return fail(ErrCodeTypeMismatch, "%s is already classified as %q, not %q", target.Ref(), target.Concrete, concrete)
	}

	target.Concrete = concrete
	e.Schema = rel
	if rel.Polymorphic {
		e.Discriminator = target.Type
	}
	return nil
}
