package graph

import (
	"fmt"

	"github.com/roach88/nestwrite/internal/ir"
)

// BuildPayload builds the graph of a decoded payload.
func BuildPayload(p ir.Payload, opts ...Option) (*Graph, error) {
	return Build(p.Data, p.Included, opts...)
}

// Build resolves the primary resource and its included fragments into an
// operation graph. Relationship blocks are walked at every nesting level,
// each fragment exactly once. Included fragments no relationship reaches
// are ignored.
func Build(primary ir.ResourceSpec, included []ir.ResourceSpec, opts ...Option) (*Graph, error) {
	o := buildOptions{bareVerb: ir.VerbLink}
	for _, opt := range opts {
		opt(&o)
	}

	b := &builder{
		opts:      o,
		graph:     &Graph{index: make(map[nodeKey]Handle)},
		fragments: make(map[nodeKey]*ir.ResourceSpec),
	}

	if primary.Type == "" {
		return nil, &BuildError{Code: ErrCodeInvalidPayload, Message: "primary resource has no type"}
	}
	if primary.ID.IsZero() {
		primary.ID = ir.Temporary(PrimaryToken)
	}
	if err := b.declare(&primary); err != nil {
		return nil, err
	}
	for i := range included {
		frag := &included[i]
		if frag.Type == "" {
			return nil, &BuildError{Code: ErrCodeInvalidPayload, Message: fmt.Sprintf("included fragment %d has no type", i)}
		}
		if frag.ID.IsZero() {
			return nil, &BuildError{
				Code:     ErrCodeMissingIdentity,
				Message:  "included fragment has neither id nor temp-id",
				Resource: frag.Ref(),
			}
		}
		if token, _ := frag.ID.Token(); token == PrimaryToken {
			return nil, &BuildError{
				Code:     ErrCodeDuplicateTempID,
				Message:  fmt.Sprintf("temp-id %q is reserved", PrimaryToken),
				Resource: frag.Ref(),
			}
		}
		if err := b.declare(frag); err != nil {
			return nil, err
		}
	}

	root := b.add(primary.Type, primary.ID, &primary)
	b.graph.Root = root.Handle

	for len(b.queue) > 0 {
		n := b.queue[0]
		b.queue = b.queue[1:]
		if err := b.walk(n); err != nil {
			return nil, err
		}
	}

	if err := b.finalize(); err != nil {
		return nil, err
	}
	return b.graph, nil
}

type builder struct {
	opts      buildOptions
	graph     *Graph
	fragments map[nodeKey]*ir.ResourceSpec
	queue     []*Node
}

func (b *builder) declare(frag *ir.ResourceSpec) error {
	key := keyOf(frag.Type, frag.ID)
	if _, dup := b.fragments[key]; dup {
		if frag.ID.IsTemporary() {
			token, _ := frag.ID.Token()
			return &BuildError{
				Code:     ErrCodeDuplicateTempID,
				Message:  fmt.Sprintf("temp-id %q is declared more than once", token),
				Resource: frag.Ref(),
			}
		}
		return &BuildError{
			Code:     ErrCodeInvalidPayload,
			Message:  "resource is included more than once",
			Resource: frag.Ref(),
		}
	}
	b.fragments[key] = frag
	return nil
}

// add appends a node; frag is nil for bare persisted references.
func (b *builder) add(typ string, id ir.Identity, frag *ir.ResourceSpec) *Node {
	n := &Node{
		Handle:   Handle(len(b.graph.Nodes)),
		Type:     typ,
		ID:       id,
		Fragment: frag != nil,
		spec:     frag,
	}
	if frag != nil {
		n.Attributes = frag.Attributes.Clone()
		n.explicit = frag.Verb
		b.queue = append(b.queue, n)
	}
	b.graph.Nodes = append(b.graph.Nodes, n)
	b.graph.index[keyOf(typ, id)] = n.Handle
	return n
}

func (b *builder) walk(n *Node) error {
	for _, rel := range n.spec.Relationships {
		for _, link := range rel.Data {
			target, err := b.resolve(n, rel.Name, link)
			if err != nil {
				return err
			}
			n.Edges = append(n.Edges, Edge{
				Name: rel.Name,
				From: n.Handle,
				To:   target.Handle,
				Many: rel.Many,
			})
		}
	}
	return nil
}

func (b *builder) resolve(owner *Node, relName string, link ir.Linkage) (*Node, error) {
	key := keyOf(link.Type, link.ID)

	if h, ok := b.graph.index[key]; ok {
		target := b.graph.Nodes[h]
		if target.Type != link.Type {
			return nil, unresolved(owner, relName, link, fmt.Sprintf("temp-id is declared with type %q", target.Type))
		}
		if err := b.mergeVerb(target, link.Verb); err != nil {
			return nil, err
		}
		return target, nil
	}

	frag, ok := b.fragments[key]
	switch {
	case ok && frag.Type != link.Type:
		return nil, unresolved(owner, relName, link, fmt.Sprintf("temp-id is declared with type %q", frag.Type))
	case !ok && link.ID.IsTemporary():
		return nil, unresolved(owner, relName, link, "no included fragment declares this temp-id")
	case !ok && b.opts.strict:
		return nil, unresolved(owner, relName, link, "no included fragment for this resource")
	}

	target := b.add(link.Type, link.ID, frag)
	if err := b.mergeVerb(target, link.Verb); err != nil {
		return nil, err
	}
	return target, nil
}

func (b *builder) mergeVerb(n *Node, v ir.Verb) error {
	if v == ir.VerbUnspecified {
		return nil
	}
	if n.explicit != ir.VerbUnspecified && n.explicit != v {
		return &BuildError{
			Code:     ErrCodeConflictingVerb,
			Message:  fmt.Sprintf("method %s conflicts with method %s", v, n.explicit),
			Resource: n.Ref(),
		}
	}
	n.explicit = v
	return nil
}

func (b *builder) finalize() error {
	for _, n := range b.graph.Nodes {
		hasChanges := n.spec != nil && n.spec.HasChanges()
		n.Verb = ir.DefaultVerb(n.ID, n.explicit, hasChanges, b.opts.bareVerb)

		switch {
		case n.ID.IsTemporary() && n.Verb != ir.VerbCreate:
			return &BuildError{
				Code:     ErrCodeMissingIdentity,
				Message:  fmt.Sprintf("method %s requires a persisted id", n.Verb),
				Resource: n.Ref(),
			}
		case n.ID.IsPersisted() && n.Verb == ir.VerbCreate:
			return &BuildError{
				Code:     ErrCodeInvalidPayload,
				Message:  "method create cannot carry a persisted id",
				Resource: n.Ref(),
			}
		case n.Handle == b.graph.Root && n.Verb == ir.VerbDisassociate:
			return &BuildError{
				Code:     ErrCodeInvalidPayload,
				Message:  "the primary resource cannot be disassociated",
				Resource: n.Ref(),
			}
		}
	}
	return nil
}

func unresolved(owner *Node, relName string, link ir.Linkage, reason string) *BuildError {
	return &BuildError{
		Code:     ErrCodeUnresolvedReference,
		Message:  fmt.Sprintf("%s.%s references %s: %s", owner.Ref(), relName, link.Ref(), reason),
		Resource: link.Ref(),
	}
}
