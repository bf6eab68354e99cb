package engine

import (
	"slices"

	"github.com/roach88/nestwrite/internal/graph"
	"github.com/roach88/nestwrite/internal/ir"
)

// Assemble reads the reply from an executed graph: the root's final state,
// and every other node that was created or updated, in write order. Linked,
// disassociated and destroyed nodes are never side-loaded.
func Assemble(g *graph.Graph, x *Execution) (*ir.MutatedIdentity, []ir.MutatedIdentity) {
	primary := mutated(g.RootNode(), x)

	var nodes []*graph.Node
	for _, n := range g.Nodes {
		if n.Handle != g.Root && n.Verb.Mutates() {
			nodes = append(nodes, n)
		}
	}
	slices.SortStableFunc(nodes, func(a, b *graph.Node) int {
		return int(x.WriteSeq(a.Handle) - x.WriteSeq(b.Handle))
	})

	sideloaded := make([]ir.MutatedIdentity, len(nodes))
	for i, n := range nodes {
		sideloaded[i] = *mutated(n, x)
	}
	return primary, sideloaded
}

func mutated(n *graph.Node, x *Execution) *ir.MutatedIdentity {
	attrs := ir.Attrs{}
	if n.Verb.Mutates() {
		attrs = n.Attributes.Merge(x.Injected(n.Handle))
	}
	return &ir.MutatedIdentity{
		Type:       n.Type,
		ID:         x.Key(n.Handle),
		TempID:     n.TempID(),
		Verb:       n.Verb,
		Attributes: attrs,
	}
}
