package engine

import (
	"fmt"
	"slices"

	"github.com/roach88/nestwrite/internal/graph"
	"github.com/roach88/nestwrite/internal/ir"
)

// Plan is the hard dependency relation between the nodes a request
// creates. Only rows that do not exist yet can block one another: a
// persisted row always has a key to hand out.
type Plan struct {
	deps  map[graph.Handle][]graph.Handle
	order []graph.Handle
}

// DependsOn returns the created nodes that must be written before h.
func (p *Plan) DependsOn(h graph.Handle) []graph.Handle {
	return p.deps[h]
}

// Order returns the created nodes in an order satisfying every dependency.
func (p *Plan) Order() []graph.Handle {
	return p.order
}

// BuildPlan checks a classified graph before any I/O. It fails with
// GraphTooLargeError when the graph exceeds maxNodes (<= 0 disables the
// check) and with DependencyCycleError when created nodes depend on each
// other in a cycle.
//
// A to-one-owning edge makes the owner depend on its target; an owned edge
// makes the target depend on the owner. many-to-many edges add nothing:
// join rows are written after both endpoints.
func BuildPlan(g *graph.Graph, maxNodes int) (*Plan, error) {
	if err := checkNodeQuota(g.Len(), maxNodes); err != nil {
		return nil, err
	}

	p := &Plan{deps: make(map[graph.Handle][]graph.Handle)}
	addDep := func(dependent, prerequisite graph.Handle) {
		if !slices.Contains(p.deps[dependent], prerequisite) {
			p.deps[dependent] = append(p.deps[dependent], prerequisite)
		}
	}

	for _, n := range g.Nodes {
		for _, e := range n.Edges {
			if e.Schema == nil {
				return nil, fmt.Errorf("plan: edge %s.%s is not classified", n.Ref(), e.Name)
			}
			target := g.Node(e.To)
			if n.Verb != ir.VerbCreate || target.Verb != ir.VerbCreate {
				continue
			}
			switch {
			case e.Cardinality() == ir.ToOneOwning:
				addDep(n.Handle, target.Handle)
			case e.Cardinality().Owned():
				addDep(target.Handle, n.Handle)
			}
		}
	}

	if err := p.sort(g); err != nil {
		return nil, err
	}
	return p, nil
}

const (
	white = iota // unvisited
	gray         // in progress
	black        // finished
)

// sort orders created nodes depth-first, prerequisites first, tracking the
// in-progress path so a back edge yields the cycle.
func (p *Plan) sort(g *graph.Graph) error {
	color := make(map[graph.Handle]int)
	var path []graph.Handle

	var visit func(h graph.Handle) error
	visit = func(h graph.Handle) error {
		color[h] = gray
		path = append(path, h)
		for _, dep := range p.deps[h] {
			switch color[dep] {
			case gray:
				start := slices.Index(path, dep)
				cycle := append(slices.Clone(path[start:]), dep)
				refs := make([]ir.ResourceRef, len(cycle))
				for i, c := range cycle {
					refs[i] = g.Node(c).Ref()
				}
				return &DependencyCycleError{Path: refs}
			case white:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		path = path[:len(path)-1]
		color[h] = black
		p.order = append(p.order, h)
		return nil
	}

	for _, n := range g.Nodes {
		if n.Verb == ir.VerbCreate && color[n.Handle] == white {
			if err := visit(n.Handle); err != nil {
				return err
			}
		}
	}
	return nil
}
