package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/roach88/nestwrite/internal/graph"
	"github.com/roach88/nestwrite/internal/ir"
)

type runState uint8

const (
	stateUnvisited runState = iota
	stateResolving          // owning prerequisites in progress, row not written
	stateWritten            // row written, dependents in progress
	stateDone
)

// nodeRun is the execution state of one node.
type nodeRun struct {
	state runState
	key   string
	// pending holds key columns to write together with the row.
	pending ir.Attrs
	// injected holds key columns written for the row so far.
	injected ir.Attrs
	// seq stamps the row's own insert or update; zero otherwise.
	seq int64
}

// Execution is the final state of one graph walk.
type Execution struct {
	Writes     WriteLog
	Reconciled []ReconcileResult

	runs []nodeRun
}

// Key returns the storage key of a node after the walk.
func (x *Execution) Key(h graph.Handle) string {
	return x.runs[h].key
}

// Injected returns the key columns written for a node.
func (x *Execution) Injected(h graph.Handle) ir.Attrs {
	return x.runs[h].injected
}

// WriteSeq returns the sequence number of a node's insert or update, or 0.
func (x *Execution) WriteSeq(h graph.Handle) int64 {
	return x.runs[h].seq
}

type throughGroup struct {
	schema *ir.RelationshipSchema
	edges  []graph.Edge
}

type deferredReconcile struct {
	owner graph.Handle
	group throughGroup
}

type executor struct {
	g        *graph.Graph
	tx       *recordingTx
	logger   *slog.Logger
	runs     []nodeRun
	deferred []deferredReconcile
	results  []ReconcileResult
}

// execute walks g from the root, writing through tx.
func execute(ctx context.Context, g *graph.Graph, tx *recordingTx, logger *slog.Logger) (*Execution, error) {
	x := &executor{
		g:      g,
		tx:     tx,
		logger: logger,
		runs:   make([]nodeRun, g.Len()),
	}
	for _, n := range g.Nodes {
		if key, ok := n.ID.Key(); ok {
			x.runs[n.Handle].key = key
		}
	}

	if err := x.visit(ctx, g.Root); err != nil {
		return nil, err
	}
	// Through relations whose targets were mid-write when their owner got
	// to them.
	for _, d := range x.deferred {
		if err := x.reconcile(ctx, d.owner, d.group); err != nil {
			return nil, err
		}
	}

	return &Execution{Writes: tx.log, Reconciled: x.results, runs: x.runs}, nil
}

func (x *executor) visit(ctx context.Context, h graph.Handle) error {
	r := &x.runs[h]
	if r.state != stateUnvisited {
		return nil
	}
	n := x.g.Node(h)
	if n.Verb == ir.VerbDestroy {
		return x.destroy(ctx, n)
	}
	r.state = stateResolving

	var after []graph.Handle
	for _, e := range n.Edges {
		if e.Cardinality() != ir.ToOneOwning {
			continue
		}
		t := x.g.Node(e.To)
		switch {
		case t.Verb.Removes():
			x.injectOwning(r, e, ir.Null{})
			after = append(after, t.Handle)
		case t.Verb == ir.VerbCreate:
			if x.runs[t.Handle].state == stateResolving {
				return &DependencyCycleError{Path: []ir.ResourceRef{n.Ref(), t.Ref(), n.Ref()}}
			}
			if err := x.visit(ctx, t.Handle); err != nil {
				return err
			}
			x.injectOwning(r, e, ir.String(x.runs[t.Handle].key))
		default:
			// Persisted targets already have a key; writing them later keeps
			// soft cycles through existing rows from blocking the walk.
			x.injectOwning(r, e, ir.String(x.runs[t.Handle].key))
			after = append(after, t.Handle)
		}
	}

	if err := x.write(ctx, n, r); err != nil {
		return err
	}
	r.state = stateWritten

	for _, t := range after {
		if err := x.visit(ctx, t); err != nil {
			return err
		}
	}
	if err := x.owned(ctx, n); err != nil {
		return err
	}
	if err := x.through(ctx, n); err != nil {
		return err
	}
	r.state = stateDone
	return nil
}

func (x *executor) injectOwning(r *nodeRun, e graph.Edge, v ir.Value) {
	if r.pending == nil {
		r.pending = ir.Attrs{}
	}
	r.pending[e.Schema.ForeignKey] = v
	if e.Schema.Polymorphic {
		if ir.IsNull(v) {
			r.pending[e.Schema.TypeColumn] = ir.Null{}
		} else {
			r.pending[e.Schema.TypeColumn] = ir.String(e.Discriminator)
		}
	}
}

// write persists the node's own row by verb.
func (x *executor) write(ctx context.Context, n *graph.Node, r *nodeRun) error {
	var err error
	switch n.Verb {
	case ir.VerbCreate:
		r.key, r.seq, err = x.tx.insert(ctx, n.Concrete, n.Attributes.Merge(r.pending))
		if err != nil {
			return classify(OpInsert, n.Ref(), err)
		}
	case ir.VerbUpdate:
		r.seq, err = x.tx.update(ctx, n.Concrete, r.key, n.Attributes.Merge(r.pending))
		if err != nil {
			return classify(OpUpdate, n.Ref(), err)
		}
	default:
		if len(r.pending) > 0 {
			if err := x.tx.setForeignKey(ctx, n.Concrete, r.key, r.pending); err != nil {
				return classify(OpSetForeignKey, n.Ref(), err)
			}
		}
	}
	x.logger.Debug("node written", "node", n.Ref().String(), "verb", n.Verb.String(), "key", r.key)

	if len(r.pending) > 0 {
		r.injected = r.injected.Merge(r.pending)
	}
	r.pending = nil
	return nil
}

// owned writes the targets of n's owned edges with n's key injected.
func (x *executor) owned(ctx context.Context, n *graph.Node) error {
	key := x.runs[n.Handle].key
	for _, e := range n.Edges {
		if !e.Cardinality().Owned() {
			continue
		}
		t := x.g.Node(e.To)
		switch t.Verb {
		case ir.VerbDestroy:
			if err := x.visit(ctx, t.Handle); err != nil {
				return err
			}
		case ir.VerbDisassociate:
			if err := x.assignOwned(ctx, e, t, ir.Null{}); err != nil {
				return err
			}
		default:
			if err := x.assignOwned(ctx, e, t, ir.String(key)); err != nil {
				return err
			}
		}
	}
	return nil
}

// assignOwned sets the target's foreign key to v, folding it into the
// target's own write when that has not happened yet.
func (x *executor) assignOwned(ctx context.Context, e graph.Edge, t *graph.Node, v ir.Value) error {
	tr := &x.runs[t.Handle]
	column := e.Schema.ForeignKey

	switch tr.state {
	case stateUnvisited:
		tr.pending = tr.pending.Merge(ir.Attrs{column: v})
		return x.visit(ctx, t.Handle)
	case stateResolving:
		tr.pending = tr.pending.Merge(ir.Attrs{column: v})
		return nil
	default:
		cols := ir.Attrs{column: v}
		if err := x.tx.setForeignKey(ctx, t.Concrete, tr.key, cols); err != nil {
			return classify(OpSetForeignKey, t.Ref(), err)
		}
		tr.injected = tr.injected.Merge(cols)
		return nil
	}
}

// through reconciles each to-many-through relation of n once, after every
// surviving target has a key. Destroyed targets are deleted afterwards.
func (x *executor) through(ctx context.Context, n *graph.Node) error {
	for _, group := range throughGroups(n) {
		for _, e := range group.edges {
			if x.g.Node(e.To).Verb == ir.VerbDestroy {
				continue
			}
			if err := x.visit(ctx, e.To); err != nil {
				return err
			}
		}

		if x.ready(group) {
			if err := x.reconcile(ctx, n.Handle, group); err != nil {
				return err
			}
		} else {
			x.deferred = append(x.deferred, deferredReconcile{owner: n.Handle, group: group})
		}

		for _, e := range group.edges {
			if x.g.Node(e.To).Verb != ir.VerbDestroy {
				continue
			}
			if err := x.visit(ctx, e.To); err != nil {
				return err
			}
		}
	}
	return nil
}

func (x *executor) ready(group throughGroup) bool {
	for _, e := range group.edges {
		if x.runs[e.To].key == "" {
			return false
		}
	}
	return true
}

func (x *executor) reconcile(ctx context.Context, owner graph.Handle, group throughGroup) error {
	entries := make([]JoinEntry, len(group.edges))
	for i, e := range group.edges {
		entries[i] = JoinEntry{TargetKey: x.runs[e.To].key, Verb: x.g.Node(e.To).Verb}
	}

	n := x.g.Node(owner)
	result, err := Reconcile(ctx, x.tx, *group.schema.Through, x.runs[owner].key, entries)
	if err != nil {
		op := OpInsertJoin
		var re *ReconcileError
		if errors.As(err, &re) {
			op = re.Op
		}
		return classify(op, n.Ref(), err)
	}
	x.logger.Debug("join rows reconciled",
		"node", n.Ref().String(),
		"table", result.Table,
		"inserted", len(result.Inserted),
		"removed", len(result.Removed),
		"retained", len(result.Retained))
	x.results = append(x.results, result)
	return nil
}

// destroy deletes a persisted row. Its owned and through children are
// handled first so nothing the payload mentions still points at it;
// owning targets are handled after the delete.
func (x *executor) destroy(ctx context.Context, n *graph.Node) error {
	r := &x.runs[n.Handle]
	r.state = stateResolving

	var after []graph.Handle
	for _, e := range n.Edges {
		switch {
		case e.Cardinality() == ir.ToOneOwning:
			after = append(after, e.To)
		case e.Cardinality().Owned():
			t := x.g.Node(e.To)
			if t.Verb == ir.VerbDisassociate {
				if err := x.assignOwned(ctx, e, t, ir.Null{}); err != nil {
					return err
				}
				continue
			}
			if err := x.visit(ctx, t.Handle); err != nil {
				return err
			}
		}
	}
	if err := x.through(ctx, n); err != nil {
		return err
	}

	if err := x.tx.delete(ctx, n.Concrete, r.key); err != nil {
		return classify(OpDelete, n.Ref(), err)
	}
	x.logger.Debug("node destroyed", "node", n.Ref().String(), "key", r.key)
	r.state = stateWritten

	for _, t := range after {
		if err := x.visit(ctx, t); err != nil {
			return err
		}
	}
	r.state = stateDone
	return nil
}

// throughGroups collects n's to-many-through edges per relationship, in
// order of first appearance.
func throughGroups(n *graph.Node) []throughGroup {
	var groups []throughGroup
	index := map[string]int{}
	for _, e := range n.Edges {
		if e.Cardinality() != ir.ToManyThrough {
			continue
		}
		i, ok := index[e.Name]
		if !ok {
			i = len(groups)
			index[e.Name] = i
			groups = append(groups, throughGroup{schema: e.Schema})
		}
		groups[i].edges = append(groups[i].edges, e)
	}
	return groups
}
