package engine

import (
	"context"
	"fmt"

	"github.com/roach88/nestwrite/internal/ir"
)

// JoinRows is the part of Tx the reconciler uses.
type JoinRows interface {
	ListJoinRows(ctx context.Context, jt ir.JoinTable, ownerKey string) ([]string, error)
	InsertJoinRow(ctx context.Context, jt ir.JoinTable, ownerKey, targetKey string) error
	DeleteJoinRow(ctx context.Context, jt ir.JoinTable, ownerKey, targetKey string) error
}

// JoinEntry is one payload entry of a to-many-through relationship.
type JoinEntry struct {
	TargetKey string
	Verb      ir.Verb
}

// ReconcileResult reports what one reconciliation did. Pairs are target keys.
type ReconcileResult struct {
	Table    string   `json:"table"`
	Owner    string   `json:"owner"`
	Inserted []string `json:"inserted,omitempty"`
	Removed  []string `json:"removed,omitempty"`
	Retained []string `json:"retained,omitempty"`
}

// ReconcileError is a failed join-row call. Op is OpListJoin, OpInsertJoin
// or OpDeleteJoin.
type ReconcileError struct {
	Op    Op
	Table string
	Owner string
	Err   error
}

func (e *ReconcileError) Error() string {
	return fmt.Sprintf("%s %s rows for %s: %v", e.Op, e.Table, e.Owner, e.Err)
}

func (e *ReconcileError) Unwrap() error {
	return e.Err
}

// Reconcile brings the join rows of owner in line with entries.
//
// Only targets named in entries are touched. create, update and link
// ensure the pair exists; disassociate and destroy remove it if present.
// When a target appears more than once the last entry wins. No pair is
// inserted twice, so the table never holds duplicate pairs.
func Reconcile(ctx context.Context, rows JoinRows, jt ir.JoinTable, ownerKey string, entries []JoinEntry) (ReconcileResult, error) {
	result := ReconcileResult{Table: jt.Table, Owner: ownerKey}

	current, err := rows.ListJoinRows(ctx, jt, ownerKey)
	if err != nil {
		return result, &ReconcileError{Op: OpListJoin, Table: jt.Table, Owner: ownerKey, Err: err}
	}
	present := make(map[string]bool, len(current))
	for _, k := range current {
		present[k] = true
	}

	// Last entry per target wins; first appearance fixes the order.
	var order []string
	desired := make(map[string]ir.Verb, len(entries))
	for _, e := range entries {
		if _, seen := desired[e.TargetKey]; !seen {
			order = append(order, e.TargetKey)
		}
		desired[e.TargetKey] = e.Verb
	}

	for _, target := range order {
		if desired[target].Removes() {
			if !present[target] {
				continue
			}
			if err := rows.DeleteJoinRow(ctx, jt, ownerKey, target); err != nil {
				return result, &ReconcileError{Op: OpDeleteJoin, Table: jt.Table, Owner: ownerKey, Err: err}
			}
			delete(present, target)
			result.Removed = append(result.Removed, target)
			continue
		}

		if present[target] {
			result.Retained = append(result.Retained, target)
			continue
		}
		if err := rows.InsertJoinRow(ctx, jt, ownerKey, target); err != nil {
			return result, &ReconcileError{Op: OpInsertJoin, Table: jt.Table, Owner: ownerKey, Err: err}
		}
		present[target] = true
		result.Inserted = append(result.Inserted, target)
	}
	return result, nil
}
