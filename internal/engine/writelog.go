package engine

import (
	"context"
	"log/slog"
	"slices"

	"github.com/roach88/nestwrite/internal/ir"
)

// Op names a storage call.
type Op string

const (
	OpInsert        Op = "insert"
	OpUpdate        Op = "update"
	OpDelete        Op = "delete"
	OpSetForeignKey Op = "set_foreign_key"
	OpInsertJoin    Op = "insert_join"
	OpDeleteJoin    Op = "delete_join"
	OpListJoin      Op = "list_join"
	OpBegin         Op = "begin"
	OpCommit        Op = "commit"
)

// WriteEntry is one successful storage write.
type WriteEntry struct {
	Seq int64 `json:"seq"`
	Op  Op    `json:"op"`
	// Entity is the concrete entity type, or the join table for join ops.
	Entity string `json:"entity"`
	Key    string `json:"key"`
	// Target is the target key of a join row.
	Target string `json:"target,omitempty"`
}

// WriteLog lists the writes of one execution in sequence order.
type WriteLog []WriteEntry

// Of returns the entries with one of the given ops, or all entries when
// ops is empty.
func (l WriteLog) Of(ops ...Op) WriteLog {
	if len(ops) == 0 {
		return l
	}
	var out WriteLog
	for _, e := range l {
		if slices.Contains(ops, e.Op) {
			out = append(out, e)
		}
	}
	return out
}

// Entities returns the entity of each entry in order, collapsing runs of
// the same entity.
func (l WriteLog) Entities() []string {
	var out []string
	for _, e := range l {
		if len(out) == 0 || out[len(out)-1] != e.Entity {
			out = append(out, e.Entity)
		}
	}
	return out
}

// First returns the position of the first entry for entity with op, or -1.
func (l WriteLog) First(op Op, entity string) int {
	for i, e := range l {
		if e.Op == op && e.Entity == entity {
			return i
		}
	}
	return -1
}

// recordingTx stamps and records every successful write of the wrapped Tx.
type recordingTx struct {
	tx     Tx
	clock  SequenceClock
	logger *slog.Logger
	log    WriteLog
}

func (r *recordingTx) record(op Op, entity, key, target string) int64 {
	seq := r.clock.Next()
	r.log = append(r.log, WriteEntry{Seq: seq, Op: op, Entity: entity, Key: key, Target: target})
	r.logger.Debug("storage write", "seq", seq, "op", op, "entity", entity, "key", key, "target", target)
	return seq
}

func (r *recordingTx) insert(ctx context.Context, entity string, attrs ir.Attrs) (string, int64, error) {
	key, err := r.tx.Insert(ctx, entity, attrs)
	if err != nil {
		return "", 0, err
	}
	return key, r.record(OpInsert, entity, key, ""), nil
}

func (r *recordingTx) update(ctx context.Context, entity, key string, attrs ir.Attrs) (int64, error) {
	if err := r.tx.Update(ctx, entity, key, attrs); err != nil {
		return 0, err
	}
	return r.record(OpUpdate, entity, key, ""), nil
}

func (r *recordingTx) delete(ctx context.Context, entity, key string) error {
	if err := r.tx.Delete(ctx, entity, key); err != nil {
		return err
	}
	r.record(OpDelete, entity, key, "")
	return nil
}

func (r *recordingTx) setForeignKey(ctx context.Context, entity, key string, columns ir.Attrs) error {
	if err := r.tx.SetForeignKey(ctx, entity, key, columns); err != nil {
		return err
	}
	r.record(OpSetForeignKey, entity, key, "")
	return nil
}

func (r *recordingTx) ListJoinRows(ctx context.Context, jt ir.JoinTable, ownerKey string) ([]string, error) {
	return r.tx.ListJoinRows(ctx, jt, ownerKey)
}

func (r *recordingTx) InsertJoinRow(ctx context.Context, jt ir.JoinTable, ownerKey, targetKey string) error {
	if err := r.tx.InsertJoinRow(ctx, jt, ownerKey, targetKey); err != nil {
		return err
	}
	r.record(OpInsertJoin, jt.Table, ownerKey, targetKey)
	return nil
}

func (r *recordingTx) DeleteJoinRow(ctx context.Context, jt ir.JoinTable, ownerKey, targetKey string) error {
	if err := r.tx.DeleteJoinRow(ctx, jt, ownerKey, targetKey); err != nil {
		return err
	}
	r.record(OpDeleteJoin, jt.Table, ownerKey, targetKey)
	return nil
}
