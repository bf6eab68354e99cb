package engine

import (
	"context"
	"errors"
	"maps"
	"strconv"

	"github.com/roach88/nestwrite/internal/ir"
)

// memStorage is an in-memory storage engine. Transactions work on a copy
// of the tables that replaces the original on commit.
type memStorage struct {
	data   memData
	begins int
	// fail, when set, may reject any write.
	fail func(op Op, entity, key string, attrs ir.Attrs) error
	// rolledBack counts Rollback calls that discarded a transaction.
	rolledBack int
	committed  int
}

type memData struct {
	rows  map[string]map[string]ir.Attrs
	next  map[string]int
	joins map[string][]map[string]string
}

func newMemStorage() *memStorage {
	return &memStorage{data: memData{
		rows:  map[string]map[string]ir.Attrs{},
		next:  map[string]int{},
		joins: map[string][]map[string]string{},
	}}
}

func (d memData) clone() memData {
	out := memData{
		rows:  map[string]map[string]ir.Attrs{},
		next:  maps.Clone(d.next),
		joins: map[string][]map[string]string{},
	}
	for entity, rows := range d.rows {
		out.rows[entity] = map[string]ir.Attrs{}
		for k, attrs := range rows {
			out.rows[entity][k] = attrs.Clone()
		}
	}
	for table, rows := range d.joins {
		for _, row := range rows {
			out.joins[table] = append(out.joins[table], maps.Clone(row))
		}
	}
	return out
}

// seed inserts a committed row and returns its key.
func (m *memStorage) seed(entity string, attrs ir.Attrs) string {
	m.data.next[entity]++
	key := strconv.Itoa(m.data.next[entity])
	if m.data.rows[entity] == nil {
		m.data.rows[entity] = map[string]ir.Attrs{}
	}
	m.data.rows[entity][key] = attrs.Clone()
	return key
}

func (m *memStorage) seedJoin(jt ir.JoinTable, owner, target string) {
	m.data.joins[jt.Table] = append(m.data.joins[jt.Table], map[string]string{jt.OwnerKey: owner, jt.TargetKey: target})
}

func (m *memStorage) count(entity string) int {
	return len(m.data.rows[entity])
}

func (m *memStorage) row(entity, key string) (ir.Attrs, bool) {
	attrs, ok := m.data.rows[entity][key]
	return attrs, ok
}

func (m *memStorage) joinCount(table string) int {
	return len(m.data.joins[table])
}

func (m *memStorage) Begin(ctx context.Context) (Tx, error) {
	m.begins++
	return &memTx{storage: m, data: m.data.clone()}, nil
}

type memTx struct {
	storage *memStorage
	data    memData
	done    bool
}

var errTxDone = errors.New("transaction already finished")

func (t *memTx) check(op Op, entity, key string, attrs ir.Attrs) error {
	if t.done {
		return errTxDone
	}
	if t.storage.fail != nil {
		return t.storage.fail(op, entity, key, attrs)
	}
	return nil
}

func (t *memTx) Insert(ctx context.Context, entity string, attrs ir.Attrs) (string, error) {
	if err := t.check(OpInsert, entity, "", attrs); err != nil {
		return "", err
	}
	t.data.next[entity]++
	key := strconv.Itoa(t.data.next[entity])
	if t.data.rows[entity] == nil {
		t.data.rows[entity] = map[string]ir.Attrs{}
	}
	t.data.rows[entity][key] = attrs.Clone()
	return key, nil
}

func (t *memTx) Update(ctx context.Context, entity, key string, attrs ir.Attrs) error {
	if err := t.check(OpUpdate, entity, key, attrs); err != nil {
		return err
	}
	row, ok := t.data.rows[entity][key]
	if !ok {
		return ir.NewValidationError("base", "record not found")
	}
	t.data.rows[entity][key] = row.Merge(attrs)
	return nil
}

func (t *memTx) SetForeignKey(ctx context.Context, entity, key string, columns ir.Attrs) error {
	if err := t.check(OpSetForeignKey, entity, key, columns); err != nil {
		return err
	}
	row, ok := t.data.rows[entity][key]
	if !ok {
		return ir.NewValidationError("base", "record not found")
	}
	t.data.rows[entity][key] = row.Merge(columns)
	return nil
}

func (t *memTx) Delete(ctx context.Context, entity, key string) error {
	if err := t.check(OpDelete, entity, key, nil); err != nil {
		return err
	}
	if _, ok := t.data.rows[entity][key]; !ok {
		return ir.NewValidationError("base", "record not found")
	}
	delete(t.data.rows[entity], key)
	return nil
}

func (t *memTx) ListJoinRows(ctx context.Context, jt ir.JoinTable, ownerKey string) ([]string, error) {
	if err := t.check(OpListJoin, jt.Table, ownerKey, nil); err != nil {
		return nil, err
	}
	var out []string
	for _, row := range t.data.joins[jt.Table] {
		if row[jt.OwnerKey] == ownerKey {
			out = append(out, row[jt.TargetKey])
		}
	}
	return out, nil
}

func (t *memTx) InsertJoinRow(ctx context.Context, jt ir.JoinTable, ownerKey, targetKey string) error {
	if err := t.check(OpInsertJoin, jt.Table, ownerKey, nil); err != nil {
		return err
	}
	t.data.joins[jt.Table] = append(t.data.joins[jt.Table], map[string]string{jt.OwnerKey: ownerKey, jt.TargetKey: targetKey})
	return nil
}

func (t *memTx) DeleteJoinRow(ctx context.Context, jt ir.JoinTable, ownerKey, targetKey string) error {
	if err := t.check(OpDeleteJoin, jt.Table, ownerKey, nil); err != nil {
		return err
	}
	rows := t.data.joins[jt.Table][:0]
	for _, row := range t.data.joins[jt.Table] {
		if row[jt.OwnerKey] != ownerKey || row[jt.TargetKey] != targetKey {
			rows = append(rows, row)
		}
	}
	t.data.joins[jt.Table] = rows
	return nil
}

func (t *memTx) Commit() error {
	if t.done {
		return errTxDone
	}
	t.done = true
	t.storage.data = t.data
	t.storage.committed++
	return nil
}

func (t *memTx) Rollback() error {
	if t.done {
		return errTxDone
	}
	t.done = true
	t.storage.rolledBack++
	return nil
}
