package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/nestwrite/internal/ir"
	"github.com/roach88/nestwrite/internal/queryir"
)

// Compiler renders queryir statements to parameterized SQL.
//
// Values are always bound, never interpolated. Every SELECT carries an
// ORDER BY so reads are deterministic.
type Compiler struct {
	dialect Dialect
}

// NewCompiler returns a compiler for dialect.
func NewCompiler(d Dialect) *Compiler {
	return &Compiler{dialect: d}
}

// Dialect returns the compiler's dialect.
func (c *Compiler) Dialect() Dialect { return c.dialect }

// Compile validates stmt and renders it. Returns (sql, params, error).
func (c *Compiler) Compile(stmt queryir.Statement) (string, []any, error) {
	if err := queryir.Validate(stmt).Err(); err != nil {
		return "", nil, err
	}

	b := &builder{dialect: c.dialect}
	var err error
	switch s := stmt.(type) {
	case queryir.Insert:
		err = b.insert(s)
	case queryir.Update:
		err = b.update(s)
	case queryir.Delete:
		b.write("DELETE FROM ", b.quote(s.Table))
		err = b.where(s.Filter)
	case queryir.Select:
		err = b.selectRows(s)
	case queryir.Count:
		b.write("SELECT COUNT(*) FROM ", b.quote(s.From))
		err = b.where(s.Filter)
	default:
		err = fmt.Errorf("unsupported statement type: %T", stmt)
	}
	if err != nil {
		return "", nil, err
	}
	return b.sql.String(), b.params, nil
}

type builder struct {
	dialect Dialect
	sql     strings.Builder
	params  []any
}

func (b *builder) write(parts ...string) {
	for _, p := range parts {
		b.sql.WriteString(p)
	}
}

func (b *builder) quote(ident string) string {
	return b.dialect.Quote(ident)
}

// bind appends a parameter and returns its placeholder.
func (b *builder) bind(v ir.Value) (string, error) {
	param, err := ValueToParam(v)
	if err != nil {
		return "", err
	}
	b.params = append(b.params, param)
	return b.dialect.Placeholder(len(b.params)), nil
}

func (b *builder) insert(s queryir.Insert) error {
	b.write("INSERT INTO ", b.quote(s.Table))
	if len(s.Columns) == 0 {
		b.write(" DEFAULT VALUES")
	} else {
		cols := make([]string, len(s.Columns))
		holders := make([]string, len(s.Values))
		for i, col := range s.Columns {
			cols[i] = b.quote(col)
			ph, err := b.bind(s.Values[i])
			if err != nil {
				return fmt.Errorf("insert %s.%s: %w", s.Table, col, err)
			}
			holders[i] = ph
		}
		b.write(" (", strings.Join(cols, ", "), ") VALUES (", strings.Join(holders, ", "), ")")
	}
	if s.IgnoreConflict {
		b.write(" ON CONFLICT DO NOTHING")
	}
	if s.Returning != "" {
		b.write(" RETURNING ", b.quote(s.Returning))
	}
	return nil
}

func (b *builder) update(s queryir.Update) error {
	sets := make([]string, len(s.Columns))
	for i, col := range s.Columns {
		ph, err := b.bind(s.Values[i])
		if err != nil {
			return fmt.Errorf("update %s.%s: %w", s.Table, col, err)
		}
		sets[i] = b.quote(col) + " = " + ph
	}
	b.write("UPDATE ", b.quote(s.Table), " SET ", strings.Join(sets, ", "))
	return b.where(s.Filter)
}

func (b *builder) selectRows(s queryir.Select) error {
	cols := make([]string, len(s.Columns))
	for i, col := range s.Columns {
		cols[i] = b.quote(col)
	}
	b.write("SELECT ", strings.Join(cols, ", "), " FROM ", b.quote(s.From))
	if err := b.where(s.Filter); err != nil {
		return err
	}

	order := s.OrderBy
	if len(order) == 0 {
		order = s.Columns
	}
	keys := make([]string, len(order))
	for i, col := range order {
		keys[i] = b.quote(col) + " ASC"
	}
	b.write(" ORDER BY ", strings.Join(keys, ", "))
	return nil
}

func (b *builder) where(p queryir.Predicate) error {
	if p == nil {
		return nil
	}
	b.write(" WHERE ")
	return b.predicate(p)
}

func (b *builder) predicate(p queryir.Predicate) error {
	switch pred := p.(type) {
	case queryir.Equals:
		ph, err := b.bind(pred.Value)
		if err != nil {
			return fmt.Errorf("filter %s: %w", pred.Column, err)
		}
		b.write(b.quote(pred.Column), " = ", ph)
	case queryir.IsNull:
		b.write(b.quote(pred.Column), " IS NULL")
	case queryir.And:
		if len(pred.Predicates) == 0 {
			b.write("1 = 1")
			return nil
		}
		for i, sub := range pred.Predicates {
			if i > 0 {
				b.write(" AND ")
			}
			if err := b.predicate(sub); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unsupported predicate type: %T", p)
	}
	return nil
}

// ValueToParam converts a scalar ir.Value to a database/sql parameter.
// Lists and objects have no column representation.
func ValueToParam(v ir.Value) (any, error) {
	switch val := v.(type) {
	case nil, ir.Null:
		return nil, nil
	case ir.String:
		return string(val), nil
	case ir.Int:
		return int64(val), nil
	case ir.Float:
		return float64(val), nil
	case ir.Bool:
		return bool(val), nil
	case ir.List:
		return nil, fmt.Errorf("list values cannot be bound as SQL parameters")
	case ir.Attrs:
		return nil, fmt.Errorf("object values cannot be bound as SQL parameters")
	default:
		return nil, fmt.Errorf("unsupported value type for SQL parameter: %T", v)
	}
}
