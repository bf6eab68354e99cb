package store

import (
	"fmt"
	"strconv"

	"github.com/roach88/nestwrite/internal/ir"
)

// keyValue renders a row key as a bind value. Keys are integer ids; any
// other string is passed through and fails to match.
func keyValue(key string) ir.Value {
	if n, err := strconv.ParseInt(key, 10, 64); err == nil {
		return ir.Int(n)
	}
	return ir.String(key)
}

// keyString renders a scanned id column as a row key.
func keyString(v any) (string, error) {
	switch id := v.(type) {
	case int64:
		return strconv.FormatInt(id, 10), nil
	case []byte:
		return string(id), nil
	case string:
		return id, nil
	case nil:
		return "", nil
	}
	return "", fmt.Errorf("unexpected key type %T", v)
}

// fromColumn converts a scanned column value to an ir.Value.
func fromColumn(v any) (ir.Value, error) {
	switch val := v.(type) {
	case []byte:
		return ir.String(string(val)), nil
	case float64:
		// Keep REAL columns as Float even when integral.
		return ir.Float(val), nil
	}
	return ir.FromAny(v)
}

// scanRow reads one row of columns into Attrs.
func scanRow(scan func(dest ...any) error, columns []string) (ir.Attrs, error) {
	raw := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := scan(ptrs...); err != nil {
		return nil, err
	}

	row := make(ir.Attrs, len(columns))
	for i, col := range columns {
		v, err := fromColumn(raw[i])
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col, err)
		}
		row[col] = v
	}
	return row, nil
}
