package querysql

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect renders the parts of SQL that differ between engines.
type Dialect struct {
	name     string
	numbered bool // $1, $2, ... instead of ?
	types    map[columnKind]string
}

type columnKind uint8

const (
	kindPrimaryKey columnKind = iota
	kindKey
	kindString
	kindInt
	kindFloat
	kindBool
)

var (
	// SQLite is the dialect of github.com/mattn/go-sqlite3.
	SQLite = Dialect{
		name: "sqlite3",
		types: map[columnKind]string{
			kindPrimaryKey: "INTEGER PRIMARY KEY",
			kindKey:        "INTEGER",
			kindString:     "TEXT",
			kindInt:        "INTEGER",
			kindFloat:      "REAL",
			kindBool:       "BOOLEAN",
		},
	}
	// Postgres is the dialect of github.com/lib/pq.
	Postgres = Dialect{
		name:     "postgres",
		numbered: true,
		types: map[columnKind]string{
			kindPrimaryKey: "BIGSERIAL PRIMARY KEY",
			kindKey:        "BIGINT",
			kindString:     "TEXT",
			kindInt:        "BIGINT",
			kindFloat:      "DOUBLE PRECISION",
			kindBool:       "BOOLEAN",
		},
	}
)

// DialectFor returns the dialect for a database/sql driver name.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "sqlite3", "sqlite":
		return SQLite, nil
	case "postgres", "postgresql", "pq":
		return Postgres, nil
	}
	return Dialect{}, fmt.Errorf("unsupported driver %q (want sqlite3 or postgres)", driver)
}

// Name returns the database/sql driver name.
func (d Dialect) Name() string { return d.name }

// Quote renders an identifier. Callers validate identifiers first; Quote
// still doubles embedded quotes.
func (d Dialect) Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// Placeholder returns the n-th (1-based) bind parameter.
func (d Dialect) Placeholder(n int) string {
	if d.numbered {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// ForeignKeys reports whether key columns carry inline REFERENCES
// constraints. SQLite accepts references to tables created later, so the
// schema can be emitted in any order.
func (d Dialect) ForeignKeys() bool {
	return !d.numbered
}

func (d Dialect) columnType(k columnKind) string {
	return d.types[k]
}
