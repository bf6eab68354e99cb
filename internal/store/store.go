package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/nestwrite/internal/engine"
	"github.com/roach88/nestwrite/internal/ir"
	"github.com/roach88/nestwrite/internal/querysql"
)

var _ engine.Storage = (*Store)(nil)

// Store writes persist requests to a SQL database laid out by the registry.
type Store struct {
	db         *sql.DB
	registry   *ir.Registry
	compiler   *querysql.Compiler
	validators map[string][]Validator
}

// Option configures a Store.
type Option func(*Store)

// WithValidator registers a validator for rows of entity. Validators run in
// registration order after the built-in checks.
func WithValidator(entity string, v Validator) Option {
	return func(s *Store) {
		s.validators[entity] = append(s.validators[entity], v)
	}
}

// Open connects to a database and applies the driver's session settings.
// It does not create tables; call Migrate.
//
// SQLite databases are configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
func Open(driver, dsn string, reg *ir.Registry, opts ...Option) (*Store, error) {
	dialect, err := querysql.DialectFor(driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(dialect.Name(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if dialect.Name() == querysql.SQLite.Name() {
		// SQLite only supports one writer at a time; one connection also
		// keeps a :memory: database alive and shared.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		if err := applyPragmas(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply pragmas: %w", err)
		}
	}

	return OpenDB(db, dialect, reg, opts...), nil
}

// OpenDB wraps an existing connection pool. The caller owns db's settings.
func OpenDB(db *sql.DB, dialect querysql.Dialect, reg *ir.Registry, opts ...Option) *Store {
	s := &Store{
		db:         db,
		registry:   reg,
		compiler:   querysql.NewCompiler(dialect),
		validators: make(map[string][]Validator),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Registry returns the schema the store was opened with.
func (s *Store) Registry() *ir.Registry {
	return s.registry
}

// Migrate creates every table and index the registry describes. It is
// idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	stmts, err := s.compiler.CreateTables(s.registry)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migrate: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %q: %w", stmt, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migrate: commit: %w", err)
	}
	return nil
}

// Begin starts the transaction one persist request runs in.
func (s *Store) Begin(ctx context.Context) (engine.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &Tx{tx: tx, s: s}, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// entity returns the schema of entity or a storage error.
func (s *Store) entity(name string) (*ir.EntitySchema, error) {
	e, ok := s.registry.Entity(name)
	if !ok {
		return nil, fmt.Errorf("unknown entity %q", name)
	}
	return e, nil
}

// columns lists the columns of an entity table: id, fields, key columns.
func (s *Store) columns(e *ir.EntitySchema) []string {
	cols := []string{"id"}
	for _, f := range e.Fields {
		cols = append(cols, f.Name)
	}
	for _, fk := range s.registry.ForeignKeyColumns(e.Name) {
		if _, isField := e.Field(fk.Column); isField {
			continue
		}
		cols = append(cols, fk.Column)
		if fk.TypeColumn != "" {
			cols = append(cols, fk.TypeColumn)
		}
	}
	return cols
}

// tableColumns lists the columns of any table in the schema, entity or
// join table.
func (s *Store) tableColumns(table string) ([]string, bool) {
	for _, e := range s.registry.Entities() {
		if e.Table == table {
			return s.columns(e), true
		}
	}
	for _, jt := range s.registry.JoinTables() {
		if jt.Table == table {
			return []string{jt.OwnerKey, jt.TargetKey}, true
		}
	}
	return nil, false
}
