package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/nestwrite/internal/compiler"
	"github.com/roach88/nestwrite/internal/store"
)

// StorageOptions holds the flags shared by commands that open a database.
// Unset flags fall back to the NESTWRITE_* environment.
type StorageOptions struct {
	*RootOptions
	Schema   string
	Database string
	Driver   string
}

func (o *StorageOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Schema, "schema", "", "CUE schema directory (env NESTWRITE_SCHEMA_DIR)")
	cmd.Flags().StringVar(&o.Database, "db", "", "database DSN or SQLite path (env NESTWRITE_DB_DSN)")
	cmd.Flags().StringVar(&o.Driver, "driver", "", "database driver: sqlite3 or postgres (env NESTWRITE_DB_DRIVER)")
}

// resolve fills unset flags from the environment configuration.
func (o *StorageOptions) resolve() error {
	cfg, err := o.settings()
	if err != nil {
		return err
	}
	if o.Schema == "" {
		o.Schema = cfg.SchemaDir
	}
	if o.Database == "" {
		o.Database = cfg.Database.DSN
	}
	if o.Driver == "" {
		o.Driver = cfg.Database.Driver
	}
	return nil
}

// openStore loads the schema and opens the database. Failures are
// reported through formatter and returned as exit code 2.
func (o *StorageOptions) openStore(formatter *OutputFormatter, logger *slog.Logger) (*store.Store, *compiler.LoadResult, error) {
	if err := o.resolve(); err != nil {
		return nil, nil, outputCommandError(formatter, ErrCodeGeneric, err.Error())
	}

	loaded, err := LoadSchema(o.Schema)
	if err != nil {
		return nil, nil, outputLoadError(formatter, err)
	}
	logger.Debug("schema loaded", "dir", o.Schema, "entities", len(loaded.Registry.Names()))

	st, err := store.Open(o.Driver, o.Database, loaded.Registry)
	if err != nil {
		return nil, nil, outputCommandError(formatter, ErrCodeStorage, fmt.Sprintf("opening database: %v", err))
	}
	logger.Debug("database opened", "driver", o.Driver, "dsn", o.Database)
	return st, loaded, nil
}

func closeStore(st *store.Store, logger *slog.Logger) {
	if err := st.Close(); err != nil {
		logger.Error("error closing database", "error", err)
	}
}
