package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// MigrateResult reports the tables a migration ensured.
type MigrateResult struct {
	Driver string   `json:"driver"`
	Tables []string `json:"tables"`
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StorageOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the tables a schema needs",
		Long: `Create one table per entity and one per many-to-many join table.

Existing tables are left alone, so migrate can run on every deploy.

Examples:
  nestwrite migrate --schema ./schema --db ./nestwrite.db
  nestwrite migrate --driver postgres --db "postgres://localhost/app?sslmode=disable"`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(opts, cmd)
		},
	}
	opts.addFlags(cmd)

	return cmd
}

func runMigrate(opts *StorageOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger, err := opts.logger(cmd.ErrOrStderr())
	if err != nil {
		return outputCommandError(formatter, ErrCodeGeneric, err.Error())
	}

	st, loaded, err := opts.openStore(formatter, logger)
	if err != nil {
		return err
	}
	defer closeStore(st, logger)

	if err := st.Migrate(cmd.Context()); err != nil {
		return outputCommandError(formatter, ErrCodeStorage, fmt.Sprintf("migrating: %v", err))
	}

	result := MigrateResult{Driver: opts.Driver}
	for _, e := range loaded.Registry.Entities() {
		result.Tables = append(result.Tables, e.Table)
	}
	for _, jt := range loaded.Registry.JoinTables() {
		result.Tables = append(result.Tables, jt.Table)
	}
	logger.Info("migrated", "driver", opts.Driver, "tables", len(result.Tables))

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ Migrated %d table(s)\n", len(result.Tables))
	for _, table := range result.Tables {
		formatter.VerboseLog("  %s", table)
	}
	return nil
}
