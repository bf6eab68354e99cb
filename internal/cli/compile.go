package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/nestwrite/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult is the compiled relationship schema.
type CompilationResult struct {
	Entities   []*ir.EntitySchema `json:"entities"`
	JoinTables []ir.JoinTable     `json:"join_tables"`
}

// CompilationStats holds summary statistics.
type CompilationStats struct {
	EntityCount       int
	FieldCount        int
	RelationshipCount int
	JoinTableCount    int
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <schema-dir>",
		Short: "Compile a CUE relationship schema",
		Long: `Compile the CUE entity declarations in a directory to the relationship
schema the persister uses.

Naming defaults (foreign keys, type columns, join tables) are filled in, so
the output shows exactly which columns each relationship writes.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, schemaDir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	loaded, err := LoadSchema(schemaDir)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", loaded.FileCount, schemaDir)

	result := &CompilationResult{
		Entities:   loaded.Registry.Entities(),
		JoinTables: loaded.Registry.JoinTables(),
	}
	for _, e := range result.Entities {
		formatter.VerboseLog("Compiled entity: %s", e.Name)
	}
	stats := calculateStats(result)

	if opts.Output != "" {
		if err := writeSchemaToFile(result, opts.Output); err != nil {
			return outputCommandError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err))
		}
	}

	return outputCompileSuccess(formatter, result, stats, opts.Output)
}

// calculateStats computes summary statistics from compilation result.
func calculateStats(result *CompilationResult) CompilationStats {
	stats := CompilationStats{
		EntityCount:    len(result.Entities),
		JoinTableCount: len(result.JoinTables),
	}
	for _, e := range result.Entities {
		stats.FieldCount += len(e.Fields)
		stats.RelationshipCount += len(e.Relationships)
	}
	return stats
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, stats CompilationStats, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %d entit%s, %d relationship(s), %d join table(s)\n\n",
		stats.EntityCount, plural(stats.EntityCount, "y", "ies"), stats.RelationshipCount, stats.JoinTableCount)

	for _, e := range result.Entities {
		fmt.Fprintf(w, "%s (table %s): %d field(s)\n", e.Name, e.Table, len(e.Fields))
		for _, rel := range e.Relationships {
			fmt.Fprintf(w, "  %s: %s %s\n", rel.Name, rel.Cardinality, describeRelationship(&rel))
		}
	}
	fmt.Fprintln(w)

	if outputFile != "" {
		fmt.Fprintf(w, "Wrote schema to %s\n", outputFile)
	}
	return nil
}

// describeRelationship names the target and the columns a relationship writes.
func describeRelationship(rel *ir.RelationshipSchema) string {
	switch {
	case rel.Through != nil:
		return fmt.Sprintf("-> %s via %s(%s, %s)", rel.Target, rel.Through.Table, rel.Through.OwnerKey, rel.Through.TargetKey)
	case rel.Polymorphic:
		return fmt.Sprintf("-> %v via %s/%s", rel.Targets(), rel.ForeignKey, rel.TypeColumn)
	default:
		return fmt.Sprintf("-> %s via %s", rel.Target, rel.ForeignKey)
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// outputLoadError reports a schema that could not be loaded. These are
// command-level errors (exit code 2).
func outputLoadError(formatter *OutputFormatter, err error) error {
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		return outputCommandError(formatter, ErrCodeGeneric, err.Error())
	}

	if formatter.Format == "json" {
		var details any
		if loadErr.Pos.IsValid() {
			details = map[string]any{
				"file":   loadErr.Pos.Filename(),
				"line":   loadErr.Pos.Line(),
				"column": loadErr.Pos.Column(),
			}
		}
		_ = formatter.Error(loadErr.Code, loadErr.Message, details)
	} else {
		fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
		fmt.Fprintln(formatter.Writer)
		if loadErr.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n", loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column())
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n", loadErr.Code, loadErr.Message)
	}
	return WrapExitError(ExitCommandError, "loading schema", loadErr)
}

// outputCommandError outputs a single command-level error (exit code 2).
func outputCommandError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// writeSchemaToFile writes the compiled schema as indented JSON.
func writeSchemaToFile(result *CompilationResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling schema: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
