package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/nestwrite/internal/engine"
	"github.com/roach88/nestwrite/internal/graph"
	"github.com/roach88/nestwrite/internal/ir"
)

// PersistOptions holds flags for the persist command.
type PersistOptions struct {
	StorageOptions
	MaxNodes int
	BareVerb string
	Migrate  bool

	// RequestIDs allows overriding the request id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RequestIDs engine.RequestIDGenerator
}

// NewPersistCommand creates the persist command.
func NewPersistCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PersistOptions{StorageOptions: StorageOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "persist <payload.json|payload.yaml|->",
		Short: "Persist one nested resource document",
		Long: `Write a nested resource document in a single transaction.

The payload is a {"data": ..., "included": [...]} document, read from a file
or from stdin with "-". Files ending in .yaml or .yml are read as YAML.

Exit codes:
  0 - Committed
  1 - A resource failed validation; nothing was written
  2 - Command error (unreadable or malformed payload, unknown types,
      dependency cycle, storage failure)

Examples:
  nestwrite persist --schema ./schema --db ./app.db payload.json
  cat payload.json | nestwrite persist --format json -`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPersist(opts, args[0], cmd)
		},
	}
	opts.addFlags(cmd)
	cmd.Flags().IntVar(&opts.MaxNodes, "max-nodes", 0, "maximum nodes per request, <= 0 disables (env NESTWRITE_MAX_NODES)")
	cmd.Flags().StringVar(&opts.BareVerb, "bare-verb", "", "verb for bare persisted references: link or update (env NESTWRITE_BARE_VERB)")
	cmd.Flags().BoolVar(&opts.Migrate, "migrate", false, "create missing tables before persisting")

	return cmd
}

func runPersist(opts *PersistOptions, source string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger, err := opts.logger(cmd.ErrOrStderr())
	if err != nil {
		return outputCommandError(formatter, ErrCodeGeneric, err.Error())
	}

	payload, err := readPayload(source, cmd.InOrStdin())
	if err != nil {
		return outputCommandError(formatter, ErrCodeInvalidInput, err.Error())
	}

	engineOpts, err := opts.engineOptions(cmd)
	if err != nil {
		return outputCommandError(formatter, ErrCodeGeneric, err.Error())
	}

	st, loaded, err := opts.openStore(formatter, logger)
	if err != nil {
		return err
	}
	defer closeStore(st, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.Migrate {
		if err := st.Migrate(ctx); err != nil {
			return outputCommandError(formatter, ErrCodeStorage, fmt.Sprintf("migrating: %v", err))
		}
	}

	persister := engine.New(st, loaded.Registry, append(engineOpts, engine.WithLogger(logger))...)
	res, err := persister.Persist(ctx, payload)
	if err != nil {
		if engine.IsStorageError(err) {
			return outputCommandError(formatter, ErrCodeStorage, err.Error())
		}
		return outputCommandError(formatter, ErrCodeRejected, err.Error())
	}

	formatter.VerboseLog("%d write(s)", len(res.Writes))
	if err := formatter.Outcome(res.Outcome); err != nil {
		return err
	}
	if f := res.Outcome.Failure; f != nil {
		return NewExitError(ExitFailure, fmt.Sprintf("%s failed validation", f.Resource))
	}
	return nil
}

// engineOptions merges persist flags over the environment configuration.
func (o *PersistOptions) engineOptions(cmd *cobra.Command) ([]engine.Option, error) {
	cfg, err := o.settings()
	if err != nil {
		return nil, err
	}

	maxNodes := cfg.MaxNodes
	if cmd.Flags().Changed("max-nodes") {
		maxNodes = o.MaxNodes
	}

	verb, err := cfg.Verb()
	if err != nil {
		return nil, err
	}
	if o.BareVerb != "" {
		if verb, err = ir.ParseVerb(o.BareVerb); err != nil {
			return nil, fmt.Errorf("--bare-verb: %w", err)
		}
		if verb != ir.VerbLink && verb != ir.VerbUpdate {
			return nil, fmt.Errorf("--bare-verb must be link or update, got %q", o.BareVerb)
		}
	}

	opts := []engine.Option{
		engine.WithMaxNodes(maxNodes),
		engine.WithGraphOptions(graph.WithBareVerb(verb)),
	}
	if o.RequestIDs != nil {
		opts = append(opts, engine.WithRequestIDs(o.RequestIDs))
	}
	return opts, nil
}

// readPayload reads a payload from path, or from stdin when path is "-".
// Stdin is read as JSON when it starts with '{', otherwise as YAML.
func readPayload(path string, stdin io.Reader) (ir.Payload, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return ir.Payload{}, fmt.Errorf("reading payload: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return ir.Payload{}, errors.New("payload is empty")
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ir.ParsePayloadYAML(data)
	case ".json":
		return ir.ParsePayload(data)
	}
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
		return ir.ParsePayload(data)
	}
	return ir.ParsePayloadYAML(data)
}
