package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.uber.org/multierr"

	"github.com/roach88/nestwrite/internal/graph"
	"github.com/roach88/nestwrite/internal/ir"
)

// Persister is the transaction manager: it runs each request's graph in
// one storage transaction and commits only if every write succeeds.
//
// Thread-safety: a Persister may serve concurrent requests. Each request
// has its own graph and transaction; isolation between requests is the
// storage engine's.
type Persister struct {
	storage   Storage
	registry  *ir.Registry
	clock     SequenceClock
	ids       RequestIDGenerator
	logger    *slog.Logger
	maxNodes  int
	graphOpts []graph.Option
}

// Option configures a Persister.
type Option func(*Persister)

// WithClock sets the clock stamping storage writes.
func WithClock(c SequenceClock) Option {
	return func(p *Persister) {
		p.clock = c
	}
}

// WithRequestIDs sets the request id generator. Default: UUIDv7Generator.
func WithRequestIDs(g RequestIDGenerator) Option {
	return func(p *Persister) {
		p.ids = g
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Persister) {
		p.logger = l
	}
}

// WithMaxNodes bounds the nodes of one request graph.
//
// Default: 1000 (DefaultMaxNodes). Zero or less disables the check.
func WithMaxNodes(n int) Option {
	return func(p *Persister) {
		p.maxNodes = n
	}
}

// WithGraphOptions passes options to graph.Build, e.g. graph.WithBareVerb.
func WithGraphOptions(opts ...graph.Option) Option {
	return func(p *Persister) {
		p.graphOpts = append(p.graphOpts, opts...)
	}
}

// New creates a Persister writing through storage with the given schema.
func New(storage Storage, registry *ir.Registry, opts ...Option) *Persister {
	p := &Persister{
		storage:  storage,
		registry: registry,
		clock:    NewClock(),
		ids:      UUIDv7Generator{},
		logger:   slog.Default(),
		maxNodes: DefaultMaxNodes,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Result is the reply to one request plus the writes it performed.
type Result struct {
	Outcome ir.Outcome
	// Writes lists the storage writes in order. On a validation failure
	// they were rolled back.
	Writes     WriteLog
	Reconciled []ReconcileResult
}

// Persist builds, classifies and runs one payload.
//
// Malformed payloads, schema mismatches, dependency cycles and oversized
// graphs are returned as errors before the transaction begins. A
// validation failure is not an error: the transaction is rolled back and
// the Outcome names the failing resource. Storage errors roll back and are
// returned.
func (p *Persister) Persist(ctx context.Context, payload ir.Payload) (*Result, error) {
	requestID := p.ids.Generate()
	logger := p.logger.With("request_id", requestID)

	g, err := graph.BuildPayload(payload, p.graphOpts...)
	if err != nil {
		logger.Warn("payload rejected", "error", err)
		return nil, err
	}
	if err := graph.Classify(g, p.registry); err != nil {
		logger.Warn("payload rejected", "error", err)
		return nil, err
	}
	return p.run(ctx, g, requestID, logger)
}

// Run executes a built and classified graph in one transaction.
func (p *Persister) Run(ctx context.Context, g *graph.Graph) (*Result, error) {
	requestID := p.ids.Generate()
	return p.run(ctx, g, requestID, p.logger.With("request_id", requestID))
}

func (p *Persister) run(ctx context.Context, g *graph.Graph, requestID string, logger *slog.Logger) (*Result, error) {
	plan, err := BuildPlan(g, p.maxNodes)
	if err != nil {
		var ge *GraphTooLargeError
		if errors.As(err, &ge) {
			ge.RequestID = requestID
		}
		logger.Warn("graph rejected", "error", err)
		return nil, err
	}
	logger.Debug("plan ready", "nodes", g.Len(), "creates", len(plan.Order()))

	tx, err := p.storage.Begin(ctx)
	if err != nil {
		logger.Error("begin failed", "error", err)
		return nil, &StorageError{Op: OpBegin, Err: err}
	}

	rec := &recordingTx{tx: tx, clock: p.clock, logger: logger}
	x, err := execute(ctx, g, rec, logger)
	if err != nil {
		rbErr := tx.Rollback()
		var vf *ValidationFailure
		if errors.As(err, &vf) && rbErr == nil {
			logger.Info("rolled back", "failing", vf.Resource.String(), "fields", vf.Errors.Fields(), "writes", len(rec.log))
			return &Result{
				Outcome: ir.Outcome{
					RequestID: requestID,
					Failure:   &ir.Failure{Resource: vf.Resource, Errors: vf.Errors},
				},
				Writes: rec.log,
			}, nil
		}
		if rbErr != nil {
			err = multierr.Append(err, fmt.Errorf("rollback: %w", rbErr))
		}
		logger.Error("persist failed", "error", err)
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		logger.Error("commit failed", "error", err)
		return nil, &StorageError{Op: OpCommit, Err: err}
	}

	primary, sideloaded := Assemble(g, x)
	logger.Info("committed", "writes", len(x.Writes), "sideloaded", len(sideloaded))
	return &Result{
		Outcome: ir.Outcome{
			RequestID:  requestID,
			Primary:    primary,
			Sideloaded: sideloaded,
		},
		Writes:     x.Writes,
		Reconciled: x.Reconciled,
	}, nil
}
