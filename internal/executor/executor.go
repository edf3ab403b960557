package executor

import (
	"context"

	"graphgate-go/internal/cypher"
	"graphgate-go/internal/graphdb"
	"graphgate-go/internal/types"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Outcome is the result of a single statement. An empty statement yields the
// zero Outcome.
type Outcome struct {
	Records  []map[string]any  `json:"records,omitempty"`
	Counters *graphdb.Counters `json:"stats,omitempty"`
	Failure  *types.Error      `json:"error,omitempty"`
}

// Failed reports whether the statement produced a failure.
func (o Outcome) Failed() bool {
	return o.Failure != nil
}

// IsEmpty reports whether nothing was executed.
func (o Outcome) IsEmpty() bool {
	return o.Records == nil && o.Counters == nil && o.Failure == nil
}

// BatchResult is the result of a command batch: a bookmark on commit, or the
// first failing command in input order.
type BatchResult struct {
	Bookmark string       `json:"bookmark,omitempty"`
	Commands int          `json:"commands"`
	Failure  *types.Error `json:"error,omitempty"`
}

func (r BatchResult) Failed() bool {
	return r.Failure != nil
}

// Normalizer flattens driver records into plain mappings.
type Normalizer func(records []graphdb.Record) []map[string]any

// Coordinator runs statements through a caller-supplied session.
type Coordinator struct {
	maxInFlight int
	logger      *zap.Logger
}

// NewCoordinator creates a Coordinator. maxInFlight bounds how many batch
// commands are submitted at once; zero or less means unbounded.
func NewCoordinator(maxInFlight int, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{maxInFlight: maxInFlight, logger: logger}
}

// RunQuery executes stmt in an auto-commit transaction and normalizes records
// with NormalizeRecords.
func (c *Coordinator) RunQuery(ctx context.Context, session graphdb.Session, stmt cypher.Statement) Outcome {
	return c.RunQueryWith(ctx, session, stmt, NormalizeRecords)
}

// RunQueryWith is RunQuery with a custom normalizer.
func (c *Coordinator) RunQueryWith(ctx context.Context, session graphdb.Session, stmt cypher.Statement, normalize Normalizer) Outcome {
	if stmt.IsEmpty() {
		return Outcome{}
	}

	result, err := session.Run(ctx, stmt.Text, stmt.Params)
	if err != nil {
		return Outcome{Failure: graphdb.Classify(err, types.QueryExecutionFailure)}
	}

	counters := result.Counters
	return Outcome{
		Records:  normalize(result.Records),
		Counters: &counters,
	}
}

// RunBatch executes stmts inside one explicit transaction. Every command is
// submitted without waiting on the others; the commit is decided once all of
// them have settled. Any command failure rolls the transaction back and the
// lowest failing index is reported.
func (c *Coordinator) RunBatch(ctx context.Context, session graphdb.Session, stmts []cypher.Statement) BatchResult {
	result := BatchResult{Commands: len(stmts)}
	if len(stmts) == 0 {
		return result
	}

	tx, err := session.BeginTransaction(ctx)
	if err != nil {
		result.Failure = graphdb.Classify(err, types.TransactionCommitFailure)
		return result
	}

	errs := make([]error, len(stmts))
	var g errgroup.Group
	if c.maxInFlight > 0 {
		g.SetLimit(c.maxInFlight)
	}
	for i, stmt := range stmts {
		g.Go(func() error {
			if _, err := tx.Run(ctx, stmt.Text, stmt.Params); err != nil {
				errs[i] = err
			}
			// Never abort siblings; failures are inspected after Wait.
			return nil
		})
	}
	_ = g.Wait()

	for i, err := range errs {
		if err == nil {
			continue
		}
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			c.logger.Warn("Failed to roll back transaction",
				zap.Int("failed_index", i),
				zap.Error(rbErr))
		}
		result.Failure = graphdb.Classify(err, types.TransactionCommitFailure).AtIndex(i)
		return result
	}

	if err := tx.Commit(ctx); err != nil {
		result.Failure = types.WrapError(types.TransactionCommitFailure, "transaction commit failed", err)
		return result
	}

	result.Bookmark = session.LastBookmark()
	return result
}
