package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"graphgate-go/internal/cypher"
	"graphgate-go/internal/db"
	"graphgate-go/internal/executor"
	"graphgate-go/internal/graphdb"
	"graphgate-go/internal/types"

	"go.uber.org/zap"
)

type Status string

const (
	StatusConnected Status = "Connected"
	StatusFailed    Status = "Failed"
	StatusUnknown   Status = "Unknown"
)

// ConnectionStatus reports whether the backend is reachable.
type ConnectionStatus struct {
	Message string `json:"message"`
	Status  Status `json:"status"`
	Error   string `json:"error,omitempty"`
}

// HistoryRecorder journals completed operations.
type HistoryRecorder interface {
	Record(ctx context.Context, rec *db.QueryRecord) error
}

// NodeQuery narrows a GetNode lookup.
type NodeQuery struct {
	Filter string
	Params map[string]any
	Fields []cypher.Selector
	Limit  int
}

type Options struct {
	DiscriminatorKey string
	MaxInFlight      int
	DetachDelete     bool
}

type deleteOptions struct {
	detach bool
}

// DeleteOption overrides DeleteNode defaults.
type DeleteOption func(*deleteOptions)

// WithDetach sets whether relationships are removed along with the node.
func WithDetach(detach bool) DeleteOption {
	return func(o *deleteOptions) { o.detach = detach }
}

// GraphService exposes the graph operations. Every call opens its own session
// and closes it before returning.
type GraphService struct {
	driver       graphdb.Driver
	builder      *cypher.Builder
	coordinator  *executor.Coordinator
	history      HistoryRecorder
	detachDelete bool
	logger       *zap.Logger
}

// NewGraphService creates a GraphService. history may be nil.
func NewGraphService(driver graphdb.Driver, opts Options, history HistoryRecorder, logger *zap.Logger) *GraphService {
	return &GraphService{
		driver:       driver,
		builder:      cypher.NewBuilder(opts.DiscriminatorKey),
		coordinator:  executor.NewCoordinator(opts.MaxInFlight, logger),
		history:      history,
		detachDelete: opts.DetachDelete,
		logger:       logger,
	}
}

func (s *GraphService) Backend() string {
	return s.driver.Backend()
}

func (s *GraphService) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// ConnectionStatus verifies connectivity. It never returns an error; failures
// are reported in the status value.
func (s *GraphService) ConnectionStatus(ctx context.Context) ConnectionStatus {
	status := ConnectionStatus{
		Message: fmt.Sprintf("%s Connection Status", s.driver.Backend()),
		Status:  StatusUnknown,
	}

	if err := s.driver.VerifyConnectivity(ctx); err != nil {
		status.Status = StatusFailed
		status.Error = graphdb.Classify(err, types.ConnectivityFailure).Message
		s.logger.Warn("Connectivity check failed",
			zap.String("backend", s.driver.Backend()),
			zap.Error(err))
		return status
	}

	status.Status = StatusConnected
	return status
}

// RunCypher executes a raw query. An empty query returns an empty outcome.
func (s *GraphService) RunCypher(ctx context.Context, query string, params map[string]any, correlationID string) executor.Outcome {
	const function = "runCypher"
	started := time.Now()
	stmt := cypher.Raw(strings.TrimSpace(query), params)

	outcome, err := withSession(ctx, s, graphdb.SessionOptions{Mode: graphdb.AccessWrite}, func(session graphdb.Session) executor.Outcome {
		return s.coordinator.RunQuery(ctx, session, stmt)
	})
	if err != nil {
		outcome = executor.Outcome{Failure: err}
	}

	log := s.opLogger(correlationID, function)
	if outcome.Failed() {
		log.Error("Query failed", failureFields(outcome.Failure)...)
	} else {
		log.Info("Query completed", zap.Int("records", len(outcome.Records)))
	}
	s.record(ctx, correlationID, function, stmt.Text, started, len(outcome.Records), outcome.Failure)
	return outcome
}

// RunTransactions executes commands as one all-or-nothing transaction. The
// session waits for bookmarks before running.
func (s *GraphService) RunTransactions(ctx context.Context, commands []string, correlationID string, bookmarks ...string) executor.BatchResult {
	const function = "runTransactions"
	started := time.Now()

	stmts := make([]cypher.Statement, len(commands))
	for i, command := range commands {
		stmts[i] = cypher.Raw(command, nil)
	}

	opts := graphdb.SessionOptions{Mode: graphdb.AccessWrite, Bookmarks: bookmarks}
	result, err := withSession(ctx, s, opts, func(session graphdb.Session) executor.BatchResult {
		return s.coordinator.RunBatch(ctx, session, stmts)
	})
	if err != nil {
		result = executor.BatchResult{Commands: len(commands), Failure: err}
	}

	log := s.opLogger(correlationID, function)
	if result.Failed() {
		log.Error("Transaction failed", failureFields(result.Failure)...)
	} else {
		log.Info("Transaction committed",
			zap.Int("commands_completed", len(commands)),
			zap.String("bookmark", result.Bookmark))
	}
	s.record(ctx, correlationID, function, strings.Join(commands, ";\n"), started, len(commands), result.Failure)
	return result
}

// GetNode reads nodes with label (any label when empty). With fields the
// projected aliases are returned, otherwise each node's properties.
func (s *GraphService) GetNode(ctx context.Context, label string, q NodeQuery, correlationID string) ([]map[string]any, error) {
	const function = "getNode"
	started := time.Now()

	stmt := s.builder.BuildRead(cypher.QueryRequest{
		Label:  label,
		Filter: q.Filter,
		Params: q.Params,
		Fields: q.Fields,
		Limit:  q.Limit,
	})

	normalize := executor.NormalizeEntities("n")
	if len(q.Fields) > 0 {
		normalize = executor.NormalizeProjection(cypher.Aliases(q.Fields))
	}

	outcome, err := withSession(ctx, s, graphdb.SessionOptions{Mode: graphdb.AccessRead}, func(session graphdb.Session) executor.Outcome {
		return s.coordinator.RunQueryWith(ctx, session, stmt, normalize)
	})
	if err != nil {
		outcome = executor.Outcome{Failure: err}
	}

	log := s.opLogger(correlationID, function)
	s.record(ctx, correlationID, function, stmt.Text, started, len(outcome.Records), outcome.Failure)
	if outcome.Failed() {
		log.Error("Node lookup failed", append(failureFields(outcome.Failure), zap.String("node", label))...)
		return nil, outcome.Failure
	}

	log.Info("Node lookup completed", zap.String("node", label), zap.Int("nodes", len(outcome.Records)))
	return outcome.Records, nil
}

// PostNode creates a node tagged with discriminator and sets properties.
func (s *GraphService) PostNode(ctx context.Context, label, discriminator string, props cypher.Properties, correlationID string) (graphdb.Counters, error) {
	return s.write(ctx, "postNode", label, discriminator, correlationID, func() cypher.Statement {
		return s.builder.BuildCreate(label, discriminator, props)
	})
}

// PutNode merges a node tagged with discriminator and sets properties.
func (s *GraphService) PutNode(ctx context.Context, label, discriminator string, props cypher.Properties, correlationID string) (graphdb.Counters, error) {
	return s.write(ctx, "putNode", label, discriminator, correlationID, func() cypher.Statement {
		return s.builder.BuildMerge(label, discriminator, props)
	})
}

// DeleteNode deletes nodes with label, restricted to discriminator when set.
func (s *GraphService) DeleteNode(ctx context.Context, label, discriminator, correlationID string, opts ...DeleteOption) (graphdb.Counters, error) {
	o := deleteOptions{detach: s.detachDelete}
	for _, opt := range opts {
		opt(&o)
	}
	return s.write(ctx, "deleteNode", label, discriminator, correlationID, func() cypher.Statement {
		return s.builder.BuildDelete(label, discriminator, o.detach)
	})
}

// write validates the label, then builds and runs the statement. Rejected
// writes are logged and journaled like failed ones.
func (s *GraphService) write(ctx context.Context, function, label, discriminator, correlationID string, build func() cypher.Statement) (graphdb.Counters, error) {
	started := time.Now()
	log := s.opLogger(correlationID, function).With(
		zap.String("node", label),
		zap.String("label", discriminator))

	if failure := requireLabel(label); failure != nil {
		s.record(ctx, correlationID, function, "", started, 0, failure)
		log.Error("Write rejected", failureFields(failure)...)
		return graphdb.Counters{}, failure
	}

	stmt := build()
	outcome, err := withSession(ctx, s, graphdb.SessionOptions{Mode: graphdb.AccessWrite}, func(session graphdb.Session) executor.Outcome {
		return s.coordinator.RunQuery(ctx, session, stmt)
	})
	if err != nil {
		outcome = executor.Outcome{Failure: err}
	}

	var counters graphdb.Counters
	if outcome.Counters != nil {
		counters = *outcome.Counters
	}

	s.record(ctx, correlationID, function, stmt.Text, started, len(outcome.Records), outcome.Failure)
	if outcome.Failed() {
		log.Error("Write failed", failureFields(outcome.Failure)...)
		return counters, outcome.Failure
	}

	log.Info("Write completed",
		zap.Int("properties_set", counters.PropertiesSet),
		zap.Int("nodes_created", counters.NodesCreated),
		zap.Int("nodes_deleted", counters.NodesDeleted))
	return counters, nil
}

// withSession opens a session, runs fn and closes the session on every path.
func withSession[T any](ctx context.Context, s *GraphService, opts graphdb.SessionOptions, fn func(graphdb.Session) T) (T, *types.Error) {
	var zero T

	session, err := s.driver.NewSession(ctx, opts)
	if err != nil {
		return zero, graphdb.Classify(err, types.ConnectivityFailure)
	}
	defer func() {
		if err := session.Close(ctx); err != nil {
			s.logger.Warn("Failed to close session", zap.Error(err))
		}
	}()

	return fn(session), nil
}

func (s *GraphService) opLogger(correlationID, function string) *zap.Logger {
	return s.logger.With(
		zap.String("correlation_id", correlationID),
		zap.String("function", function))
}

func (s *GraphService) record(ctx context.Context, correlationID, function, query string, started time.Time, count int, failure *types.Error) {
	if s.history == nil {
		return
	}

	rec := &db.QueryRecord{
		CorrelationID: correlationID,
		Function:      function,
		Query:         query,
		Status:        db.StatusSuccess,
		RecordCount:   count,
		Duration:      time.Since(started),
	}
	if failure != nil {
		rec.Status = db.StatusFailure
		rec.ErrorCode = failure.Code
		rec.ErrorMessage = failure.Message
	}

	if err := s.history.Record(context.WithoutCancel(ctx), rec); err != nil {
		s.logger.Warn("Failed to record query history",
			zap.String("correlation_id", correlationID),
			zap.String("function", function),
			zap.Error(err))
	}
}

func failureFields(failure *types.Error) []zap.Field {
	fields := []zap.Field{
		zap.String("error_kind", string(failure.Kind)),
		zap.String("error_code", failure.Code),
		zap.String("error", failure.Message),
	}
	if failure.Index != types.NoIndex {
		fields = append(fields, zap.Int("failed_index", failure.Index))
	}
	return fields
}

func requireLabel(label string) *types.Error {
	if strings.TrimSpace(label) == "" {
		return types.NewError(types.QueryExecutionFailure, "node label is required").WithCode("InvalidArgument")
	}
	return nil
}
