package graphdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// Neo4jConfig holds connection settings for a Neo4j server.
type Neo4jConfig struct {
	URI                   string
	Username              string
	Password              string
	Database              string
	MaxConnectionPoolSize int
	ConnectionTimeout     time.Duration
}

// Neo4jDriver adapts neo4j.DriverWithContext to Driver.
type Neo4jDriver struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *zap.Logger
}

// NewNeo4jDriver creates the driver. It does not verify connectivity; callers
// check that through VerifyConnectivity so a down server is a status, not a crash.
func NewNeo4jDriver(cfg Neo4jConfig, logger *zap.Logger) (*Neo4jDriver, error) {
	auth := neo4j.NoAuth()
	if cfg.Username != "" && cfg.Password != "" {
		auth = neo4j.BasicAuth(cfg.Username, cfg.Password, "")
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, auth, func(c *neo4j.Config) {
		if cfg.MaxConnectionPoolSize > 0 {
			c.MaxConnectionPoolSize = cfg.MaxConnectionPoolSize
		}
		if cfg.ConnectionTimeout > 0 {
			c.ConnectionAcquisitionTimeout = cfg.ConnectionTimeout
			c.SocketConnectTimeout = cfg.ConnectionTimeout
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Neo4j driver: %w", err)
	}

	logger.Info("Neo4j driver created",
		zap.String("uri", cfg.URI),
		zap.String("database", cfg.Database))

	return &Neo4jDriver{driver: driver, database: cfg.Database, logger: logger}, nil
}

func (d *Neo4jDriver) Backend() string {
	return "Neo4j"
}

func (d *Neo4jDriver) VerifyConnectivity(ctx context.Context) error {
	return d.driver.VerifyConnectivity(ctx)
}

func (d *Neo4jDriver) Close(ctx context.Context) error {
	return d.driver.Close(ctx)
}

func (d *Neo4jDriver) NewSession(ctx context.Context, opts SessionOptions) (Session, error) {
	mode := neo4j.AccessModeWrite
	if opts.Mode == AccessRead {
		mode = neo4j.AccessModeRead
	}

	cfg := neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: d.database,
	}
	if len(opts.Bookmarks) > 0 {
		cfg.Bookmarks = neo4j.BookmarksFromRawValues(opts.Bookmarks...)
	}

	return &neo4jSession{session: d.driver.NewSession(ctx, cfg)}, nil
}

type neo4jSession struct {
	session neo4j.SessionWithContext
}

func (s *neo4jSession) Run(ctx context.Context, query string, params map[string]any) (*Result, error) {
	res, err := s.session.Run(ctx, query, params)
	if err != nil {
		return nil, err
	}

	records, err := res.Collect(ctx)
	if err != nil {
		return nil, err
	}

	summary, err := res.Consume(ctx)
	if err != nil {
		return nil, err
	}

	return &Result{
		Records:  convertNeo4jRecords(records),
		Counters: convertNeo4jCounters(summary),
	}, nil
}

func (s *neo4jSession) BeginTransaction(ctx context.Context) (Transaction, error) {
	tx, err := s.session.BeginTransaction(ctx)
	if err != nil {
		return nil, err
	}
	return &neo4jTransaction{tx: tx}, nil
}

func (s *neo4jSession) LastBookmark() string {
	bookmarks := s.session.LastBookmarks()
	if len(bookmarks) == 0 {
		return ""
	}
	return bookmarks[len(bookmarks)-1]
}

func (s *neo4jSession) Close(ctx context.Context) error {
	return s.session.Close(ctx)
}

// neo4jTransaction serializes Run calls: an explicit transaction is bound to a
// single bolt connection, which is not safe for concurrent use.
type neo4jTransaction struct {
	mu sync.Mutex
	tx neo4j.ExplicitTransaction
}

func (t *neo4jTransaction) Run(ctx context.Context, query string, params map[string]any) ([]Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	res, err := t.tx.Run(ctx, query, params)
	if err != nil {
		return nil, err
	}
	records, err := res.Collect(ctx)
	if err != nil {
		return nil, err
	}
	return convertNeo4jRecords(records), nil
}

func (t *neo4jTransaction) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tx.Commit(ctx)
}

func (t *neo4jTransaction) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tx.Rollback(ctx)
}

func convertNeo4jRecords(records []*neo4j.Record) []Record {
	out := make([]Record, 0, len(records))
	for _, rec := range records {
		values := make([]any, len(rec.Values))
		for i, v := range rec.Values {
			values[i] = convertNeo4jValue(v)
		}
		out = append(out, Record{Keys: rec.Keys, Values: values})
	}
	return out
}

func convertNeo4jValue(value any) any {
	switch v := value.(type) {
	case neo4j.Node:
		return Node{ID: v.ElementId, Labels: v.Labels, Props: v.Props}
	case neo4j.Relationship:
		return Relationship{
			ID:      v.ElementId,
			Type:    v.Type,
			StartID: v.StartElementId,
			EndID:   v.EndElementId,
			Props:   v.Props,
		}
	case []any:
		out := make([]any, len(v))
		for i := range v {
			out[i] = convertNeo4jValue(v[i])
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = convertNeo4jValue(item)
		}
		return out
	default:
		return v
	}
}

func convertNeo4jCounters(summary neo4j.ResultSummary) Counters {
	if summary == nil || summary.Counters() == nil {
		return Counters{}
	}
	c := summary.Counters()
	return Counters{
		NodesCreated:         c.NodesCreated(),
		NodesDeleted:         c.NodesDeleted(),
		RelationshipsCreated: c.RelationshipsCreated(),
		RelationshipsDeleted: c.RelationshipsDeleted(),
		PropertiesSet:        c.PropertiesSet(),
		LabelsAdded:          c.LabelsAdded(),
		LabelsRemoved:        c.LabelsRemoved(),
		IndexesAdded:         c.IndexesAdded(),
		IndexesRemoved:       c.IndexesRemoved(),
		ConstraintsAdded:     c.ConstraintsAdded(),
		ConstraintsRemoved:   c.ConstraintsRemoved(),
	}
}
