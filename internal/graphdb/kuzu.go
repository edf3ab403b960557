package graphdb

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/kuzudb/go-kuzu"
	"go.uber.org/zap"
)

var ErrKuzuClosed = errors.New("kuzu database closed")

// KuzuConfig holds settings for an embedded Kuzu database.
type KuzuConfig struct {
	Path           string
	InMemory       bool
	MaxNumThreads  uint64
	BufferPoolSize uint64
}

// KuzuDriver adapts an embedded Kuzu database to Driver. Each session owns
// its own kuzu.Connection.
type KuzuDriver struct {
	mu     sync.RWMutex
	db     *kuzu.Database
	cfg    KuzuConfig
	logger *zap.Logger
}

func NewKuzuDriver(cfg KuzuConfig, logger *zap.Logger) (*KuzuDriver, error) {
	systemConfig := kuzu.DefaultSystemConfig()
	if cfg.BufferPoolSize > 0 {
		systemConfig.BufferPoolSize = cfg.BufferPoolSize
	}
	if cfg.MaxNumThreads > 0 {
		systemConfig.MaxNumThreads = cfg.MaxNumThreads
	}

	var (
		db  *kuzu.Database
		err error
	)
	if cfg.InMemory {
		db, err = kuzu.OpenInMemoryDatabase(systemConfig)
	} else {
		db, err = kuzu.OpenDatabase(cfg.Path, systemConfig)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open kuzu database: %w", err)
	}

	logger.Info("Kuzu database opened",
		zap.String("path", cfg.Path),
		zap.Bool("in_memory", cfg.InMemory))

	return &KuzuDriver{db: db, cfg: cfg, logger: logger}, nil
}

func (d *KuzuDriver) Backend() string {
	return "Kuzu"
}

func (d *KuzuDriver) VerifyConnectivity(ctx context.Context) error {
	session, err := d.NewSession(ctx, SessionOptions{Mode: AccessRead})
	if err != nil {
		return err
	}
	defer session.Close(ctx)

	_, err = session.Run(ctx, "RETURN 1 AS ok", nil)
	return err
}

func (d *KuzuDriver) Close(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.db != nil {
		d.db.Close()
		d.db = nil
	}
	return nil
}

// NewSession opens a connection. Bookmarks are ignored: an embedded database
// has a single writer, so every read already observes the last commit.
func (d *KuzuDriver) NewSession(ctx context.Context, opts SessionOptions) (Session, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.db == nil {
		return nil, ErrKuzuClosed
	}

	conn, err := kuzu.OpenConnection(d.db)
	if err != nil {
		return nil, fmt.Errorf("failed to open kuzu connection: %w", err)
	}
	if d.cfg.MaxNumThreads > 0 {
		conn.SetMaxNumThreads(d.cfg.MaxNumThreads)
	}
	return &kuzuSession{conn: conn}, nil
}

type kuzuSession struct {
	mu           sync.Mutex
	conn         *kuzu.Connection
	lastBookmark string
}

func (s *kuzuSession) Run(ctx context.Context, query string, params map[string]any) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.run(ctx, query, params)
	if err != nil {
		return nil, err
	}
	// Kuzu does not report mutation statistics.
	return &Result{Records: records}, nil
}

func (s *kuzuSession) run(ctx context.Context, query string, params map[string]any) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		result *kuzu.QueryResult
		err    error
	)
	if len(params) > 0 {
		stmt, prepErr := s.conn.Prepare(query)
		if prepErr != nil {
			return nil, prepErr
		}
		defer stmt.Close()
		result, err = s.conn.Execute(stmt, params)
	} else {
		result, err = s.conn.Query(query)
	}
	if err != nil {
		return nil, err
	}
	defer result.Close()

	columns := result.GetColumnNames()
	var records []Record
	for result.HasNext() {
		tuple, err := result.Next()
		if err != nil {
			return nil, err
		}
		row, err := tuple.GetAsMap()
		tuple.Close()
		if err != nil {
			return nil, err
		}

		values := make([]any, len(columns))
		for i, col := range columns {
			values[i] = convertKuzuValue(row[col])
		}
		records = append(records, Record{Keys: columns, Values: values})
	}
	return records, nil
}

func (s *kuzuSession) BeginTransaction(ctx context.Context) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.run(ctx, "BEGIN TRANSACTION", nil); err != nil {
		return nil, err
	}
	return &kuzuTransaction{session: s}, nil
}

func (s *kuzuSession) LastBookmark() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastBookmark
}

func (s *kuzuSession) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	return nil
}

// kuzuTransaction shares the session connection; the session mutex serializes
// concurrent Run calls.
type kuzuTransaction struct {
	session *kuzuSession
}

func (t *kuzuTransaction) Run(ctx context.Context, query string, params map[string]any) ([]Record, error) {
	t.session.mu.Lock()
	defer t.session.mu.Unlock()
	return t.session.run(ctx, query, params)
}

// Commit synthesizes a bookmark since Kuzu has no commit history tokens.
func (t *kuzuTransaction) Commit(ctx context.Context) error {
	t.session.mu.Lock()
	defer t.session.mu.Unlock()

	if _, err := t.session.run(ctx, "COMMIT", nil); err != nil {
		return err
	}
	t.session.lastBookmark = "kuzu:" + uuid.NewString()
	return nil
}

func (t *kuzuTransaction) Rollback(ctx context.Context) error {
	t.session.mu.Lock()
	defer t.session.mu.Unlock()

	_, err := t.session.run(ctx, "ROLLBACK", nil)
	return err
}

func convertKuzuValue(value any) any {
	switch v := value.(type) {
	case kuzu.Node:
		return Node{ID: kuzuID(v.ID), Labels: []string{v.Label}, Props: v.Properties}
	case kuzu.Relationship:
		return Relationship{
			Type:    v.Label,
			StartID: kuzuID(v.SourceID),
			EndID:   kuzuID(v.DestinationID),
			Props:   v.Properties,
		}
	case []any:
		out := make([]any, len(v))
		for i := range v {
			out[i] = convertKuzuValue(v[i])
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = convertKuzuValue(item)
		}
		return out
	default:
		return v
	}
}

func kuzuID(id kuzu.InternalID) string {
	return fmt.Sprintf("%d:%d", id.TableID, id.Offset)
}
