package graphdb

import (
	"context"
	"fmt"
	"sync"
)

// FakeDriver is an in-memory Driver for tests. Behaviour is scripted through
// the exported function fields; every session it hands out is recorded.
type FakeDriver struct {
	mu sync.Mutex

	BackendName string
	ConnectErr  error
	SessionErr  error

	// RunFunc answers Session.Run. Nil returns an empty result.
	RunFunc func(query string, params map[string]any) (*Result, error)
	// TxRunFunc answers Transaction.Run. Nil returns no records.
	TxRunFunc func(query string, params map[string]any) ([]Record, error)

	BeginErr  error
	CommitErr error
	Bookmark  string

	sessions []*FakeSession
	closed   bool
}

func NewFakeDriver() *FakeDriver {
	return &FakeDriver{BackendName: "Fake", Bookmark: "FB:fake:1"}
}

func (d *FakeDriver) Backend() string {
	return d.BackendName
}

func (d *FakeDriver) VerifyConnectivity(ctx context.Context) error {
	return d.ConnectErr
}

func (d *FakeDriver) Close(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *FakeDriver) NewSession(ctx context.Context, opts SessionOptions) (Session, error) {
	if d.SessionErr != nil {
		return nil, d.SessionErr
	}
	s := &FakeSession{driver: d, Options: opts}

	d.mu.Lock()
	d.sessions = append(d.sessions, s)
	d.mu.Unlock()
	return s, nil
}

// Sessions returns every session opened so far.
func (d *FakeDriver) Sessions() []*FakeSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*FakeSession(nil), d.sessions...)
}

// LastSession returns the most recent session, or nil.
func (d *FakeDriver) LastSession() *FakeSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.sessions) == 0 {
		return nil
	}
	return d.sessions[len(d.sessions)-1]
}

type FakeSession struct {
	mu       sync.Mutex
	driver   *FakeDriver
	Options  SessionOptions
	queries  []string
	tx       *FakeTransaction
	closed   bool
	bookmark string
}

func (s *FakeSession) Run(ctx context.Context, query string, params map[string]any) (*Result, error) {
	s.mu.Lock()
	s.queries = append(s.queries, query)
	s.mu.Unlock()

	if s.driver.RunFunc == nil {
		return &Result{}, nil
	}
	return s.driver.RunFunc(query, params)
}

func (s *FakeSession) BeginTransaction(ctx context.Context) (Transaction, error) {
	if s.driver.BeginErr != nil {
		return nil, s.driver.BeginErr
	}
	tx := &FakeTransaction{session: s}

	s.mu.Lock()
	s.tx = tx
	s.mu.Unlock()
	return tx, nil
}

func (s *FakeSession) LastBookmark() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bookmark
}

func (s *FakeSession) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Queries returns the statements run directly on the session.
func (s *FakeSession) Queries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}

func (s *FakeSession) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Transaction returns the explicit transaction opened on this session, or nil.
func (s *FakeSession) Transaction() *FakeTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx
}

type FakeTransaction struct {
	mu         sync.Mutex
	session    *FakeSession
	queries    []string
	committed  bool
	rolledBack bool
}

func (t *FakeTransaction) Run(ctx context.Context, query string, params map[string]any) ([]Record, error) {
	t.mu.Lock()
	if t.committed || t.rolledBack {
		t.mu.Unlock()
		return nil, fmt.Errorf("transaction already closed")
	}
	t.queries = append(t.queries, query)
	t.mu.Unlock()

	if t.session.driver.TxRunFunc == nil {
		return nil, nil
	}
	return t.session.driver.TxRunFunc(query, params)
}

func (t *FakeTransaction) Commit(ctx context.Context) error {
	if err := t.session.driver.CommitErr; err != nil {
		return err
	}

	t.mu.Lock()
	t.committed = true
	t.mu.Unlock()

	t.session.mu.Lock()
	t.session.bookmark = t.session.driver.Bookmark
	t.session.mu.Unlock()
	return nil
}

func (t *FakeTransaction) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rolledBack = true
	return nil
}

// Queries returns the statements submitted, in arrival order.
func (t *FakeTransaction) Queries() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.queries...)
}

func (t *FakeTransaction) Committed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.committed
}

func (t *FakeTransaction) RolledBack() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rolledBack
}
