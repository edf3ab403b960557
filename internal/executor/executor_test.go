package executor

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"graphgate-go/internal/cypher"
	"graphgate-go/internal/graphdb"
	"graphgate-go/internal/types"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newSession(t *testing.T, d *graphdb.FakeDriver) (graphdb.Session, *graphdb.FakeSession) {
	t.Helper()
	s, err := d.NewSession(context.Background(), graphdb.SessionOptions{})
	require.NoError(t, err)
	return s, d.LastSession()
}

func TestRunQueryEmptyStatementSkipsSession(t *testing.T) {
	d := graphdb.NewFakeDriver()
	d.RunFunc = func(string, map[string]any) (*graphdb.Result, error) {
		t.Fatal("session must not be invoked")
		return nil, nil
	}
	s, fs := newSession(t, d)

	got := NewCoordinator(0, zaptest.NewLogger(t)).RunQuery(context.Background(), s, cypher.Statement{})

	assert.True(t, got.IsEmpty())
	assert.Empty(t, fs.Queries())
}

func TestRunQuery(t *testing.T) {
	tests := []struct {
		name         string
		runFunc      func(string, map[string]any) (*graphdb.Result, error)
		wantRecords  []map[string]any
		wantCounters *graphdb.Counters
		wantKind     types.ErrorKind
		wantCode     string
	}{
		{
			name: "records and counters",
			runFunc: func(string, map[string]any) (*graphdb.Result, error) {
				return &graphdb.Result{
					Records: []graphdb.Record{
						{Keys: []string{"n", "total"}, Values: []any{
							graphdb.Node{ID: "1", Labels: []string{"Person"}, Props: map[string]any{"name": "a"}},
							int64(2),
						}},
					},
					Counters: graphdb.Counters{PropertiesSet: 1},
				}, nil
			},
			wantRecords:  []map[string]any{{"n": map[string]any{"name": "a"}, "total": int64(2)}},
			wantCounters: &graphdb.Counters{PropertiesSet: 1},
		},
		{
			name: "no counters reported",
			runFunc: func(string, map[string]any) (*graphdb.Result, error) {
				return &graphdb.Result{}, nil
			},
			wantRecords:  []map[string]any{},
			wantCounters: &graphdb.Counters{},
		},
		{
			name: "store error keeps its code",
			runFunc: func(string, map[string]any) (*graphdb.Result, error) {
				return nil, &neo4j.Neo4jError{Code: "Neo.ClientError.Statement.SyntaxError", Msg: "bad syntax"}
			},
			wantKind: types.QueryExecutionFailure,
			wantCode: "Neo.ClientError.Statement.SyntaxError",
		},
		{
			name: "plain error",
			runFunc: func(string, map[string]any) (*graphdb.Result, error) {
				return nil, errors.New("socket closed")
			},
			wantKind: types.QueryExecutionFailure,
			wantCode: string(types.QueryExecutionFailure),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := graphdb.NewFakeDriver()
			d.RunFunc = tt.runFunc
			s, fs := newSession(t, d)

			got := NewCoordinator(0, zaptest.NewLogger(t)).RunQuery(context.Background(), s, cypher.Raw("MATCH (n) RETURN n", nil))

			assert.Equal(t, []string{"MATCH (n) RETURN n"}, fs.Queries())
			if tt.wantKind != "" {
				require.True(t, got.Failed())
				assert.Equal(t, tt.wantKind, got.Failure.Kind)
				assert.Equal(t, tt.wantCode, got.Failure.Code)
				assert.Nil(t, got.Records)
				return
			}
			require.False(t, got.Failed())
			assert.Equal(t, tt.wantRecords, got.Records)
			assert.Equal(t, tt.wantCounters, got.Counters)
		})
	}
}

func statements(texts ...string) []cypher.Statement {
	out := make([]cypher.Statement, len(texts))
	for i, text := range texts {
		out[i] = cypher.Raw(text, nil)
	}
	return out
}

func TestRunBatchCommandFailure(t *testing.T) {
	tests := []struct {
		name      string
		commands  []string
		wantIndex int
	}{
		{name: "first command fails", commands: []string{"FAIL 0", "CREATE (b)", "CREATE (c)"}, wantIndex: 0},
		{name: "middle command fails", commands: []string{"CREATE (a)", "FAIL 1", "CREATE (c)"}, wantIndex: 1},
		{name: "lowest index wins", commands: []string{"CREATE (a)", "CREATE (b)", "FAIL 2", "FAIL 3"}, wantIndex: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := graphdb.NewFakeDriver()
			d.TxRunFunc = func(query string, _ map[string]any) ([]graphdb.Record, error) {
				if strings.HasPrefix(query, "FAIL") {
					return nil, &neo4j.Neo4jError{Code: "Neo.ClientError.Statement.SyntaxError", Msg: query}
				}
				return nil, nil
			}
			s, fs := newSession(t, d)

			got := NewCoordinator(0, zaptest.NewLogger(t)).RunBatch(context.Background(), s, statements(tt.commands...))

			require.True(t, got.Failed())
			assert.Equal(t, tt.wantIndex, got.Failure.Index)
			assert.Equal(t, "Neo.ClientError.Statement.SyntaxError", got.Failure.Code)
			assert.Equal(t, tt.commands[tt.wantIndex], got.Failure.Message)
			assert.Empty(t, got.Bookmark)

			tx := fs.Transaction()
			assert.False(t, tx.Committed())
			assert.True(t, tx.RolledBack())
			assert.ElementsMatch(t, tt.commands, tx.Queries())
		})
	}
}

func TestRunBatchSuccessReturnsBookmark(t *testing.T) {
	d := graphdb.NewFakeDriver()
	var submitted atomic.Int32
	d.TxRunFunc = func(string, map[string]any) ([]graphdb.Record, error) {
		submitted.Add(1)
		return nil, nil
	}
	s, fs := newSession(t, d)

	got := NewCoordinator(2, zaptest.NewLogger(t)).RunBatch(context.Background(), s,
		statements("CREATE (a)", "CREATE (b)", "CREATE (c)", "CREATE (d)"))

	require.False(t, got.Failed())
	assert.Equal(t, "FB:fake:1", got.Bookmark)
	assert.Equal(t, 4, got.Commands)
	assert.Equal(t, int32(4), submitted.Load())
	assert.True(t, fs.Transaction().Committed())
	assert.False(t, fs.Transaction().RolledBack())
}

func TestRunBatchCommitFailure(t *testing.T) {
	d := graphdb.NewFakeDriver()
	d.CommitErr = errors.New("leader switched")
	s, _ := newSession(t, d)

	got := NewCoordinator(0, zaptest.NewLogger(t)).RunBatch(context.Background(), s, statements("CREATE (a)"))

	require.True(t, got.Failed())
	assert.Equal(t, types.TransactionCommitFailure, got.Failure.Kind)
	assert.Equal(t, types.NoIndex, got.Failure.Index)
	assert.Empty(t, got.Bookmark)
}

func TestRunBatchBeginFailure(t *testing.T) {
	d := graphdb.NewFakeDriver()
	d.BeginErr = errors.New("no writer available")
	s, fs := newSession(t, d)

	got := NewCoordinator(0, zaptest.NewLogger(t)).RunBatch(context.Background(), s, statements("CREATE (a)"))

	require.True(t, got.Failed())
	assert.Equal(t, types.TransactionCommitFailure, got.Failure.Kind)
	assert.Nil(t, fs.Transaction())
}

func TestRunBatchEmpty(t *testing.T) {
	d := graphdb.NewFakeDriver()
	s, fs := newSession(t, d)

	got := NewCoordinator(0, zaptest.NewLogger(t)).RunBatch(context.Background(), s, nil)

	assert.False(t, got.Failed())
	assert.Zero(t, got.Commands)
	assert.Nil(t, fs.Transaction())
}
