package graphdb

import (
	"context"
	"errors"
	"testing"

	"graphgate-go/internal/types"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	typed := types.NewError(types.TransactionCommitFailure, "commit failed")

	tests := []struct {
		name     string
		err      error
		wantKind types.ErrorKind
		wantCode string
		wantMsg  string
	}{
		{
			name:     "neo4j error keeps store code and message",
			err:      &neo4j.Neo4jError{Code: "Neo.ClientError.Statement.SyntaxError", Msg: "Invalid input 'X'"},
			wantKind: types.QueryExecutionFailure,
			wantCode: "Neo.ClientError.Statement.SyntaxError",
			wantMsg:  "Invalid input 'X'",
		},
		{
			name:     "typed error passes through",
			err:      typed,
			wantKind: types.TransactionCommitFailure,
			wantCode: string(types.TransactionCommitFailure),
			wantMsg:  "commit failed",
		},
		{
			name:     "plain error uses fallback kind",
			err:      errors.New("boom"),
			wantKind: types.QueryExecutionFailure,
			wantCode: string(types.QueryExecutionFailure),
			wantMsg:  "boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err, types.QueryExecutionFailure)
			require.NotNil(t, got)
			assert.Equal(t, tt.wantKind, got.Kind)
			assert.Equal(t, tt.wantCode, got.Code)
			assert.Equal(t, tt.wantMsg, got.Message)
			assert.Equal(t, types.NoIndex, got.Index)
		})
	}

	assert.Nil(t, Classify(nil, types.QueryExecutionFailure))
}

func TestRecordGet(t *testing.T) {
	rec := Record{Keys: []string{"a", "b"}, Values: []any{1, "two"}}

	v, ok := rec.Get("b")
	assert.True(t, ok)
	assert.Equal(t, "two", v)

	_, ok = rec.Get("c")
	assert.False(t, ok)
}

func TestCountersContainsUpdates(t *testing.T) {
	assert.False(t, Counters{}.ContainsUpdates())
	assert.True(t, Counters{PropertiesSet: 2}.ContainsUpdates())
}

func TestConvertNeo4jValue(t *testing.T) {
	node := neo4j.Node{
		Id:        7,
		ElementId: "4:abc:7",
		Labels:    []string{"Person"},
		Props:     map[string]any{"name": "Ada"},
	}
	rel := neo4j.Relationship{
		ElementId:      "5:abc:1",
		StartElementId: "4:abc:7",
		EndElementId:   "4:abc:8",
		Type:           "KNOWS",
		Props:          map[string]any{"since": int64(1843)},
	}

	got := convertNeo4jValue([]any{node, map[string]any{"r": rel}, int64(3)})

	assert.Equal(t, []any{
		Node{ID: "4:abc:7", Labels: []string{"Person"}, Props: map[string]any{"name": "Ada"}},
		map[string]any{"r": Relationship{
			ID:      "5:abc:1",
			Type:    "KNOWS",
			StartID: "4:abc:7",
			EndID:   "4:abc:8",
			Props:   map[string]any{"since": int64(1843)},
		}},
		int64(3),
	}, got)
}

func TestConvertNeo4jCountersNilSummary(t *testing.T) {
	assert.Equal(t, Counters{}, convertNeo4jCounters(nil))
}

func TestFakeDriverRecordsSessions(t *testing.T) {
	ctx := context.Background()
	d := NewFakeDriver()

	s, err := d.NewSession(ctx, SessionOptions{Mode: AccessRead, Bookmarks: []string{"b1"}})
	require.NoError(t, err)

	_, err = s.Run(ctx, "RETURN 1", nil)
	require.NoError(t, err)

	tx, err := s.BeginTransaction(ctx)
	require.NoError(t, err)
	_, err = tx.Run(ctx, "CREATE (n)", nil)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))
	require.NoError(t, s.Close(ctx))

	fs := d.LastSession()
	require.NotNil(t, fs)
	assert.Equal(t, AccessRead, fs.Options.Mode)
	assert.Equal(t, []string{"b1"}, fs.Options.Bookmarks)
	assert.Equal(t, []string{"RETURN 1"}, fs.Queries())
	assert.Equal(t, []string{"CREATE (n)"}, fs.Transaction().Queries())
	assert.True(t, fs.Transaction().Committed())
	assert.True(t, fs.Closed())
	assert.Equal(t, "FB:fake:1", s.LastBookmark())

	_, err = tx.Run(ctx, "CREATE (m)", nil)
	assert.Error(t, err)
}

func TestAccessModeString(t *testing.T) {
	assert.Equal(t, "read", AccessRead.String())
	assert.Equal(t, "write", AccessWrite.String())
}
