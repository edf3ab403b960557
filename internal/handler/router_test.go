package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"graphgate-go/internal/controller"
	"graphgate-go/internal/db"
	"graphgate-go/internal/graphdb"
	"graphgate-go/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type testServer struct {
	driver *graphdb.FakeDriver
	router *gin.Engine
}

func newTestServer(t *testing.T, withHistory bool) *testServer {
	t.Helper()
	logger := zaptest.NewLogger(t)
	driver := graphdb.NewFakeDriver()

	var (
		recorder service.HistoryRecorder
		store    controller.HistoryStore
	)
	if withHistory {
		conn, err := db.NewSQLiteConnection(":memory:", logger)
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })

		repo, err := db.NewQueryHistoryRepository(conn, "test", logger)
		require.NoError(t, err)
		recorder, store = repo, repo
	}

	svc := service.NewGraphService(driver, service.Options{}, recorder, logger)
	ctrl := controller.NewGraphController(svc, store, logger)
	return &testServer{driver: driver, router: SetupRouter(ctrl, nil, logger)}
}

func (s *testServer) do(t *testing.T, method, path string, body any, correlationID string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, ok := body.(string)
		if !ok {
			encoded, err := json.Marshal(body)
			require.NoError(t, err)
			raw = string(encoded)
		}
		reader = bytes.NewReader([]byte(raw))
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if correlationID != "" {
		req.Header.Set(controller.CorrelationIDHeader, correlationID)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, false)

	w := s.do(t, http.MethodGet, "/api/v1/health", nil, "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
}

func TestCorrelationIDEchoedOrGenerated(t *testing.T) {
	s := newTestServer(t, false)

	w := s.do(t, http.MethodGet, "/api/v1/health", nil, "corr-abc")
	assert.Equal(t, "corr-abc", w.Header().Get(controller.CorrelationIDHeader))

	w = s.do(t, http.MethodGet, "/api/v1/health", nil, "")
	assert.Len(t, w.Header().Get(controller.CorrelationIDHeader), 36)
}

func TestStatus(t *testing.T) {
	tests := []struct {
		name       string
		connectErr error
		wantCode   int
		wantStatus string
	}{
		{name: "connected", wantCode: http.StatusOK, wantStatus: "Connected"},
		{name: "failed", connectErr: errors.New("refused"), wantCode: http.StatusServiceUnavailable, wantStatus: "Failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, false)
			s.driver.ConnectErr = tt.connectErr

			w := s.do(t, http.MethodGet, "/api/v1/status", nil, "")

			assert.Equal(t, tt.wantCode, w.Code)
			body := decode(t, w)
			assert.Equal(t, tt.wantStatus, body["status"])
			assert.Equal(t, "Fake Connection Status", body["message"])
		})
	}
}

func TestExecuteCypher(t *testing.T) {
	s := newTestServer(t, false)
	s.driver.RunFunc = func(query string, params map[string]any) (*graphdb.Result, error) {
		if strings.Contains(query, "broken") {
			return nil, &neo4j.Neo4jError{Code: "Neo.ClientError.Statement.SyntaxError", Msg: "Invalid input"}
		}
		return &graphdb.Result{
			Records:  []graphdb.Record{{Keys: []string{"total"}, Values: []any{int64(3)}}},
			Counters: graphdb.Counters{},
		}, nil
	}

	w := s.do(t, http.MethodPost, "/api/v1/cypher", map[string]any{"query": "MATCH (n) RETURN count(n) AS total"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, []any{map[string]any{"total": float64(3)}}, body["records"])
	assert.NotNil(t, body["stats"])

	w = s.do(t, http.MethodPost, "/api/v1/cypher", map[string]any{"query": "broken"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	errBody := decode(t, w)["error"].(map[string]any)
	assert.Equal(t, "Neo.ClientError.Statement.SyntaxError", errBody["code"])
	assert.Equal(t, "Invalid input", errBody["message"])

	w = s.do(t, http.MethodPost, "/api/v1/cypher", map[string]any{"query": ""}, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{}`, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/v1/cypher", "{not json", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRunTransactions(t *testing.T) {
	s := newTestServer(t, false)
	s.driver.TxRunFunc = func(query string, _ map[string]any) ([]graphdb.Record, error) {
		if strings.Contains(query, "bad") {
			return nil, errors.New("constraint violated")
		}
		return nil, nil
	}

	w := s.do(t, http.MethodPost, "/api/v1/transactions", map[string]any{
		"commands":  []string{"CREATE (a)", "CREATE (b)"},
		"bookmarks": []string{"FB:prev"},
	}, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"bookmark":"FB:fake:1","commands":2}`, w.Body.String())
	assert.Equal(t, []string{"FB:prev"}, s.driver.LastSession().Options.Bookmarks)

	w = s.do(t, http.MethodPost, "/api/v1/transactions", map[string]any{
		"commands": []string{"CREATE (a)", "bad"},
	}, "")
	assert.Equal(t, http.StatusConflict, w.Code)
	errBody := decode(t, w)["error"].(map[string]any)
	assert.EqualValues(t, 1, errBody["index"])

	w = s.do(t, http.MethodPost, "/api/v1/transactions", map[string]any{}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetNodes(t *testing.T) {
	s := newTestServer(t, false)
	var gotQuery string
	var gotParams map[string]any
	s.driver.RunFunc = func(query string, params map[string]any) (*graphdb.Result, error) {
		gotQuery, gotParams = query, params
		return &graphdb.Result{Records: []graphdb.Record{
			{Keys: []string{"name", "count_id"}, Values: []any{"Ada", int64(1)}},
		}}, nil
	}

	w := s.do(t, http.MethodGet,
		`/api/v1/nodes/Person?filter=n.age+%3E+%24min&fields=name,count_id&limit=5&params=%7B%22min%22%3A30%7D`, nil, "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MATCH (n:Person) WHERE n.age > $min RETURN n.name AS name, count(n.id) AS count_id LIMIT 5", gotQuery)
	assert.Equal(t, map[string]any{"min": float64(30)}, gotParams)
	assert.JSONEq(t, `{"records":[{"name":"Ada","count_id":1}]}`, w.Body.String())
	assert.Equal(t, graphdb.AccessRead, s.driver.LastSession().Options.Mode)

	w = s.do(t, http.MethodGet, "/api/v1/nodes", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MATCH (n) RETURN n", gotQuery)

	w = s.do(t, http.MethodGet, "/api/v1/nodes/Person?limit=-2", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/nodes/Person?params=nope", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWriteNodes(t *testing.T) {
	s := newTestServer(t, false)
	var queries []string
	var lastParams map[string]any
	s.driver.RunFunc = func(query string, params map[string]any) (*graphdb.Result, error) {
		queries = append(queries, query)
		lastParams = params
		return &graphdb.Result{Counters: graphdb.Counters{NodesCreated: 1, PropertiesSet: 2}}, nil
	}

	body := `{"label": "engineer", "properties": {"name": "Ada", "age": 36}}`

	w := s.do(t, http.MethodPost, "/api/v1/nodes/Person", body, "")
	require.Equal(t, http.StatusCreated, w.Code)
	stats := decode(t, w)["stats"].(map[string]any)
	assert.EqualValues(t, 2, stats["propertiesSet"])
	assert.Equal(t, map[string]any{"discriminator": "engineer", "p0": "Ada", "p1": int64(36)}, lastParams)

	w = s.do(t, http.MethodPut, "/api/v1/nodes/Person", body, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodDelete, "/api/v1/nodes/Person?label=engineer&detach=true", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, []string{
		"CREATE (n:Person {label: $discriminator}) SET n.name = $p0 SET n.age = $p1",
		"MERGE (n:Person {label: $discriminator}) SET n.name = $p0 SET n.age = $p1",
		"MATCH (n:Person) WHERE n.label = $discriminator DETACH DELETE n",
	}, queries)

	w = s.do(t, http.MethodDelete, "/api/v1/nodes/Person?detach=maybe", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHistory(t *testing.T) {
	s := newTestServer(t, true)

	s.do(t, http.MethodPost, "/api/v1/cypher", map[string]any{"query": "RETURN 1"}, "corr-h")
	s.do(t, http.MethodGet, "/api/v1/nodes/Person", nil, "corr-h")

	w := s.do(t, http.MethodGet, "/api/v1/history/corr-h", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	records := decode(t, w)["records"].([]any)
	require.Len(t, records, 2)
	assert.Equal(t, "runCypher", records[0].(map[string]any)["function"])
	assert.Equal(t, "getNode", records[1].(map[string]any)["function"])

	w = s.do(t, http.MethodGet, "/api/v1/history", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"total":2,"failures":0}`, w.Body.String())
}

func TestHistoryDisabled(t *testing.T) {
	s := newTestServer(t, false)

	w := s.do(t, http.MethodGet, "/api/v1/history/anything", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCustomRecoveryMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(CustomRecoveryMiddleware(zaptest.NewLogger(t)))
	router.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, w.Body.String())
}
