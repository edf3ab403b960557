package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"graphgate-go/internal/cypher"
	"graphgate-go/internal/db"
	"graphgate-go/internal/service"
	"graphgate-go/internal/types"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// CorrelationIDHeader carries the caller's correlation id in and out.
	CorrelationIDHeader = "X-Correlation-ID"
	// CorrelationIDKey is the gin context key holding the request's correlation id.
	CorrelationIDKey = "correlation_id"
)

var (
	errInvalidLimit  = errors.New("limit must be a non-negative integer")
	errInvalidParams = errors.New("params must be a JSON object")
)

// HistoryStore reads the query journal.
type HistoryStore interface {
	ListByCorrelation(ctx context.Context, correlationID string) ([]*db.QueryRecord, error)
	GetStats(ctx context.Context) (db.HistoryStats, error)
}

// GraphController handles HTTP requests for graph operations
type GraphController struct {
	graph   *service.GraphService
	history HistoryStore
	logger  *zap.Logger
}

// NewGraphController creates a GraphController. history may be nil when the
// journal is disabled.
func NewGraphController(graph *service.GraphService, history HistoryStore, logger *zap.Logger) *GraphController {
	return &GraphController{
		graph:   graph,
		history: history,
		logger:  logger,
	}
}

// -----------------------------------------------------------------------------
// Request Types
// -----------------------------------------------------------------------------

// ExecuteCypherRequest is the request for executing raw Cypher
type ExecuteCypherRequest struct {
	Query  string         `json:"query"`
	Params map[string]any `json:"params"`
}

// RunTransactionsRequest is the request for executing a command batch
type RunTransactionsRequest struct {
	Commands  []string `json:"commands" binding:"required"`
	Bookmarks []string `json:"bookmarks"`
}

// WriteNodeRequest is the request body for creating or merging a node. Label
// is the discriminator value, not the node label.
type WriteNodeRequest struct {
	Label      string            `json:"label"`
	Properties cypher.Properties `json:"properties"`
}

// CorrelationID returns the request's correlation id.
func CorrelationID(ctx *gin.Context) string {
	if id := ctx.GetString(CorrelationIDKey); id != "" {
		return id
	}
	return ctx.GetHeader(CorrelationIDHeader)
}

// -----------------------------------------------------------------------------
// Graph Endpoints
// -----------------------------------------------------------------------------

// ConnectionStatus reports backend connectivity
func (c *GraphController) ConnectionStatus(ctx *gin.Context) {
	status := c.graph.ConnectionStatus(ctx.Request.Context())

	code := http.StatusOK
	if status.Status != service.StatusConnected {
		code = http.StatusServiceUnavailable
	}
	ctx.JSON(code, status)
}

// ExecuteCypher executes a raw Cypher query
func (c *GraphController) ExecuteCypher(ctx *gin.Context) {
	var req ExecuteCypherRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	outcome := c.graph.RunCypher(ctx.Request.Context(), req.Query, req.Params, CorrelationID(ctx))
	if outcome.Failed() {
		ctx.JSON(statusFor(outcome.Failure), outcome)
		return
	}
	ctx.JSON(http.StatusOK, outcome)
}

// RunTransactions executes commands as one transaction
func (c *GraphController) RunTransactions(ctx *gin.Context) {
	var req RunTransactionsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := c.graph.RunTransactions(ctx.Request.Context(), req.Commands, CorrelationID(ctx), req.Bookmarks...)
	if result.Failed() {
		ctx.JSON(statusFor(result.Failure), result)
		return
	}
	ctx.JSON(http.StatusOK, result)
}

// GetNodes reads nodes. Query parameters: filter, fields (repeated or
// comma-separated, count_/distinct_ prefixes allowed), limit, and params as a
// JSON object.
func (c *GraphController) GetNodes(ctx *gin.Context) {
	query, err := parseNodeQuery(ctx)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	nodes, err := c.graph.GetNode(ctx.Request.Context(), ctx.Param("label"), query, CorrelationID(ctx))
	if err != nil {
		c.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"records": nodes})
}

// PostNode creates a node
func (c *GraphController) PostNode(ctx *gin.Context) {
	var req WriteNodeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	counters, err := c.graph.PostNode(ctx.Request.Context(), ctx.Param("label"), req.Label, req.Properties, CorrelationID(ctx))
	if err != nil {
		c.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"stats": counters})
}

// PutNode merges a node
func (c *GraphController) PutNode(ctx *gin.Context) {
	var req WriteNodeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	counters, err := c.graph.PutNode(ctx.Request.Context(), ctx.Param("label"), req.Label, req.Properties, CorrelationID(ctx))
	if err != nil {
		c.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"stats": counters})
}

// DeleteNode deletes nodes. Query parameters: label (discriminator) and detach.
func (c *GraphController) DeleteNode(ctx *gin.Context) {
	var opts []service.DeleteOption
	if raw, ok := ctx.GetQuery("detach"); ok {
		detach, err := strconv.ParseBool(raw)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "detach must be a boolean"})
			return
		}
		opts = append(opts, service.WithDetach(detach))
	}

	counters, err := c.graph.DeleteNode(ctx.Request.Context(), ctx.Param("label"), ctx.Query("label"), CorrelationID(ctx), opts...)
	if err != nil {
		c.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"stats": counters})
}

// -----------------------------------------------------------------------------
// History Endpoints
// -----------------------------------------------------------------------------

// GetHistory lists journaled operations for a correlation id
func (c *GraphController) GetHistory(ctx *gin.Context) {
	if c.history == nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "query history is disabled"})
		return
	}

	records, err := c.history.ListByCorrelation(ctx.Request.Context(), ctx.Param("correlationID"))
	if err != nil {
		c.logger.Error("Failed to list query history", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"records": records})
}

// GetHistoryStats returns journal totals
func (c *GraphController) GetHistoryStats(ctx *gin.Context) {
	if c.history == nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "query history is disabled"})
		return
	}

	stats, err := c.history.GetStats(ctx.Request.Context())
	if err != nil {
		c.logger.Error("Failed to read query history stats", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, stats)
}

func (c *GraphController) writeError(ctx *gin.Context, err error) {
	var typed *types.Error
	if !errors.As(err, &typed) {
		typed = types.WrapError(types.QueryExecutionFailure, err.Error(), err)
	}
	ctx.JSON(statusFor(typed), gin.H{"error": typed})
}

func statusFor(err *types.Error) int {
	if err.Code == "InvalidArgument" {
		return http.StatusBadRequest
	}
	switch err.Kind {
	case types.ConnectivityFailure:
		return http.StatusServiceUnavailable
	case types.QueryExecutionFailure, types.ParseFailure:
		return http.StatusBadRequest
	case types.TransactionCommitFailure:
		return http.StatusConflict
	case types.FileNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func parseNodeQuery(ctx *gin.Context) (service.NodeQuery, error) {
	q := service.NodeQuery{Filter: ctx.Query("filter")}

	var fields []string
	for _, raw := range ctx.QueryArray("fields") {
		fields = append(fields, strings.Split(raw, ",")...)
	}
	q.Fields = cypher.ParseSelectors(fields)

	if raw := ctx.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return q, errInvalidLimit
		}
		q.Limit = limit
	}

	if raw := ctx.Query("params"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &q.Params); err != nil {
			return q, errInvalidParams
		}
	}
	return q, nil
}
