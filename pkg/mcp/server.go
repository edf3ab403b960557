package mcp

import (
	"context"
	"errors"
	"net/http"

	"graphgate-go/internal/config"
	"graphgate-go/internal/cypher"
	"graphgate-go/internal/service"
	"graphgate-go/internal/types"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

const (
	serverName    = "graphgate"
	serverVersion = "v1.0.0"
)

// GraphServer exposes the graph operations as MCP tools.
type GraphServer struct {
	graph  *service.GraphService
	server *mcp.Server
	path   string
	logger *zap.Logger
}

type ConnectionStatusInput struct{}

type RunCypherInput struct {
	Query         string         `json:"query" jsonschema:"Cypher statement to execute"`
	Params        map[string]any `json:"params,omitempty" jsonschema:"parameters referenced by the statement"`
	CorrelationID string         `json:"correlation_id,omitempty" jsonschema:"id used to correlate log lines and history"`
}

type RunTransactionsInput struct {
	Commands      []string `json:"commands" jsonschema:"Cypher statements committed together or not at all"`
	Bookmarks     []string `json:"bookmarks,omitempty" jsonschema:"bookmarks the transaction must observe"`
	CorrelationID string   `json:"correlation_id,omitempty" jsonschema:"id used to correlate log lines and history"`
}

type GetNodeInput struct {
	Label         string         `json:"label,omitempty" jsonschema:"node label; empty matches every node"`
	Filter        string         `json:"filter,omitempty" jsonschema:"predicate over n appended after WHERE"`
	Params        map[string]any `json:"params,omitempty" jsonschema:"parameters referenced by the filter"`
	Fields        []string       `json:"fields,omitempty" jsonschema:"properties to return; prefix with count_ or distinct_ to aggregate"`
	Limit         int            `json:"limit,omitempty" jsonschema:"maximum number of rows"`
	CorrelationID string         `json:"correlation_id,omitempty" jsonschema:"id used to correlate log lines and history"`
}

// PropertyInput is one property assignment. Tool arguments arrive as a
// decoded map, so assignments are a list to keep their order.
type PropertyInput struct {
	Key   string `json:"key" jsonschema:"property name"`
	Value any    `json:"value" jsonschema:"property value"`
}

type WriteNodeInput struct {
	Label         string          `json:"label" jsonschema:"node label"`
	Discriminator string          `json:"discriminator,omitempty" jsonschema:"value of the discriminator property identifying the node"`
	Properties    []PropertyInput `json:"properties,omitempty" jsonschema:"properties to set on the node, applied in order"`
	CorrelationID string          `json:"correlation_id,omitempty" jsonschema:"id used to correlate log lines and history"`
}

func (in WriteNodeInput) properties() cypher.Properties {
	if len(in.Properties) == 0 {
		return nil
	}
	props := make(cypher.Properties, 0, len(in.Properties))
	for _, p := range in.Properties {
		props = append(props, cypher.Property{Key: p.Key, Value: p.Value})
	}
	return props
}

type DeleteNodeInput struct {
	Label         string `json:"label" jsonschema:"node label"`
	Discriminator string `json:"discriminator,omitempty" jsonschema:"only delete nodes with this discriminator value"`
	Detach        *bool  `json:"detach,omitempty" jsonschema:"also delete attached relationships"`
	CorrelationID string `json:"correlation_id,omitempty" jsonschema:"id used to correlate log lines and history"`
}

// NewGraphServer creates the MCP server and registers its tools.
func NewGraphServer(graph *service.GraphService, cfg config.McpConfig, logger *zap.Logger) *GraphServer {
	s := &GraphServer{
		graph:  graph,
		server: mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil),
		path:   cfg.Path,
		logger: logger,
	}
	if s.path == "" {
		s.path = "/mcp"
	}
	s.registerTools()
	return s
}

// Server returns the underlying MCP server.
func (s *GraphServer) Server() *mcp.Server {
	return s.server
}

// SetupHTTPRoutes mounts the streamable HTTP transport on router.
func (s *GraphServer) SetupHTTPRoutes(router *gin.Engine) {
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, nil)
	router.Any(s.path, gin.WrapH(handler))
	s.logger.Info("MCP endpoint registered", zap.String("path", s.path))
}

func (s *GraphServer) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "connection_status",
		Description: "Check whether the graph database is reachable",
	}, s.connectionStatus)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "run_cypher",
		Description: "Run a Cypher statement and return its records and update statistics",
	}, s.runCypher)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "run_transactions",
		Description: "Run Cypher statements in a single transaction; all commit or none do",
	}, s.runTransactions)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_node",
		Description: "Read nodes by label with an optional filter, field projection and limit",
	}, s.getNode)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "post_node",
		Description: "Create a node and set its properties",
	}, s.postNode)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "put_node",
		Description: "Merge a node on its discriminator and set its properties",
	}, s.putNode)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "delete_node",
		Description: "Delete nodes by label, optionally restricted to a discriminator value",
	}, s.deleteNode)
}

func (s *GraphServer) connectionStatus(ctx context.Context, _ *mcp.CallToolRequest, _ ConnectionStatusInput) (*mcp.CallToolResult, any, error) {
	status := s.graph.ConnectionStatus(ctx)
	return &mcp.CallToolResult{IsError: status.Status != service.StatusConnected}, status, nil
}

func (s *GraphServer) runCypher(ctx context.Context, _ *mcp.CallToolRequest, in RunCypherInput) (*mcp.CallToolResult, any, error) {
	outcome := s.graph.RunCypher(ctx, in.Query, in.Params, correlationID(in.CorrelationID))
	return &mcp.CallToolResult{IsError: outcome.Failed()}, outcome, nil
}

func (s *GraphServer) runTransactions(ctx context.Context, _ *mcp.CallToolRequest, in RunTransactionsInput) (*mcp.CallToolResult, any, error) {
	result := s.graph.RunTransactions(ctx, in.Commands, correlationID(in.CorrelationID), in.Bookmarks...)
	return &mcp.CallToolResult{IsError: result.Failed()}, result, nil
}

func (s *GraphServer) getNode(ctx context.Context, _ *mcp.CallToolRequest, in GetNodeInput) (*mcp.CallToolResult, any, error) {
	nodes, err := s.graph.GetNode(ctx, in.Label, service.NodeQuery{
		Filter: in.Filter,
		Params: in.Params,
		Fields: cypher.ParseSelectors(in.Fields),
		Limit:  in.Limit,
	}, correlationID(in.CorrelationID))
	if err != nil {
		return toolError(err)
	}
	return nil, map[string]any{"records": nodes}, nil
}

func (s *GraphServer) postNode(ctx context.Context, _ *mcp.CallToolRequest, in WriteNodeInput) (*mcp.CallToolResult, any, error) {
	counters, err := s.graph.PostNode(ctx, in.Label, in.Discriminator, in.properties(), correlationID(in.CorrelationID))
	if err != nil {
		return toolError(err)
	}
	return nil, map[string]any{"stats": counters}, nil
}

func (s *GraphServer) putNode(ctx context.Context, _ *mcp.CallToolRequest, in WriteNodeInput) (*mcp.CallToolResult, any, error) {
	counters, err := s.graph.PutNode(ctx, in.Label, in.Discriminator, in.properties(), correlationID(in.CorrelationID))
	if err != nil {
		return toolError(err)
	}
	return nil, map[string]any{"stats": counters}, nil
}

func (s *GraphServer) deleteNode(ctx context.Context, _ *mcp.CallToolRequest, in DeleteNodeInput) (*mcp.CallToolResult, any, error) {
	var opts []service.DeleteOption
	if in.Detach != nil {
		opts = append(opts, service.WithDetach(*in.Detach))
	}

	counters, err := s.graph.DeleteNode(ctx, in.Label, in.Discriminator, correlationID(in.CorrelationID), opts...)
	if err != nil {
		return toolError(err)
	}
	return nil, map[string]any{"stats": counters}, nil
}

// toolError reports a typed failure as structured tool output.
func toolError(err error) (*mcp.CallToolResult, any, error) {
	var typed *types.Error
	if !errors.As(err, &typed) {
		return nil, nil, err
	}
	return &mcp.CallToolResult{IsError: true}, map[string]any{"error": typed}, nil
}

func correlationID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}
