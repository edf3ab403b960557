package bootstrap

import (
	"context"
	"fmt"

	"graphgate-go/internal/config"
	"graphgate-go/internal/controller"
	"graphgate-go/internal/db"
	"graphgate-go/internal/graphdb"
	"graphgate-go/internal/service"

	"go.uber.org/zap"
)

// ServiceContainer holds all initialized services and their lifecycle management
type ServiceContainer struct {
	// Graph store
	Driver graphdb.Driver
	Graph  *service.GraphService

	// Query history
	HistoryConn *db.Connection
	History     *db.QueryHistoryRepository

	logger *zap.Logger
}

// ServiceInitOptions configures which services to initialize
type ServiceInitOptions struct {
	EnableHistory bool

	// If true, fail when the history database is not available
	RequireHistory bool
}

// NewServiceContainer initializes all requested services based on options
func NewServiceContainer(cfg *config.Config, opts ServiceInitOptions, logger *zap.Logger) (*ServiceContainer, error) {
	container := &ServiceContainer{
		logger: logger,
	}

	var err error

	if opts.EnableHistory {
		container.HistoryConn, container.History, err = initHistory(cfg, logger)
		if err != nil {
			if opts.RequireHistory {
				return nil, fmt.Errorf("query history initialization failed (required): %w", err)
			}
			logger.Warn("Query history initialization failed, continuing without it", zap.Error(err))
		}
	}

	container.Driver, err = NewDriver(cfg, logger)
	if err != nil {
		container.Close(context.Background())
		return nil, fmt.Errorf("graph driver initialization failed: %w", err)
	}
	logger.Info("Graph driver initialized", zap.String("backend", container.Driver.Backend()))

	container.Graph = service.NewGraphService(container.Driver, service.Options{
		DiscriminatorKey: cfg.Graph.DiscriminatorKey,
		MaxInFlight:      cfg.Graph.MaxInFlight,
		DetachDelete:     cfg.Graph.DetachDelete,
	}, container.recorder(), logger)

	return container, nil
}

// HistoryStore returns the history repository, or an untyped nil when the
// journal is disabled.
func (sc *ServiceContainer) HistoryStore() controller.HistoryStore {
	if sc.History == nil {
		return nil
	}
	return sc.History
}

// recorder avoids handing the service a typed nil interface.
func (sc *ServiceContainer) recorder() service.HistoryRecorder {
	if sc.History == nil {
		return nil
	}
	return sc.History
}

// Close cleans up all resources
func (sc *ServiceContainer) Close(ctx context.Context) {
	if sc.Driver != nil {
		if err := sc.Driver.Close(ctx); err != nil {
			sc.logger.Warn("Failed to close graph driver", zap.Error(err))
		} else {
			sc.logger.Info("Graph driver closed")
		}
	}

	if sc.HistoryConn != nil {
		sc.HistoryConn.Close()
		sc.logger.Info("History database closed")
	}
}

// NewDriver opens the graph backend selected by cfg.Graph.Backend. A failed
// constructor yields a nil interface, never one wrapping a nil pointer.
func NewDriver(cfg *config.Config, logger *zap.Logger) (graphdb.Driver, error) {
	switch cfg.Graph.Backend {
	case config.BackendNeo4j:
		driver, err := graphdb.NewNeo4jDriver(graphdb.Neo4jConfig{
			URI:                   cfg.Neo4j.URI,
			Username:              cfg.Neo4j.Username,
			Password:              cfg.Neo4j.Password,
			Database:              cfg.Neo4j.Database,
			MaxConnectionPoolSize: cfg.Neo4j.MaxConnectionPoolSize,
			ConnectionTimeout:     cfg.Neo4j.ConnectionTimeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		return driver, nil
	case config.BackendKuzu:
		driver, err := graphdb.NewKuzuDriver(graphdb.KuzuConfig{
			Path:           cfg.Kuzu.Path,
			InMemory:       cfg.Kuzu.InMemory,
			MaxNumThreads:  cfg.Kuzu.MaxNumThreads,
			BufferPoolSize: cfg.Kuzu.BufferPoolSize,
		}, logger)
		if err != nil {
			return nil, err
		}
		return driver, nil
	default:
		return nil, fmt.Errorf("unsupported graph backend: %s", cfg.Graph.Backend)
	}
}

// initHistory opens the history database and ensures the journal table exists
func initHistory(cfg *config.Config, logger *zap.Logger) (*db.Connection, *db.QueryHistoryRepository, error) {
	conn, err := db.Open(cfg.History, cfg.MySQL, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open history database: %w", err)
	}

	repo, err := db.NewQueryHistoryRepository(conn, cfg.History.TablePrefix, logger)
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to prepare history table: %w", err)
	}

	logger.Info("Query history enabled",
		zap.String("driver", conn.Driver()),
		zap.String("table_prefix", cfg.History.TablePrefix))
	return conn, repo, nil
}

// GetServerModeOptions returns ServiceInitOptions configured for server mode
func GetServerModeOptions(cfg *config.Config) ServiceInitOptions {
	return ServiceInitOptions{
		EnableHistory:  cfg.History.Enabled,
		RequireHistory: false, // Optional in server mode
	}
}

// GetCLIOptions returns ServiceInitOptions for one-shot commands
func GetCLIOptions(cfg *config.Config) ServiceInitOptions {
	return ServiceInitOptions{
		EnableHistory:  cfg.History.Enabled,
		RequireHistory: cfg.History.Enabled,
	}
}
