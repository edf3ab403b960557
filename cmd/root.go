package main

import (
	"encoding/json"
	"fmt"
	"io"

	"graphgate-go/internal/bootstrap"
	"graphgate-go/internal/config"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
}

// NewRootCommand creates the root command for the graphgate CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "graphgate",
		Short: "Graph query gateway for Neo4j and Kuzu",
		Long:  "Serve and run Cypher operations against a Neo4j or Kuzu graph database.",
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "app.yaml", "path to app configuration file")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewCypherCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))

	return cmd
}

// setup loads configuration, builds the logger and initializes services.
func setup(opts *RootOptions, initOpts func(*config.Config) bootstrap.ServiceInitOptions) (*config.Config, *zap.Logger, *bootstrap.ServiceContainer, error) {
	cfg, err := config.LoadConfig(opts.ConfigPath)
	if err != nil {
		return nil, nil, nil, err
	}

	logger, err := newLogger(cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	sc, err := bootstrap.NewServiceContainer(cfg, initOpts(cfg), logger)
	if err != nil {
		logger.Sync()
		return nil, nil, nil, err
	}
	return cfg, logger, sc, nil
}

func newLogger(app config.App) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(app.LogLevel)
	if err != nil {
		return nil, err
	}

	cfgZap := zap.NewProductionConfig()
	cfgZap.Level = level
	cfgZap.OutputPaths = app.LogOutputs
	return cfgZap.Build()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
