package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"graphgate-go/internal/bootstrap"
	"graphgate-go/internal/controller"
	"graphgate-go/internal/handler"
	"graphgate-go/pkg/mcp"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "serve",
		Short:         "Start the HTTP API and MCP endpoint",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), rootOpts)
		},
	}
}

func serve(ctx context.Context, opts *RootOptions) error {
	cfg, logger, sc, err := setup(opts, bootstrap.GetServerModeOptions)
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer sc.Close(context.Background())

	logger.Info("Configuration loaded successfully",
		zap.String("backend", cfg.Graph.Backend),
		zap.Bool("history", cfg.History.Enabled),
		zap.Bool("mcp", cfg.Mcp.Enabled))

	status := sc.Graph.ConnectionStatus(ctx)
	logger.Info("Initial connection status",
		zap.String("status", string(status.Status)),
		zap.String("error", status.Error))

	graphController := controller.NewGraphController(sc.Graph, sc.HistoryStore(), logger)

	var registrar handler.RouteRegistrar
	if cfg.Mcp.Enabled {
		registrar = mcp.NewGraphServer(sc.Graph, cfg.Mcp, logger)
	}

	router := handler.SetupRouter(graphController, registrar, logger)
	server := &http.Server{
		Addr:    cfg.App.GetAddress(),
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", zap.Int("port", cfg.App.Port))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", zap.Error(err))
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
