package main

import (
	"fmt"

	"graphgate-go/internal/bootstrap"
	"graphgate-go/internal/service"

	"github.com/spf13/cobra"
)

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "status",
		Short:         "Check connectivity to the configured graph database",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, sc, err := setup(rootOpts, bootstrap.GetCLIOptions)
			if err != nil {
				return err
			}
			defer logger.Sync()
			defer sc.Close(cmd.Context())

			status := sc.Graph.ConnectionStatus(cmd.Context())
			if err := writeJSON(cmd.OutOrStdout(), status); err != nil {
				return err
			}
			if status.Status != service.StatusConnected {
				return fmt.Errorf("graph database unavailable: %s", status.Error)
			}
			return nil
		},
	}
}
