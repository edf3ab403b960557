package main

import (
	"encoding/json"
	"fmt"

	"graphgate-go/internal/bootstrap"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// CypherOptions holds flags for the cypher command.
type CypherOptions struct {
	*RootOptions
	Params        string
	CorrelationID string
}

// NewCypherCommand creates the cypher command.
func NewCypherCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CypherOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "cypher <query>",
		Short: "Run a Cypher statement and print its records",
		Long: `Run a Cypher statement and print its records and update statistics as JSON.

Example:
  graphgate cypher 'MATCH (n:Person) WHERE n.age > $min RETURN n.name' --params '{"min":30}'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCypher(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Params, "params", "", "query parameters as a JSON object")
	cmd.Flags().StringVar(&opts.CorrelationID, "correlation-id", "", "correlation id for logs and history")

	return cmd
}

func runCypher(cmd *cobra.Command, opts *CypherOptions, query string) error {
	var params map[string]any
	if opts.Params != "" {
		if err := json.Unmarshal([]byte(opts.Params), &params); err != nil {
			return fmt.Errorf("invalid --params JSON: %w", err)
		}
	}

	_, logger, sc, err := setup(opts.RootOptions, bootstrap.GetCLIOptions)
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer sc.Close(cmd.Context())

	correlationID := opts.CorrelationID
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	outcome := sc.Graph.RunCypher(cmd.Context(), query, params, correlationID)
	if err := writeJSON(cmd.OutOrStdout(), outcome); err != nil {
		return err
	}
	if outcome.Failed() {
		return outcome.Failure
	}
	return nil
}
