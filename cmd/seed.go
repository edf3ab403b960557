package main

import (
	"fmt"

	"graphgate-go/internal/bootstrap"
	"graphgate-go/internal/storage"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// SeedFileResult reports the batch committed for one seed file.
type SeedFileResult struct {
	File     string `json:"file"`
	Commands int    `json:"commands"`
	Bookmark string `json:"bookmark,omitempty"`
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <dir>",
		Short: "Apply Cypher command files from a directory",
		Long: `Apply every *.json file in a directory, in name order. Each file holds a
JSON array of Cypher statements, or an object with a "commands" array, and is
committed as one transaction. Each batch waits for the previous one's bookmark.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, sc, err := setup(rootOpts, bootstrap.GetCLIOptions)
			if err != nil {
				return err
			}
			defer logger.Sync()
			defer sc.Close(cmd.Context())

			results, err := seed(cmd, sc, storage.NewReader(logger), args[0], logger)
			if werr := writeJSON(cmd.OutOrStdout(), results); werr != nil && err == nil {
				err = werr
			}
			return err
		},
	}
}

func seed(cmd *cobra.Command, sc *bootstrap.ServiceContainer, reader *storage.Reader, dir string, logger *zap.Logger) ([]SeedFileResult, error) {
	files, err := reader.JSONFiles(dir)
	if err != nil {
		return nil, err
	}

	correlationID := uuid.NewString()
	logger.Info("Seeding graph",
		zap.String("dir", dir),
		zap.Int("files", len(files)),
		zap.String("correlation_id", correlationID))

	results := make([]SeedFileResult, 0, len(files))
	var bookmarks []string
	for _, file := range files {
		commands, err := reader.ReadCommands(file)
		if err != nil {
			return results, err
		}

		result := sc.Graph.RunTransactions(cmd.Context(), commands, correlationID, bookmarks...)
		if result.Failed() {
			return results, fmt.Errorf("%s: %w", file, result.Failure)
		}

		results = append(results, SeedFileResult{File: file, Commands: result.Commands, Bookmark: result.Bookmark})
		if result.Bookmark != "" {
			bookmarks = []string{result.Bookmark}
		}
	}
	return results, nil
}
