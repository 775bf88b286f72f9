// Package catalog manages the search index of published listings.
package catalog

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ikanisa/dar-ingest/cmd/common"
	"github.com/ikanisa/dar-ingest/internal/catalog"
	"github.com/ikanisa/dar-ingest/internal/database"
)

// Command returns the catalog command.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the published listing search index",
	}
	cmd.AddCommand(syncCommand())
	return cmd
}

func syncCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Index approved listings into Elasticsearch",
		RunE:  runSync,
	}
}

func runSync(cmd *cobra.Command, _ []string) error {
	deps, err := common.NewDeps(cmd)
	if err != nil {
		return err
	}

	if !deps.Config.Elasticsearch.Enabled {
		return errors.New("elasticsearch is disabled in configuration")
	}

	if err := deps.OpenDatabase(); err != nil {
		return err
	}
	defer deps.Close()

	client, err := catalog.NewClient(deps.Config.Elasticsearch)
	if err != nil {
		return fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	indexer := catalog.NewIndexer(client, deps.Config.Elasticsearch.Index, deps.Logger)
	if err := indexer.EnsureIndex(cmd.Context()); err != nil {
		return fmt.Errorf("failed to ensure index: %w", err)
	}

	count, err := indexer.Sync(cmd.Context(), database.NewListingRepository(deps.DB))
	if err != nil {
		return fmt.Errorf("catalog sync failed: %w", err)
	}

	deps.Logger.Info("catalog sync complete", "indexed", count)
	return nil
}
