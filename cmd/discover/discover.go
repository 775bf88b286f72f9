// Package discover crawls configured source index pages for listing URLs.
package discover

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/ikanisa/dar-ingest/cmd/common"
	"github.com/ikanisa/dar-ingest/internal/database"
	"github.com/ikanisa/dar-ingest/internal/discovery"
)

// Command returns the discover command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "Crawl source index pages and enqueue discovered listing URLs",
		RunE:  run,
	}
}

func run(cmd *cobra.Command, _ []string) error {
	deps, err := common.NewDeps(cmd)
	if err != nil {
		return err
	}

	if len(deps.Config.Discovery.Sources) == 0 {
		return errors.New("no discovery sources configured")
	}

	if err := deps.OpenDatabase(); err != nil {
		return err
	}
	defer deps.Close()

	crawler := discovery.NewCrawler(
		database.NewQueueRepository(deps.DB),
		discovery.Options{
			UserAgent: deps.Config.Fetcher.UserAgent,
			MaxDepth:  deps.Config.Discovery.MaxDepth,
		},
		deps.Logger,
	)

	stats := crawler.DiscoverAll(cmd.Context(), deps.Config.Discovery.Sources)

	deps.Logger.Info("discovery complete",
		"visited", stats.Visited,
		"matched", stats.Matched,
		"enqueued", stats.Enqueued,
	)

	return nil
}
