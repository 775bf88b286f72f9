// Package queue inspects the URL ingestion queue.
package queue

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/ikanisa/dar-ingest/cmd/common"
	"github.com/ikanisa/dar-ingest/internal/database"
)

// Command returns the queue command.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect the URL ingestion queue",
	}
	cmd.AddCommand(listCommand(), statsCommand())
	return cmd
}

func listCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued URLs",
		RunE:  runList,
	}
	cmd.Flags().String("status", "", "filter by status (new, processing, done, error)")
	cmd.Flags().String("domain", "", "filter by source domain")
	cmd.Flags().Int("limit", 50, "maximum rows to display")
	return cmd
}

func statsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show queue status counts",
		RunE:  runStats,
	}
}

func runList(cmd *cobra.Command, _ []string) error {
	deps, err := common.NewDeps(cmd)
	if err != nil {
		return err
	}
	if err := deps.OpenDatabase(); err != nil {
		return err
	}
	defer deps.Close()

	status, _ := cmd.Flags().GetString("status")
	domainName, _ := cmd.Flags().GetString("domain")
	limit, _ := cmd.Flags().GetInt("limit")

	repo := database.NewQueueRepository(deps.DB)
	items, err := repo.List(cmd.Context(), database.QueueFilters{
		Status: status,
		Domain: domainName,
		Limit:  limit,
	})
	if err != nil {
		return fmt.Errorf("failed to list queued URLs: %w", err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "URL", "Domain", "Status", "Retries", "Discovered"})
	for _, item := range items {
		t.AppendRow(table.Row{
			item.ID,
			item.URL,
			item.Domain,
			item.Status,
			item.RetryCount,
			item.DiscoveredAt.Format(time.RFC3339),
		})
	}
	t.Render()

	return nil
}

func runStats(cmd *cobra.Command, _ []string) error {
	deps, err := common.NewDeps(cmd)
	if err != nil {
		return err
	}
	if err := deps.OpenDatabase(); err != nil {
		return err
	}
	defer deps.Close()

	repo := database.NewQueueRepository(deps.DB)
	stats, err := repo.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to load queue stats: %w", err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Status", "Count"})
	t.AppendRows([]table.Row{
		{"new", stats.TotalNew},
		{"processing", stats.TotalProcessing},
		{"done", stats.TotalDone},
		{"error", stats.TotalError},
	})
	t.Render()

	return nil
}
