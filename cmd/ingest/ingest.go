// Package ingest implements the one-shot pipeline run command.
package ingest

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ikanisa/dar-ingest/cmd/common"
)

// Command returns the ingest command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Claim a batch of queued URLs and run them through the pipeline",
		RunE:  run,
	}
}

func run(cmd *cobra.Command, _ []string) error {
	deps, err := common.NewDeps(cmd)
	if err != nil {
		return err
	}
	if err := deps.OpenDatabase(); err != nil {
		return err
	}
	defer deps.Close()

	summary, err := deps.NewRunner().Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("pipeline run failed: %w", err)
	}

	deps.Logger.Info("pipeline run complete",
		"claimed", summary.Claimed,
		"ingested", summary.Ingested,
		"duplicates", summary.Duplicates,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"reclaimed", summary.Reclaimed,
	)

	return nil
}
