// Package schedule runs the ingestion pipeline on a cron schedule.
package schedule

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/ikanisa/dar-ingest/cmd/common"
)

// runTimeout bounds a single scheduled pipeline run.
const runTimeout = 10 * time.Minute

// Command returns the schedule command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run the ingestion pipeline on a cron schedule",
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

	runner := deps.NewRunner()
	spec := deps.Config.Pipeline.CronSpec

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()

		summary, err := runner.Run(ctx)
		if err != nil {
			deps.Logger.Error("scheduled pipeline run failed", "error", err)
			return
		}
		deps.Logger.Info("scheduled pipeline run complete",
			"claimed", summary.Claimed,
			"ingested", summary.Ingested,
			"duplicates", summary.Duplicates,
			"failed", summary.Failed,
		)
	}); err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}

	scheduler.Start()
	deps.Logger.Info("scheduler started", "spec", spec)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	deps.Logger.Info("scheduler stopping")
	<-scheduler.Stop().Done()

	return nil
}
