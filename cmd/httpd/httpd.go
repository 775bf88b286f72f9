// Package httpd serves the review and queue inspection HTTP API.
package httpd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ikanisa/dar-ingest/cmd/common"
	"github.com/ikanisa/dar-ingest/internal/api"
	"github.com/ikanisa/dar-ingest/internal/database"
	"github.com/ikanisa/dar-ingest/internal/review"
)

const shutdownTimeout = 10 * time.Second

// Command returns the httpd command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "httpd",
		Short: "Serve the risk review and queue inspection API",
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

	listingRepo := database.NewListingRepository(deps.DB)
	riskRepo := database.NewRiskRepository(deps.DB)
	auditRepo := database.NewAuditRepository(deps.DB)
	queueRepo := database.NewQueueRepository(deps.DB)

	reviewer := review.NewReviewer(riskRepo, listingRepo, auditRepo, deps.Logger)
	router := api.SetupRouter(deps.Logger, riskRepo, reviewer, queueRepo)
	server := api.NewServer(router, deps.Config.Server.Port, deps.Logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	deps.Logger.Info("api server started", "port", deps.Config.Server.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case sig := <-quit:
		deps.Logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return server.Shutdown(ctx)
}
