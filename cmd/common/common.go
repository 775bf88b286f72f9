// Package common wires shared dependencies for CLI commands.
package common

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/ikanisa/dar-ingest/internal/config"
	"github.com/ikanisa/dar-ingest/internal/database"
	"github.com/ikanisa/dar-ingest/internal/dedupe"
	"github.com/ikanisa/dar-ingest/internal/fetcher"
	"github.com/ikanisa/dar-ingest/internal/logger"
	"github.com/ikanisa/dar-ingest/internal/pipeline"
	"github.com/ikanisa/dar-ingest/internal/risk"
)

// Deps holds configuration and shared services for a command invocation.
type Deps struct {
	Config *config.Config
	Logger logger.Interface
	DB     *sqlx.DB
}

// NewDeps loads configuration and builds a logger. The config file path is
// read from the command's inherited --config flag.
func NewDeps(cmd *cobra.Command) (*Deps, error) {
	cfgFile, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Encoding:    cfg.Log.Encoding,
		Development: cfg.App.Environment == "development",
	})

	return &Deps{Config: cfg, Logger: log}, nil
}

// OpenDatabase connects to Postgres and keeps the handle for Close.
func (d *Deps) OpenDatabase() error {
	db, err := database.Connect(d.Config.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	d.DB = db
	return nil
}

// Close releases any held resources.
func (d *Deps) Close() {
	if d.DB != nil {
		d.DB.Close() //nolint:errcheck
	}
}

// NewRunner builds the full ingestion pipeline from configuration. The
// database must be open.
func (d *Deps) NewRunner() *pipeline.Runner {
	queueRepo := database.NewQueueRepository(d.DB)
	policyRepo := database.NewPolicyRepository(d.DB)
	listingRepo := database.NewListingRepository(d.DB)
	fingerprintRepo := database.NewFingerprintRepository(d.DB)
	riskRepo := database.NewRiskRepository(d.DB)
	auditRepo := database.NewAuditRepository(d.DB)

	pageFetcher := fetcher.New(fetcher.Options{
		Timeout:    d.Config.Fetcher.Timeout,
		MaxRetries: d.Config.Fetcher.MaxRetries,
		RetryDelay: d.Config.Fetcher.RetryDelay,
		UserAgent:  d.Config.Fetcher.UserAgent,
	}, d.Logger)

	scorer := risk.NewScorer(
		listingRepo,
		fingerprintRepo,
		riskRepo,
		listingRepo,
		d.Config.Risk.ScoringEnabled,
		d.Logger,
	)

	return pipeline.NewRunner(
		queueRepo,
		policyRepo,
		pageFetcher,
		dedupe.NewChecker(listingRepo, d.Logger),
		listingRepo,
		risk.NewFingerprinter(risk.URLPhotoHasher{}, d.Logger),
		fingerprintRepo,
		scorer,
		auditRepo,
		pipeline.Options{
			BatchSize:    d.Config.Pipeline.BatchSize,
			ItemDelay:    d.Config.Pipeline.ItemDelay,
			LeaseTimeout: d.Config.Pipeline.LeaseTimeout,
			MaxRetries:   d.Config.Pipeline.MaxRetries,
		},
		d.Logger,
	)
}
