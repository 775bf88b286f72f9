// Package cmd implements the dar-ingest command line interface.
package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ikanisa/dar-ingest/cmd/catalog"
	"github.com/ikanisa/dar-ingest/cmd/discover"
	"github.com/ikanisa/dar-ingest/cmd/httpd"
	"github.com/ikanisa/dar-ingest/cmd/ingest"
	"github.com/ikanisa/dar-ingest/cmd/migrate"
	"github.com/ikanisa/dar-ingest/cmd/queue"
	"github.com/ikanisa/dar-ingest/cmd/schedule"
)

var rootCmd = &cobra.Command{
	Use:   "dar-ingest",
	Short: "Real estate listing ingestion pipeline",
	Long: `dar-ingest discovers property listings across configured portals,
fetches and normalizes them, screens them for duplicate and fraud
signals, and serves the reviewed results over an HTTP API.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Println("dar-ingest v0.1.0")
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default is ./config.yaml)")

	rootCmd.AddCommand(
		ingest.Command(),
		discover.Command(),
		schedule.Command(),
		httpd.Command(),
		migrate.Command(),
		queue.Command(),
		catalog.Command(),
		versionCmd,
	)
}

// Execute runs the root command.
func Execute() {
	// .env is optional in every environment.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
