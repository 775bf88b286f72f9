// Package migrate manages database schema migrations.
package migrate

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	"github.com/ikanisa/dar-ingest/cmd/common"
)

// Command returns the migrate command.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database schema migrations",
	}
	cmd.PersistentFlags().String("path", "migrations", "path to migration files")
	cmd.AddCommand(upCommand(), downCommand())
	return cmd
}

func upCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigration(cmd, func(m *migrate.Migrate) error { return m.Up() })
		},
	}
}

func downCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigration(cmd, func(m *migrate.Migrate) error { return m.Steps(-1) })
		},
	}
}

func runMigration(cmd *cobra.Command, fn func(*migrate.Migrate) error) error {
	deps, err := common.NewDeps(cmd)
	if err != nil {
		return err
	}

	path, _ := cmd.Flags().GetString("path")

	m, err := migrate.New("file://"+path, deps.Config.Database.URL())
	if err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	defer m.Close() //nolint:errcheck

	if err := fn(m); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			deps.Logger.Info("no pending migrations")
			return nil
		}
		return fmt.Errorf("migration failed: %w", err)
	}

	deps.Logger.Info("migrations applied")
	return nil
}
