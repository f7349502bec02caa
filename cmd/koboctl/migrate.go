package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"kobo/internal/store/postgres"
	"kobo/internal/store/sqlite"
)

func migrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Apply every pending schema migration to the configured SQLite or
Postgres store. The memory backend has no schema and is rejected.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.appConfig()
			if err != nil {
				return err
			}

			switch cfg.DataBackend {
			case "sqlite":
				a.logger.Info("Running SQLite migrations", "db_path", cfg.SQLiteDBPath)
				if err := sqlite.RunMigrations(cfg.SQLiteDBPath); err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
			case "postgres":
				a.logger.Info("Running Postgres migrations")
				if err := postgres.RunMigrations(cfg.DatabaseURL); err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
			default:
				return fmt.Errorf("backend %q has no migrations", cfg.DataBackend)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s schema is up to date\n", cfg.DataBackend)
			return nil
		},
	}
}
