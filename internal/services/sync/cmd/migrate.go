package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gamma-omg/partyparty/internal/services/sync/internal/config"
	"github.com/gamma-omg/partyparty/internal/services/sync/internal/journal"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"
)

func newMigrateCommand() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the rsvp journal schema",
	}
	cmd.PersistentFlags().StringVar(&dir, "dir", "", "migrations directory (default $DB_MIGRATIONS)")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrateJournal(dir, (*migrate.Migrate).Up)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Revert all migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrateJournal(dir, (*migrate.Migrate).Down)
		},
	})

	return cmd
}

func migrateJournal(dir string, step func(*migrate.Migrate) error) error {
	cfg := config.Config{DB: config.DBFromEnv()}
	if dir == "" {
		dir = cfg.DB.Migrations
	}

	db, err := journal.NewPostgresDB(postgresConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to connect to db: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migrate driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+dir, cfg.DB.Name, driver)
	if err != nil {
		return fmt.Errorf("failed to load migrations from %s: %w", dir, err)
	}

	if err := step(m); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			slog.Info("journal schema is up to date")
			return nil
		}
		return fmt.Errorf("failed to migrate: %w", err)
	}

	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		slog.Info("journal schema reverted")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	slog.Info("journal schema migrated", "version", v, "dirty", dirty)
	return nil
}
