package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"imnci-mentorship/internal/config"
	pgmigrations "imnci-mentorship/internal/infra/postgres/migrations"
)

// NewMigrateCmd applies (or rolls back) the checklist_sessions schema.
func NewMigrateCmd(configPath *string) *cobra.Command {
	var rollback bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the Postgres schema for persisted sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if rollback {
				return rollbackMigrations(cmd.Context(), cfg.Postgres.URL)
			}
			return runMigrations(cmd.Context(), cfg.Postgres.URL)
		},
	}
	cmd.Flags().BoolVar(&rollback, "rollback", false, "roll back the last migration group")
	return cmd
}

func newMigrator(dsn string) (*migrate.Migrator, *bun.DB, error) {
	if dsn == "" {
		return nil, nil, fmt.Errorf("postgres url not configured")
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	return migrate.NewMigrator(db, pgmigrations.Migrations), db, nil
}

func runMigrations(ctx context.Context, dsn string) error {
	migrator, db, err := newMigrator(dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migrator.Init(ctx); err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	group, err := migrator.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if group.IsZero() {
		log.Printf("schema up to date")
		return nil
	}
	log.Printf("migrated to %s", group)
	return nil
}

func rollbackMigrations(ctx context.Context, dsn string) error {
	migrator, db, err := newMigrator(dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migrator.Init(ctx); err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	group, err := migrator.Rollback(ctx)
	if err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	if group.IsZero() {
		log.Printf("nothing to roll back")
		return nil
	}
	log.Printf("rolled back %s", group)
	return nil
}
