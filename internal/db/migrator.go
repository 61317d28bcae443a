package db

import (
	"context"
	"embed"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies every embedded migration that is not yet recorded in
// schema_migrations. Each file runs in its own transaction.
func (s *Store) Migrate(ctx context.Context, logger zerolog.Logger) error {
	const op = "db.Migrate"
	logger.Info().Msg("starting database migrations")

	if _, err := s.Pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
		return fmt.Errorf("%s: create migrations table: %w", op, err)
	}

	files, err := migrationFiles()
	if err != nil {
		return fmt.Errorf("%s: list migrations: %w", op, err)
	}
	applied := 0
	for _, name := range files {
		ok, err := s.applyMigration(ctx, logger, name)
		if err != nil {
			return fmt.Errorf("%s: %s: %w", op, name, err)
		}
		if ok {
			applied++
		}
	}

	logger.Info().Int("applied", applied).Int("total", len(files)).Msg("database migrations completed")
	return nil
}

// AppliedMigrations returns recorded versions, oldest first.
func (s *Store) AppliedMigrations(ctx context.Context) ([]string, error) {
	rows, err := s.Pool.Query(ctx, `SELECT version FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("db.AppliedMigrations: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func migrationFiles() ([]string, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) applyMigration(ctx context.Context, logger zerolog.Logger, filename string) (bool, error) {
	version := strings.TrimSuffix(filename, ".sql")

	var count int
	if err := s.Pool.QueryRow(ctx, `SELECT count(*) FROM schema_migrations WHERE version = $1`, version).Scan(&count); err != nil {
		return false, err
	}
	if count > 0 {
		logger.Debug().Str("version", version).Msg("migration already applied")
		return false, nil
	}

	content, err := migrationsFS.ReadFile("migrations/" + filename)
	if err != nil {
		return false, fmt.Errorf("read migration: %w", err)
	}

	logger.Info().Str("version", version).Msg("applying migration")
	err = s.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, string(content)); err != nil {
			return fmt.Errorf("execute: %w", err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, version); err != nil {
			return fmt.Errorf("record: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
