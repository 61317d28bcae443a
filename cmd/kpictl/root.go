package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/slatrack/backend/internal/config"
	"github.com/slatrack/backend/internal/db"
	"github.com/slatrack/backend/internal/service"
)

type env struct {
	cfg    config.Config
	store  *db.Store
	engine *service.Engine
	logger zerolog.Logger
}

func newRootCmd() *cobra.Command {
	var databaseURL string

	cmd := &cobra.Command{
		Use:          "kpictl",
		Short:        "SLA scorecard and KPI tooling",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "Postgres URL (defaults to DATABASE_URL)")

	open := func(ctx context.Context) (*env, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		if databaseURL != "" {
			cfg.DatabaseURL = databaseURL
		}
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("no database: set --database-url or DATABASE_URL")
		}
		policy, err := cfg.Policy()
		if err != nil {
			return nil, err
		}
		zerolog.TimeFieldFormat = time.RFC3339
		level, _ := zerolog.ParseLevel(cfg.LogLevel)
		logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

		store, err := db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return &env{
			cfg:    cfg,
			store:  store,
			engine: &service.Engine{Repo: store, Policy: policy, Logger: logger},
			logger: logger,
		}, nil
	}

	cmd.AddCommand(newMigrateCmd(open))
	cmd.AddCommand(newQueryCmds(open)...)
	cmd.AddCommand(newSnapshotCmd(open))
	return cmd
}
