package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/thejerf/suture/v4"

	"github.com/slatrack/backend/internal/config"
	"github.com/slatrack/backend/internal/db"
	httpapi "github.com/slatrack/backend/internal/http"
	"github.com/slatrack/backend/internal/http/handlers"
	"github.com/slatrack/backend/internal/scheduler"
	"github.com/slatrack/backend/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger := log.Level(level).With().Str("service", "slatrack").Logger()

	policy, err := cfg.Policy()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid scoring policy")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect db")
	}
	defer store.Close()

	if cfg.MigrateOnStart {
		if err := store.Migrate(ctx, logger); err != nil {
			logger.Fatal().Err(err).Msg("migrations failed")
		}
	}

	breakerCfg := service.DefaultBreakerConfig()
	breakerCfg.FailureThreshold = cfg.BreakerFailures
	breakerCfg.Timeout = cfg.BreakerTimeout
	engine := &service.Engine{
		Repo:   service.NewBreakerRepository(store, breakerCfg, logger),
		Policy: policy,
		Logger: logger.With().Str("component", "engine").Logger(),
	}

	sup := suture.New("slatrack", suture.Spec{
		EventHook: func(e suture.Event) {
			logger.Warn().Fields(e.Map()).Msg(e.String())
		},
		Timeout: 15 * time.Second,
	})

	var snapshots handlers.SnapshotRunner
	if cfg.SnapshotInterval > 0 {
		svc := &scheduler.SnapshotService{
			Engine:   engine,
			Store:    store,
			Interval: cfg.SnapshotInterval,
			Window:   cfg.SnapshotWindow,
			Logger:   logger.With().Str("component", "scheduler").Logger(),
		}
		sup.Add(svc)
		snapshots = svc
	} else {
		logger.Info().Msg("scorecard snapshots disabled")
	}

	router := httpapi.Router(cfg, engine, store, snapshots, logger)
	sup.Add(httpapi.NewServer(":"+cfg.Port, router, 10*time.Second))

	logger.Info().Str("port", cfg.Port).Msg("server started")
	if err := sup.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("supervisor stopped")
		store.Close()
		os.Exit(1)
	}
	logger.Info().Msg("server stopped")
}
