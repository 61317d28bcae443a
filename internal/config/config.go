package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/slatrack/backend/internal/models"
	"github.com/slatrack/backend/internal/scoring"
)

type Config struct {
	Env            string        `mapstructure:"ENV"`
	Port           string        `mapstructure:"PORT"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	AdminKey       string        `mapstructure:"ADMIN_KEY"`
	CORSAllowed    string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	LogLevel       string        `mapstructure:"LOG_LEVEL"`
	MigrateOnStart bool          `mapstructure:"MIGRATE_ON_START"`

	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`

	ScoringMaxRecords       int           `mapstructure:"SCORING_MAX_RECORDS"`
	ScoringMaxWindow        time.Duration `mapstructure:"SCORING_MAX_WINDOW"`
	ScoringExcludedStatuses string        `mapstructure:"SCORING_EXCLUDED_STATUSES"`
	ScoringReportingGrace   time.Duration `mapstructure:"SCORING_REPORTING_GRACE"`
	ScoringFleetSize        int           `mapstructure:"SCORING_FLEET_SIZE"`
	ScoringFuelBenchmark    float64       `mapstructure:"SCORING_FUEL_BENCHMARK"`
	ScoringNeutralScore     float64       `mapstructure:"SCORING_NEUTRAL_SCORE"`

	SnapshotInterval time.Duration `mapstructure:"SNAPSHOT_INTERVAL"`
	SnapshotWindow   time.Duration `mapstructure:"SNAPSHOT_WINDOW"`

	BreakerFailures uint32        `mapstructure:"BREAKER_FAILURES"`
	BreakerTimeout  time.Duration `mapstructure:"BREAKER_TIMEOUT"`
}

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()
	return load(v)
}

func load(v *viper.Viper) (Config, error) {
	v.SetDefault("ENV", "dev")
	v.SetDefault("PORT", "8080")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("MIGRATE_ON_START", false)
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("SCORING_MAX_RECORDS", scoring.DefaultMaxRecords)
	v.SetDefault("SCORING_MAX_WINDOW", "8784h")
	v.SetDefault("SCORING_EXCLUDED_STATUSES", "REJECTED,CANCELLED")
	v.SetDefault("SCORING_REPORTING_GRACE", scoring.DefaultReportingGrace.String())
	v.SetDefault("SCORING_FLEET_SIZE", scoring.DefaultFleetSize)
	v.SetDefault("SCORING_FUEL_BENCHMARK", scoring.DefaultFuelBenchmark)
	v.SetDefault("SCORING_NEUTRAL_SCORE", scoring.DefaultNeutralScore)
	v.SetDefault("SNAPSHOT_INTERVAL", "1h")
	v.SetDefault("SNAPSHOT_WINDOW", "720h")
	v.SetDefault("BREAKER_FAILURES", 5)
	v.SetDefault("BREAKER_TIMEOUT", "30s")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Policy builds the scoring policy from the SCORING_* keys on top of the defaults.
func (c Config) Policy() (scoring.Policy, error) {
	p := scoring.DefaultPolicy()
	p.MaxRecords = c.ScoringMaxRecords
	p.MaxWindow = c.ScoringMaxWindow
	p.ReportingGrace = c.ScoringReportingGrace
	p.NeutralScore = c.ScoringNeutralScore
	if c.ScoringFleetSize > 0 {
		p.FleetSize = c.ScoringFleetSize
	}
	if c.ScoringFuelBenchmark > 0 {
		p.FuelBenchmark = c.ScoringFuelBenchmark
	}

	p.ExcludedStatuses = nil
	for _, s := range strings.Split(c.ScoringExcludedStatuses, ",") {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		st := models.Status(s)
		switch st {
		case models.StatusPending, models.StatusApprovalPending, models.StatusApproved,
			models.StatusInProgress, models.StatusCompleted, models.StatusRejected, models.StatusCancelled:
		default:
			return scoring.Policy{}, fmt.Errorf("config: unknown status %q in SCORING_EXCLUDED_STATUSES", s)
		}
		p.ExcludedStatuses = append(p.ExcludedStatuses, st)
	}

	if err := p.Validate(); err != nil {
		return scoring.Policy{}, fmt.Errorf("config: %w", err)
	}
	return p, nil
}
