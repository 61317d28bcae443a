package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/slatrack/backend/internal/config"
	"github.com/slatrack/backend/internal/db"
	"github.com/slatrack/backend/internal/http/handlers"
	"github.com/slatrack/backend/internal/http/middleware"
	"github.com/slatrack/backend/internal/service"

	_ "github.com/slatrack/backend/docs"
)

// Router wires the public KPI API and the admin snapshot endpoints. store and
// snapshots may be nil, in which case health checks skip the database and the
// history/snapshot endpoints answer 503.
func Router(cfg config.Config, engine *service.Engine, store *db.Store, snapshots handlers.SnapshotRunner, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Admin-Key", "X-Request-Id"},
		ExposeHeaders:    []string{"X-Request-Id", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = []string{cfg.CORSAllowed}
	}
	r.Use(cors.New(corsCfg))

	h := &handlers.Handler{
		Engine:         engine,
		Snapshots:      snapshots,
		Validator:      validator.New(),
		Logger:         logger,
		RequestTimeout: cfg.RequestTimeout,
	}
	if store != nil {
		h.DB = store
		h.History = store
	}

	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.Use(middleware.RateLimit(middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)))
	{
		api.GET("/kpis", h.Kpis)
		api.GET("/scorecard", h.Scorecard)
		api.GET("/integration-index", h.IntegrationIndex)
		api.GET("/trends", h.Trends)
		api.GET("/sla/status", h.SLAStatus)
		api.GET("/requests/:id/facts", h.RequestFacts)
	}

	admin := api.Group("")
	admin.Use(middleware.AdminKey(cfg.AdminKey))
	{
		admin.GET("/scorecards/history", h.ScorecardHistory)
		admin.POST("/scorecards/snapshot", h.RunSnapshot)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}
