package api

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/openshelf/fedcat/api/handler"
	"github.com/openshelf/fedcat/api/middleware"
	"github.com/openshelf/fedcat/config"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → RequestLog
//	API:     Auth (if enabled) → RateLimit
//
// Health endpoint is intentionally outside auth so monitoring probes always
// work.
func NewRouter(engine handler.Searcher, cfg *config.Config, log *slog.Logger, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLog(log))

	v1 := r.Group("/api/v1")

	// Health endpoint stays open.
	v1.GET("/health", handler.Health(cfg, startTime))

	// Protected group: auth + rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	// Federated search.
	protected.GET("/search", handler.Search(engine))

	// Legacy-only search, pre-federation response shape.
	protected.GET("/scrape", handler.Scrape(engine))

	return r
}
