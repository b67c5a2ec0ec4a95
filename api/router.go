package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/berserkarray/webscraperv2/api/handler"
	"github.com/berserkarray/webscraperv2/api/middleware"
	"github.com/berserkarray/webscraperv2/config"
)

// Deps are the collaborators the router hands to its handlers.
type Deps struct {
	Runner    handler.Runner
	Deliverer handler.Deliverer
	Logger    *slog.Logger
	StartTime time.Time
}

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → RequestID → Logger
//	Scrape:  Auth (if enabled) → RateLimit
//
// Health stays outside auth so monitoring can always reach it. ctx bounds the
// rate limiter's background janitor.
func NewRouter(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(gin.Logger())

	r.GET("/health", handler.Health(deps.Runner, deps.StartTime))

	protected := r.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.NewRateLimiter(ctx, cfg.RateLimit).Middleware())

	protected.POST("/scrape", handler.Scrape(deps.Runner, deps.Deliverer, deps.Logger))

	return r
}
