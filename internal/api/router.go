// Package api wires the HTTP routes of the planilla backend.
//
// POST /auth and GET /health are public. Every record route requires a
// bearer token; the resource layer under internal/api/resources derives
// those routes from the registered manifests.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/planilla-hr/planilla/internal/api/login"
	"github.com/planilla-hr/planilla/internal/api/resources"
	"github.com/planilla-hr/planilla/internal/audit"
	"github.com/planilla-hr/planilla/internal/auth"
	"github.com/planilla-hr/planilla/internal/config"
	"github.com/planilla-hr/planilla/internal/middleware"
	"github.com/planilla-hr/planilla/internal/schema"
	"github.com/planilla-hr/planilla/internal/services"
	"github.com/planilla-hr/planilla/internal/store"
)

// Pinger reports database reachability for /health.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Dependencies are the collaborators the router needs.
type Dependencies struct {
	Config   *config.Config
	Registry *schema.Registry
	Store    store.Store
	Service  *services.RecordService
	Tokens   *auth.Tokens
	// Shipper receives audit entries; nil disables auditing.
	Shipper audit.Shipper
	// DB is pinged by /health; nil reports healthy.
	DB Pinger
}

// BackgroundServices holds goroutine-owning resources the router started.
// cmd/server calls Shutdown after the HTTP server has drained.
type BackgroundServices struct {
	rateLimiters []*middleware.RateLimiter
}

// Shutdown stops every background goroutine.
func (bg *BackgroundServices) Shutdown() {
	for _, rl := range bg.rateLimiters {
		rl.Stop()
	}
	slog.Info("background services stopped")
}

// NewRouter creates and configures the gin engine.
func NewRouter(deps Dependencies) (*gin.Engine, *BackgroundServices) {
	cfg := deps.Config
	bg := &BackgroundServices{}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.LoggerMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig(cfg.Security.TLS.Enabled)))
	if len(cfg.Security.CORS.AllowedOrigins) > 0 {
		router.Use(middleware.CORSMiddleware(cfg.Security.CORS))
	}

	router.GET("/health", healthCheckHandler(deps.DB))

	loginHandlers := []gin.HandlerFunc{}
	if cfg.Security.RateLimiting.Enabled {
		limiter := middleware.NewRateLimiter(middleware.LoginRateLimitConfig(cfg.Security.RateLimiting))
		bg.rateLimiters = append(bg.rateLimiters, limiter)
		loginHandlers = append(loginHandlers, middleware.RateLimitMiddleware(limiter))
	}
	loginHandlers = append(loginHandlers,
		middleware.AuditMiddleware(deps.Shipper),
		login.NewHandler(deps.Store, deps.Service, deps.Tokens).Login,
	)
	router.POST("/auth", loginHandlers...)

	authed := router.Group("/",
		middleware.AuthMiddleware(deps.Tokens, deps.Store, deps.Service),
		middleware.AuditMiddleware(deps.Shipper),
	)
	resources.NewHandlers(deps.Store, deps.Service).Register(authed, deps.Registry)

	return router, bg
}

func healthCheckHandler(db Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status": "unhealthy",
					"error":  "database connection failed",
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}
