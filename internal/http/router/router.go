// Package router assembles the gin engine: global middleware, health check,
// and per-module route registration.
package router

import (
	"net/http"
	"time"

	apphttp "fleetcrm_backend/internal/http"
	"fleetcrm_backend/platform/httpkit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// New builds the engine from the composed application.
func New(app *apphttp.App) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(httpkit.RequestLogger(app.Logger))
	engine.Use(httpkit.SecurityHeaders())
	engine.Use(corsMiddleware(app))

	engine.GET("/api/health", func(c *gin.Context) {
		if err := app.Health.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := engine.Group("/api/v1")

	publicLimiter := httpkit.NewPublicRateLimiter(app.Logger)
	public := v1.Group("/public")
	public.Use(publicLimiter.RateLimit())

	protected := v1.Group("")
	protected.Use(httpkit.AuthRequired(app.Config))

	cron := v1.Group("/cron")
	cron.Use(httpkit.CronAuth(app.Config))

	webhooks := v1.Group("/webhooks")
	webhooks.Use(httpkit.CronAuth(app.Config))

	ctx := &apphttp.RouterContext{
		Engine:    engine,
		V1:        v1,
		Public:    public,
		Protected: protected,
		Cron:      cron,
		Webhooks:  webhooks,
		Config:    app.Config,
	}

	for _, module := range app.Modules {
		module.RegisterRoutes(ctx)
		app.Logger.Info("module routes registered", "module", module.Name())
	}

	return engine
}

func corsMiddleware(app *apphttp.App) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", httpkit.CronSecretHeader},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: app.Config.GetCORSAllowCreds(),
		MaxAge:           12 * time.Hour,
	}

	if app.Config.GetCORSAllowAll() {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = app.Config.GetCORSOrigins()
	}

	return cors.New(cfg)
}
