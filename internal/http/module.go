// Package http provides HTTP server infrastructure including the Module
// interface that all domain modules implement for route registration.
package http

import (
	"fleetcrm_backend/platform/config"

	"github.com/gin-gonic/gin"
)

// Module represents a bounded context that can register its HTTP routes.
// Each domain module implements this interface to encapsulate its own
// route setup, keeping the main router decoupled from specific endpoints.
type Module interface {
	// Name returns the module's identifier for logging purposes.
	Name() string
	// RegisterRoutes mounts the module's routes on the provided router groups.
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext provides shared dependencies for module route registration.
type RouterContext struct {
	// Engine is the root Gin engine for modules that need engine-level access.
	Engine *gin.Engine
	// V1 is the /api/v1 route group.
	V1 *gin.RouterGroup
	// Public is the rate-limited, unauthenticated group for wizard routes.
	Public *gin.RouterGroup
	// Protected is the JWT-authenticated staff group under /api/v1.
	Protected *gin.RouterGroup
	// Cron is the shared-secret group for externally triggered sweeps.
	Cron *gin.RouterGroup
	// Webhooks is the shared-secret group for inbound provider webhooks.
	Webhooks *gin.RouterGroup
	// Config exposes JWT settings for modules that need their own middleware.
	Config config.JWTConfig
}
