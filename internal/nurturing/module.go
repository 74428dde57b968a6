// Package nurturing provides the re-engagement pipeline module.
package nurturing

import (
	"fleetcrm_backend/internal/config"
	"fleetcrm_backend/internal/email"
	apphttp "fleetcrm_backend/internal/http"
	"fleetcrm_backend/internal/nurturing/handler"
	"fleetcrm_backend/internal/nurturing/repository"
	"fleetcrm_backend/internal/nurturing/service"
	"fleetcrm_backend/platform/clock"
	"fleetcrm_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the nurturing bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the nurturing module. The lead store and
// transitioner come from the leads module; tokens and sender are shared
// services.
func NewModule(pool *pgxpool.Pool, leads service.LeadStore, transitions service.LeadTransitioner, tokens service.TokenIssuer, sender email.Sender, policy *config.LifecyclePolicy, baseURL string, clk clock.Clock, log *logger.Logger) *Module {
	svc := service.New(leads, transitions, repository.New(pool), tokens, sender,
		policy.Nurturing, policy.SweepPageSize, baseURL, log)
	return &Module{
		handler: handler.New(svc, clk),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "nurturing" }

// RegisterRoutes mounts the cron trigger and the public resume endpoint.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterCronRoutes(ctx.Cron)
	m.handler.RegisterPublicRoutes(ctx.Public.Group("/wizard"))
}

// Service exposes the sweep service for the asynq worker.
func (m *Module) Service() *service.Service { return m.service }
