// Package reminders provides the booking reminder module.
package reminders

import (
	"fleetcrm_backend/internal/config"
	"fleetcrm_backend/internal/email"
	apphttp "fleetcrm_backend/internal/http"
	"fleetcrm_backend/internal/reminders/handler"
	"fleetcrm_backend/internal/reminders/service"
	"fleetcrm_backend/platform/clock"
	"fleetcrm_backend/platform/logger"
)

// Module is the reminders bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the reminders module.
func NewModule(leads service.LeadStore, tokens service.TokenIssuer, sender email.Sender, policy *config.LifecyclePolicy, baseURL string, clk clock.Clock, log *logger.Logger) *Module {
	svc := service.New(leads, tokens, sender, policy.Reminder, policy.SweepPageSize, baseURL, log)
	return &Module{
		handler: handler.New(svc, clk),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "reminders" }

// RegisterRoutes mounts the cron trigger and the public confirm endpoint.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterCronRoutes(ctx.Cron)
	m.handler.RegisterPublicRoutes(ctx.Public)
}

// Service exposes the sweep service for the asynq worker.
func (m *Module) Service() *service.Service { return m.service }
