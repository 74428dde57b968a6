// Package leads provides the lead lifecycle bounded context module.
package leads

import (
	"fleetcrm_backend/internal/events"
	apphttp "fleetcrm_backend/internal/http"
	"fleetcrm_backend/internal/leads/domain"
	"fleetcrm_backend/internal/leads/handler"
	"fleetcrm_backend/internal/leads/ports"
	"fleetcrm_backend/internal/leads/repository"
	"fleetcrm_backend/internal/leads/service"
	"fleetcrm_backend/platform/clock"
	"fleetcrm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    *repository.Repository
}

// NewModule creates and initializes the leads module with all its dependencies.
func NewModule(pool *pgxpool.Pool, blacklist ports.BlacklistChecker, reasons domain.ReasonPolicy, bus events.Bus, clk clock.Clock, val *validator.Validator) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, blacklist, reasons, bus, clk)

	return &Module{
		handler: handler.New(svc, val),
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "leads" }

// RegisterRoutes mounts the module's staff, public wizard, and webhook routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterStaffRoutes(ctx.Protected.Group("/leads"))
	m.handler.RegisterPublicRoutes(ctx.Public.Group("/wizard"))
	m.handler.RegisterWebhookRoutes(ctx.Webhooks)
}

// Service exposes the lead service for cross-module wiring.
func (m *Module) Service() *service.Service { return m.service }

// Repository exposes the lead repository for modules that share lead queries.
func (m *Module) Repository() *repository.Repository { return m.repo }

// SetCodeIssuer wires the verification module in after construction.
func (m *Module) SetCodeIssuer(issuer ports.CodeIssuer) {
	m.service.SetCodeIssuer(issuer)
}
