// Package verification provides the email verification bounded context module.
package verification

import (
	"fleetcrm_backend/internal/config"
	"fleetcrm_backend/internal/events"
	apphttp "fleetcrm_backend/internal/http"
	leadrepo "fleetcrm_backend/internal/leads/repository"
	leadsvc "fleetcrm_backend/internal/leads/service"
	"fleetcrm_backend/internal/verification/handler"
	"fleetcrm_backend/internal/verification/repository"
	"fleetcrm_backend/internal/verification/service"
	"fleetcrm_backend/platform/clock"
	"fleetcrm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the verification bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the verification module.
func NewModule(pool *pgxpool.Pool, leads *leadrepo.Repository, leadService *leadsvc.Service, policy config.VerificationPolicy, bus events.Bus, clk clock.Clock, val *validator.Validator) *Module {
	repo := repository.New(pool)
	gateway := service.NewLeadsGateway(leads, leadService)
	svc := service.New(repo, gateway, policy, bus, clk)

	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "verification" }

// RegisterRoutes mounts the public verification routes under the wizard group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterPublicRoutes(ctx.Public.Group("/wizard"))
}

// Service exposes the verification service; the leads module uses it as its
// code issuer when a lead is created.
func (m *Module) Service() *service.Service { return m.service }
