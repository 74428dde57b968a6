// Package blacklist provides the email blacklist bounded context module.
package blacklist

import (
	apphttp "fleetcrm_backend/internal/http"

	"fleetcrm_backend/internal/blacklist/handler"
	"fleetcrm_backend/internal/blacklist/repository"
	"fleetcrm_backend/internal/blacklist/service"
	"fleetcrm_backend/platform/clock"
	"fleetcrm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the blacklist bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the blacklist module.
func NewModule(pool *pgxpool.Pool, clk clock.Clock, val *validator.Validator) *Module {
	svc := service.New(repository.New(pool), clk)
	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "blacklist" }

// RegisterRoutes mounts the staff admin routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterStaffRoutes(ctx.Protected.Group("/blacklist"))
}

// Service exposes the blacklist service; the leads module uses it as its
// creation gate.
func (m *Module) Service() *service.Service { return m.service }
