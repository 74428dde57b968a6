// Package notification sends emails in response to domain events. Domain
// modules publish what happened; this module decides what gets delivered and
// through which sender. Sweep emails are the exception: the sweeps send
// synchronously so their send markers stay tied to the delivery attempt.
package notification

import (
	"context"

	"fleetcrm_backend/internal/email"
	"fleetcrm_backend/internal/events"
	apphttp "fleetcrm_backend/internal/http"
	leaddomain "fleetcrm_backend/internal/leads/domain"
	"fleetcrm_backend/platform/logger"
)

// Module is the notification module implementing http.Module and
// events.Handler.
type Module struct {
	sender email.Sender
	log    *logger.Logger
}

// NewModule creates the notification module.
func NewModule(sender email.Sender, log *logger.Logger) *Module {
	return &Module{sender: sender, log: log}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "notification" }

// RegisterRoutes is a no-op; this module only consumes events.
func (m *Module) RegisterRoutes(_ *apphttp.RouterContext) {}

// RegisterHandlers subscribes the module to the events it delivers.
func (m *Module) RegisterHandlers(bus *events.InMemoryBus) {
	bus.Subscribe(events.VerificationCodeIssued{}.EventName(), m)
	bus.Subscribe(events.LeadEmailVerified{}.EventName(), m)
	bus.Subscribe(events.LeadStatusChanged{}.EventName(), m)

	m.log.Info("notification module registered event handlers")
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.VerificationCodeIssued:
		return m.handleVerificationCodeIssued(ctx, e)
	case events.LeadEmailVerified:
		m.log.Info("lead email verified", "lead_id", e.LeadID)
		return nil
	case events.LeadStatusChanged:
		return m.handleLeadStatusChanged(ctx, e)
	default:
		return nil
	}
}

func (m *Module) handleVerificationCodeIssued(ctx context.Context, e events.VerificationCodeIssued) error {
	err := m.sender.SendVerificationCodeEmail(ctx, e.Email, e.Locale, e.Code)
	m.log.EmailEvent("verification_code", e.Email, err)
	return err
}

func (m *Module) handleLeadStatusChanged(ctx context.Context, e events.LeadStatusChanged) error {
	if e.NewStatus == leaddomain.StatusConverted {
		m.log.Info("lead converted", "lead_id", e.LeadID, "actor", e.Actor)
	}
	return nil
}
