// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"fleetcrm_backend/internal/leads/domain"
	"fleetcrm_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Lead Lifecycle Events
// =============================================================================

// LeadCreated is published when a new lead enters the funnel.
type LeadCreated struct {
	BaseEvent
	LeadID uuid.UUID `json:"leadId"`
	Email  string    `json:"email"`
	Locale string    `json:"locale"`
}

func (e LeadCreated) EventName() string { return "leads.lead.created" }

// LeadStatusChanged is published after every successful status transition.
type LeadStatusChanged struct {
	BaseEvent
	LeadID    uuid.UUID     `json:"leadId"`
	OldStatus domain.Status `json:"oldStatus"`
	NewStatus domain.Status `json:"newStatus"`
	Reason    string        `json:"reason,omitempty"`
	Actor     string        `json:"actor"`
}

func (e LeadStatusChanged) EventName() string { return "leads.lead.status_changed" }

// =============================================================================
// Verification Events
// =============================================================================

// VerificationCodeIssued is published when a verification code has been
// generated for a lead; the notification module delivers it by email.
type VerificationCodeIssued struct {
	BaseEvent
	LeadID uuid.UUID `json:"leadId"`
	Email  string    `json:"email"`
	Code   string    `json:"code"`
	Locale string    `json:"locale"`
}

func (e VerificationCodeIssued) EventName() string { return "verification.code.issued" }

// LeadEmailVerified is published once a lead's email address is confirmed.
type LeadEmailVerified struct {
	BaseEvent
	LeadID uuid.UUID `json:"leadId"`
	Email  string    `json:"email"`
}

func (e LeadEmailVerified) EventName() string { return "verification.email.verified" }
