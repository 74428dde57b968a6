// Package service implements the lead lifecycle operations: creation behind
// the blacklist gate, validated status transitions with their audit trail,
// and the wizard progression steps.
package service

import (
	"context"
	"errors"

	"fleetcrm_backend/internal/events"
	"fleetcrm_backend/internal/leads/domain"
	"fleetcrm_backend/internal/leads/ports"
	"fleetcrm_backend/internal/leads/repository"
	"fleetcrm_backend/internal/leads/transport"
	"fleetcrm_backend/platform/apperr"
	"fleetcrm_backend/platform/clock"
	"fleetcrm_backend/platform/phone"

	"github.com/google/uuid"
)

// Actor identifiers for system-triggered status changes.
const (
	ActorBookingWebhook = "system:booking_webhook"
	ActorVerification   = "system:verification"
)

var (
	ErrLeadNotFound = apperr.New(apperr.KindNotFound, "lead_not_found", "lead not found")
	ErrDuplicate    = apperr.New(apperr.KindConflict, "duplicate_email", "a lead with this email already exists")
	// ErrBlacklistedEmail rejects creation for blacklisted addresses; no lead
	// record is written.
	ErrBlacklistedEmail = apperr.New(apperr.KindForbidden, "blacklisted_email", "this email address cannot be used")
)

type Service struct {
	repo      *repository.Repository
	blacklist ports.BlacklistChecker
	codes     ports.CodeIssuer
	reasons   domain.ReasonPolicy
	bus       events.Bus
	clk       clock.Clock
}

func New(repo *repository.Repository, blacklist ports.BlacklistChecker, reasons domain.ReasonPolicy, bus events.Bus, clk clock.Clock) *Service {
	return &Service{
		repo:      repo,
		blacklist: blacklist,
		reasons:   reasons,
		bus:       bus,
		clk:       clk,
	}
}

// SetCodeIssuer wires the verification module in after construction
// (breaks the module initialization cycle).
func (s *Service) SetCodeIssuer(issuer ports.CodeIssuer) {
	s.codes = issuer
}

// Create registers a new lead in status "new" and kicks off email
// verification. Blacklisted addresses are rejected before any write.
func (s *Service) Create(ctx context.Context, req transport.CreateLeadRequest) (transport.LeadResponse, error) {
	email := repository.NormalizeEmail(req.Email)

	blocked, err := s.blacklist.IsBlacklisted(ctx, email)
	if err != nil {
		return transport.LeadResponse{}, err
	}
	if blocked {
		return transport.LeadResponse{}, ErrBlacklistedEmail
	}

	locale := req.Locale
	if locale == "" {
		locale = "en"
	}

	lead, err := s.repo.Create(ctx, repository.CreateLeadParams{
		Email:       email,
		CountryCode: req.CountryCode,
		Locale:      locale,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return transport.LeadResponse{}, ErrDuplicate
		}
		return transport.LeadResponse{}, err
	}

	s.bus.Publish(ctx, events.LeadCreated{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		Email:     lead.Email,
		Locale:    lead.Locale,
	})

	if s.codes != nil {
		if err := s.codes.IssueCode(ctx, lead.ID); err != nil {
			return transport.LeadResponse{}, err
		}
	}

	return transport.ToLeadResponse(lead), nil
}

// Transition applies a validated status change and appends exactly one
// activity record, atomically.
func (s *Service) Transition(ctx context.Context, leadID uuid.UUID, target domain.Status, tctx domain.TransitionContext) (transport.LeadResponse, error) {
	lead, err := s.repo.GetByID(ctx, leadID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.LeadResponse{}, ErrLeadNotFound
		}
		return transport.LeadResponse{}, err
	}

	if err := domain.ValidateTransition(lead.Status, target, s.reasons, tctx); err != nil {
		return transport.LeadResponse{}, err
	}

	updated, err := s.repo.UpdateStatus(ctx, leadID, lead.Status, target, tctx, s.clk.Now())
	if err != nil {
		if errors.Is(err, repository.ErrStale) {
			return transport.LeadResponse{}, apperr.Wrap(apperr.KindConflict, "concurrent_update",
				"lead status changed concurrently, retry", err)
		}
		return transport.LeadResponse{}, err
	}

	s.bus.Publish(ctx, events.LeadStatusChanged{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    leadID,
		OldStatus: lead.Status,
		NewStatus: target,
		Reason:    tctx.Reason,
		Actor:     tctx.Actor,
	})

	return transport.ToLeadResponse(updated), nil
}

// CompleteProfileStep saves the wizard's business-info step. The lead must
// have verified its email first. Consent capture records the source IP and
// timestamp.
func (s *Service) CompleteProfileStep(ctx context.Context, leadID uuid.UUID, req transport.ProfileStepRequest, sourceIP string) (transport.LeadResponse, error) {
	lead, err := s.repo.GetByID(ctx, leadID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.LeadResponse{}, ErrLeadNotFound
		}
		return transport.LeadResponse{}, err
	}

	if err := domain.EnsureVerified(lead.EmailVerified); err != nil {
		return transport.LeadResponse{}, err
	}
	if !req.Consent {
		return transport.LeadResponse{}, apperr.New(apperr.KindValidation, "consent_required",
			"consent is required to continue")
	}

	now := s.clk.Now()
	profile := domain.Profile{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     phone.NormalizeE164(req.Phone, lead.CountryCode),
		Company:   req.Company,
		FleetSize: req.FleetSize,
		ConsentAt: &now,
		ConsentIP: sourceIP,
	}

	updated, err := s.repo.UpdateProfile(ctx, leadID, repository.UpdateProfileParams{
		FirstName:       profile.FirstName,
		LastName:        profile.LastName,
		Phone:           profile.Phone,
		Company:         profile.Company,
		FleetSize:       profile.FleetSize,
		ConsentAt:       now,
		ConsentIP:       sourceIP,
		WizardCompleted: domain.WizardCompleted(profile, lead.BookingSlotAt != nil, lead.CallbackRequested),
	})
	if err != nil {
		return transport.LeadResponse{}, err
	}
	return transport.ToLeadResponse(updated), nil
}

// RequestCallback flags the lead as wanting a phone call instead of a demo
// booking and moves it to callback_requested when the current status allows.
func (s *Service) RequestCallback(ctx context.Context, leadID uuid.UUID) (transport.LeadResponse, error) {
	lead, err := s.repo.GetByID(ctx, leadID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.LeadResponse{}, ErrLeadNotFound
		}
		return transport.LeadResponse{}, err
	}

	if err := domain.EnsureVerified(lead.EmailVerified); err != nil {
		return transport.LeadResponse{}, err
	}

	updated, err := s.repo.SetCallbackRequested(ctx, leadID,
		domain.WizardCompleted(lead.Profile(), lead.BookingSlotAt != nil, true))
	if err != nil {
		return transport.LeadResponse{}, err
	}

	if domain.CanTransition(updated.Status, domain.StatusCallbackRequested) {
		return s.Transition(ctx, leadID, domain.StatusCallbackRequested, domain.TransitionContext{
			Actor: "lead:self",
		})
	}
	return transport.ToLeadResponse(updated), nil
}

// ApplyBookingWebhook reacts to the scheduling provider populating a booking
// slot. It stores the slot, re-derives wizard completion, and moves the lead
// to demo when the transition table allows it. A lead re-entering from
// nurturing carries the fresh booking slot in the transition context, which
// is what makes nurturing -> demo legal.
func (s *Service) ApplyBookingWebhook(ctx context.Context, req transport.BookingWebhookRequest) (transport.LeadResponse, error) {
	lead, err := s.repo.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.LeadResponse{}, ErrLeadNotFound
		}
		return transport.LeadResponse{}, err
	}

	if err := domain.EnsureVerified(lead.EmailVerified); err != nil {
		return transport.LeadResponse{}, err
	}

	slot := req.BookingSlotAt.UTC()
	updated, err := s.repo.SetBookingSlot(ctx, lead.ID, slot,
		domain.WizardCompleted(lead.Profile(), true, lead.CallbackRequested))
	if err != nil {
		return transport.LeadResponse{}, err
	}

	if domain.CanTransition(updated.Status, domain.StatusDemo) {
		return s.Transition(ctx, lead.ID, domain.StatusDemo, domain.TransitionContext{
			Actor:         ActorBookingWebhook,
			BookingSlotAt: &slot,
		})
	}
	return transport.ToLeadResponse(updated), nil
}

// GetByID returns a single lead.
func (s *Service) GetByID(ctx context.Context, leadID uuid.UUID) (transport.LeadResponse, error) {
	lead, err := s.repo.GetByID(ctx, leadID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.LeadResponse{}, ErrLeadNotFound
		}
		return transport.LeadResponse{}, err
	}
	return transport.ToLeadResponse(lead), nil
}

// List returns a page of leads, optionally filtered by status.
func (s *Service) List(ctx context.Context, status *domain.Status, limit, offset int) ([]transport.LeadResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	leads, err := s.repo.List(ctx, status, limit, offset)
	if err != nil {
		return nil, err
	}

	out := make([]transport.LeadResponse, 0, len(leads))
	for _, lead := range leads {
		out = append(out, transport.ToLeadResponse(lead))
	}
	return out, nil
}

// ListActivity returns a lead's append-only audit trail.
func (s *Service) ListActivity(ctx context.Context, leadID uuid.UUID) ([]transport.ActivityResponse, error) {
	if _, err := s.repo.GetByID(ctx, leadID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrLeadNotFound
		}
		return nil, err
	}

	items, err := s.repo.ListActivity(ctx, leadID)
	if err != nil {
		return nil, err
	}

	out := make([]transport.ActivityResponse, 0, len(items))
	for _, item := range items {
		out = append(out, transport.ToActivityResponse(item))
	}
	return out, nil
}
