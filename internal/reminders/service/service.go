// Package service sends the day-before booking reminder: one email per
// booked slot, exactly once, found through a forward-looking time window.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fleetcrm_backend/internal/config"
	"fleetcrm_backend/internal/email"
	leadrepo "fleetcrm_backend/internal/leads/repository"
	tokensvc "fleetcrm_backend/internal/tokens/service"
	"fleetcrm_backend/platform/logger"
)

// LeadStore is the slice of the lead repository the reminder sweep uses.
type LeadStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (leadrepo.Lead, error)
	ListReminderWindow(ctx context.Context, from, to time.Time, limit int) ([]leadrepo.Lead, error)
	MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) error
}

// TokenIssuer mints and resolves booking confirmation tokens.
type TokenIssuer interface {
	Issue(ctx context.Context, purpose tokensvc.Purpose, leadID uuid.UUID, ttl time.Duration) (string, error)
	Resolve(ctx context.Context, purpose tokensvc.Purpose, raw string) (uuid.UUID, error)
}

// Summary reports one reminder sweep run.
type Summary struct {
	Processed int      `json:"processed"`
	Sent      int      `json:"sent"`
	Errors    []string `json:"errors,omitempty"`
}

type Service struct {
	leads    LeadStore
	tokens   TokenIssuer
	sender   email.Sender
	policy   config.ReminderPolicy
	pageSize int
	baseURL  string
	log      *logger.Logger
}

func New(leads LeadStore, tokens TokenIssuer, sender email.Sender, policy config.ReminderPolicy, pageSize int, baseURL string, log *logger.Logger) *Service {
	return &Service{
		leads:    leads,
		tokens:   tokens,
		sender:   sender,
		policy:   policy,
		pageSize: pageSize,
		baseURL:  baseURL,
		log:      log,
	}
}

// RunSweep reminds every lead whose booking falls inside the window
// [now+20h, now+28h) and has not been reminded yet. One bad record logs and
// moves on; the send marker is a conditional write so a booking is reminded
// at most once even across overlapping runs.
func (s *Service) RunSweep(ctx context.Context, now time.Time) Summary {
	var summary Summary

	from := now.Add(s.policy.WindowStart.Duration)
	to := now.Add(s.policy.WindowEnd.Duration)

	leads, err := s.leads.ListReminderWindow(ctx, from, to, s.pageSize)
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("reminder list: %v", err))
		s.log.SweepSummary("reminders", 0, 0, 0, len(summary.Errors))
		return summary
	}

	for _, lead := range leads {
		summary.Processed++

		current, err := s.leads.GetByID(ctx, lead.ID)
		if err != nil {
			if !errors.Is(err, leadrepo.ErrNotFound) {
				summary.Errors = append(summary.Errors, fmt.Sprintf("reminder lead=%s: %v", lead.ID, err))
			}
			continue
		}
		if current.J1ReminderSentAt != nil || current.BookingSlotAt == nil ||
			current.BookingSlotAt.Before(from) || !current.BookingSlotAt.Before(to) {
			continue
		}

		confirm, err := s.tokens.Issue(ctx, tokensvc.PurposeBookingConfirm, current.ID, s.policy.ConfirmTokenTTL.Duration)
		if err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("reminder lead=%s: %v", current.ID, err))
			continue
		}

		confirmURL := fmt.Sprintf("%s/booking/confirm?token=%s", s.baseURL, confirm)
		rescheduleURL := fmt.Sprintf("%s/booking/reschedule?lead=%s", s.baseURL, current.ID)
		if err := s.sender.SendBookingReminderEmail(ctx, current.Email, current.Locale, *current.BookingSlotAt, confirmURL, rescheduleURL); err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("reminder lead=%s: %v", current.ID, err))
			continue
		}

		if err := s.leads.MarkReminderSent(ctx, current.ID, now); err != nil {
			if !errors.Is(err, leadrepo.ErrStale) {
				summary.Errors = append(summary.Errors, fmt.Sprintf("reminder lead=%s: %v", current.ID, err))
			}
			continue
		}
		summary.Sent++
	}

	s.log.SweepSummary("reminders", summary.Processed, summary.Sent, 0, len(summary.Errors))
	return summary
}

// Confirmation is what the booking confirm page renders.
type Confirmation struct {
	LeadID        uuid.UUID  `json:"leadId"`
	Email         string     `json:"email"`
	BookingSlotAt *time.Time `json:"bookingSlotAt"`
}

// ResolveConfirmToken backs the confirm link in the reminder email.
func (s *Service) ResolveConfirmToken(ctx context.Context, raw string) (Confirmation, error) {
	leadID, err := s.tokens.Resolve(ctx, tokensvc.PurposeBookingConfirm, raw)
	if err != nil {
		return Confirmation{}, err
	}

	lead, err := s.leads.GetByID(ctx, leadID)
	if err != nil {
		return Confirmation{}, err
	}

	return Confirmation{
		LeadID:        lead.ID,
		Email:         lead.Email,
		BookingSlotAt: lead.BookingSlotAt,
	}, nil
}
