package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	tokensvc "fleetcrm_backend/internal/tokens/service"
)

// Wizard steps a resume link can land on.
const (
	ResumeStepVerify  = "verify"
	ResumeStepProfile = "profile"
	ResumeStepBooking = "booking"
	ResumeStepDone    = "done"
)

// ResumeTarget tells the frontend where to drop a returning lead.
type ResumeTarget struct {
	LeadID      uuid.UUID `json:"leadId"`
	Step        string    `json:"step"`
	RedirectURL string    `json:"redirectUrl"`
}

// ResolveResumeToken maps a resume link back to its lead and the wizard step
// to continue at. The first click is recorded on the active entry; repeat
// clicks resolve normally but keep the original click timestamp.
func (s *Service) ResolveResumeToken(ctx context.Context, raw string, now time.Time) (ResumeTarget, error) {
	leadID, err := s.tokens.Resolve(ctx, tokensvc.PurposeResume, raw)
	if err != nil {
		return ResumeTarget{}, err
	}

	lead, err := s.leads.GetByID(ctx, leadID)
	if err != nil {
		return ResumeTarget{}, err
	}

	if err := s.entries.RecordClick(ctx, leadID, now); err != nil {
		return ResumeTarget{}, fmt.Errorf("record resume click: %w", err)
	}

	step := ResumeStepDone
	switch {
	case !lead.EmailVerified:
		step = ResumeStepVerify
	case !lead.Profile().Complete():
		step = ResumeStepProfile
	case lead.BookingSlotAt == nil && !lead.CallbackRequested:
		step = ResumeStepBooking
	}

	return ResumeTarget{
		LeadID:      leadID,
		Step:        step,
		RedirectURL: fmt.Sprintf("%s/wizard?lead=%s&step=%s", s.baseURL, leadID, step),
	}, nil
}
