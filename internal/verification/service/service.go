// Package service implements the email verification flow: single-use numeric
// codes with a resend cooldown and a hard attempt bound.
package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"fleetcrm_backend/internal/config"
	"fleetcrm_backend/internal/events"
	"fleetcrm_backend/internal/verification/repository"
	"fleetcrm_backend/platform/apperr"
	"fleetcrm_backend/platform/clock"
)

var (
	ErrCooldownActive  = apperr.New(apperr.KindTooManyRequests, "cooldown_active", "a code was sent recently, wait before requesting another")
	ErrCodeExpired     = apperr.New(apperr.KindGone, "code_expired", "verification code has expired")
	ErrCodeMismatch    = apperr.New(apperr.KindBadRequest, "code_mismatch", "verification code does not match")
	ErrTooManyAttempts = apperr.New(apperr.KindTooManyRequests, "too_many_attempts", "too many verification attempts, request a new code")
	ErrAlreadyVerified = apperr.New(apperr.KindConflict, "already_verified", "email address is already verified")
)

// Lead is the slice of lead state the verification flow needs.
type Lead struct {
	ID            uuid.UUID
	Email         string
	Locale        string
	EmailVerified bool
}

// LeadGateway lets the verification flow read a lead and record a successful
// verification (flag plus the status transition) without importing the leads
// module directly.
type LeadGateway interface {
	GetLead(ctx context.Context, id uuid.UUID) (Lead, error)
	MarkVerified(ctx context.Context, id uuid.UUID) error
}

// CodeStore is the persistence surface of the flow.
type CodeStore interface {
	Latest(ctx context.Context, leadID uuid.UUID) (repository.Code, error)
	Create(ctx context.Context, params repository.CreateCodeParams) (repository.Code, error)
	IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error)
	MarkConsumed(ctx context.Context, id uuid.UUID, at time.Time) error
}

type Service struct {
	codes  CodeStore
	leads  LeadGateway
	policy config.VerificationPolicy
	bus    events.Bus
	clk    clock.Clock
}

func New(codes CodeStore, leads LeadGateway, policy config.VerificationPolicy, bus events.Bus, clk clock.Clock) *Service {
	return &Service{codes: codes, leads: leads, policy: policy, bus: bus, clk: clk}
}

// IssueCode generates a fresh code for the lead and publishes it for
// delivery. Re-issuing within the cooldown window is rejected; outside it the
// prior code is superseded.
func (s *Service) IssueCode(ctx context.Context, leadID uuid.UUID) error {
	lead, err := s.leads.GetLead(ctx, leadID)
	if err != nil {
		return err
	}
	if lead.EmailVerified {
		return ErrAlreadyVerified
	}

	now := s.clk.Now()
	latest, err := s.codes.Latest(ctx, leadID)
	switch {
	case err == nil:
		if now.Sub(latest.IssuedAt) < s.policy.ResendCooldown.Duration {
			return ErrCooldownActive
		}
	case errors.Is(err, repository.ErrNoCode):
		// first code for this lead
	default:
		return fmt.Errorf("load latest code: %w", err)
	}

	value, err := generateCode()
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}

	code, err := s.codes.Create(ctx, repository.CreateCodeParams{
		LeadID:    leadID,
		Email:     lead.Email,
		Code:      value,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.policy.CodeTTL.Duration),
	})
	if err != nil {
		return fmt.Errorf("store code: %w", err)
	}

	s.bus.Publish(ctx, events.VerificationCodeIssued{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    leadID,
		Email:     code.Email,
		Code:      code.Code,
		Locale:    lead.Locale,
	})
	return nil
}

// VerifyCode checks a submitted code against the latest issued one. Expiry is
// reported before correctness; the attempt bound is enforced before the value
// comparison, so the bounding attempt itself fails with ErrTooManyAttempts.
func (s *Service) VerifyCode(ctx context.Context, leadID uuid.UUID, submitted string) error {
	lead, err := s.leads.GetLead(ctx, leadID)
	if err != nil {
		return err
	}
	if lead.EmailVerified {
		return ErrAlreadyVerified
	}

	latest, err := s.codes.Latest(ctx, leadID)
	if errors.Is(err, repository.ErrNoCode) {
		return ErrCodeMismatch
	}
	if err != nil {
		return fmt.Errorf("load latest code: %w", err)
	}
	if latest.ConsumedAt != nil || latest.SupersededAt != nil {
		return ErrCodeMismatch
	}

	now := s.clk.Now()
	if !now.Before(latest.ExpiresAt) {
		return ErrCodeExpired
	}

	attempts, err := s.codes.IncrementAttempts(ctx, latest.ID)
	if err != nil {
		return fmt.Errorf("count attempt: %w", err)
	}
	if attempts > s.policy.MaxAttempts {
		return ErrTooManyAttempts
	}
	if submitted != latest.Code {
		if attempts >= s.policy.MaxAttempts {
			return ErrTooManyAttempts
		}
		return ErrCodeMismatch
	}

	if err := s.codes.MarkConsumed(ctx, latest.ID, now); err != nil {
		return fmt.Errorf("consume code: %w", err)
	}
	if err := s.leads.MarkVerified(ctx, leadID); err != nil {
		return err
	}

	s.bus.Publish(ctx, events.LeadEmailVerified{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    leadID,
		Email:     lead.Email,
	})
	return nil
}

const codeDigits = 6

func generateCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < codeDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeDigits, n), nil
}
