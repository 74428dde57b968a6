// Package service issues and resolves single-purpose opaque tokens used in
// lifecycle emails (resume links, booking confirmations).
package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fleetcrm_backend/internal/tokens/repository"
	"fleetcrm_backend/platform/apperr"
	"fleetcrm_backend/platform/clock"
)

// Purpose scopes a token to a single use site. A resume token can never be
// replayed against the booking confirmation endpoint.
type Purpose string

const (
	PurposeResume         Purpose = "resume"
	PurposeBookingConfirm Purpose = "booking_confirm"
)

var (
	ErrTokenInvalid = apperr.New(apperr.KindUnauthorized, "token_invalid", "link is expired or invalid")
	ErrTokenExpired = apperr.New(apperr.KindGone, "token_expired", "link is expired or invalid")
)

// Store is the persistence surface for tokens.
type Store interface {
	Create(ctx context.Context, token repository.Token) (repository.Token, error)
	GetByHash(ctx context.Context, purpose, hash string) (repository.Token, error)
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

type Service struct {
	store Store
	clk   clock.Clock
}

func New(store Store, clk clock.Clock) *Service {
	return &Service{store: store, clk: clk}
}

const tokenBytes = 32

// Issue mints a raw token, stores its digest, and returns the raw value. The
// raw token leaves the process exactly once, inside the email link.
func (s *Service) Issue(ctx context.Context, purpose Purpose, leadID uuid.UUID, ttl time.Duration) (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	raw := base64.RawURLEncoding.EncodeToString(buf)

	now := s.clk.Now()
	_, err := s.store.Create(ctx, repository.Token{
		LeadID:    leadID,
		Purpose:   string(purpose),
		Hash:      hashToken(raw),
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	})
	if err != nil {
		return "", fmt.Errorf("store token: %w", err)
	}
	return raw, nil
}

// Resolve maps a raw token back to its lead. Unknown tokens and
// wrong-purpose tokens are indistinguishable from never-issued ones. Tokens
// are valid for their whole time window and are not consumed on use.
func (s *Service) Resolve(ctx context.Context, purpose Purpose, raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, ErrTokenInvalid
	}

	token, err := s.store.GetByHash(ctx, string(purpose), hashToken(raw))
	if errors.Is(err, repository.ErrNotFound) {
		return uuid.Nil, ErrTokenInvalid
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("look up token: %w", err)
	}

	if !s.clk.Now().Before(token.ExpiresAt) {
		return uuid.Nil, ErrTokenExpired
	}
	return token.LeadID, nil
}

// PruneExpired drops tokens whose window closed before now.
func (s *Service) PruneExpired(ctx context.Context) (int64, error) {
	return s.store.DeleteExpired(ctx, s.clk.Now())
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
