// Package service implements the email blacklist used as a lead creation
// gate and as a staff-managed admin list.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"fleetcrm_backend/internal/blacklist/repository"
	"fleetcrm_backend/platform/apperr"
	"fleetcrm_backend/platform/clock"
)

var (
	ErrEntryNotFound = apperr.New(apperr.KindNotFound, "blacklist_entry_not_found", "email is not blacklisted")
	ErrDuplicate     = apperr.New(apperr.KindConflict, "blacklist_duplicate", "email is already blacklisted")
)

// Store is the persistence surface of the blacklist.
type Store interface {
	Exists(ctx context.Context, email string) (bool, error)
	Add(ctx context.Context, email, reason, actor string, at time.Time) (repository.Entry, error)
	Remove(ctx context.Context, email, actor string, at time.Time) error
	List(ctx context.Context, includeRemoved bool, limit, offset int) ([]repository.Entry, error)
}

type Service struct {
	store Store
	clk   clock.Clock
}

func New(store Store, clk clock.Clock) *Service {
	return &Service{store: store, clk: clk}
}

// normalizeEmail matches the normalization applied to lead emails so the
// gate compares like with like.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsBlacklisted satisfies the leads module's gate port.
func (s *Service) IsBlacklisted(ctx context.Context, email string) (bool, error) {
	return s.store.Exists(ctx, normalizeEmail(email))
}

func (s *Service) Add(ctx context.Context, email, reason, actor string) (repository.Entry, error) {
	entry, err := s.store.Add(ctx, normalizeEmail(email), reason, actor, s.clk.Now())
	if errors.Is(err, repository.ErrDuplicate) {
		return repository.Entry{}, ErrDuplicate
	}
	return entry, err
}

func (s *Service) Remove(ctx context.Context, email, actor string) error {
	err := s.store.Remove(ctx, normalizeEmail(email), actor, s.clk.Now())
	if errors.Is(err, repository.ErrNotFound) {
		return ErrEntryNotFound
	}
	return err
}

func (s *Service) List(ctx context.Context, includeRemoved bool, limit, offset int) ([]repository.Entry, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.List(ctx, includeRemoved, limit, offset)
}
