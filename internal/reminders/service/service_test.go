package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"fleetcrm_backend/internal/config"
	leaddomain "fleetcrm_backend/internal/leads/domain"
	leadrepo "fleetcrm_backend/internal/leads/repository"
	tokensvc "fleetcrm_backend/internal/tokens/service"
	"fleetcrm_backend/platform/logger"
)

type fakeLeadStore struct {
	leads map[uuid.UUID]*leadrepo.Lead
}

func (s *fakeLeadStore) GetByID(_ context.Context, id uuid.UUID) (leadrepo.Lead, error) {
	lead, ok := s.leads[id]
	if !ok {
		return leadrepo.Lead{}, leadrepo.ErrNotFound
	}
	return *lead, nil
}

func (s *fakeLeadStore) ListReminderWindow(_ context.Context, from, to time.Time, limit int) ([]leadrepo.Lead, error) {
	var out []leadrepo.Lead
	for _, lead := range s.leads {
		if lead.BookingSlotAt == nil || lead.J1ReminderSentAt != nil {
			continue
		}
		if lead.BookingSlotAt.Before(from) || !lead.BookingSlotAt.Before(to) {
			continue
		}
		out = append(out, *lead)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *fakeLeadStore) MarkReminderSent(_ context.Context, id uuid.UUID, at time.Time) error {
	lead, ok := s.leads[id]
	if !ok {
		return leadrepo.ErrNotFound
	}
	if lead.J1ReminderSentAt != nil {
		return leadrepo.ErrStale
	}
	lead.J1ReminderSentAt = &at
	return nil
}

type fakeTokens struct {
	issued map[string]uuid.UUID
}

func (t *fakeTokens) Issue(_ context.Context, purpose tokensvc.Purpose, leadID uuid.UUID, _ time.Duration) (string, error) {
	raw := fmt.Sprintf("%s-%d", purpose, len(t.issued))
	t.issued[raw] = leadID
	return raw, nil
}

func (t *fakeTokens) Resolve(_ context.Context, _ tokensvc.Purpose, raw string) (uuid.UUID, error) {
	leadID, ok := t.issued[raw]
	if !ok {
		return uuid.Nil, tokensvc.ErrTokenInvalid
	}
	return leadID, nil
}

type fakeSender struct {
	reminders []string
	failFor   map[string]bool
}

func (s *fakeSender) SendVerificationCodeEmail(_ context.Context, _, _, _ string) error { return nil }
func (s *fakeSender) SendRecoveryEmail(_ context.Context, _, _, _ string) error         { return nil }
func (s *fakeSender) SendNurtureFirstEmail(_ context.Context, _, _, _ string) error     { return nil }
func (s *fakeSender) SendNurtureFinalEmail(_ context.Context, _, _, _ string) error     { return nil }

func (s *fakeSender) SendBookingReminderEmail(_ context.Context, toEmail, _ string, _ time.Time, _, _ string) error {
	if s.failFor[toEmail] {
		return errors.New("smtp unavailable")
	}
	s.reminders = append(s.reminders, toEmail)
	return nil
}

type harness struct {
	svc    *Service
	leads  *fakeLeadStore
	sender *fakeSender
	tokens *fakeTokens
	now    time.Time
}

func newHarness() *harness {
	leads := &fakeLeadStore{leads: map[uuid.UUID]*leadrepo.Lead{}}
	sender := &fakeSender{failFor: map[string]bool{}}
	tokens := &fakeTokens{issued: map[string]uuid.UUID{}}
	policy := config.DefaultLifecyclePolicy()

	return &harness{
		svc:    New(leads, tokens, sender, policy.Reminder, policy.SweepPageSize, "https://app.example.com", logger.New("test")),
		leads:  leads,
		sender: sender,
		tokens: tokens,
		now:    time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (h *harness) addBookedLead(email string, slotFromNow time.Duration) uuid.UUID {
	id := uuid.New()
	slot := h.now.Add(slotFromNow)
	h.leads.leads[id] = &leadrepo.Lead{
		ID:            id,
		Email:         email,
		Locale:        "en",
		Status:        leaddomain.StatusDemo,
		EmailVerified: true,
		BookingSlotAt: &slot,
	}
	return id
}

func TestReminderWindow(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	h.addBookedLead("too-soon@example.com", 19*time.Hour)
	inWindow := h.addBookedLead("tomorrow@example.com", 24*time.Hour)
	h.addBookedLead("too-late@example.com", 29*time.Hour)

	summary := h.svc.RunSweep(ctx, h.now)
	if summary.Sent != 1 {
		t.Fatalf("sent = %d, want 1", summary.Sent)
	}
	if len(h.sender.reminders) != 1 || h.sender.reminders[0] != "tomorrow@example.com" {
		t.Fatalf("reminder recipients = %v", h.sender.reminders)
	}
	if h.leads.leads[inWindow].J1ReminderSentAt == nil {
		t.Error("send marker not set")
	}
}

func TestReminderExactlyOncePerBooking(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.addBookedLead("tomorrow@example.com", 24*time.Hour)

	if got := h.svc.RunSweep(ctx, h.now).Sent; got != 1 {
		t.Fatalf("first run sent = %d, want 1", got)
	}
	if got := h.svc.RunSweep(ctx, h.now).Sent; got != 0 {
		t.Fatalf("second run sent = %d, want 0", got)
	}
	// the slot drifts into later sweeps' windows too; still no resend
	if got := h.svc.RunSweep(ctx, h.now.Add(2*time.Hour)).Sent; got != 0 {
		t.Fatalf("later run sent = %d, want 0", got)
	}
	if len(h.sender.reminders) != 1 {
		t.Fatalf("reminder emails = %d, want 1", len(h.sender.reminders))
	}
}

func TestReminderErrorIsolation(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.addBookedLead("broken@example.com", 24*time.Hour)
	h.addBookedLead("healthy@example.com", 24*time.Hour)
	h.sender.failFor["broken@example.com"] = true

	summary := h.svc.RunSweep(ctx, h.now)
	if summary.Sent != 1 {
		t.Fatalf("sent = %d, want 1", summary.Sent)
	}
	if len(summary.Errors) != 1 {
		t.Fatalf("errors = %v, want exactly one", summary.Errors)
	}

	// marker stays unset for the failed lead, so it is retried
	h.sender.failFor = map[string]bool{}
	if got := h.svc.RunSweep(ctx, h.now).Sent; got != 1 {
		t.Fatalf("retry sent = %d, want 1", got)
	}
}

func TestResolveConfirmToken(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	leadID := h.addBookedLead("tomorrow@example.com", 24*time.Hour)

	h.svc.RunSweep(ctx, h.now)

	var raw string
	for token := range h.tokens.issued {
		raw = token
	}
	if raw == "" {
		t.Fatal("no confirmation token issued")
	}

	confirmation, err := h.svc.ResolveConfirmToken(ctx, raw)
	if err != nil {
		t.Fatalf("ResolveConfirmToken: %v", err)
	}
	if confirmation.LeadID != leadID {
		t.Errorf("lead = %s, want %s", confirmation.LeadID, leadID)
	}
	if confirmation.BookingSlotAt == nil {
		t.Error("booking slot missing from confirmation")
	}

	if _, err := h.svc.ResolveConfirmToken(ctx, "bogus"); !errors.Is(err, tokensvc.ErrTokenInvalid) {
		t.Errorf("bogus token: got %v, want ErrTokenInvalid", err)
	}
}
