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
	leadtransport "fleetcrm_backend/internal/leads/transport"
	"fleetcrm_backend/internal/nurturing/repository"
	tokensvc "fleetcrm_backend/internal/tokens/service"
	"fleetcrm_backend/platform/logger"
)

type fakeLeadStore struct {
	leads map[uuid.UUID]*leadrepo.Lead
	// entries is shared with the entry store so the migration query can
	// exclude leads that already have an active entry
	entries *fakeEntryStore
}

func (s *fakeLeadStore) GetByID(_ context.Context, id uuid.UUID) (leadrepo.Lead, error) {
	lead, ok := s.leads[id]
	if !ok {
		return leadrepo.Lead{}, leadrepo.ErrNotFound
	}
	return *lead, nil
}

func (s *fakeLeadStore) ListRecoveryCandidates(_ context.Context, createdBefore time.Time, limit int) ([]leadrepo.Lead, error) {
	var out []leadrepo.Lead
	for _, lead := range s.leads {
		if lead.EmailVerified && !lead.WizardCompleted && lead.RecoverySentAt == nil &&
			lead.Status == leaddomain.StatusEmailVerified && lead.CreatedAt.Before(createdBefore) {
			out = append(out, *lead)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *fakeLeadStore) MarkRecoverySent(_ context.Context, id uuid.UUID, at time.Time) error {
	lead, ok := s.leads[id]
	if !ok {
		return leadrepo.ErrNotFound
	}
	if lead.RecoverySentAt != nil {
		return leadrepo.ErrStale
	}
	lead.RecoverySentAt = &at
	return nil
}

func (s *fakeLeadStore) ListStaleForNurturing(_ context.Context, createdBefore time.Time, limit int) ([]leadrepo.Lead, error) {
	var out []leadrepo.Lead
	for _, lead := range s.leads {
		if lead.EmailVerified && !lead.WizardCompleted &&
			lead.Status == leaddomain.StatusEmailVerified && lead.CreatedAt.Before(createdBefore) &&
			!s.entries.hasActive(lead.ID) {
			out = append(out, *lead)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// fakeTransitioner applies status changes directly to the fake lead store.
type fakeTransitioner struct {
	store       *fakeLeadStore
	transitions []string
}

func (t *fakeTransitioner) Transition(_ context.Context, leadID uuid.UUID, target leaddomain.Status, tctx leaddomain.TransitionContext) (leadtransport.LeadResponse, error) {
	lead, ok := t.store.leads[leadID]
	if !ok {
		return leadtransport.LeadResponse{}, leadrepo.ErrNotFound
	}
	if err := leaddomain.ValidateTransition(lead.Status, target, nil, tctx); err != nil {
		return leadtransport.LeadResponse{}, err
	}
	lead.Status = target
	lead.StatusReason = &tctx.Reason
	t.transitions = append(t.transitions, fmt.Sprintf("%s->%s reason=%s actor=%s", leadID, target, tctx.Reason, tctx.Actor))
	return leadtransport.LeadResponse{}, nil
}

type fakeEntryStore struct {
	entries map[uuid.UUID]*repository.Entry
}

func (s *fakeEntryStore) hasActive(leadID uuid.UUID) bool {
	for _, entry := range s.entries {
		if entry.LeadID == leadID && entry.ArchivedAt == nil {
			return true
		}
	}
	return false
}

func (s *fakeEntryStore) Create(_ context.Context, leadID uuid.UUID, at time.Time) (repository.Entry, error) {
	if s.hasActive(leadID) {
		return repository.Entry{}, repository.ErrActiveExists
	}
	entry := &repository.Entry{ID: uuid.New(), LeadID: leadID, Step: 0, CreatedAt: at}
	s.entries[entry.ID] = entry
	return *entry, nil
}

func (s *fakeEntryStore) GetActiveByLead(_ context.Context, leadID uuid.UUID) (repository.Entry, error) {
	for _, entry := range s.entries {
		if entry.LeadID == leadID && entry.ArchivedAt == nil {
			return *entry, nil
		}
	}
	return repository.Entry{}, repository.ErrNotFound
}

func (s *fakeEntryStore) ListFirstEmailDue(_ context.Context, cutoff time.Time, limit int) ([]repository.Entry, error) {
	return s.list(func(e *repository.Entry) bool {
		return e.Step == 0 && !e.CreatedAt.After(cutoff)
	}, limit), nil
}

func (s *fakeEntryStore) ListFinalEmailDue(_ context.Context, cutoff time.Time, limit int) ([]repository.Entry, error) {
	return s.list(func(e *repository.Entry) bool {
		return e.Step == 1 && e.Step1SentAt != nil && !e.Step1SentAt.After(cutoff)
	}, limit), nil
}

func (s *fakeEntryStore) ListArchiveDue(_ context.Context, cutoff time.Time, limit int) ([]repository.Entry, error) {
	return s.list(func(e *repository.Entry) bool {
		return e.Step == 2 && e.Step2SentAt != nil && !e.Step2SentAt.After(cutoff)
	}, limit), nil
}

func (s *fakeEntryStore) list(match func(*repository.Entry) bool, limit int) []repository.Entry {
	var out []repository.Entry
	for _, entry := range s.entries {
		if entry.ArchivedAt == nil && match(entry) {
			out = append(out, *entry)
		}
		if len(out) == limit {
			break
		}
	}
	return out
}

func (s *fakeEntryStore) AdvanceStep(_ context.Context, id uuid.UUID, fromStep int, sentAt time.Time) error {
	entry, ok := s.entries[id]
	if !ok {
		return repository.ErrNotFound
	}
	if entry.Step != fromStep || entry.ArchivedAt != nil {
		return repository.ErrStale
	}
	entry.Step = fromStep + 1
	if fromStep == 0 {
		entry.Step1SentAt = &sentAt
	} else {
		entry.Step2SentAt = &sentAt
	}
	return nil
}

func (s *fakeEntryStore) Archive(_ context.Context, id uuid.UUID, at time.Time) error {
	entry, ok := s.entries[id]
	if !ok {
		return repository.ErrNotFound
	}
	if entry.ArchivedAt != nil {
		return repository.ErrStale
	}
	entry.ArchivedAt = &at
	return nil
}

func (s *fakeEntryStore) RecordClick(_ context.Context, leadID uuid.UUID, at time.Time) error {
	for _, entry := range s.entries {
		if entry.LeadID == leadID && entry.ArchivedAt == nil && entry.ClickedAt == nil {
			entry.ClickedAt = &at
		}
	}
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
	recovery     []string
	nurtureFirst []string
	nurtureFinal []string
	failFor      map[string]bool
}

func (s *fakeSender) SendVerificationCodeEmail(_ context.Context, toEmail, _, _ string) error {
	return nil
}

func (s *fakeSender) SendRecoveryEmail(_ context.Context, toEmail, _, _ string) error {
	if s.failFor[toEmail] {
		return errors.New("smtp unavailable")
	}
	s.recovery = append(s.recovery, toEmail)
	return nil
}

func (s *fakeSender) SendNurtureFirstEmail(_ context.Context, toEmail, _, _ string) error {
	if s.failFor[toEmail] {
		return errors.New("smtp unavailable")
	}
	s.nurtureFirst = append(s.nurtureFirst, toEmail)
	return nil
}

func (s *fakeSender) SendNurtureFinalEmail(_ context.Context, toEmail, _, _ string) error {
	if s.failFor[toEmail] {
		return errors.New("smtp unavailable")
	}
	s.nurtureFinal = append(s.nurtureFinal, toEmail)
	return nil
}

func (s *fakeSender) SendBookingReminderEmail(_ context.Context, toEmail, _ string, _ time.Time, _, _ string) error {
	return nil
}

type harness struct {
	svc     *Service
	leads   *fakeLeadStore
	entries *fakeEntryStore
	trans   *fakeTransitioner
	sender  *fakeSender
	tokens  *fakeTokens
	start   time.Time
}

func newHarness() *harness {
	entries := &fakeEntryStore{entries: map[uuid.UUID]*repository.Entry{}}
	leads := &fakeLeadStore{leads: map[uuid.UUID]*leadrepo.Lead{}, entries: entries}
	trans := &fakeTransitioner{store: leads}
	sender := &fakeSender{failFor: map[string]bool{}}
	tokens := &fakeTokens{issued: map[string]uuid.UUID{}}

	policy := config.DefaultLifecyclePolicy()
	svc := New(leads, trans, entries, tokens, sender, policy.Nurturing, policy.SweepPageSize,
		"https://app.example.com", logger.New("test"))

	return &harness{
		svc:     svc,
		leads:   leads,
		entries: entries,
		trans:   trans,
		sender:  sender,
		tokens:  tokens,
		start:   time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}
}

func (h *harness) addStalledLead(email string) uuid.UUID {
	id := uuid.New()
	h.leads.leads[id] = &leadrepo.Lead{
		ID:            id,
		Email:         email,
		Locale:        "en",
		Status:        leaddomain.StatusEmailVerified,
		EmailVerified: true,
		CreatedAt:     h.start,
	}
	return id
}

func (h *harness) activeEntry(t *testing.T, leadID uuid.UUID) repository.Entry {
	t.Helper()
	entry, err := h.entries.GetActiveByLead(context.Background(), leadID)
	if err != nil {
		t.Fatalf("no active entry for lead: %v", err)
	}
	return entry
}

func TestSweepFullPipeline(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	leadID := h.addStalledLead("stalled@example.com")

	// under an hour old: nothing happens
	summary := h.svc.RunSweep(ctx, h.start.Add(30*time.Minute))
	if summary.Sent != 0 || summary.Processed != 0 {
		t.Fatalf("early sweep: %+v", summary)
	}

	// 1h: recovery notice
	summary = h.svc.RunSweep(ctx, h.start.Add(90*time.Minute))
	if summary.Sent != 1 {
		t.Fatalf("recovery sweep sent = %d, want 1", summary.Sent)
	}
	if len(h.sender.recovery) != 1 {
		t.Fatalf("recovery emails = %d, want 1", len(h.sender.recovery))
	}

	// 24h: migration into nurturing at step 0, reason auto_stale
	migrated := h.start.Add(25 * time.Hour)
	h.svc.RunSweep(ctx, migrated)
	if h.leads.leads[leadID].Status != leaddomain.StatusNurturing {
		t.Fatalf("status after migration = %s", h.leads.leads[leadID].Status)
	}
	if got := *h.leads.leads[leadID].StatusReason; got != config.ReasonAutoStale {
		t.Fatalf("migration reason = %s", got)
	}
	entry := h.activeEntry(t, leadID)
	if entry.Step != 0 {
		t.Fatalf("entry step after migration = %d, want 0", entry.Step)
	}

	// J+1 after migration: first nurture email, step 0 -> 1
	h.svc.RunSweep(ctx, migrated.Add(25*time.Hour))
	if len(h.sender.nurtureFirst) != 1 {
		t.Fatalf("first nurture emails = %d, want 1", len(h.sender.nurtureFirst))
	}
	entry = h.activeEntry(t, leadID)
	if entry.Step != 1 || entry.Step1SentAt == nil {
		t.Fatalf("entry after first email: step=%d step1SentAt=%v", entry.Step, entry.Step1SentAt)
	}

	// J+7 after first send: final email, step 1 -> 2
	finalAt := entry.Step1SentAt.Add(7*24*time.Hour + time.Hour)
	h.svc.RunSweep(ctx, finalAt)
	if len(h.sender.nurtureFinal) != 1 {
		t.Fatalf("final nurture emails = %d, want 1", len(h.sender.nurtureFinal))
	}
	entry = h.activeEntry(t, leadID)
	if entry.Step != 2 || entry.Step2SentAt == nil {
		t.Fatalf("entry after final email: step=%d", entry.Step)
	}

	// 24h later: archival
	summary = h.svc.RunSweep(ctx, entry.Step2SentAt.Add(25*time.Hour))
	if summary.Archived != 1 {
		t.Fatalf("archived = %d, want 1", summary.Archived)
	}
	if h.entries.hasActive(leadID) {
		t.Fatal("entry still active after archival")
	}
}

func TestSweepIdempotent(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.addStalledLead("stalled@example.com")

	now := h.start.Add(2 * time.Hour)
	first := h.svc.RunSweep(ctx, now)
	if first.Sent != 1 {
		t.Fatalf("first run sent = %d, want 1", first.Sent)
	}

	// the exact same sweep again sends nothing new
	second := h.svc.RunSweep(ctx, now)
	if second.Sent != 0 {
		t.Fatalf("second run sent = %d, want 0", second.Sent)
	}
	if len(h.sender.recovery) != 1 {
		t.Fatalf("recovery emails = %d, want 1", len(h.sender.recovery))
	}
	if len(first.Errors)+len(second.Errors) != 0 {
		t.Fatalf("unexpected errors: %v %v", first.Errors, second.Errors)
	}
}

func TestSweepSkipsLeadThatLeftNurturing(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	leadID := h.addStalledLead("resumed@example.com")

	migrated := h.start.Add(25 * time.Hour)
	h.svc.RunSweep(ctx, migrated)

	// the lead books a demo before the first nurture email is due
	h.leads.leads[leadID].Status = leaddomain.StatusDemo
	h.leads.leads[leadID].WizardCompleted = true

	summary := h.svc.RunSweep(ctx, migrated.Add(25*time.Hour))
	if len(h.sender.nurtureFirst) != 0 {
		t.Fatal("nurture email sent to a lead that already resumed")
	}
	if summary.Archived != 1 {
		t.Fatalf("archived = %d, want 1 (entry closed on resume)", summary.Archived)
	}
	if h.entries.hasActive(leadID) {
		t.Fatal("entry still active for resumed lead")
	}
}

func TestSweepMigrationSkipsExistingEntry(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	leadID := h.addStalledLead("stalled@example.com")

	migrated := h.start.Add(25 * time.Hour)
	h.svc.RunSweep(ctx, migrated)
	h.svc.RunSweep(ctx, migrated.Add(time.Minute))

	var active int
	for _, entry := range h.entries.entries {
		if entry.LeadID == leadID && entry.ArchivedAt == nil {
			active++
		}
	}
	if active != 1 {
		t.Fatalf("active entries = %d, want 1", active)
	}
}

func TestSweepErrorIsolation(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.addStalledLead("broken@example.com")
	h.addStalledLead("healthy@example.com")
	h.sender.failFor["broken@example.com"] = true

	summary := h.svc.RunSweep(ctx, h.start.Add(2*time.Hour))
	if summary.Sent != 1 {
		t.Fatalf("sent = %d, want 1", summary.Sent)
	}
	if len(summary.Errors) != 1 {
		t.Fatalf("errors = %v, want exactly one", summary.Errors)
	}
	if len(h.sender.recovery) != 1 || h.sender.recovery[0] != "healthy@example.com" {
		t.Fatalf("recovery recipients = %v", h.sender.recovery)
	}

	// the failed lead keeps its marker unset, so the next run retries it
	h.sender.failFor = map[string]bool{}
	retry := h.svc.RunSweep(ctx, h.start.Add(3*time.Hour))
	if retry.Sent != 1 {
		t.Fatalf("retry sent = %d, want 1", retry.Sent)
	}
}

func TestResolveResumeToken(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	leadID := h.addStalledLead("stalled@example.com")

	migrated := h.start.Add(25 * time.Hour)
	h.svc.RunSweep(ctx, migrated)
	firstEmailAt := migrated.Add(25 * time.Hour)
	h.svc.RunSweep(ctx, firstEmailAt)

	var raw string
	for token := range h.tokens.issued {
		raw = token
	}
	if raw == "" {
		t.Fatal("no resume token issued")
	}

	clickAt := firstEmailAt.Add(time.Hour)
	target, err := h.svc.ResolveResumeToken(ctx, raw, clickAt)
	if err != nil {
		t.Fatalf("ResolveResumeToken: %v", err)
	}
	if target.LeadID != leadID {
		t.Errorf("lead = %s, want %s", target.LeadID, leadID)
	}
	// verified but no profile yet: wizard resumes at the profile step
	if target.Step != ResumeStepProfile {
		t.Errorf("step = %s, want %s", target.Step, ResumeStepProfile)
	}

	entry := h.activeEntry(t, leadID)
	if entry.ClickedAt == nil || !entry.ClickedAt.Equal(clickAt) {
		t.Fatalf("clickedAt = %v, want %v", entry.ClickedAt, clickAt)
	}

	// repeat clicks keep the first timestamp
	if _, err := h.svc.ResolveResumeToken(ctx, raw, clickAt.Add(time.Hour)); err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	entry = h.activeEntry(t, leadID)
	if !entry.ClickedAt.Equal(clickAt) {
		t.Errorf("clickedAt moved on repeat click: %v", entry.ClickedAt)
	}

	if _, err := h.svc.ResolveResumeToken(ctx, "bogus", clickAt); !errors.Is(err, tokensvc.ErrTokenInvalid) {
		t.Errorf("bogus token: got %v, want ErrTokenInvalid", err)
	}
}
