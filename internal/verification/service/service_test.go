package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"fleetcrm_backend/internal/config"
	"fleetcrm_backend/internal/verification/repository"
	"fleetcrm_backend/platform/clock"
	"fleetcrm_backend/platform/events"
)

type fakeCodeStore struct {
	codes []repository.Code
}

func (s *fakeCodeStore) Latest(_ context.Context, leadID uuid.UUID) (repository.Code, error) {
	for i := len(s.codes) - 1; i >= 0; i-- {
		if s.codes[i].LeadID == leadID {
			return s.codes[i], nil
		}
	}
	return repository.Code{}, repository.ErrNoCode
}

func (s *fakeCodeStore) Create(_ context.Context, params repository.CreateCodeParams) (repository.Code, error) {
	for i := range s.codes {
		if s.codes[i].LeadID == params.LeadID && s.codes[i].ConsumedAt == nil && s.codes[i].SupersededAt == nil {
			at := params.IssuedAt
			s.codes[i].SupersededAt = &at
		}
	}
	code := repository.Code{
		ID:        uuid.New(),
		LeadID:    params.LeadID,
		Email:     params.Email,
		Code:      params.Code,
		IssuedAt:  params.IssuedAt,
		ExpiresAt: params.ExpiresAt,
	}
	s.codes = append(s.codes, code)
	return code, nil
}

func (s *fakeCodeStore) IncrementAttempts(_ context.Context, id uuid.UUID) (int, error) {
	for i := range s.codes {
		if s.codes[i].ID == id {
			s.codes[i].Attempts++
			return s.codes[i].Attempts, nil
		}
	}
	return 0, repository.ErrNoCode
}

func (s *fakeCodeStore) MarkConsumed(_ context.Context, id uuid.UUID, at time.Time) error {
	for i := range s.codes {
		if s.codes[i].ID == id && s.codes[i].ConsumedAt == nil {
			s.codes[i].ConsumedAt = &at
			return nil
		}
	}
	return repository.ErrNoCode
}

type fakeGateway struct {
	lead     Lead
	verified bool
}

func (g *fakeGateway) GetLead(_ context.Context, _ uuid.UUID) (Lead, error) {
	lead := g.lead
	lead.EmailVerified = g.verified
	return lead, nil
}

func (g *fakeGateway) MarkVerified(_ context.Context, _ uuid.UUID) error {
	g.verified = true
	return nil
}

type recordingBus struct {
	published []events.Event
}

func (b *recordingBus) Publish(_ context.Context, event events.Event) {
	b.published = append(b.published, event)
}

func (b *recordingBus) PublishSync(_ context.Context, event events.Event) error {
	b.published = append(b.published, event)
	return nil
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

func newTestService() (*Service, *fakeCodeStore, *fakeGateway, *recordingBus, *clock.Fake, uuid.UUID) {
	store := &fakeCodeStore{}
	gateway := &fakeGateway{lead: Lead{ID: uuid.New(), Email: "driver@example.com", Locale: "fr"}}
	bus := &recordingBus{}
	clk := clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	policy := config.DefaultLifecyclePolicy().Verification
	svc := New(store, gateway, policy, bus, clk)
	return svc, store, gateway, bus, clk, gateway.lead.ID
}

func issuedCode(t *testing.T, store *fakeCodeStore, leadID uuid.UUID) string {
	t.Helper()
	latest, err := store.Latest(context.Background(), leadID)
	if err != nil {
		t.Fatalf("no code issued: %v", err)
	}
	return latest.Code
}

func TestIssueCodePublishesEvent(t *testing.T) {
	svc, store, _, bus, _, leadID := newTestService()
	ctx := context.Background()

	if err := svc.IssueCode(ctx, leadID); err != nil {
		t.Fatalf("IssueCode: %v", err)
	}

	code := issuedCode(t, store, leadID)
	if len(code) != 6 {
		t.Errorf("code length = %d, want 6", len(code))
	}
	if len(bus.published) != 1 {
		t.Fatalf("published %d events, want 1", len(bus.published))
	}
	if bus.published[0].EventName() != "verification.code.issued" {
		t.Errorf("event = %s", bus.published[0].EventName())
	}
}

func TestIssueCodeCooldown(t *testing.T) {
	svc, _, _, _, clk, leadID := newTestService()
	ctx := context.Background()

	if err := svc.IssueCode(ctx, leadID); err != nil {
		t.Fatalf("first issue: %v", err)
	}

	if err := svc.IssueCode(ctx, leadID); !errors.Is(err, ErrCooldownActive) {
		t.Errorf("immediate reissue: got %v, want ErrCooldownActive", err)
	}

	clk.Advance(59 * time.Second)
	if err := svc.IssueCode(ctx, leadID); !errors.Is(err, ErrCooldownActive) {
		t.Errorf("reissue at 59s: got %v, want ErrCooldownActive", err)
	}

	clk.Advance(1 * time.Second)
	if err := svc.IssueCode(ctx, leadID); err != nil {
		t.Errorf("reissue at 60s: %v", err)
	}
}

func TestReissueSupersedesPriorCode(t *testing.T) {
	svc, store, _, _, clk, leadID := newTestService()
	ctx := context.Background()

	if err := svc.IssueCode(ctx, leadID); err != nil {
		t.Fatalf("first issue: %v", err)
	}
	oldCode := issuedCode(t, store, leadID)

	clk.Advance(2 * time.Minute)
	if err := svc.IssueCode(ctx, leadID); err != nil {
		t.Fatalf("second issue: %v", err)
	}
	newCode := issuedCode(t, store, leadID)

	if err := svc.VerifyCode(ctx, leadID, oldCode); !errors.Is(err, ErrCodeMismatch) {
		t.Errorf("old code after reissue: got %v, want ErrCodeMismatch", err)
	}
	if err := svc.VerifyCode(ctx, leadID, newCode); err != nil {
		t.Errorf("new code: %v", err)
	}
}

func TestVerifyCodeExpiry(t *testing.T) {
	svc, store, _, _, clk, leadID := newTestService()
	ctx := context.Background()

	if err := svc.IssueCode(ctx, leadID); err != nil {
		t.Fatalf("issue: %v", err)
	}
	code := issuedCode(t, store, leadID)

	clk.Advance(10*time.Minute + time.Second)
	if err := svc.VerifyCode(ctx, leadID, code); !errors.Is(err, ErrCodeExpired) {
		t.Errorf("correct code after TTL: got %v, want ErrCodeExpired", err)
	}
}

func TestVerifyCodeAttemptBound(t *testing.T) {
	svc, store, _, _, _, leadID := newTestService()
	ctx := context.Background()

	if err := svc.IssueCode(ctx, leadID); err != nil {
		t.Fatalf("issue: %v", err)
	}
	code := issuedCode(t, store, leadID)
	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	for i := 1; i <= 4; i++ {
		if err := svc.VerifyCode(ctx, leadID, wrong); !errors.Is(err, ErrCodeMismatch) {
			t.Fatalf("attempt %d: got %v, want ErrCodeMismatch", i, err)
		}
	}
	if err := svc.VerifyCode(ctx, leadID, wrong); !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("attempt 5: got %v, want ErrTooManyAttempts", err)
	}
	// the bound holds even when the correct code finally arrives
	if err := svc.VerifyCode(ctx, leadID, code); !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("attempt 6 with correct code: got %v, want ErrTooManyAttempts", err)
	}
}

func TestVerifyCodeSuccess(t *testing.T) {
	svc, store, gateway, bus, _, leadID := newTestService()
	ctx := context.Background()

	if err := svc.IssueCode(ctx, leadID); err != nil {
		t.Fatalf("issue: %v", err)
	}
	code := issuedCode(t, store, leadID)

	if err := svc.VerifyCode(ctx, leadID, code); err != nil {
		t.Fatalf("VerifyCode: %v", err)
	}
	if !gateway.verified {
		t.Error("lead was not marked verified")
	}

	var sawVerified bool
	for _, event := range bus.published {
		if event.EventName() == "verification.email.verified" {
			sawVerified = true
		}
	}
	if !sawVerified {
		t.Error("LeadEmailVerified was not published")
	}

	if err := svc.VerifyCode(ctx, leadID, code); !errors.Is(err, ErrAlreadyVerified) {
		t.Errorf("replay after success: got %v, want ErrAlreadyVerified", err)
	}
}

func TestVerifyCodeWithoutIssue(t *testing.T) {
	svc, _, _, _, _, leadID := newTestService()

	if err := svc.VerifyCode(context.Background(), leadID, "123456"); !errors.Is(err, ErrCodeMismatch) {
		t.Errorf("verify with no code: got %v, want ErrCodeMismatch", err)
	}
}

func TestIssueCodeAlreadyVerified(t *testing.T) {
	svc, _, gateway, _, _, leadID := newTestService()
	gateway.verified = true

	if err := svc.IssueCode(context.Background(), leadID); !errors.Is(err, ErrAlreadyVerified) {
		t.Errorf("issue for verified lead: got %v, want ErrAlreadyVerified", err)
	}
}

func TestGenerateCodeShape(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := generateCode()
		if err != nil {
			t.Fatalf("generateCode: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("code %q length = %d, want 6", code, len(code))
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("code %q contains non-digit %q", code, r)
			}
		}
	}
}
