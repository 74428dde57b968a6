package notification

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"fleetcrm_backend/internal/events"
	"fleetcrm_backend/platform/logger"
)

type recordingSender struct {
	codes []string
}

func (s *recordingSender) SendVerificationCodeEmail(_ context.Context, toEmail, _, code string) error {
	s.codes = append(s.codes, toEmail+":"+code)
	return nil
}

func (s *recordingSender) SendRecoveryEmail(_ context.Context, _, _, _ string) error     { return nil }
func (s *recordingSender) SendNurtureFirstEmail(_ context.Context, _, _, _ string) error { return nil }
func (s *recordingSender) SendNurtureFinalEmail(_ context.Context, _, _, _ string) error { return nil }
func (s *recordingSender) SendBookingReminderEmail(_ context.Context, _, _ string, _ time.Time, _, _ string) error {
	return nil
}

func TestHandleVerificationCodeIssued(t *testing.T) {
	sender := &recordingSender{}
	module := NewModule(sender, logger.New("test"))

	err := module.Handle(context.Background(), events.VerificationCodeIssued{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    uuid.New(),
		Email:     "driver@example.com",
		Code:      "123456",
		Locale:    "en",
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(sender.codes) != 1 || sender.codes[0] != "driver@example.com:123456" {
		t.Fatalf("sent = %v", sender.codes)
	}
}

func TestVerificationEmailDeliveredViaBus(t *testing.T) {
	sender := &recordingSender{}
	log := logger.New("test")
	bus := events.NewInMemoryBus(log)
	module := NewModule(sender, log)
	module.RegisterHandlers(bus)

	err := bus.PublishSync(context.Background(), events.VerificationCodeIssued{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    uuid.New(),
		Email:     "driver@example.com",
		Code:      "654321",
		Locale:    "fr",
	})
	if err != nil {
		t.Fatalf("PublishSync: %v", err)
	}
	if len(sender.codes) != 1 {
		t.Fatalf("sent = %v", sender.codes)
	}
}
