// Package email renders and delivers lifecycle emails. Two delivery
// backends exist, SMTP via go-mail and the Brevo transactional API, behind
// one Sender interface; a NoopSender covers disabled email and tests.
package email

import (
	"context"
	"fmt"
	"time"

	"fleetcrm_backend/platform/config"
)

type Sender interface {
	SendVerificationCodeEmail(ctx context.Context, toEmail, locale, code string) error
	SendRecoveryEmail(ctx context.Context, toEmail, locale, resumeURL string) error
	SendNurtureFirstEmail(ctx context.Context, toEmail, locale, resumeURL string) error
	SendNurtureFinalEmail(ctx context.Context, toEmail, locale, resumeURL string) error
	SendBookingReminderEmail(ctx context.Context, toEmail, locale string, slotAt time.Time, confirmURL, rescheduleURL string) error
}

type NoopSender struct{}

func (NoopSender) SendVerificationCodeEmail(ctx context.Context, toEmail, locale, code string) error {
	return nil
}

func (NoopSender) SendRecoveryEmail(ctx context.Context, toEmail, locale, resumeURL string) error {
	return nil
}

func (NoopSender) SendNurtureFirstEmail(ctx context.Context, toEmail, locale, resumeURL string) error {
	return nil
}

func (NoopSender) SendNurtureFinalEmail(ctx context.Context, toEmail, locale, resumeURL string) error {
	return nil
}

func (NoopSender) SendBookingReminderEmail(ctx context.Context, toEmail, locale string, slotAt time.Time, confirmURL, rescheduleURL string) error {
	return nil
}

// NewSender picks the delivery backend from configuration.
func NewSender(cfg config.EmailConfig) (Sender, error) {
	if !cfg.GetEmailEnabled() {
		return NoopSender{}, nil
	}

	switch cfg.GetEmailProvider() {
	case "smtp":
		return NewSMTPSender(
			cfg.GetSMTPHost(), cfg.GetSMTPPort(),
			cfg.GetSMTPUsername(), cfg.GetSMTPPassword(),
			cfg.GetEmailFromAddress(), cfg.GetEmailFromName(),
		), nil
	case "brevo":
		return NewBrevoSender(cfg.GetBrevoAPIKey(), cfg.GetEmailFromAddress(), cfg.GetEmailFromName()), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.GetEmailProvider())
	}
}
