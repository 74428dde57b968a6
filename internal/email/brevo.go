package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// BrevoSender delivers rendered emails through the Brevo transactional API.
type BrevoSender struct {
	apiKey    string
	fromName  string
	fromEmail string
	client    *http.Client
}

func NewBrevoSender(apiKey, fromEmail, fromName string) *BrevoSender {
	return &BrevoSender{
		apiKey:    apiKey,
		fromName:  fromName,
		fromEmail: fromEmail,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

type brevoEmailRequest struct {
	Sender struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"sender"`
	To []struct {
		Email string `json:"email"`
	} `json:"to"`
	Subject     string `json:"subject"`
	HTMLContent string `json:"htmlContent"`
}

func (b *BrevoSender) send(ctx context.Context, toEmail, subject, htmlContent string) error {
	payload := brevoEmailRequest{
		Subject:     subject,
		HTMLContent: htmlContent,
	}
	payload.Sender.Name = b.fromName
	payload.Sender.Email = b.fromEmail
	payload.To = []struct {
		Email string `json:"email"`
	}{{Email: toEmail}}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.brevo.com/v3/smtp/email", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("api-key", b.apiKey)
	req.Header.Set("content-type", "application/json")
	req.Header.Set("accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("brevo send failed: status %d: %s", resp.StatusCode, string(data))
	}

	return nil
}

func (b *BrevoSender) SendVerificationCodeEmail(ctx context.Context, toEmail, locale, code string) error {
	subject, content, err := verificationCodeContent(locale, code)
	if err != nil {
		return err
	}
	return b.send(ctx, toEmail, subject, content)
}

func (b *BrevoSender) SendRecoveryEmail(ctx context.Context, toEmail, locale, resumeURL string) error {
	subject, content, err := recoveryContent(locale, resumeURL)
	if err != nil {
		return err
	}
	return b.send(ctx, toEmail, subject, content)
}

func (b *BrevoSender) SendNurtureFirstEmail(ctx context.Context, toEmail, locale, resumeURL string) error {
	subject, content, err := nurtureFirstContent(locale, resumeURL)
	if err != nil {
		return err
	}
	return b.send(ctx, toEmail, subject, content)
}

func (b *BrevoSender) SendNurtureFinalEmail(ctx context.Context, toEmail, locale, resumeURL string) error {
	subject, content, err := nurtureFinalContent(locale, resumeURL)
	if err != nil {
		return err
	}
	return b.send(ctx, toEmail, subject, content)
}

func (b *BrevoSender) SendBookingReminderEmail(ctx context.Context, toEmail, locale string, slotAt time.Time, confirmURL, rescheduleURL string) error {
	subject, content, err := bookingReminderContent(locale, slotAt, confirmURL, rescheduleURL)
	if err != nil {
		return err
	}
	return b.send(ctx, toEmail, subject, content)
}
