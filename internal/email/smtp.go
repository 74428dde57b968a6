package email

import (
	"context"
	"fmt"
	"net"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// SMTPSender delivers rendered emails over a direct SMTP connection via
// go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

func NewSMTPSender(host string, port int, username, password, fromEmail, fromName string) *SMTPSender {
	return &SMTPSender{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromName:  fromName,
		fromEmail: fromEmail,
	}
}

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, htmlContent string) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}

func (s *SMTPSender) SendVerificationCodeEmail(ctx context.Context, toEmail, locale, code string) error {
	subject, content, err := verificationCodeContent(locale, code)
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subject, content)
}

func (s *SMTPSender) SendRecoveryEmail(ctx context.Context, toEmail, locale, resumeURL string) error {
	subject, content, err := recoveryContent(locale, resumeURL)
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subject, content)
}

func (s *SMTPSender) SendNurtureFirstEmail(ctx context.Context, toEmail, locale, resumeURL string) error {
	subject, content, err := nurtureFirstContent(locale, resumeURL)
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subject, content)
}

func (s *SMTPSender) SendNurtureFinalEmail(ctx context.Context, toEmail, locale, resumeURL string) error {
	subject, content, err := nurtureFinalContent(locale, resumeURL)
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subject, content)
}

func (s *SMTPSender) SendBookingReminderEmail(ctx context.Context, toEmail, locale string, slotAt time.Time, confirmURL, rescheduleURL string) error {
	subject, content, err := bookingReminderContent(locale, slotAt, confirmURL, rescheduleURL)
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subject, content)
}
