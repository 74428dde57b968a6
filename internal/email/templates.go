package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

type baseEmailData struct {
	Title      string
	Heading    string
	Subheading string
	CTALabel   string
	CTAURL     string
}

type verificationCodeEmailData struct {
	baseEmailData
	Code string
}

type recoveryEmailData struct {
	baseEmailData
}

type nurtureEmailData struct {
	baseEmailData
}

type bookingReminderEmailData struct {
	baseEmailData
	SlotFormatted string
	RescheduleURL string
}

func renderEmailTemplate(name string, data any) (string, error) {
	templates := []string{"templates/base.html", "templates/" + name}
	tmpl, err := template.New("base.html").ParseFS(templateFS, templates...)
	if err != nil {
		return "", fmt.Errorf("parse email template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "email", data); err != nil {
		return "", fmt.Errorf("execute email template %s: %w", name, err)
	}
	return buf.String(), nil
}

func formatSlot(slotAt time.Time, locale string) string {
	if locale == "fr" {
		return slotAt.UTC().Format("02/01/2006 à 15:04 UTC")
	}
	return slotAt.UTC().Format("Jan 2, 2006 at 15:04 UTC")
}
