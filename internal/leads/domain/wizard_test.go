package domain

import (
	"errors"
	"testing"
	"time"
)

func completeProfile() Profile {
	consent := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return Profile{
		FirstName: "Ava",
		LastName:  "Martin",
		Phone:     "+33612345678",
		Company:   "Acme Logistics",
		FleetSize: 12,
		ConsentAt: &consent,
		ConsentIP: "203.0.113.10",
	}
}

func TestProfileComplete(t *testing.T) {
	if !completeProfile().Complete() {
		t.Fatal("expected full profile to be complete")
	}

	tests := []struct {
		name   string
		mutate func(*Profile)
	}{
		{"missing first name", func(p *Profile) { p.FirstName = "  " }},
		{"missing last name", func(p *Profile) { p.LastName = "" }},
		{"missing phone", func(p *Profile) { p.Phone = "" }},
		{"missing company", func(p *Profile) { p.Company = "" }},
		{"zero fleet size", func(p *Profile) { p.FleetSize = 0 }},
		{"negative fleet size", func(p *Profile) { p.FleetSize = -3 }},
		{"missing consent timestamp", func(p *Profile) { p.ConsentAt = nil }},
		{"missing consent ip", func(p *Profile) { p.ConsentIP = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := completeProfile()
			tt.mutate(&p)
			if p.Complete() {
				t.Error("expected profile to be incomplete")
			}
		})
	}
}

func TestWizardCompleted(t *testing.T) {
	full := completeProfile()

	if WizardCompleted(full, false, false) {
		t.Error("profile alone should not complete the wizard")
	}
	if !WizardCompleted(full, true, false) {
		t.Error("profile plus booking should complete the wizard")
	}
	if !WizardCompleted(full, false, true) {
		t.Error("profile plus callback request should complete the wizard")
	}
	if WizardCompleted(Profile{}, true, true) {
		t.Error("booking without a profile should not complete the wizard")
	}
}

func TestEnsureVerified(t *testing.T) {
	if err := EnsureVerified(true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := EnsureVerified(false); !errors.Is(err, ErrPrerequisiteNotMet) {
		t.Fatalf("got %v, want prerequisite error", err)
	}
}
