package domain

import (
	"strings"
	"time"

	"fleetcrm_backend/platform/apperr"
)

// ErrPrerequisiteNotMet is returned when an operation that requires a
// verified email is attempted on an unverified lead.
var ErrPrerequisiteNotMet = apperr.New(apperr.KindConflict, "prerequisite_not_met",
	"email must be verified before this step")

// Profile holds the business-info fields captured by the wizard's profile step.
type Profile struct {
	FirstName string
	LastName  string
	Phone     string
	Company   string
	FleetSize int
	// Consent capture must record source IP and timestamp.
	ConsentAt *time.Time
	ConsentIP string
}

// Complete reports whether every profile field the wizard requires is present.
func (p Profile) Complete() bool {
	return strings.TrimSpace(p.FirstName) != "" &&
		strings.TrimSpace(p.LastName) != "" &&
		strings.TrimSpace(p.Phone) != "" &&
		strings.TrimSpace(p.Company) != "" &&
		p.FleetSize > 0 &&
		p.ConsentAt != nil &&
		strings.TrimSpace(p.ConsentIP) != ""
}

// WizardCompleted derives the wizard_completed flag: the profile must be
// complete and the lead must have either booked a demo or asked to be called
// back.
func WizardCompleted(profile Profile, hasBooking, callbackRequested bool) bool {
	return profile.Complete() && (hasBooking || callbackRequested)
}

// EnsureVerified gates scheduling operations on a verified email address.
func EnsureVerified(emailVerified bool) error {
	if !emailVerified {
		return ErrPrerequisiteNotMet
	}
	return nil
}
