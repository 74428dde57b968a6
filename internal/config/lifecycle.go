// Package config provides domain-level configuration for the lead lifecycle:
// the status reason taxonomy and the tunable timing constants driving the
// nurturing and reminder sweeps. Values live in a YAML policy file so the
// business can adjust them without a deploy; every constant has a baked-in
// default.
package config

import (
	"fmt"
	"os"
	"time"

	"fleetcrm_backend/internal/leads/domain"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration with YAML string parsing ("24h", "90s").
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// VerificationPolicy tunes the email verification code exchange.
type VerificationPolicy struct {
	CodeTTL        Duration `yaml:"code_ttl"`
	ResendCooldown Duration `yaml:"resend_cooldown"`
	MaxAttempts    int      `yaml:"max_attempts"`
}

// NurturingPolicy tunes the staleness thresholds and step delays of the
// nurturing sweep.
type NurturingPolicy struct {
	// RecoveryAfter is how long a verified, wizard-incomplete lead may sit
	// before the recovery notice goes out.
	RecoveryAfter Duration `yaml:"recovery_after"`
	// MigrateAfter is the staleness threshold for moving a lead into nurturing.
	MigrateAfter Duration `yaml:"migrate_after"`
	// FirstEmailAfter is the J+1 delay between migration and nurturing email 1.
	FirstEmailAfter Duration `yaml:"first_email_after"`
	// FinalEmailAfter is the J+7 delay between email 1 and the final email.
	FinalEmailAfter Duration `yaml:"final_email_after"`
	// ArchiveAfter is the retention window after the final email.
	ArchiveAfter Duration `yaml:"archive_after"`
	// ResumeTokenTTL bounds how long a resume link stays usable.
	ResumeTokenTTL Duration `yaml:"resume_token_ttl"`
}

// ReminderPolicy tunes the pre-appointment reminder window.
type ReminderPolicy struct {
	WindowStart     Duration `yaml:"window_start"`
	WindowEnd       Duration `yaml:"window_end"`
	ConfirmTokenTTL Duration `yaml:"confirm_token_ttl"`
}

// LifecyclePolicy is the full lead lifecycle policy document.
type LifecyclePolicy struct {
	// Reasons maps a target status to the reason codes allowed for it.
	Reasons      map[string][]string `yaml:"reasons"`
	Verification VerificationPolicy  `yaml:"verification"`
	Nurturing    NurturingPolicy     `yaml:"nurturing"`
	Reminder     ReminderPolicy      `yaml:"reminder"`
	// SweepPageSize bounds how many leads one sweep step processes per run.
	SweepPageSize int `yaml:"sweep_page_size"`
}

// ReasonAutoStale is the reason code the nurturing sweep uses when migrating
// a stalled lead. It must always be present in the nurturing reason set.
const ReasonAutoStale = "auto_stale"

// DefaultLifecyclePolicy returns the policy used when no file is configured.
func DefaultLifecyclePolicy() LifecyclePolicy {
	return LifecyclePolicy{
		Reasons: map[string][]string{
			string(domain.StatusLost):         {"price", "competitor", "no_response", "project_cancelled", "other"},
			string(domain.StatusNurturing):    {ReasonAutoStale, "manual_park", "budget_next_quarter", "timing"},
			string(domain.StatusDisqualified): {"spam", "invalid_contact", "not_target_market", "blacklisted"},
		},
		Verification: VerificationPolicy{
			CodeTTL:        Duration{10 * time.Minute},
			ResendCooldown: Duration{60 * time.Second},
			MaxAttempts:    5,
		},
		Nurturing: NurturingPolicy{
			RecoveryAfter:   Duration{1 * time.Hour},
			MigrateAfter:    Duration{24 * time.Hour},
			FirstEmailAfter: Duration{24 * time.Hour},
			FinalEmailAfter: Duration{7 * 24 * time.Hour},
			ArchiveAfter:    Duration{24 * time.Hour},
			ResumeTokenTTL:  Duration{14 * 24 * time.Hour},
		},
		Reminder: ReminderPolicy{
			WindowStart:     Duration{20 * time.Hour},
			WindowEnd:       Duration{28 * time.Hour},
			ConfirmTokenTTL: Duration{48 * time.Hour},
		},
		SweepPageSize: 200,
	}
}

// LoadLifecyclePolicy reads the policy file at path, filling omitted sections
// with defaults. An empty path returns the defaults.
func LoadLifecyclePolicy(path string) (LifecyclePolicy, error) {
	policy := DefaultLifecyclePolicy()
	if path == "" {
		return policy, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return LifecyclePolicy{}, fmt.Errorf("read lifecycle policy: %w", err)
	}
	if err := yaml.Unmarshal(raw, &policy); err != nil {
		return LifecyclePolicy{}, fmt.Errorf("parse lifecycle policy: %w", err)
	}

	if err := policy.validate(); err != nil {
		return LifecyclePolicy{}, err
	}
	return policy, nil
}

func (p LifecyclePolicy) validate() error {
	if p.Verification.MaxAttempts < 1 {
		return fmt.Errorf("lifecycle policy: verification.max_attempts must be positive")
	}
	if p.SweepPageSize < 1 {
		return fmt.Errorf("lifecycle policy: sweep_page_size must be positive")
	}
	if p.Reminder.WindowEnd.Duration <= p.Reminder.WindowStart.Duration {
		return fmt.Errorf("lifecycle policy: reminder.window_end must be after window_start")
	}
	for target := range p.Reasons {
		if !domain.Status(target).Valid() {
			return fmt.Errorf("lifecycle policy: unknown status %q in reasons", target)
		}
	}
	if !p.ReasonPolicy().Allows(domain.StatusNurturing, ReasonAutoStale) {
		return fmt.Errorf("lifecycle policy: nurturing reasons must include %q", ReasonAutoStale)
	}
	return nil
}

// ReasonPolicy converts the YAML reason map into the domain representation.
func (p LifecyclePolicy) ReasonPolicy() domain.ReasonPolicy {
	out := make(domain.ReasonPolicy, len(p.Reasons))
	for target, codes := range p.Reasons {
		out[domain.Status(target)] = codes
	}
	return out
}
