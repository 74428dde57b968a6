package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fleetcrm_backend/internal/leads/domain"

	"gopkg.in/yaml.v3"
)

func TestDurationUnmarshalYAML(t *testing.T) {
	var doc struct {
		TTL Duration `yaml:"ttl"`
	}
	if err := yaml.Unmarshal([]byte("ttl: 90s"), &doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.TTL.Duration != 90*time.Second {
		t.Fatalf("got %v, want 90s", doc.TTL.Duration)
	}

	if err := yaml.Unmarshal([]byte("ttl: soon"), &doc); err == nil {
		t.Fatal("expected error for non-duration string")
	}
}

func TestDefaultLifecyclePolicy(t *testing.T) {
	p := DefaultLifecyclePolicy()

	if got := p.Verification.CodeTTL.Duration; got != 10*time.Minute {
		t.Errorf("code ttl = %v, want 10m", got)
	}
	if got := p.Verification.ResendCooldown.Duration; got != time.Minute {
		t.Errorf("resend cooldown = %v, want 1m", got)
	}
	if p.Verification.MaxAttempts != 5 {
		t.Errorf("max attempts = %d, want 5", p.Verification.MaxAttempts)
	}
	if got := p.Nurturing.MigrateAfter.Duration; got != 24*time.Hour {
		t.Errorf("migrate after = %v, want 24h", got)
	}
	if got := p.Nurturing.FinalEmailAfter.Duration; got != 7*24*time.Hour {
		t.Errorf("final email after = %v, want 168h", got)
	}
	if got := p.Reminder.WindowStart.Duration; got != 20*time.Hour {
		t.Errorf("reminder window start = %v, want 20h", got)
	}
	if got := p.Reminder.WindowEnd.Duration; got != 28*time.Hour {
		t.Errorf("reminder window end = %v, want 28h", got)
	}
	if p.SweepPageSize != 200 {
		t.Errorf("sweep page size = %d, want 200", p.SweepPageSize)
	}

	if !p.ReasonPolicy().Allows(domain.StatusNurturing, ReasonAutoStale) {
		t.Error("defaults must allow the sweep migration reason")
	}
	if err := p.validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func writePolicyFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lifecycle.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadLifecyclePolicy(t *testing.T) {
	t.Run("empty path returns defaults", func(t *testing.T) {
		p, err := LoadLifecyclePolicy("")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Verification.MaxAttempts != 5 {
			t.Errorf("max attempts = %d, want default 5", p.Verification.MaxAttempts)
		}
	})

	t.Run("file overrides merge onto defaults", func(t *testing.T) {
		path := writePolicyFile(t, strings.Join([]string{
			"verification:",
			"  code_ttl: 5m",
			"  resend_cooldown: 30s",
			"  max_attempts: 3",
			"nurturing:",
			"  migrate_after: 48h",
			"  recovery_after: 1h",
			"  first_email_after: 24h",
			"  final_email_after: 168h",
			"  archive_after: 24h",
			"  resume_token_ttl: 336h",
		}, "\n"))

		p, err := LoadLifecyclePolicy(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Verification.CodeTTL.Duration != 5*time.Minute {
			t.Errorf("code ttl = %v, want 5m", p.Verification.CodeTTL.Duration)
		}
		if p.Nurturing.MigrateAfter.Duration != 48*time.Hour {
			t.Errorf("migrate after = %v, want 48h", p.Nurturing.MigrateAfter.Duration)
		}
		// Untouched sections keep their defaults.
		if p.Reminder.ConfirmTokenTTL.Duration != 48*time.Hour {
			t.Errorf("confirm token ttl = %v, want default 48h", p.Reminder.ConfirmTokenTTL.Duration)
		}
		if p.SweepPageSize != 200 {
			t.Errorf("sweep page size = %d, want default 200", p.SweepPageSize)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadLifecyclePolicy(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
			t.Fatal("expected error for missing file")
		}
	})

	t.Run("rejects inverted reminder window", func(t *testing.T) {
		path := writePolicyFile(t, "reminder:\n  window_start: 28h\n  window_end: 20h\n")
		if _, err := LoadLifecyclePolicy(path); err == nil {
			t.Fatal("expected validation error")
		}
	})

	t.Run("rejects unknown status in reasons", func(t *testing.T) {
		path := writePolicyFile(t, "reasons:\n  archived: [stale]\n")
		if _, err := LoadLifecyclePolicy(path); err == nil {
			t.Fatal("expected validation error")
		}
	})

	t.Run("rejects reason set without sweep migration code", func(t *testing.T) {
		path := writePolicyFile(t, "reasons:\n  nurturing: [manual_park]\n")
		if _, err := LoadLifecyclePolicy(path); err == nil {
			t.Fatal("expected validation error")
		}
	})

	t.Run("rejects zero max attempts", func(t *testing.T) {
		path := writePolicyFile(t, "verification:\n  max_attempts: 0\n")
		if _, err := LoadLifecyclePolicy(path); err == nil {
			t.Fatal("expected validation error")
		}
	})
}

func TestReasonPolicyConversion(t *testing.T) {
	p := LifecyclePolicy{Reasons: map[string][]string{
		"lost": {"price"},
	}}
	rp := p.ReasonPolicy()
	if !rp.Allows(domain.StatusLost, "price") {
		t.Error("expected converted policy to allow listed reason")
	}
	if rp.Allows(domain.StatusLost, "timing") {
		t.Error("expected converted policy to reject unlisted reason")
	}
}
