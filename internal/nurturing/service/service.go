// Package service runs the nurturing pipeline: the periodic sweep that moves
// stalled signups through recovery, migration, two nurture emails, and
// archival, plus resume-link resolution.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fleetcrm_backend/internal/config"
	"fleetcrm_backend/internal/email"
	leaddomain "fleetcrm_backend/internal/leads/domain"
	leadrepo "fleetcrm_backend/internal/leads/repository"
	leadtransport "fleetcrm_backend/internal/leads/transport"
	"fleetcrm_backend/internal/nurturing/repository"
	tokensvc "fleetcrm_backend/internal/tokens/service"
	"fleetcrm_backend/platform/logger"
)

// ActorSweep labels activity records written by the nurturing sweep.
const ActorSweep = "system:nurturing_sweep"

// LeadStore is the slice of the lead repository the sweep reads and marks.
type LeadStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (leadrepo.Lead, error)
	ListRecoveryCandidates(ctx context.Context, createdBefore time.Time, limit int) ([]leadrepo.Lead, error)
	MarkRecoverySent(ctx context.Context, id uuid.UUID, at time.Time) error
	ListStaleForNurturing(ctx context.Context, createdBefore time.Time, limit int) ([]leadrepo.Lead, error)
}

// LeadTransitioner applies validated status transitions; satisfied by the
// leads service so every sweep transition goes through the same state
// machine checks and activity logging as a staff one.
type LeadTransitioner interface {
	Transition(ctx context.Context, leadID uuid.UUID, target leaddomain.Status, tctx leaddomain.TransitionContext) (leadtransport.LeadResponse, error)
}

// EntryStore is the persistence surface for nurturing entries.
type EntryStore interface {
	Create(ctx context.Context, leadID uuid.UUID, at time.Time) (repository.Entry, error)
	GetActiveByLead(ctx context.Context, leadID uuid.UUID) (repository.Entry, error)
	ListFirstEmailDue(ctx context.Context, cutoff time.Time, limit int) ([]repository.Entry, error)
	ListFinalEmailDue(ctx context.Context, cutoff time.Time, limit int) ([]repository.Entry, error)
	ListArchiveDue(ctx context.Context, cutoff time.Time, limit int) ([]repository.Entry, error)
	AdvanceStep(ctx context.Context, id uuid.UUID, fromStep int, sentAt time.Time) error
	Archive(ctx context.Context, id uuid.UUID, at time.Time) error
	RecordClick(ctx context.Context, leadID uuid.UUID, at time.Time) error
}

// TokenIssuer mints and resolves resume tokens.
type TokenIssuer interface {
	Issue(ctx context.Context, purpose tokensvc.Purpose, leadID uuid.UUID, ttl time.Duration) (string, error)
	Resolve(ctx context.Context, purpose tokensvc.Purpose, raw string) (uuid.UUID, error)
}

// Summary reports one sweep run. Errors carry per-record failures; a failing
// record never aborts the sweep.
type Summary struct {
	Processed int      `json:"processed"`
	Sent      int      `json:"sent"`
	Archived  int      `json:"archived"`
	Errors    []string `json:"errors,omitempty"`
}

func (s *Summary) fail(leadID uuid.UUID, stage string, err error) {
	s.Errors = append(s.Errors, fmt.Sprintf("%s lead=%s: %v", stage, leadID, err))
}

type Service struct {
	leads       LeadStore
	transitions LeadTransitioner
	entries     EntryStore
	tokens      TokenIssuer
	sender      email.Sender
	policy      config.NurturingPolicy
	pageSize    int
	baseURL     string
	log         *logger.Logger
}

func New(leads LeadStore, transitions LeadTransitioner, entries EntryStore, tokens TokenIssuer, sender email.Sender, policy config.NurturingPolicy, pageSize int, baseURL string, log *logger.Logger) *Service {
	return &Service{
		leads:       leads,
		transitions: transitions,
		entries:     entries,
		tokens:      tokens,
		sender:      sender,
		policy:      policy,
		pageSize:    pageSize,
		baseURL:     baseURL,
		log:         log,
	}
}

// RunSweep executes the five pipeline steps in order against the given
// reference time. Every send is guarded by a re-check of eligibility and a
// conditional marker write, so overlapping or repeated runs converge on
// exactly one email per step per lead.
func (s *Service) RunSweep(ctx context.Context, now time.Time) Summary {
	var summary Summary

	s.sweepRecovery(ctx, now, &summary)
	s.sweepMigration(ctx, now, &summary)
	s.sweepFirstEmail(ctx, now, &summary)
	s.sweepFinalEmail(ctx, now, &summary)
	s.sweepArchival(ctx, now, &summary)

	s.log.SweepSummary("nurturing", summary.Processed, summary.Sent, summary.Archived, len(summary.Errors))
	return summary
}

// sweepRecovery sends the one-off recovery notice to verified leads that
// stalled in the wizard over an hour ago.
func (s *Service) sweepRecovery(ctx context.Context, now time.Time, summary *Summary) {
	cutoff := now.Add(-s.policy.RecoveryAfter.Duration)
	leads, err := s.leads.ListRecoveryCandidates(ctx, cutoff, s.pageSize)
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("recovery list: %v", err))
		return
	}

	for _, lead := range leads {
		summary.Processed++

		current, err := s.leads.GetByID(ctx, lead.ID)
		if err != nil {
			summary.fail(lead.ID, "recovery", err)
			continue
		}
		if current.WizardCompleted || !current.EmailVerified ||
			current.Status != leaddomain.StatusEmailVerified || current.RecoverySentAt != nil {
			continue
		}

		resumeURL, err := s.resumeURL(ctx, current.ID)
		if err != nil {
			summary.fail(current.ID, "recovery", err)
			continue
		}
		if err := s.sender.SendRecoveryEmail(ctx, current.Email, current.Locale, resumeURL); err != nil {
			summary.fail(current.ID, "recovery", err)
			continue
		}
		if err := s.leads.MarkRecoverySent(ctx, current.ID, now); err != nil {
			if !errors.Is(err, leadrepo.ErrStale) {
				summary.fail(current.ID, "recovery", err)
			}
			continue
		}
		summary.Sent++
	}
}

// sweepMigration moves day-old stalled leads into nurturing: one entry at
// step 0 plus the status transition with the automatic reason.
func (s *Service) sweepMigration(ctx context.Context, now time.Time, summary *Summary) {
	cutoff := now.Add(-s.policy.MigrateAfter.Duration)
	leads, err := s.leads.ListStaleForNurturing(ctx, cutoff, s.pageSize)
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("migration list: %v", err))
		return
	}

	for _, lead := range leads {
		summary.Processed++

		current, err := s.leads.GetByID(ctx, lead.ID)
		if err != nil {
			summary.fail(lead.ID, "migration", err)
			continue
		}
		if current.WizardCompleted || !leaddomain.CanTransition(current.Status, leaddomain.StatusNurturing) {
			continue
		}

		if _, err := s.entries.Create(ctx, current.ID, now); err != nil {
			if !errors.Is(err, repository.ErrActiveExists) {
				summary.fail(current.ID, "migration", err)
			}
			continue
		}
		if _, err := s.transitions.Transition(ctx, current.ID, leaddomain.StatusNurturing, leaddomain.TransitionContext{
			Reason: config.ReasonAutoStale,
			Actor:  ActorSweep,
		}); err != nil {
			summary.fail(current.ID, "migration", err)
			continue
		}
	}
}

// sweepFirstEmail advances step-0 entries past the J+1 delay with the first
// nurture email and a fresh resume token.
func (s *Service) sweepFirstEmail(ctx context.Context, now time.Time, summary *Summary) {
	cutoff := now.Add(-s.policy.FirstEmailAfter.Duration)
	entries, err := s.entries.ListFirstEmailDue(ctx, cutoff, s.pageSize)
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("first email list: %v", err))
		return
	}

	for _, entry := range entries {
		summary.Processed++
		s.sendNurtureStep(ctx, entry, 0, now, summary, s.sender.SendNurtureFirstEmail)
	}
}

// sweepFinalEmail advances step-1 entries J+7 after the first send with the
// last-call email.
func (s *Service) sweepFinalEmail(ctx context.Context, now time.Time, summary *Summary) {
	cutoff := now.Add(-s.policy.FinalEmailAfter.Duration)
	entries, err := s.entries.ListFinalEmailDue(ctx, cutoff, s.pageSize)
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("final email list: %v", err))
		return
	}

	for _, entry := range entries {
		summary.Processed++
		s.sendNurtureStep(ctx, entry, 1, now, summary, s.sender.SendNurtureFinalEmail)
	}
}

func (s *Service) sendNurtureStep(ctx context.Context, entry repository.Entry, fromStep int, now time.Time, summary *Summary, send func(ctx context.Context, toEmail, locale, resumeURL string) error) {
	stage := fmt.Sprintf("nurture step %d", fromStep+1)

	lead, err := s.leads.GetByID(ctx, entry.LeadID)
	if err != nil {
		summary.fail(entry.LeadID, stage, err)
		return
	}
	// the lead left nurturing since the entry was selected; close the entry
	// instead of emailing
	if lead.Status != leaddomain.StatusNurturing || lead.WizardCompleted {
		if err := s.entries.Archive(ctx, entry.ID, now); err != nil && !errors.Is(err, repository.ErrStale) {
			summary.fail(entry.LeadID, stage, err)
			return
		}
		summary.Archived++
		return
	}

	resumeURL, err := s.resumeURL(ctx, lead.ID)
	if err != nil {
		summary.fail(lead.ID, stage, err)
		return
	}
	if err := send(ctx, lead.Email, lead.Locale, resumeURL); err != nil {
		summary.fail(lead.ID, stage, err)
		return
	}
	if err := s.entries.AdvanceStep(ctx, entry.ID, fromStep, now); err != nil {
		if !errors.Is(err, repository.ErrStale) {
			summary.fail(lead.ID, stage, err)
		}
		return
	}
	summary.Sent++
}

// sweepArchival closes entries a day after the final email. Archived entries
// never reappear in any sweep step.
func (s *Service) sweepArchival(ctx context.Context, now time.Time, summary *Summary) {
	cutoff := now.Add(-s.policy.ArchiveAfter.Duration)
	entries, err := s.entries.ListArchiveDue(ctx, cutoff, s.pageSize)
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("archival list: %v", err))
		return
	}

	for _, entry := range entries {
		summary.Processed++

		if err := s.entries.Archive(ctx, entry.ID, now); err != nil {
			if !errors.Is(err, repository.ErrStale) {
				summary.fail(entry.LeadID, "archival", err)
			}
			continue
		}
		summary.Archived++
	}
}

func (s *Service) resumeURL(ctx context.Context, leadID uuid.UUID) (string, error) {
	raw, err := s.tokens.Issue(ctx, tokensvc.PurposeResume, leadID, s.policy.ResumeTokenTTL.Duration)
	if err != nil {
		return "", fmt.Errorf("issue resume token: %w", err)
	}
	return fmt.Sprintf("%s/wizard/resume?token=%s", s.baseURL, raw), nil
}
