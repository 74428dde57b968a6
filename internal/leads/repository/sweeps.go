package repository

import (
	"context"
	"time"

	"fleetcrm_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Sweep selection queries. Each returns a bounded page; markers are written
// with conditional updates so a concurrent or repeated sweep cannot
// double-send.

// ListRecoveryCandidates selects verified leads that stalled before
// completing the wizard and have not yet received the recovery notice.
func (r *Repository) ListRecoveryCandidates(ctx context.Context, createdBefore time.Time, limit int) ([]Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE deleted_at IS NULL
			AND email_verified = true
			AND wizard_completed = false
			AND recovery_sent_at IS NULL
			AND status = $1
			AND created_at < $2
		ORDER BY created_at ASC
		LIMIT $3
	`, domain.StatusEmailVerified, createdBefore, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLeads(rows)
}

// MarkRecoverySent records the recovery notice send. The write succeeds only
// if the marker was still unset (compare-and-set); ErrStale otherwise.
func (r *Repository) MarkRecoverySent(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET recovery_sent_at = $2, updated_at = now()
		WHERE id = $1 AND recovery_sent_at IS NULL AND deleted_at IS NULL
	`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStale
	}
	return nil
}

// ListStaleForNurturing selects verified, wizard-incomplete leads older than
// the migration threshold that are not yet linked to an active nurturing entry.
func (r *Repository) ListStaleForNurturing(ctx context.Context, createdBefore time.Time, limit int) ([]Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads l
		WHERE l.deleted_at IS NULL
			AND l.email_verified = true
			AND l.wizard_completed = false
			AND l.status = $1
			AND l.created_at < $2
			AND NOT EXISTS (
				SELECT 1 FROM nurturing_entries n
				WHERE n.lead_id = l.id AND n.archived_at IS NULL
			)
		ORDER BY l.created_at ASC
		LIMIT $3
	`, domain.StatusEmailVerified, createdBefore, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLeads(rows)
}

// ListReminderWindow selects leads whose booking slot falls inside the
// forward-looking reminder window and that have not been reminded yet.
func (r *Repository) ListReminderWindow(ctx context.Context, from, to time.Time, limit int) ([]Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE deleted_at IS NULL
			AND booking_slot_at IS NOT NULL
			AND booking_slot_at >= $1 AND booking_slot_at < $2
			AND j1_reminder_sent_at IS NULL
		ORDER BY booking_slot_at ASC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLeads(rows)
}

// MarkReminderSent records the J-1 reminder send, conditional on the marker
// still being unset.
func (r *Repository) MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET j1_reminder_sent_at = $2, updated_at = now()
		WHERE id = $1 AND j1_reminder_sent_at IS NULL AND deleted_at IS NULL
	`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStale
	}
	return nil
}

func collectLeads(rows pgx.Rows) ([]Lead, error) {
	leads := make([]Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}
