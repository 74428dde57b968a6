package repository

import (
	"context"
	"time"

	"fleetcrm_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ActivityStatusChange is the activity type written for every successful
// status transition. The activity table is append-only; rows are never
// updated or deleted.
const ActivityStatusChange = "status_change"

type Activity struct {
	ID        uuid.UUID
	LeadID    uuid.UUID
	Type      string
	OldStatus domain.Status
	NewStatus domain.Status
	Reason    *string
	Comment   *string
	Actor     string
	CreatedAt time.Time
}

type activityRecord struct {
	LeadID    uuid.UUID
	Type      string
	OldStatus domain.Status
	NewStatus domain.Status
	Reason    *string
	Comment   *string
	Actor     string
	At        time.Time
}

func appendActivity(ctx context.Context, tx pgx.Tx, rec activityRecord) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO lead_activities (lead_id, type, old_status, new_status, reason, comment, actor, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, rec.LeadID, rec.Type, rec.OldStatus, rec.NewStatus, rec.Reason, rec.Comment, rec.Actor, rec.At)
	return err
}

// ListActivity returns a lead's audit trail, oldest first.
func (r *Repository) ListActivity(ctx context.Context, leadID uuid.UUID) ([]Activity, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, type, old_status, new_status, reason, comment, actor, created_at
		FROM lead_activities
		WHERE lead_id = $1
		ORDER BY created_at ASC, id ASC
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Activity, 0)
	for rows.Next() {
		var item Activity
		if err := rows.Scan(&item.ID, &item.LeadID, &item.Type, &item.OldStatus, &item.NewStatus,
			&item.Reason, &item.Comment, &item.Actor, &item.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
