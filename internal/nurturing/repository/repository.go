// Package repository persists nurturing entries. A partial unique index on
// lead_id guarantees at most one active entry per lead; archived entries are
// immutable history.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound     = errors.New("nurturing entry not found")
	ErrActiveExists = errors.New("lead already has an active nurturing entry")
	ErrStale        = errors.New("nurturing entry changed concurrently")
)

// State is the lifecycle position of an entry.
type State string

const (
	StateActive   State = "active"
	StateArchived State = "archived"
)

// Entry tracks one nurturing pass for a lead. Step advances 0 -> 1 -> 2 and
// never moves backwards; the per-step sent timestamps double as idempotence
// markers for the sweep.
type Entry struct {
	ID          uuid.UUID
	LeadID      uuid.UUID
	Step        int
	CreatedAt   time.Time
	Step1SentAt *time.Time
	Step2SentAt *time.Time
	ClickedAt   *time.Time
	ArchivedAt  *time.Time
}

func (e Entry) State() State {
	if e.ArchivedAt != nil {
		return StateArchived
	}
	return StateActive
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const entryColumns = `id, lead_id, step, created_at, step1_sent_at, step2_sent_at, clicked_at, archived_at`

func scanEntry(row pgx.Row) (Entry, error) {
	var entry Entry
	err := row.Scan(&entry.ID, &entry.LeadID, &entry.Step, &entry.CreatedAt,
		&entry.Step1SentAt, &entry.Step2SentAt, &entry.ClickedAt, &entry.ArchivedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	return entry, err
}

func (r *Repository) Create(ctx context.Context, leadID uuid.UUID, at time.Time) (Entry, error) {
	entry, err := scanEntry(r.pool.QueryRow(ctx, `
		INSERT INTO nurturing_entries (lead_id, step, created_at)
		VALUES ($1, 0, $2)
		RETURNING `+entryColumns+`
	`, leadID, at))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Entry{}, ErrActiveExists
		}
		return Entry{}, err
	}
	return entry, nil
}

func (r *Repository) GetActiveByLead(ctx context.Context, leadID uuid.UUID) (Entry, error) {
	return scanEntry(r.pool.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM nurturing_entries
		WHERE lead_id = $1 AND archived_at IS NULL
	`, leadID))
}

// ListFirstEmailDue selects active step-0 entries created at or before the
// cutoff.
func (r *Repository) ListFirstEmailDue(ctx context.Context, cutoff time.Time, limit int) ([]Entry, error) {
	return r.listDue(ctx, `
		SELECT `+entryColumns+`
		FROM nurturing_entries
		WHERE archived_at IS NULL AND step = 0 AND created_at <= $1
		ORDER BY created_at ASC
		LIMIT $2
	`, cutoff, limit)
}

// ListFinalEmailDue selects active step-1 entries whose first email went out
// at or before the cutoff.
func (r *Repository) ListFinalEmailDue(ctx context.Context, cutoff time.Time, limit int) ([]Entry, error) {
	return r.listDue(ctx, `
		SELECT `+entryColumns+`
		FROM nurturing_entries
		WHERE archived_at IS NULL AND step = 1 AND step1_sent_at <= $1
		ORDER BY step1_sent_at ASC
		LIMIT $2
	`, cutoff, limit)
}

// ListArchiveDue selects active step-2 entries whose final email went out at
// or before the cutoff.
func (r *Repository) ListArchiveDue(ctx context.Context, cutoff time.Time, limit int) ([]Entry, error) {
	return r.listDue(ctx, `
		SELECT `+entryColumns+`
		FROM nurturing_entries
		WHERE archived_at IS NULL AND step = 2 AND step2_sent_at <= $1
		ORDER BY step2_sent_at ASC
		LIMIT $2
	`, cutoff, limit)
}

func (r *Repository) listDue(ctx context.Context, query string, cutoff time.Time, limit int) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// AdvanceStep moves an entry from fromStep to fromStep+1 and stamps the send
// marker. The step predicate makes concurrent sweeps advance an entry at
// most once.
func (r *Repository) AdvanceStep(ctx context.Context, id uuid.UUID, fromStep int, sentAt time.Time) error {
	column := "step1_sent_at"
	if fromStep == 1 {
		column = "step2_sent_at"
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE nurturing_entries SET step = $2 + 1, `+column+` = $3
		WHERE id = $1 AND step = $2 AND archived_at IS NULL
	`, id, fromStep, sentAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStale
	}
	return nil
}

// Archive closes an entry. Archived entries drop out of every sweep query
// and are never written again.
func (r *Repository) Archive(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE nurturing_entries SET archived_at = $2
		WHERE id = $1 AND archived_at IS NULL
	`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStale
	}
	return nil
}

// RecordClick stamps the first resume-link click on the lead's active entry.
// Later clicks keep the original timestamp.
func (r *Repository) RecordClick(ctx context.Context, leadID uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE nurturing_entries SET clicked_at = COALESCE(clicked_at, $2)
		WHERE lead_id = $1 AND archived_at IS NULL
	`, leadID, at)
	return err
}
