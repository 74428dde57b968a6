// Package repository persists blacklist entries. Removal is a soft flag so
// the audit trail of who blocked and unblocked an address survives.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound  = errors.New("blacklist entry not found")
	ErrDuplicate = errors.New("email is already blacklisted")
)

type Entry struct {
	ID        uuid.UUID
	Email     string
	Reason    string
	AddedBy   string
	CreatedAt time.Time
	RemovedAt *time.Time
	RemovedBy *string
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const entryColumns = `id, email, reason, added_by, created_at, removed_at, removed_by`

// Exists reports whether an active (non-removed) entry matches the email.
func (r *Repository) Exists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM blacklist_entries
			WHERE email = $1 AND removed_at IS NULL
		)
	`, email).Scan(&exists)
	return exists, err
}

func (r *Repository) Add(ctx context.Context, email, reason, actor string, at time.Time) (Entry, error) {
	var entry Entry
	err := r.pool.QueryRow(ctx, `
		INSERT INTO blacklist_entries (email, reason, added_by, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING `+entryColumns+`
	`, email, reason, actor, at).Scan(&entry.ID, &entry.Email, &entry.Reason, &entry.AddedBy,
		&entry.CreatedAt, &entry.RemovedAt, &entry.RemovedBy)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Entry{}, ErrDuplicate
		}
		return Entry{}, err
	}
	return entry, nil
}

// Remove soft-deletes the active entry for the email.
func (r *Repository) Remove(ctx context.Context, email, actor string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE blacklist_entries SET removed_at = $2, removed_by = $3
		WHERE email = $1 AND removed_at IS NULL
	`, email, at, actor)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) List(ctx context.Context, includeRemoved bool, limit, offset int) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+entryColumns+`
		FROM blacklist_entries
		WHERE $1::boolean OR removed_at IS NULL
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, includeRemoved, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		if err := rows.Scan(&entry.ID, &entry.Email, &entry.Reason, &entry.AddedBy,
			&entry.CreatedAt, &entry.RemovedAt, &entry.RemovedBy); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
