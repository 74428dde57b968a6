// Package repository persists verification codes.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNoCode = errors.New("no verification code for lead")

// Code is one issued verification code. At most one code per lead is valid
// (unconsumed, unsuperseded, unexpired) at any time; issuing a new code
// supersedes the prior one in the same transaction.
type Code struct {
	ID           uuid.UUID
	LeadID       uuid.UUID
	Email        string
	Code         string
	Attempts     int
	IssuedAt     time.Time
	ExpiresAt    time.Time
	ConsumedAt   *time.Time
	SupersededAt *time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const codeColumns = `id, lead_id, email, code, attempts, issued_at, expires_at, consumed_at, superseded_at`

// Latest returns the most recently issued code for the lead, consumed or not.
func (r *Repository) Latest(ctx context.Context, leadID uuid.UUID) (Code, error) {
	var code Code
	err := r.pool.QueryRow(ctx, `
		SELECT `+codeColumns+`
		FROM verification_codes
		WHERE lead_id = $1
		ORDER BY issued_at DESC, id DESC
		LIMIT 1
	`, leadID).Scan(&code.ID, &code.LeadID, &code.Email, &code.Code, &code.Attempts,
		&code.IssuedAt, &code.ExpiresAt, &code.ConsumedAt, &code.SupersededAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Code{}, ErrNoCode
	}
	return code, err
}

type CreateCodeParams struct {
	LeadID    uuid.UUID
	Email     string
	Code      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Create inserts a fresh code and supersedes every prior unconsumed code for
// the lead in one transaction, preserving the one-valid-code invariant.
func (r *Repository) Create(ctx context.Context, params CreateCodeParams) (Code, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Code{}, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE verification_codes SET superseded_at = $2
		WHERE lead_id = $1 AND consumed_at IS NULL AND superseded_at IS NULL
	`, params.LeadID, params.IssuedAt); err != nil {
		return Code{}, err
	}

	var code Code
	err = tx.QueryRow(ctx, `
		INSERT INTO verification_codes (lead_id, email, code, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+codeColumns+`
	`, params.LeadID, params.Email, params.Code, params.IssuedAt, params.ExpiresAt).Scan(
		&code.ID, &code.LeadID, &code.Email, &code.Code, &code.Attempts,
		&code.IssuedAt, &code.ExpiresAt, &code.ConsumedAt, &code.SupersededAt)
	if err != nil {
		return Code{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Code{}, err
	}
	return code, nil
}

// IncrementAttempts bumps the attempt counter and returns the new value.
func (r *Repository) IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error) {
	var attempts int
	err := r.pool.QueryRow(ctx, `
		UPDATE verification_codes SET attempts = attempts + 1
		WHERE id = $1
		RETURNING attempts
	`, id).Scan(&attempts)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNoCode
	}
	return attempts, err
}

// MarkConsumed records a successful exchange; conditional so a code is
// consumed exactly once.
func (r *Repository) MarkConsumed(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE verification_codes SET consumed_at = $2
		WHERE id = $1 AND consumed_at IS NULL
	`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNoCode
	}
	return nil
}
