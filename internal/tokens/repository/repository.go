// Package repository persists opaque access tokens. Only the SHA-256 digest
// of a token ever touches the database.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("access token not found")

// Token is a stored token record.
type Token struct {
	ID        uuid.UUID
	LeadID    uuid.UUID
	Purpose   string
	Hash      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, token Token) (Token, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO access_tokens (lead_id, purpose, token_hash, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, token.LeadID, token.Purpose, token.Hash, token.IssuedAt, token.ExpiresAt).Scan(&token.ID)
	return token, err
}

// GetByHash looks a token up by digest and purpose. Expiry is the caller's
// concern; the lookup only proves the raw token was ever issued.
func (r *Repository) GetByHash(ctx context.Context, purpose, hash string) (Token, error) {
	var token Token
	err := r.pool.QueryRow(ctx, `
		SELECT id, lead_id, purpose, token_hash, issued_at, expires_at
		FROM access_tokens
		WHERE purpose = $1 AND token_hash = $2
	`, purpose, hash).Scan(&token.ID, &token.LeadID, &token.Purpose, &token.Hash,
		&token.IssuedAt, &token.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Token{}, ErrNotFound
	}
	return token, err
}

// DeleteExpired prunes tokens that expired before the cutoff. Called from the
// nurturing sweep as housekeeping.
func (r *Repository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM access_tokens WHERE expires_at < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
