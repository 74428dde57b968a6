package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"fleetcrm_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound       = errors.New("lead not found")
	ErrDuplicateEmail = errors.New("a lead with this email already exists")
	// ErrStale is returned when an optimistic guard (expected current status,
	// unset marker) no longer holds at write time.
	ErrStale = errors.New("lead was modified concurrently")
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Lead is the golden record for a prospect.
type Lead struct {
	ID          uuid.UUID
	Email       string
	CountryCode string
	Locale      string

	Status          domain.Status
	StatusReason    *string
	StatusComment   *string
	StatusChangedAt *time.Time
	StatusChangedBy *string

	EmailVerified bool

	FirstName *string
	LastName  *string
	Phone     *string
	Company   *string
	FleetSize *int
	ConsentAt *time.Time
	ConsentIP *string

	WizardCompleted   bool
	CallbackRequested bool
	BookingSlotAt     *time.Time

	RecoverySentAt   *time.Time
	J1ReminderSentAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// Profile maps the wizard fields onto the domain representation.
func (l Lead) Profile() domain.Profile {
	p := domain.Profile{ConsentAt: l.ConsentAt}
	if l.FirstName != nil {
		p.FirstName = *l.FirstName
	}
	if l.LastName != nil {
		p.LastName = *l.LastName
	}
	if l.Phone != nil {
		p.Phone = *l.Phone
	}
	if l.Company != nil {
		p.Company = *l.Company
	}
	if l.FleetSize != nil {
		p.FleetSize = *l.FleetSize
	}
	if l.ConsentIP != nil {
		p.ConsentIP = *l.ConsentIP
	}
	return p
}

const leadColumns = `id, email, country_code, locale,
	status, status_reason, status_comment, status_changed_at, status_changed_by,
	email_verified, first_name, last_name, phone, company, fleet_size, consent_at, consent_ip,
	wizard_completed, callback_requested, booking_slot_at,
	recovery_sent_at, j1_reminder_sent_at,
	created_at, updated_at, deleted_at`

func scanLead(row pgx.Row) (Lead, error) {
	var lead Lead
	err := row.Scan(
		&lead.ID, &lead.Email, &lead.CountryCode, &lead.Locale,
		&lead.Status, &lead.StatusReason, &lead.StatusComment, &lead.StatusChangedAt, &lead.StatusChangedBy,
		&lead.EmailVerified, &lead.FirstName, &lead.LastName, &lead.Phone, &lead.Company, &lead.FleetSize, &lead.ConsentAt, &lead.ConsentIP,
		&lead.WizardCompleted, &lead.CallbackRequested, &lead.BookingSlotAt,
		&lead.RecoverySentAt, &lead.J1ReminderSentAt,
		&lead.CreatedAt, &lead.UpdatedAt, &lead.DeletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return lead, err
}

// NormalizeEmail is the canonical email normalization used everywhere a
// lead email is stored or compared.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type CreateLeadParams struct {
	Email       string
	CountryCode string
	Locale      string
}

func (r *Repository) Create(ctx context.Context, params CreateLeadParams) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO leads (email, country_code, locale, status)
		VALUES ($1, $2, $3, $4)
		RETURNING `+leadColumns+`
	`, NormalizeEmail(params.Email), params.CountryCode, params.Locale, domain.StatusNew)

	lead, err := scanLead(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Lead{}, ErrDuplicateEmail
		}
		return Lead{}, err
	}
	return lead, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads WHERE id = $1 AND deleted_at IS NULL
	`, id)
	return scanLead(row)
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads WHERE email = $1 AND deleted_at IS NULL
	`, NormalizeEmail(email))
	return scanLead(row)
}

// List returns a page of leads, optionally filtered by status, newest first.
func (r *Repository) List(ctx context.Context, status *domain.Status, limit, offset int) ([]Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE deleted_at IS NULL AND ($1::text IS NULL OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, status, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

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

type UpdateProfileParams struct {
	FirstName string
	LastName  string
	Phone     string
	Company   string
	FleetSize int
	ConsentAt time.Time
	ConsentIP string
	// WizardCompleted is derived by the caller from the full domain rule.
	WizardCompleted bool
}

func (r *Repository) UpdateProfile(ctx context.Context, id uuid.UUID, params UpdateProfileParams) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE leads SET
			first_name = $2, last_name = $3, phone = $4, company = $5, fleet_size = $6,
			consent_at = $7, consent_ip = $8, wizard_completed = $9, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING `+leadColumns+`
	`, id, params.FirstName, params.LastName, params.Phone, params.Company, params.FleetSize,
		params.ConsentAt, params.ConsentIP, params.WizardCompleted)
	return scanLead(row)
}

func (r *Repository) SetCallbackRequested(ctx context.Context, id uuid.UUID, wizardCompleted bool) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE leads SET callback_requested = true, wizard_completed = $2, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING `+leadColumns+`
	`, id, wizardCompleted)
	return scanLead(row)
}

func (r *Repository) SetBookingSlot(ctx context.Context, id uuid.UUID, slot time.Time, wizardCompleted bool) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE leads SET booking_slot_at = $2, wizard_completed = $3, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING `+leadColumns+`
	`, id, slot, wizardCompleted)
	return scanLead(row)
}

// SetEmailVerified flips the verification flag. The accompanying status
// transition is recorded through UpdateStatus so the audit trail stays
// consistent.
func (r *Repository) SetEmailVerified(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET email_verified = true, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStatus applies a validated status change and appends the matching
// activity record in one transaction. The WHERE guard on the expected
// current status makes the write optimistic: if the lead moved meanwhile,
// ErrStale is returned and nothing is persisted.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.Status, tctx domain.TransitionContext, at time.Time) (Lead, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Lead{}, err
	}
	defer tx.Rollback(ctx)

	var reason, comment *string
	if tctx.Reason != "" {
		reason = &tctx.Reason
	}
	if tctx.Comment != "" {
		comment = &tctx.Comment
	}

	row := tx.QueryRow(ctx, `
		UPDATE leads SET
			status = $3, status_reason = $4, status_comment = $5,
			status_changed_at = $6, status_changed_by = $7, updated_at = now()
		WHERE id = $1 AND status = $2 AND deleted_at IS NULL
		RETURNING `+leadColumns+`
	`, id, from, to, reason, comment, at, tctx.Actor)

	lead, err := scanLead(row)
	if errors.Is(err, ErrNotFound) {
		return Lead{}, ErrStale
	}
	if err != nil {
		return Lead{}, err
	}

	if err := appendActivity(ctx, tx, activityRecord{
		LeadID:    id,
		Type:      ActivityStatusChange,
		OldStatus: from,
		NewStatus: to,
		Reason:    reason,
		Comment:   comment,
		Actor:     tctx.Actor,
		At:        at,
	}); err != nil {
		return Lead{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Lead{}, err
	}
	return lead, nil
}
