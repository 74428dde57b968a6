// Package ports declares the interfaces the leads module needs from other
// modules, keeping the dependency direction inward.
package ports

import (
	"context"

	"github.com/google/uuid"
)

// BlacklistChecker is consulted at every lead-creation entry point.
type BlacklistChecker interface {
	IsBlacklisted(ctx context.Context, email string) (bool, error)
}

// CodeIssuer starts the email verification exchange for a new lead.
type CodeIssuer interface {
	IssueCode(ctx context.Context, leadID uuid.UUID) error
}
