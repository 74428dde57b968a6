package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	leaddomain "fleetcrm_backend/internal/leads/domain"
	leadrepo "fleetcrm_backend/internal/leads/repository"
	leadsvc "fleetcrm_backend/internal/leads/service"
)

// leadsGateway adapts the leads module to the LeadGateway port.
type leadsGateway struct {
	repo *leadrepo.Repository
	svc  *leadsvc.Service
}

func NewLeadsGateway(repo *leadrepo.Repository, svc *leadsvc.Service) LeadGateway {
	return &leadsGateway{repo: repo, svc: svc}
}

func (g *leadsGateway) GetLead(ctx context.Context, id uuid.UUID) (Lead, error) {
	lead, err := g.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, leadrepo.ErrNotFound) {
			return Lead{}, leadsvc.ErrLeadNotFound
		}
		return Lead{}, err
	}
	return Lead{
		ID:            lead.ID,
		Email:         lead.Email,
		Locale:        lead.Locale,
		EmailVerified: lead.EmailVerified,
	}, nil
}

// MarkVerified flips the verified flag and, when the lead is still in the
// initial status, advances it to email_verified.
func (g *leadsGateway) MarkVerified(ctx context.Context, id uuid.UUID) error {
	lead, err := g.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, leadrepo.ErrNotFound) {
			return leadsvc.ErrLeadNotFound
		}
		return err
	}

	if err := g.repo.SetEmailVerified(ctx, id); err != nil {
		return err
	}

	if leaddomain.CanTransition(lead.Status, leaddomain.StatusEmailVerified) {
		_, err = g.svc.Transition(ctx, id, leaddomain.StatusEmailVerified, leaddomain.TransitionContext{
			Actor: leadsvc.ActorVerification,
		})
		return err
	}
	return nil
}
