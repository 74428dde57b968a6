// Package transport defines the request/response DTOs for the leads module.
package transport

import (
	"time"

	"fleetcrm_backend/internal/leads/domain"
	"fleetcrm_backend/internal/leads/repository"

	"github.com/google/uuid"
)

type CreateLeadRequest struct {
	Email       string `json:"email" binding:"required,email"`
	CountryCode string `json:"countryCode" binding:"required,len=2"`
	Locale      string `json:"locale" binding:"omitempty,oneof=en fr"`
}

type TransitionRequest struct {
	Status  string `json:"status" binding:"required"`
	Reason  string `json:"reason" binding:"omitempty,max=64"`
	Comment string `json:"comment" binding:"omitempty,max=1000"`
}

type ProfileStepRequest struct {
	FirstName string `json:"firstName" binding:"required,max=100"`
	LastName  string `json:"lastName" binding:"required,max=100"`
	Phone     string `json:"phone" binding:"required,max=32"`
	Company   string `json:"company" binding:"required,max=200"`
	FleetSize int    `json:"fleetSize" binding:"required,min=1"`
	Consent   bool   `json:"consent" binding:"required"`
}

type BookingWebhookRequest struct {
	Email         string    `json:"email" binding:"required,email"`
	BookingSlotAt time.Time `json:"bookingSlotAt" binding:"required"`
}

type LeadResponse struct {
	ID                uuid.UUID  `json:"id"`
	Email             string     `json:"email"`
	CountryCode       string     `json:"countryCode"`
	Locale            string     `json:"locale"`
	Status            string     `json:"status"`
	StatusReason      *string    `json:"statusReason,omitempty"`
	EmailVerified     bool       `json:"emailVerified"`
	FirstName         *string    `json:"firstName,omitempty"`
	LastName          *string    `json:"lastName,omitempty"`
	Phone             *string    `json:"phone,omitempty"`
	Company           *string    `json:"company,omitempty"`
	FleetSize         *int       `json:"fleetSize,omitempty"`
	WizardCompleted   bool       `json:"wizardCompleted"`
	CallbackRequested bool       `json:"callbackRequested"`
	BookingSlotAt     *time.Time `json:"bookingSlotAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

type ActivityResponse struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	OldStatus string    `json:"oldStatus"`
	NewStatus string    `json:"newStatus"`
	Reason    *string   `json:"reason,omitempty"`
	Comment   *string   `json:"comment,omitempty"`
	Actor     string    `json:"actor"`
	CreatedAt time.Time `json:"createdAt"`
}

func ToLeadResponse(lead repository.Lead) LeadResponse {
	return LeadResponse{
		ID:                lead.ID,
		Email:             lead.Email,
		CountryCode:       lead.CountryCode,
		Locale:            lead.Locale,
		Status:            string(lead.Status),
		StatusReason:      lead.StatusReason,
		EmailVerified:     lead.EmailVerified,
		FirstName:         lead.FirstName,
		LastName:          lead.LastName,
		Phone:             lead.Phone,
		Company:           lead.Company,
		FleetSize:         lead.FleetSize,
		WizardCompleted:   lead.WizardCompleted,
		CallbackRequested: lead.CallbackRequested,
		BookingSlotAt:     lead.BookingSlotAt,
		CreatedAt:         lead.CreatedAt,
		UpdatedAt:         lead.UpdatedAt,
	}
}

func ToActivityResponse(item repository.Activity) ActivityResponse {
	return ActivityResponse{
		ID:        item.ID,
		Type:      item.Type,
		OldStatus: string(item.OldStatus),
		NewStatus: string(item.NewStatus),
		Reason:    item.Reason,
		Comment:   item.Comment,
		Actor:     item.Actor,
		CreatedAt: item.CreatedAt,
	}
}

// ParseStatus validates an inbound status string.
func ParseStatus(raw string) (domain.Status, bool) {
	status := domain.Status(raw)
	return status, status.Valid()
}
