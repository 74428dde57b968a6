// Package transport defines request and response DTOs for the blacklist
// admin endpoints.
package transport

import (
	"time"

	"fleetcrm_backend/internal/blacklist/repository"
)

type AddEntryRequest struct {
	Email  string `json:"email" validate:"required,email"`
	Reason string `json:"reason" validate:"required,max=500"`
}

type EntryResponse struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Reason    string     `json:"reason"`
	AddedBy   string     `json:"addedBy"`
	CreatedAt time.Time  `json:"createdAt"`
	RemovedAt *time.Time `json:"removedAt,omitempty"`
	RemovedBy *string    `json:"removedBy,omitempty"`
}

func ToEntryResponse(entry repository.Entry) EntryResponse {
	return EntryResponse{
		ID:        entry.ID.String(),
		Email:     entry.Email,
		Reason:    entry.Reason,
		AddedBy:   entry.AddedBy,
		CreatedAt: entry.CreatedAt,
		RemovedAt: entry.RemovedAt,
		RemovedBy: entry.RemovedBy,
	}
}

func ToEntryResponses(entries []repository.Entry) []EntryResponse {
	out := make([]EntryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, ToEntryResponse(entry))
	}
	return out
}
