package flags

import (
	"time"

	"github.com/google/uuid"

	"github.com/joaquinvalderas/regenmarket-backend/pkg/db/models"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/enums"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/pagination"
)

// FlagDTO is the transport shape of a moderation flag.
type FlagDTO struct {
	ID             uuid.UUID            `json:"id"`
	ReporterID     uuid.UUID            `json:"reporter_id"`
	TargetType     enums.FlagTargetType `json:"target_type"`
	TargetID       uuid.UUID            `json:"target_id"`
	Reason         string               `json:"reason"`
	Status         enums.FlagStatus     `json:"status"`
	ResolvedBy     *uuid.UUID           `json:"resolved_by,omitempty"`
	ResolutionNote *string              `json:"resolution_note,omitempty"`
	ResolvedAt     *time.Time           `json:"resolved_at,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
}

// CreateRequest is the flag submission body.
type CreateRequest struct {
	TargetType enums.FlagTargetType `json:"target_type" validate:"required"`
	TargetID   uuid.UUID            `json:"target_id" validate:"required"`
	Reason     string               `json:"reason" validate:"required,min=4,max=1000"`
}

// ResolveRequest is the admin decision body. RemoveListing deactivates the
// flagged product as part of resolving.
type ResolveRequest struct {
	Note          string `json:"note,omitempty" validate:"omitempty,max=1000"`
	RemoveListing bool   `json:"remove_listing,omitempty"`
}

// ListFilters describe the inputs supported by the admin flag list.
type ListFilters struct {
	Status     *enums.FlagStatus
	Pagination pagination.Params
}

// ListPage wraps a page of flags plus the next page cursor.
type ListPage struct {
	Flags      []FlagDTO `json:"flags"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

// FromModel maps the persistence model to the transport DTO.
func FromModel(flag *models.ModerationFlag) FlagDTO {
	return FlagDTO{
		ID:             flag.ID,
		ReporterID:     flag.ReporterID,
		TargetType:     flag.TargetType,
		TargetID:       flag.TargetID,
		Reason:         flag.Reason,
		Status:         flag.Status,
		ResolvedBy:     flag.ResolvedBy,
		ResolutionNote: flag.ResolutionNote,
		ResolvedAt:     flag.ResolvedAt,
		CreatedAt:      flag.CreatedAt,
	}
}
