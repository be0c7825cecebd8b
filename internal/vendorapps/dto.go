package vendorapps

import (
	"time"

	"github.com/google/uuid"

	"github.com/joaquinvalderas/regenmarket-backend/pkg/db/models"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/enums"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/pagination"
)

// ApplicationDTO is the transport shape of a vendor application.
type ApplicationDTO struct {
	ID              uuid.UUID               `json:"id"`
	UserID          uuid.UUID               `json:"user_id"`
	BusinessName    string                  `json:"business_name"`
	Description     string                  `json:"description"`
	Website         *string                 `json:"website,omitempty"`
	Status          enums.ApplicationStatus `json:"status"`
	RejectionReason *string                 `json:"rejection_reason,omitempty"`
	DecidedAt       *time.Time              `json:"decided_at,omitempty"`
	CreatedAt       time.Time               `json:"created_at"`
}

// SubmitRequest is the application submission body.
type SubmitRequest struct {
	BusinessName string  `json:"business_name" validate:"required,min=2,max=120"`
	Description  string  `json:"description" validate:"required,min=10,max=4000"`
	Website      *string `json:"website,omitempty" validate:"omitempty,url,max=255"`
}

// RejectRequest carries the admin's rejection reason.
type RejectRequest struct {
	Reason string `json:"reason" validate:"required,min=4,max=1000"`
}

// ListFilters describe the inputs supported by the admin application list.
type ListFilters struct {
	Status     *enums.ApplicationStatus
	Pagination pagination.Params
}

// ListPage wraps a page of applications plus the next page cursor.
type ListPage struct {
	Applications []ApplicationDTO `json:"applications"`
	NextCursor   string           `json:"next_cursor,omitempty"`
}

// FromModel maps the persistence model to the transport DTO.
func FromModel(app *models.VendorApplication) ApplicationDTO {
	return ApplicationDTO{
		ID:              app.ID,
		UserID:          app.UserID,
		BusinessName:    app.BusinessName,
		Description:     app.Description,
		Website:         app.Website,
		Status:          app.Status,
		RejectionReason: app.RejectionReason,
		DecidedAt:       app.DecidedAt,
		CreatedAt:       app.CreatedAt,
	}
}
