package reviews

import (
	"time"

	"github.com/google/uuid"

	"github.com/joaquinvalderas/regenmarket-backend/pkg/db/models"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/pagination"
)

// ReviewDTO is the transport shape of a product review.
type ReviewDTO struct {
	ID              uuid.UUID  `json:"id"`
	ProductID       uuid.UUID  `json:"product_id"`
	UserID          uuid.UUID  `json:"user_id"`
	Rating          int        `json:"rating"`
	Title           string     `json:"title"`
	Body            string     `json:"body"`
	VendorReply     *string    `json:"vendor_reply,omitempty"`
	VendorRepliedAt *time.Time `json:"vendor_replied_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// CreateRequest is the review submission body. ProductID comes from the
// route, not the body.
type CreateRequest struct {
	ProductID uuid.UUID `json:"-"`
	Rating    int       `json:"rating" validate:"required,min=1,max=5"`
	Title     string    `json:"title" validate:"required,min=2,max=120"`
	Body      string    `json:"body" validate:"required,min=2,max=4000"`
}

// ReplyRequest is the vendor's one-shot reply body.
type ReplyRequest struct {
	Reply string `json:"reply" validate:"required,min=2,max=2000"`
}

// ListPage wraps a page of reviews plus the next page cursor.
type ListPage struct {
	Reviews    []ReviewDTO `json:"reviews"`
	NextCursor string      `json:"next_cursor,omitempty"`
}

// ListFilters describe the inputs supported by the review list.
type ListFilters struct {
	Pagination pagination.Params
}

// FromModel maps the persistence model to the transport DTO.
func FromModel(review *models.Review) ReviewDTO {
	return ReviewDTO{
		ID:              review.ID,
		ProductID:       review.ProductID,
		UserID:          review.UserID,
		Rating:          review.Rating,
		Title:           review.Title,
		Body:            review.Body,
		VendorReply:     review.VendorReply,
		VendorRepliedAt: review.VendorRepliedAt,
		CreatedAt:       review.CreatedAt,
		UpdatedAt:       review.UpdatedAt,
	}
}
