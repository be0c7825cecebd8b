package models

import (
	"time"

	"github.com/google/uuid"
)

// Review is a purchase-gated product review with an optional vendor reply.
type Review struct {
	ID              uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID       uuid.UUID  `gorm:"column:product_id;type:uuid;not null;uniqueIndex:idx_review_product_user"`
	UserID          uuid.UUID  `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_review_product_user"`
	Rating          int        `gorm:"column:rating;not null"`
	Title           string     `gorm:"column:title;not null"`
	Body            string     `gorm:"column:body;not null"`
	VendorReply     *string    `gorm:"column:vendor_reply"`
	VendorRepliedAt *time.Time `gorm:"column:vendor_replied_at"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
