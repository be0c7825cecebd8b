package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/joaquinvalderas/regenmarket-backend/pkg/enums"
)

// VendorApplication tracks a customer's request to sell on the platform.
type VendorApplication struct {
	ID              uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID          uuid.UUID               `gorm:"column:user_id;type:uuid;not null"`
	BusinessName    string                  `gorm:"column:business_name;not null"`
	Description     string                  `gorm:"column:description;not null"`
	Website         *string                 `gorm:"column:website"`
	Status          enums.ApplicationStatus `gorm:"column:status;type:application_status;not null;default:'pending'"`
	RejectionReason *string                 `gorm:"column:rejection_reason"`
	DecidedBy       *uuid.UUID              `gorm:"column:decided_by;type:uuid"`
	DecidedAt       *time.Time              `gorm:"column:decided_at"`
	CreatedAt       time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
