package models

import (
	"time"

	"github.com/google/uuid"
)

// VendorProfile holds the storefront record created when a vendor
// application is approved. Counters are bumped transactionally by the
// checkout and webhook flows.
type VendorProfile struct {
	UserID      uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	DisplayName string    `gorm:"column:display_name;not null"`
	Description *string   `gorm:"column:description"`
	Website     *string   `gorm:"column:website"`
	TotalOrders int64     `gorm:"column:total_orders;not null;default:0"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
