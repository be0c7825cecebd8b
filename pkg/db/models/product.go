package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/joaquinvalderas/regenmarket-backend/pkg/enums"
)

// Product represents the canonical vendor listing.
type Product struct {
	ID               uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	VendorID         uuid.UUID             `gorm:"column:vendor_id;type:uuid;not null"`
	Name             string                `gorm:"column:name;not null"`
	Description      *string               `gorm:"column:description"`
	Category         enums.ProductCategory `gorm:"column:category;type:product_category;not null"`
	Tags             pq.StringArray        `gorm:"column:tags;type:text[];not null;default:ARRAY[]::text[]"`
	PriceCents       int                   `gorm:"column:price_cents;not null"`
	Stock            int                   `gorm:"column:stock;not null;default:0"`
	InStock          bool                  `gorm:"column:in_stock;not null;default:false"`
	SalesCount       int64                 `gorm:"column:sales_count;not null;default:0"`
	Status           enums.ProductStatus   `gorm:"column:status;type:product_status;not null;default:'draft'"`
	CO2Reduction     float64               `gorm:"column:co2_reduction;type:numeric(6,2);not null;default:0"`
	WaterSaving      float64               `gorm:"column:water_saving;type:numeric(6,2);not null;default:0"`
	EnergyEfficiency float64               `gorm:"column:energy_efficiency;type:numeric(6,2);not null;default:0"`
	RegenScore       float64               `gorm:"column:regen_score;type:numeric(8,2);not null;default:0"`
	RatingAvg        float64               `gorm:"column:rating_avg;type:numeric(3,2);not null;default:0"`
	RatingCount      int64                 `gorm:"column:rating_count;not null;default:0"`
	CreatedAt        time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
