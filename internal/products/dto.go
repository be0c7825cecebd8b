package products

import (
	"time"

	"github.com/google/uuid"

	"github.com/joaquinvalderas/regenmarket-backend/pkg/db/models"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/enums"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/pagination"
)

// ProductDTO is the catalog transport shape.
type ProductDTO struct {
	ID               uuid.UUID             `json:"id"`
	VendorID         uuid.UUID             `json:"vendor_id"`
	Name             string                `json:"name"`
	Description      *string               `json:"description,omitempty"`
	Category         enums.ProductCategory `json:"category"`
	Tags             []string              `json:"tags"`
	PriceCents       int                   `json:"price_cents"`
	Stock            int                   `json:"stock"`
	InStock          bool                  `json:"in_stock"`
	SalesCount       int64                 `json:"sales_count"`
	Status           enums.ProductStatus   `json:"status"`
	CO2Reduction     float64               `json:"co2_reduction"`
	WaterSaving      float64               `json:"water_saving"`
	EnergyEfficiency float64               `json:"energy_efficiency"`
	RegenScore       float64               `json:"regen_score"`
	RatingAvg        float64               `json:"rating_avg"`
	RatingCount      int64                 `json:"rating_count"`
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

// CreateProductRequest is the vendor-facing create payload.
type CreateProductRequest struct {
	Name             string   `json:"name" validate:"required"`
	Description      *string  `json:"description,omitempty"`
	Category         string   `json:"category" validate:"required"`
	Tags             []string `json:"tags,omitempty"`
	PriceCents       int      `json:"price_cents" validate:"required,gt=0"`
	Stock            int      `json:"stock" validate:"gte=0"`
	CO2Reduction     float64  `json:"co2_reduction" validate:"gte=0"`
	WaterSaving      float64  `json:"water_saving" validate:"gte=0"`
	EnergyEfficiency float64  `json:"energy_efficiency" validate:"gte=0"`
	Activate         bool     `json:"activate"`
}

// UpdateProductRequest carries partial updates; nil fields are untouched.
type UpdateProductRequest struct {
	Name             *string  `json:"name,omitempty"`
	Description      *string  `json:"description,omitempty"`
	Category         *string  `json:"category,omitempty"`
	Tags             []string `json:"tags,omitempty"`
	PriceCents       *int     `json:"price_cents,omitempty" validate:"omitempty,gt=0"`
	Stock            *int     `json:"stock,omitempty" validate:"omitempty,gte=0"`
	Status           *string  `json:"status,omitempty"`
	CO2Reduction     *float64 `json:"co2_reduction,omitempty" validate:"omitempty,gte=0"`
	WaterSaving      *float64 `json:"water_saving,omitempty" validate:"omitempty,gte=0"`
	EnergyEfficiency *float64 `json:"energy_efficiency,omitempty" validate:"omitempty,gte=0"`
}

// BrowseFilters selects the public catalog slice.
type BrowseFilters struct {
	Category    *enums.ProductCategory
	InStockOnly bool
	VendorID    *uuid.UUID
	Pagination  pagination.Params
}

// ListPage is the cursor-paginated result shape.
type ListPage struct {
	Items      []ProductDTO `json:"items"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

// FromModel maps a persisted product to the transport shape.
func FromModel(p *models.Product) *ProductDTO {
	if p == nil {
		return nil
	}
	return &ProductDTO{
		ID:               p.ID,
		VendorID:         p.VendorID,
		Name:             p.Name,
		Description:      p.Description,
		Category:         p.Category,
		Tags:             append([]string(nil), p.Tags...),
		PriceCents:       p.PriceCents,
		Stock:            p.Stock,
		InStock:          p.InStock,
		SalesCount:       p.SalesCount,
		Status:           p.Status,
		CO2Reduction:     p.CO2Reduction,
		WaterSaving:      p.WaterSaving,
		EnergyEfficiency: p.EnergyEfficiency,
		RegenScore:       p.RegenScore,
		RatingAvg:        p.RatingAvg,
		RatingCount:      p.RatingCount,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}
