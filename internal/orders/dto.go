package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/joaquinvalderas/regenmarket-backend/pkg/db/models"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/enums"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/pagination"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/types"
)

// ListFilters describe the inputs supported by the order list endpoints.
type ListFilters struct {
	Status     *enums.OrderStatus
	Pagination pagination.Params
}

// OrderItemDTO is the transport shape of an order line.
type OrderItemDTO struct {
	ID             uuid.UUID  `json:"id"`
	ProductID      *uuid.UUID `json:"product_id,omitempty"`
	Name           string     `json:"name"`
	Category       string     `json:"category"`
	UnitPriceCents int        `json:"unit_price_cents"`
	Qty            int        `json:"qty"`
	TotalCents     int        `json:"total_cents"`
	RegenScore     float64    `json:"regen_score"`
}

// OrderDTO is the transport shape of a vendor-scoped order.
type OrderDTO struct {
	ID              uuid.UUID           `json:"id"`
	UserID          uuid.UUID           `json:"user_id"`
	VendorID        uuid.UUID           `json:"vendor_id"`
	PaymentIntentID string              `json:"payment_intent_id,omitempty"`
	Status          enums.OrderStatus   `json:"status"`
	PaymentStatus   enums.PaymentStatus `json:"payment_status"`
	PaymentMethod   enums.PaymentMethod `json:"payment_method"`
	SubtotalCents   int                 `json:"subtotal_cents"`
	TaxCents        int                 `json:"tax_cents"`
	ShippingCents   int                 `json:"shipping_cents"`
	TotalCents      int                 `json:"total_cents"`
	RegenScore      float64             `json:"regen_score"`
	ShippingAddress types.Address       `json:"shipping_address"`
	TrackingNumber  *string             `json:"tracking_number,omitempty"`
	ShippedAt       *time.Time          `json:"shipped_at,omitempty"`
	DeliveredAt     *time.Time          `json:"delivered_at,omitempty"`
	CancelledAt     *time.Time          `json:"cancelled_at,omitempty"`
	Items           []OrderItemDTO      `json:"items,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// ListPage wraps a page of orders plus the next page cursor.
type ListPage struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// ShipRequest carries the vendor's dispatch details.
type ShipRequest struct {
	TrackingNumber string `json:"tracking_number" validate:"required,min=3,max=64"`
}

// FromModel maps the persistence model to the transport DTO.
func FromModel(order *models.Order) OrderDTO {
	dto := OrderDTO{
		ID:              order.ID,
		UserID:          order.UserID,
		VendorID:        order.VendorID,
		PaymentIntentID: order.PaymentIntentID,
		Status:          order.Status,
		PaymentStatus:   order.PaymentStatus,
		PaymentMethod:   order.PaymentMethod,
		SubtotalCents:   order.SubtotalCents,
		TaxCents:        order.TaxCents,
		ShippingCents:   order.ShippingCents,
		TotalCents:      order.TotalCents,
		RegenScore:      order.RegenScore,
		ShippingAddress: order.ShippingAddress,
		TrackingNumber:  order.TrackingNumber,
		ShippedAt:       order.ShippedAt,
		DeliveredAt:     order.DeliveredAt,
		CancelledAt:     order.CancelledAt,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}
	for _, item := range order.Items {
		dto.Items = append(dto.Items, OrderItemDTO{
			ID:             item.ID,
			ProductID:      item.ProductID,
			Name:           item.Name,
			Category:       item.Category,
			UnitPriceCents: item.UnitPriceCents,
			Qty:            item.Qty,
			TotalCents:     item.TotalCents,
			RegenScore:     item.RegenScore,
		})
	}
	return dto
}
