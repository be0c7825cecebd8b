package checkout

import (
	"github.com/google/uuid"

	"github.com/joaquinvalderas/regenmarket-backend/internal/orders"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/enums"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/types"
)

// ItemRequest is one line of a checkout submission.
type ItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1,max=999"`
}

// Request is the checkout submission body. The payment intent id comes from
// the client-side Stripe confirmation flow and ties the per-vendor orders
// together; cash-on-delivery checkouts omit it.
type Request struct {
	Items           []ItemRequest       `json:"items" validate:"required,min=1,max=100,dive"`
	ShippingAddress types.Address       `json:"shipping_address" validate:"required"`
	PaymentMethod   enums.PaymentMethod `json:"payment_method" validate:"required"`
	PaymentIntentID string              `json:"payment_intent_id,omitempty" validate:"omitempty,max=255"`
}

// Input carries the validated request plus the acting buyer.
type Input struct {
	BuyerID uuid.UUID
	Request Request
}

// Result reports the orders produced by the split plus checkout-wide totals.
type Result struct {
	CheckoutID           uuid.UUID         `json:"checkout_id"`
	Orders               []orders.OrderDTO `json:"orders"`
	TotalCents           int               `json:"total_cents"`
	RegenScore           float64           `json:"regen_score"`
	LoyaltyPointsAwarded int64             `json:"loyalty_points_awarded"`
}
