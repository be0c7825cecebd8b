package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/joaquinvalderas/regenmarket-backend/pkg/enums"
)

// OrderCreatedEvent signals a new checkout split across vendors.
type OrderCreatedEvent struct {
	PaymentIntentID string      `json:"payment_intent_id"`
	BuyerID         uuid.UUID   `json:"buyer_id"`
	OrderIDs        []uuid.UUID `json:"order_ids"`
	VendorIDs       []uuid.UUID `json:"vendor_ids"`
	TotalCents      int         `json:"total_cents"`
}

// OrderPaidEvent is emitted per order once the payment intent settles.
type OrderPaidEvent struct {
	OrderID         uuid.UUID `json:"order_id"`
	BuyerID         uuid.UUID `json:"buyer_id"`
	VendorID        uuid.UUID `json:"vendor_id"`
	PaymentIntentID string    `json:"payment_intent_id"`
	TotalCents      int       `json:"total_cents"`
	PaidAt          time.Time `json:"paid_at"`
}

// OrderCancelledEvent is emitted when an order cancels, either by the buyer
// or by a failed payment.
type OrderCancelledEvent struct {
	OrderID         uuid.UUID `json:"order_id"`
	BuyerID         uuid.UUID `json:"buyer_id"`
	VendorID        uuid.UUID `json:"vendor_id"`
	PaymentIntentID string    `json:"payment_intent_id,omitempty"`
	Reason          string    `json:"reason,omitempty"`
	CancelledAt     time.Time `json:"cancelled_at"`
}

// PaymentFailedEvent carries the payment failure for notification fan-out.
type PaymentFailedEvent struct {
	PaymentIntentID string      `json:"payment_intent_id"`
	BuyerID         uuid.UUID   `json:"buyer_id"`
	OrderIDs        []uuid.UUID `json:"order_ids"`
	Reason          string      `json:"reason,omitempty"`
}

// PaymentDisputedEvent alerts vendors about a chargeback on their orders.
type PaymentDisputedEvent struct {
	PaymentIntentID string      `json:"payment_intent_id"`
	OrderIDs        []uuid.UUID `json:"order_ids"`
	VendorIDs       []uuid.UUID `json:"vendor_ids"`
	DisputeID       string      `json:"dispute_id"`
	AmountCents     int64       `json:"amount_cents"`
}

// OrderShippedEvent notifies the buyer that a vendor dispatched an order.
type OrderShippedEvent struct {
	OrderID        uuid.UUID `json:"order_id"`
	BuyerID        uuid.UUID `json:"buyer_id"`
	VendorID       uuid.UUID `json:"vendor_id"`
	TrackingNumber string    `json:"tracking_number"`
	ShippedAt      time.Time `json:"shipped_at"`
}

// OrderDeliveredEvent notifies the buyer a shipment arrived.
type OrderDeliveredEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	BuyerID     uuid.UUID `json:"buyer_id"`
	VendorID    uuid.UUID `json:"vendor_id"`
	DeliveredAt time.Time `json:"delivered_at"`
}

// ApplicationDecidedEvent reports an admin decision on a vendor application.
type ApplicationDecidedEvent struct {
	ApplicationID uuid.UUID               `json:"application_id"`
	UserID        uuid.UUID               `json:"user_id"`
	Status        enums.ApplicationStatus `json:"status"`
	Reason        string                  `json:"reason,omitempty"`
}

// ListingFlaggedEvent reports a new open moderation flag.
type ListingFlaggedEvent struct {
	FlagID     uuid.UUID            `json:"flag_id"`
	TargetType enums.FlagTargetType `json:"target_type"`
	TargetID   uuid.UUID            `json:"target_id"`
	VendorID   uuid.UUID            `json:"vendor_id"`
	Reason     string               `json:"reason"`
}

// ListingRemovedEvent tells the vendor a flagged listing was deactivated.
type ListingRemovedEvent struct {
	FlagID    uuid.UUID `json:"flag_id"`
	ProductID uuid.UUID `json:"product_id"`
	VendorID  uuid.UUID `json:"vendor_id"`
	Note      string    `json:"note,omitempty"`
}

// ReviewRepliedEvent tells the reviewer the vendor answered.
type ReviewRepliedEvent struct {
	ReviewID  uuid.UUID `json:"review_id"`
	ProductID uuid.UUID `json:"product_id"`
	UserID    uuid.UUID `json:"user_id"`
	VendorID  uuid.UUID `json:"vendor_id"`
}

// LoyaltyPointsAwardedEvent records a loyalty balance change.
type LoyaltyPointsAwardedEvent struct {
	UserID     uuid.UUID `json:"user_id"`
	Points     int64     `json:"points"`
	NewBalance int64     `json:"new_balance"`
	Source     string    `json:"source"`
}
