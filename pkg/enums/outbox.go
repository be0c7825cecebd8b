package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder        OutboxAggregateType = "order"
	AggregateCheckout     OutboxAggregateType = "checkout"
	AggregateProduct      OutboxAggregateType = "product"
	AggregateReview       OutboxAggregateType = "review"
	AggregateApplication  OutboxAggregateType = "vendor_application"
	AggregateFlag         OutboxAggregateType = "moderation_flag"
	AggregateLoyalty      OutboxAggregateType = "loyalty_profile"
	AggregateNotification OutboxAggregateType = "notification"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateCheckout,
	AggregateProduct,
	AggregateReview,
	AggregateApplication,
	AggregateFlag,
	AggregateLoyalty,
	AggregateNotification,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderCreated         OutboxEventType = "order_created"
	EventOrderPaid            OutboxEventType = "order_paid"
	EventOrderShipped         OutboxEventType = "order_shipped"
	EventOrderDelivered       OutboxEventType = "order_delivered"
	EventOrderCancelled       OutboxEventType = "order_cancelled"
	EventPaymentFailed        OutboxEventType = "payment_failed"
	EventPaymentDisputed      OutboxEventType = "payment_disputed"
	EventCheckoutConverted    OutboxEventType = "checkout_converted"
	EventStockDepleted        OutboxEventType = "stock_depleted"
	EventReviewCreated        OutboxEventType = "review_created"
	EventReviewReplied        OutboxEventType = "review_replied"
	EventListingFlagged       OutboxEventType = "listing_flagged"
	EventListingRemoved       OutboxEventType = "listing_removed"
	EventApplicationDecided   OutboxEventType = "vendor_application_decided"
	EventLoyaltyPointsAwarded OutboxEventType = "loyalty_points_awarded"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderPaid,
	EventOrderShipped,
	EventOrderDelivered,
	EventOrderCancelled,
	EventPaymentFailed,
	EventPaymentDisputed,
	EventCheckoutConverted,
	EventStockDepleted,
	EventReviewCreated,
	EventReviewReplied,
	EventListingFlagged,
	EventListingRemoved,
	EventApplicationDecided,
	EventLoyaltyPointsAwarded,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
