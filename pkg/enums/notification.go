package enums

import "fmt"

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationOrderPlaced     NotificationType = "order_placed"
	NotificationOrderPaid       NotificationType = "order_paid"
	NotificationOrderShipped    NotificationType = "order_shipped"
	NotificationOrderDelivered  NotificationType = "order_delivered"
	NotificationOrderCancelled  NotificationType = "order_cancelled"
	NotificationPaymentFailed   NotificationType = "payment_failed"
	NotificationVendorDecision  NotificationType = "vendor_application_decision"
	NotificationReviewReply     NotificationType = "review_reply"
	NotificationListingFlagged  NotificationType = "listing_flagged"
	NotificationListingRemoved  NotificationType = "listing_removed"
	NotificationLoyaltyAwarded  NotificationType = "loyalty_points_awarded"
	NotificationPaymentDisputed NotificationType = "payment_disputed"
)

var validNotificationTypes = []NotificationType{
	NotificationOrderPlaced,
	NotificationOrderPaid,
	NotificationOrderShipped,
	NotificationOrderDelivered,
	NotificationOrderCancelled,
	NotificationPaymentFailed,
	NotificationVendorDecision,
	NotificationReviewReply,
	NotificationListingFlagged,
	NotificationListingRemoved,
	NotificationLoyaltyAwarded,
	NotificationPaymentDisputed,
}

// String implements fmt.Stringer.
func (n NotificationType) String() string {
	return string(n)
}

// IsValid reports whether the value is a known NotificationType.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw input into a NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
