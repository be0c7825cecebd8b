package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/joaquinvalderas/regenmarket-backend/pkg/db/models"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/enums"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/logger"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/outbox"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/outbox/idempotency"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/outbox/payloads"
)

const notificationConsumer = "notifications"

type repository interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// Consumer turns domain events into per-user notification rows. It is wired
// to both the orders and notification subscriptions; each message is fenced
// on the envelope event id so redeliveries never double-write.
type Consumer struct {
	repo        repository
	idempotency *idempotency.Manager
	logg        *logger.Logger
}

// NewConsumer builds a notification consumer.
func NewConsumer(repo repository, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:        repo,
		idempotency: manager,
		logg:        logg,
	}, nil
}

// Run consumes the subscription until the context is canceled.
func (c *Consumer) Run(ctx context.Context, subscription *pubsub.Subscriber) error {
	if subscription == nil {
		return fmt.Errorf("subscription required")
	}
	return subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": string(eventType),
	})

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, notificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	rows, err := c.buildNotifications(eventType, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		_ = c.idempotency.Delete(ctx, notificationConsumer, eventID)
		return processResult{nack: true}
	}
	if len(rows) == 0 {
		c.logg.Info(logCtx, "event produces no notifications")
		return processResult{ack: true}
	}

	var errs []error
	for _, row := range rows {
		if err := c.repo.Create(ctx, row); err != nil {
			errs = append(errs, err)
		}
	}
	if combined := multierr.Combine(errs...); combined != nil {
		c.logg.Error(logCtx, "notification writes failed", combined)
		_ = c.idempotency.Delete(ctx, notificationConsumer, eventID)
		return processResult{nack: true}
	}
	c.logg.Info(logCtx, "notifications written")
	return processResult{ack: true}
}

// buildNotifications maps one domain event to the notification rows it fans
// out to. Unknown event types are skipped.
func (c *Consumer) buildNotifications(eventType enums.OutboxEventType, data json.RawMessage) ([]*models.Notification, error) {
	switch eventType {
	case enums.EventOrderCreated:
		var p payloads.OrderCreatedEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return []*models.Notification{buyerRow(p.BuyerID, enums.NotificationOrderPlaced,
			"Order placed",
			fmt.Sprintf("Your checkout created %d order(s) totalling %s.", len(p.OrderIDs), formatCents(p.TotalCents)),
			"/account/orders")}, nil

	case enums.EventOrderPaid:
		var p payloads.OrderPaidEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		link := orderLink(p.OrderID)
		return []*models.Notification{
			buyerRow(p.BuyerID, enums.NotificationOrderPaid,
				"Payment received",
				fmt.Sprintf("Your payment of %s for order %s went through.", formatCents(p.TotalCents), shortID(p.OrderID)),
				link),
			buyerRow(p.VendorID, enums.NotificationOrderPaid,
				"New paid order",
				fmt.Sprintf("Order %s is paid and ready to fulfil.", shortID(p.OrderID)),
				fmt.Sprintf("/vendor/orders/%s", p.OrderID)),
		}, nil

	case enums.EventOrderShipped:
		var p payloads.OrderShippedEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return []*models.Notification{buyerRow(p.BuyerID, enums.NotificationOrderShipped,
			"Order shipped",
			fmt.Sprintf("Order %s is on its way. Tracking: %s", shortID(p.OrderID), p.TrackingNumber),
			orderLink(p.OrderID))}, nil

	case enums.EventOrderDelivered:
		var p payloads.OrderDeliveredEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return []*models.Notification{buyerRow(p.BuyerID, enums.NotificationOrderDelivered,
			"Order delivered",
			fmt.Sprintf("Order %s has been delivered. You can now review your items.", shortID(p.OrderID)),
			orderLink(p.OrderID))}, nil

	case enums.EventOrderCancelled:
		var p payloads.OrderCancelledEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		message := fmt.Sprintf("Order %s was cancelled.", shortID(p.OrderID))
		if p.Reason != "" {
			message = fmt.Sprintf("Order %s was cancelled: %s.", shortID(p.OrderID), p.Reason)
		}
		return []*models.Notification{
			buyerRow(p.BuyerID, enums.NotificationOrderCancelled, "Order cancelled", message, orderLink(p.OrderID)),
			buyerRow(p.VendorID, enums.NotificationOrderCancelled,
				"Order cancelled",
				fmt.Sprintf("Order %s was cancelled by the buyer.", shortID(p.OrderID)),
				fmt.Sprintf("/vendor/orders/%s", p.OrderID)),
		}, nil

	case enums.EventPaymentFailed:
		var p payloads.PaymentFailedEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return []*models.Notification{buyerRow(p.BuyerID, enums.NotificationPaymentFailed,
			"Payment failed",
			fmt.Sprintf("Your payment did not go through and %d order(s) were cancelled. Reason: %s", len(p.OrderIDs), p.Reason),
			"/account/orders")}, nil

	case enums.EventPaymentDisputed:
		var p payloads.PaymentDisputedEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		rows := make([]*models.Notification, 0, len(p.VendorIDs))
		for _, vendorID := range p.VendorIDs {
			rows = append(rows, buyerRow(vendorID, enums.NotificationPaymentDisputed,
				"Payment disputed",
				fmt.Sprintf("A chargeback of %s was opened against payment %s.", formatCents(int(p.AmountCents)), p.PaymentIntentID),
				"/vendor/orders"))
		}
		return rows, nil

	case enums.EventApplicationDecided:
		var p payloads.ApplicationDecidedEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		title := "Vendor application approved"
		message := "Congratulations, your vendor application was approved. You can start listing products."
		if p.Status == enums.ApplicationStatusRejected {
			title = "Vendor application rejected"
			message = "Your vendor application was rejected."
			if p.Reason != "" {
				message = fmt.Sprintf("Your vendor application was rejected: %s", p.Reason)
			}
		}
		return []*models.Notification{buyerRow(p.UserID, enums.NotificationVendorDecision, title, message, "/account/vendor-application")}, nil

	case enums.EventListingFlagged:
		var p payloads.ListingFlaggedEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		if p.VendorID == uuid.Nil {
			return nil, nil
		}
		return []*models.Notification{buyerRow(p.VendorID, enums.NotificationListingFlagged,
			"Listing flagged",
			fmt.Sprintf("One of your %ss was flagged for review: %s", p.TargetType, p.Reason),
			"/vendor/products")}, nil

	case enums.EventListingRemoved:
		var p payloads.ListingRemovedEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		message := "A flagged listing was removed by moderation."
		if p.Note != "" {
			message = fmt.Sprintf("A flagged listing was removed by moderation: %s", p.Note)
		}
		return []*models.Notification{buyerRow(p.VendorID, enums.NotificationListingRemoved,
			"Listing removed", message,
			fmt.Sprintf("/vendor/products/%s", p.ProductID))}, nil

	case enums.EventReviewReplied:
		var p payloads.ReviewRepliedEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return []*models.Notification{buyerRow(p.UserID, enums.NotificationReviewReply,
			"Vendor replied to your review",
			"The vendor responded to one of your product reviews.",
			fmt.Sprintf("/products/%s", p.ProductID))}, nil

	case enums.EventLoyaltyPointsAwarded:
		var p payloads.LoyaltyPointsAwardedEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return []*models.Notification{buyerRow(p.UserID, enums.NotificationLoyaltyAwarded,
			"Regen points earned",
			fmt.Sprintf("You earned %d regen points. New balance: %d.", p.Points, p.NewBalance),
			"/account/loyalty")}, nil

	default:
		return nil, nil
	}
}

func buyerRow(userID uuid.UUID, kind enums.NotificationType, title, message, link string) *models.Notification {
	return &models.Notification{
		UserID:  userID,
		Type:    kind,
		Title:   title,
		Message: message,
		Link:    &link,
	}
}

func orderLink(orderID uuid.UUID) string {
	return fmt.Sprintf("/account/orders/%s", orderID)
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}

func formatCents(cents int) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}
