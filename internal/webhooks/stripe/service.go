package stripewebhook

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/joaquinvalderas/regenmarket-backend/internal/cart"
	"github.com/joaquinvalderas/regenmarket-backend/internal/loyalty"
	"github.com/joaquinvalderas/regenmarket-backend/internal/orders"
	"github.com/joaquinvalderas/regenmarket-backend/internal/products"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/enums"
	pkgerrors "github.com/joaquinvalderas/regenmarket-backend/pkg/errors"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/logger"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/metrics"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/outbox"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams carries the dependencies for the webhook reconciler.
type ServiceParams struct {
	Orders   orders.Repository
	Products *products.Repository
	Cart     *cart.Repository
	Loyalty  *loyalty.Repository
	Vendors  orders.VendorCounter
	Stripe   PaymentIntentClient
	Tx       txRunner
	Outbox   outboxPublisher
	Guard    *IdempotencyGuard
	Logger   *logger.Logger
	Metrics  *metrics.WebhookMetrics
	Now      func() time.Time
}

// Service reconciles Stripe payment events against the order tables.
type Service struct {
	orders   orders.Repository
	products *products.Repository
	cart     *cart.Repository
	loyalty  *loyalty.Repository
	vendors  orders.VendorCounter
	stripe   PaymentIntentClient
	tx       txRunner
	outbox   outboxPublisher
	guard    *IdempotencyGuard
	logg     *logger.Logger
	metrics  *metrics.WebhookMetrics
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repo required")
	}
	if params.Products == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "products repo required")
	}
	if params.Cart == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart repo required")
	}
	if params.Loyalty == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "loyalty repo required")
	}
	if params.Vendors == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "vendors counter required")
	}
	if params.Stripe == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox publisher required")
	}
	if params.Guard == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &Service{
		orders:   params.Orders,
		products: params.Products,
		cart:     params.Cart,
		loyalty:  params.Loyalty,
		vendors:  params.Vendors,
		stripe:   params.Stripe,
		tx:       params.Tx,
		outbox:   params.Outbox,
		guard:    params.Guard,
		logg:     params.Logger,
		metrics:  params.Metrics,
		now:      params.Now,
	}, nil
}

// Process fences the event on its provider id, then dispatches it. Replays
// are acked without side effects; a failed handler releases the fence so the
// provider retry can run again.
func (s *Service) Process(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	started := s.now()

	duplicate, err := s.guard.CheckAndMark(ctx, event.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "webhook idempotency check")
	}
	if duplicate {
		s.observe(string(event.Type), "duplicate", started)
		s.logg.Info(s.logg.WithField(ctx, "stripe_event_id", event.ID), "duplicate webhook event acked")
		return nil
	}

	if err := s.handle(ctx, event); err != nil {
		if delErr := s.guard.Delete(ctx, event.ID); delErr != nil {
			s.logg.Error(ctx, "release webhook idempotency key", delErr)
		}
		s.observe(string(event.Type), "error", started)
		return err
	}
	s.observe(string(event.Type), "processed", started)
	return nil
}

func (s *Service) handle(ctx context.Context, event *stripe.Event) error {
	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		intent, err := decodePaymentIntent(event)
		if err != nil {
			return err
		}
		return s.reconcilePaymentSucceeded(ctx, intent)
	case stripe.EventTypePaymentIntentPaymentFailed, stripe.EventTypePaymentIntentCanceled:
		intent, err := decodePaymentIntent(event)
		if err != nil {
			return err
		}
		return s.reconcilePaymentFailed(ctx, intent, failureReason(event, intent))
	case stripe.EventTypeChargeDisputeCreated:
		var dispute stripe.Dispute
		if err := json.Unmarshal(event.Data.Raw, &dispute); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode dispute event")
		}
		return s.reconcileDispute(ctx, &dispute)
	default:
		s.logg.Info(s.logg.WithField(ctx, "stripe_event_type", string(event.Type)), "unhandled webhook event acked")
		return nil
	}
}

// reconcilePaymentSucceeded flips every order on the payment intent into
// fulfillment, bumps sales counters, clears the buyer's cart lines, and
// awards loyalty points, all inside one transaction.
func (s *Service) reconcilePaymentSucceeded(ctx context.Context, intent *stripe.PaymentIntent) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		orderRepo := s.orders.WithTx(tx)
		productRepo := s.products.WithTx(tx)

		rows, err := orderRepo.FindByPaymentIntent(ctx, intent.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load orders for payment intent")
		}
		if len(rows) == 0 {
			s.logg.Warn(s.logg.WithField(ctx, "payment_intent_id", intent.ID), "payment intent matched no orders")
			return nil
		}

		now := s.now().UTC()
		buyerID := rows[0].UserID
		totalRegen := decimal.Zero
		var productIDs []uuid.UUID

		for i := range rows {
			order := &rows[i]
			if order.PaymentStatus == enums.PaymentStatusPaid || order.Status != enums.OrderStatusPending {
				continue
			}
			updates := map[string]any{
				"status":         enums.OrderStatusProcessing,
				"payment_status": enums.PaymentStatusPaid,
			}
			if err := orderRepo.UpdateStatus(ctx, order.ID, updates); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
			}

			for _, item := range order.Items {
				if item.ProductID == nil {
					continue
				}
				if err := productRepo.BumpSalesCount(ctx, *item.ProductID, item.Qty); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "bump sales count")
				}
				productIDs = append(productIDs, *item.ProductID)
			}
			totalRegen = totalRegen.Add(decimal.NewFromFloat(order.RegenScore))

			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderPaid,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Version:       1,
				Data: payloads.OrderPaidEvent{
					OrderID:         order.ID,
					BuyerID:         order.UserID,
					VendorID:        order.VendorID,
					PaymentIntentID: intent.ID,
					TotalCents:      order.TotalCents,
					PaidAt:          now,
				},
			}); err != nil {
				return err
			}
		}

		if len(productIDs) > 0 {
			if err := s.cart.WithTx(tx).ClearProducts(ctx, buyerID, productIDs); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
			}
		}

		regenTotal, _ := totalRegen.Round(2).Float64()
		points := loyalty.PointsFromScore(regenTotal)
		if regenTotal > 0 {
			if err := s.loyalty.WithTx(tx).AddPoints(ctx, buyerID, points, regenTotal); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "award loyalty points")
			}
		}
		if points > 0 {
			profile, err := s.loyalty.WithTx(tx).FindByUser(ctx, buyerID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load loyalty balance")
			}
			var balance int64
			if profile != nil {
				balance = profile.Points
			}
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventLoyaltyPointsAwarded,
				AggregateType: enums.AggregateLoyalty,
				AggregateID:   buyerID,
				Version:       1,
				Data: payloads.LoyaltyPointsAwardedEvent{
					UserID:     buyerID,
					Points:     points,
					NewBalance: balance,
					Source:     "payment",
				},
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// reconcilePaymentFailed cancels every order on the payment intent and puts
// the stock back.
func (s *Service) reconcilePaymentFailed(ctx context.Context, intent *stripe.PaymentIntent, reason string) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		orderRepo := s.orders.WithTx(tx)
		productRepo := s.products.WithTx(tx)

		rows, err := orderRepo.FindByPaymentIntent(ctx, intent.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load orders for payment intent")
		}
		if len(rows) == 0 {
			s.logg.Warn(s.logg.WithField(ctx, "payment_intent_id", intent.ID), "payment intent matched no orders")
			return nil
		}

		now := s.now().UTC()
		buyerID := rows[0].UserID
		var cancelled []uuid.UUID

		for i := range rows {
			order := &rows[i]
			if order.Status.IsTerminal() {
				continue
			}
			updates := map[string]any{
				"status":         enums.OrderStatusCancelled,
				"payment_status": enums.PaymentStatusFailed,
				"cancelled_at":   now,
			}
			if err := orderRepo.UpdateStatus(ctx, order.ID, updates); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
			}
			for _, item := range order.Items {
				if item.ProductID == nil || item.Qty <= 0 {
					continue
				}
				if err := productRepo.RestoreStock(ctx, *item.ProductID, item.Qty); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore stock")
				}
			}
			if err := s.vendors.AdjustOrderCount(ctx, tx, order.VendorID, -1); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "adjust vendor order count")
			}
			cancelled = append(cancelled, order.ID)
		}

		if len(cancelled) == 0 {
			return nil
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentFailed,
			AggregateType: enums.AggregateCheckout,
			AggregateID:   uuid.New(),
			Version:       1,
			Data: payloads.PaymentFailedEvent{
				PaymentIntentID: intent.ID,
				BuyerID:         buyerID,
				OrderIDs:        cancelled,
				Reason:          reason,
			},
		})
	})
}

// reconcileDispute fetches the disputed payment intent and alerts its vendors.
func (s *Service) reconcileDispute(ctx context.Context, dispute *stripe.Dispute) error {
	if dispute.PaymentIntent == nil || dispute.PaymentIntent.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "dispute has no payment intent")
	}
	intent, err := s.stripe.Retrieve(ctx, dispute.PaymentIntent.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch payment intent")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.orders.WithTx(tx).FindByPaymentIntent(ctx, intent.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load orders for payment intent")
		}
		if len(rows) == 0 {
			s.logg.Warn(s.logg.WithField(ctx, "payment_intent_id", intent.ID), "dispute matched no orders")
			return nil
		}

		orderIDs := make([]uuid.UUID, 0, len(rows))
		vendorIDs := make([]uuid.UUID, 0, len(rows))
		for _, order := range rows {
			orderIDs = append(orderIDs, order.ID)
			vendorIDs = append(vendorIDs, order.VendorID)
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentDisputed,
			AggregateType: enums.AggregateCheckout,
			AggregateID:   uuid.New(),
			Version:       1,
			Data: payloads.PaymentDisputedEvent{
				PaymentIntentID: intent.ID,
				OrderIDs:        orderIDs,
				VendorIDs:       vendorIDs,
				DisputeID:       dispute.ID,
				AmountCents:     dispute.Amount,
			},
		})
	})
}

func (s *Service) observe(eventType, outcome string, started time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.IncEvent(eventType, outcome)
	s.metrics.ObserveDuration(eventType, s.now().Sub(started))
}

func decodePaymentIntent(event *stripe.Event) (*stripe.PaymentIntent, error) {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode payment intent event")
	}
	if intent.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id missing")
	}
	return &intent, nil
}

func failureReason(event *stripe.Event, intent *stripe.PaymentIntent) string {
	if intent.LastPaymentError != nil && intent.LastPaymentError.Msg != "" {
		return intent.LastPaymentError.Msg
	}
	if event.Type == stripe.EventTypePaymentIntentCanceled {
		return "payment canceled"
	}
	return "payment failed"
}
