package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/joaquinvalderas/regenmarket-backend/pkg/db/models"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/enums"
	pkgerrors "github.com/joaquinvalderas/regenmarket-backend/pkg/errors"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/outbox"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/outbox/payloads"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// StockRestorer returns reserved stock when a pending order is cancelled.
type StockRestorer interface {
	Restore(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
}

// VendorCounter adjusts the vendor's running order count.
type VendorCounter interface {
	AdjustOrderCount(ctx context.Context, tx *gorm.DB, vendorID uuid.UUID, delta int) error
}

// Service defines order reads and lifecycle transitions.
type Service interface {
	ListForUser(ctx context.Context, userID uuid.UUID, filters ListFilters) (*ListPage, error)
	ListForVendor(ctx context.Context, vendorID uuid.UUID, filters ListFilters) (*ListPage, error)
	Get(ctx context.Context, actorID uuid.UUID, role enums.UserRole, orderID uuid.UUID) (*OrderDTO, error)
	Cancel(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error)
	Ship(ctx context.Context, vendorID, orderID uuid.UUID, trackingNumber string) (*OrderDTO, error)
	MarkDelivered(ctx context.Context, vendorID, orderID uuid.UUID) (*OrderDTO, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	stock   StockRestorer
	vendors VendorCounter
	now     func() time.Time
}

// ServiceParams carries the dependencies for the orders service.
type ServiceParams struct {
	Repo    Repository
	Tx      txRunner
	Outbox  outboxPublisher
	Stock   StockRestorer
	Vendors VendorCounter
	Now     func() time.Time
}

// NewService builds an orders service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock restorer required")
	}
	if params.Vendors == nil {
		return nil, fmt.Errorf("vendor counter required")
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &service{
		repo:    params.Repo,
		tx:      params.Tx,
		outbox:  params.Outbox,
		stock:   params.Stock,
		vendors: params.Vendors,
		now:     params.Now,
	}, nil
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID, filters ListFilters) (*ListPage, error) {
	filters.Pagination.Limit = pagination.NormalizeLimit(filters.Pagination.Limit)
	rows, err := s.repo.ListByUser(ctx, userID, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return buildPage(rows, filters.Pagination.Limit), nil
}

func (s *service) ListForVendor(ctx context.Context, vendorID uuid.UUID, filters ListFilters) (*ListPage, error) {
	filters.Pagination.Limit = pagination.NormalizeLimit(filters.Pagination.Limit)
	rows, err := s.repo.ListByVendor(ctx, vendorID, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list vendor orders")
	}
	return buildPage(rows, filters.Pagination.Limit), nil
}

func (s *service) Get(ctx context.Context, actorID uuid.UUID, role enums.UserRole, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.findOrder(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	switch {
	case role == enums.UserRoleAdmin:
	case order.UserID == actorID:
	case role == enums.UserRoleVendor && order.VendorID == actorID:
	default:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another user")
	}
	dto := FromModel(order)
	return &dto, nil
}

// Cancel aborts an unpaid order and puts its stock back. Orders that already
// entered fulfillment cannot be cancelled by the buyer.
func (s *service) Cancel(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error) {
	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.findOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if order.UserID != userID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another user")
		}
		if order.Status != enums.OrderStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only pending orders can be cancelled")
		}

		now := s.now().UTC()
		for _, item := range order.Items {
			if item.ProductID == nil || item.Qty <= 0 {
				continue
			}
			if err := s.stock.Restore(ctx, tx, *item.ProductID, item.Qty); err != nil {
				return err
			}
		}
		if err := s.vendors.AdjustOrderCount(ctx, tx, order.VendorID, -1); err != nil {
			return err
		}

		updates := map[string]any{
			"status":       enums.OrderStatusCancelled,
			"cancelled_at": now,
		}
		if err := repo.UpdateStatus(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}
		order.Status = enums.OrderStatusCancelled
		order.CancelledAt = &now

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: userID, Role: enums.UserRoleCustomer.String()},
			Data: payloads.OrderCancelledEvent{
				OrderID:         order.ID,
				BuyerID:         order.UserID,
				VendorID:        order.VendorID,
				PaymentIntentID: order.PaymentIntentID,
				Reason:          "cancelled by buyer",
				CancelledAt:     now,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return err
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := FromModel(result)
	return &dto, nil
}

// Ship moves a paid order into transit. Tracking is mandatory.
func (s *service) Ship(ctx context.Context, vendorID, orderID uuid.UUID, trackingNumber string) (*OrderDTO, error) {
	if trackingNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tracking number required")
	}

	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.findOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if order.VendorID != vendorID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another vendor")
		}
		if order.Status != enums.OrderStatusProcessing {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only processing orders can be shipped")
		}

		now := s.now().UTC()
		updates := map[string]any{
			"status":          enums.OrderStatusShipped,
			"tracking_number": trackingNumber,
			"shipped_at":      now,
		}
		if err := repo.UpdateStatus(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ship order")
		}
		order.Status = enums.OrderStatusShipped
		order.TrackingNumber = &trackingNumber
		order.ShippedAt = &now

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderShipped,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: vendorID, Role: enums.UserRoleVendor.String()},
			Data: payloads.OrderShippedEvent{
				OrderID:        order.ID,
				BuyerID:        order.UserID,
				VendorID:       order.VendorID,
				TrackingNumber: trackingNumber,
				ShippedAt:      now,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return err
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := FromModel(result)
	return &dto, nil
}

// MarkDelivered closes out a shipped order.
func (s *service) MarkDelivered(ctx context.Context, vendorID, orderID uuid.UUID) (*OrderDTO, error) {
	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.findOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if order.VendorID != vendorID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another vendor")
		}
		if order.Status != enums.OrderStatusShipped {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only shipped orders can be delivered")
		}

		now := s.now().UTC()
		updates := map[string]any{
			"status":       enums.OrderStatusDelivered,
			"delivered_at": now,
		}
		if err := repo.UpdateStatus(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order delivered")
		}
		order.Status = enums.OrderStatusDelivered
		order.DeliveredAt = &now

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderDelivered,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: vendorID, Role: enums.UserRoleVendor.String()},
			Data: payloads.OrderDeliveredEvent{
				OrderID:     order.ID,
				BuyerID:     order.UserID,
				VendorID:    order.VendorID,
				DeliveredAt: now,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return err
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := FromModel(result)
	return &dto, nil
}

func (s *service) findOrder(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func buildPage(rows []models.Order, limit int) *ListPage {
	page := &ListPage{}
	hasMore := len(rows) > limit
	if hasMore {
		rows = rows[:limit]
	}
	for i := range rows {
		page.Orders = append(page.Orders, FromModel(&rows[i]))
	}
	if hasMore {
		last := rows[len(rows)-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return page
}
