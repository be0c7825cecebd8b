package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/joaquinvalderas/regenmarket-backend/internal/cart"
	"github.com/joaquinvalderas/regenmarket-backend/internal/loyalty"
	"github.com/joaquinvalderas/regenmarket-backend/internal/orders"
	"github.com/joaquinvalderas/regenmarket-backend/internal/products"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/config"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/db/models"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/enums"
	pkgerrors "github.com/joaquinvalderas/regenmarket-backend/pkg/errors"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/logger"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/outbox"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service converts a multi-vendor cart into per-vendor orders.
type Service interface {
	Checkout(ctx context.Context, input Input) (*Result, error)
}

type service struct {
	tx       txRunner
	orders   orders.Repository
	products *products.Repository
	cart     *cart.Repository
	loyalty  *loyalty.Repository
	vendors  orders.VendorCounter
	outbox   outboxPublisher
	logg     *logger.Logger
	now      func() time.Time
	shipping int
	taxBps   int
}

// ServiceParams carries the dependencies for the checkout service.
type ServiceParams struct {
	Tx       txRunner
	Orders   orders.Repository
	Products *products.Repository
	Cart     *cart.Repository
	Loyalty  *loyalty.Repository
	Vendors  orders.VendorCounter
	Outbox   outboxPublisher
	Logger   *logger.Logger
	Pricing  config.CheckoutConfig
	Now      func() time.Time
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("products repository required")
	}
	if params.Cart == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Loyalty == nil {
		return nil, fmt.Errorf("loyalty repository required")
	}
	if params.Vendors == nil {
		return nil, fmt.Errorf("vendors counter required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	shipping := params.Pricing.ShippingFlatCents
	if shipping <= 0 {
		shipping = DefaultShippingFlatCents
	}
	taxBps := params.Pricing.TaxRateBasisPts
	if taxBps <= 0 {
		taxBps = DefaultTaxRateBasisPts
	}
	return &service{
		tx:       params.Tx,
		orders:   params.Orders,
		products: params.Products,
		cart:     params.Cart,
		loyalty:  params.Loyalty,
		vendors:  params.Vendors,
		outbox:   params.Outbox,
		logg:     params.Logger,
		now:      params.Now,
		shipping: shipping,
		taxBps:   taxBps,
	}, nil
}

// vendorGroup keeps the checkout lines destined for one vendor, in the order
// the buyer submitted them.
type vendorGroup struct {
	vendorID uuid.UUID
	lines    []line
}

type line struct {
	product *models.Product
	qty     int
}

// Checkout runs the full multi-vendor split inside a single transaction:
// validation, order creation, stock decrement, vendor counters, and the
// loyalty upsert either all land or none do.
func (s *service) Checkout(ctx context.Context, input Input) (*Result, error) {
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	req := input.Request
	if !req.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	if req.PaymentMethod.RequiresCapture() && req.PaymentIntentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id required for card payments")
	}

	quantities, productIDs, err := mergeItems(req.Items)
	if err != nil {
		return nil, err
	}

	var result *Result
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		productRepo := s.products.WithTx(tx)
		orderRepo := s.orders.WithTx(tx)

		rows, err := productRepo.FindByIDs(ctx, productIDs)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load checkout products")
		}
		byID := make(map[uuid.UUID]*models.Product, len(rows))
		for i := range rows {
			byID[rows[i].ID] = &rows[i]
		}

		groups, err := buildVendorGroups(productIDs, quantities, byID)
		if err != nil {
			return err
		}

		checkoutID := uuid.New()
		now := s.now().UTC()
		initialStatus := enums.OrderStatusPending
		if !req.PaymentMethod.RequiresCapture() {
			// Cash on delivery settles at the door; the order goes straight
			// into fulfillment with payment still pending.
			initialStatus = enums.OrderStatusProcessing
		}

		var (
			created    []models.Order
			orderIDs   []uuid.UUID
			vendorIDs  []uuid.UUID
			grandTotal int
			totalRegen = decimal.Zero
		)

		for _, group := range groups {
			order, regen, err := s.createVendorOrder(ctx, tx, orderRepo, productRepo, input.BuyerID, group, req, initialStatus)
			if err != nil {
				return err
			}
			created = append(created, *order)
			orderIDs = append(orderIDs, order.ID)
			vendorIDs = append(vendorIDs, order.VendorID)
			grandTotal += order.TotalCents
			totalRegen = totalRegen.Add(regen)
		}

		regenTotal, _ := totalRegen.Round(2).Float64()
		points := loyalty.PointsFromScore(regenTotal)
		if regenTotal > 0 {
			if err := s.loyalty.WithTx(tx).AddPoints(ctx, input.BuyerID, points, regenTotal); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "award loyalty points")
			}
		}

		if !req.PaymentMethod.RequiresCapture() {
			if err := s.cart.WithTx(tx).ClearProducts(ctx, input.BuyerID, productIDs); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
			}
		}

		actor := &outbox.ActorRef{UserID: input.BuyerID, Role: enums.UserRoleCustomer.String()}
		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateCheckout,
			AggregateID:   checkoutID,
			Version:       1,
			Actor:         actor,
			OccurredAt:    now,
			Data: payloads.OrderCreatedEvent{
				PaymentIntentID: req.PaymentIntentID,
				BuyerID:         input.BuyerID,
				OrderIDs:        orderIDs,
				VendorIDs:       vendorIDs,
				TotalCents:      grandTotal,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return err
		}

		if points > 0 {
			if err := s.emitLoyaltyAward(ctx, tx, actor, input.BuyerID, points, regenTotal); err != nil {
				return err
			}
		}

		result = &Result{
			CheckoutID:           checkoutID,
			TotalCents:           grandTotal,
			RegenScore:           regenTotal,
			LoyaltyPointsAwarded: points,
		}
		for i := range created {
			result.Orders = append(result.Orders, orders.FromModel(&created[i]))
		}

		logCtx := s.logg.WithFields(ctx, map[string]any{
			"checkout_id": checkoutID.String(),
			"buyer_id":    input.BuyerID.String(),
			"orders":      len(created),
			"total_cents": grandTotal,
		})
		s.logg.Info(logCtx, "checkout split complete")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// createVendorOrder builds and persists one vendor's order with its line
// items, decrements stock, and bumps the vendor counter. Returns the order
// plus the regen score it contributes to the checkout.
func (s *service) createVendorOrder(
	ctx context.Context,
	tx *gorm.DB,
	orderRepo orders.Repository,
	productRepo *products.Repository,
	buyerID uuid.UUID,
	group vendorGroup,
	req Request,
	initialStatus enums.OrderStatus,
) (*models.Order, decimal.Decimal, error) {
	subtotal := 0
	orderRegen := decimal.Zero
	items := make([]models.OrderItem, 0, len(group.lines))

	for _, ln := range group.lines {
		lineTotal := ln.product.PriceCents * ln.qty
		subtotal += lineTotal
		orderRegen = AccumulateRegenScore(orderRegen, ln.product.RegenScore, ln.qty)

		productID := ln.product.ID
		items = append(items, models.OrderItem{
			ProductID:      &productID,
			Name:           ln.product.Name,
			Category:       ln.product.Category.String(),
			UnitPriceCents: ln.product.PriceCents,
			Qty:            ln.qty,
			TotalCents:     lineTotal,
			RegenScore:     ln.product.RegenScore,
		})
	}

	tax := ComputeTax(subtotal, s.taxBps)
	regenScore, _ := orderRegen.Round(2).Float64()

	order := &models.Order{
		UserID:          buyerID,
		VendorID:        group.vendorID,
		PaymentIntentID: req.PaymentIntentID,
		Status:          initialStatus,
		PaymentStatus:   enums.PaymentStatusPending,
		PaymentMethod:   req.PaymentMethod,
		SubtotalCents:   subtotal,
		TaxCents:        tax,
		ShippingCents:   s.shipping,
		TotalCents:      subtotal + tax + s.shipping,
		RegenScore:      regenScore,
		ShippingAddress: req.ShippingAddress,
	}
	order, err := orderRepo.Create(ctx, order)
	if err != nil {
		return nil, decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}
	for i := range items {
		items[i].OrderID = order.ID
	}
	if err := orderRepo.CreateItems(ctx, items); err != nil {
		return nil, decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order items")
	}
	order.Items = items

	for _, ln := range group.lines {
		ok, err := productRepo.DecrementStock(ctx, ln.product.ID, ln.qty)
		if err != nil {
			return nil, decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement stock")
		}
		if !ok {
			// A concurrent checkout got there first; the surrounding
			// transaction rolls the whole split back.
			return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeConflict,
				fmt.Sprintf("insufficient stock for %s", ln.product.Name))
		}
		if !req.PaymentMethod.RequiresCapture() {
			if err := productRepo.BumpSalesCount(ctx, ln.product.ID, ln.qty); err != nil {
				return nil, decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "bump sales count")
			}
		}
	}

	if err := s.vendors.AdjustOrderCount(ctx, tx, group.vendorID, 1); err != nil {
		return nil, decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "bump vendor order count")
	}

	return order, orderRegen, nil
}

func (s *service) emitLoyaltyAward(ctx context.Context, tx *gorm.DB, actor *outbox.ActorRef, buyerID uuid.UUID, points int64, regenTotal float64) error {
	profile, err := s.loyalty.WithTx(tx).FindByUser(ctx, buyerID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load loyalty balance")
	}
	var balance int64
	if profile != nil {
		balance = profile.Points
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventLoyaltyPointsAwarded,
		AggregateType: enums.AggregateLoyalty,
		AggregateID:   buyerID,
		Version:       1,
		Actor:         actor,
		Data: payloads.LoyaltyPointsAwardedEvent{
			UserID:     buyerID,
			Points:     points,
			NewBalance: balance,
			Source:     "checkout",
		},
	})
}

// mergeItems collapses duplicate product lines and preserves first-seen order.
func mergeItems(items []ItemRequest) (map[uuid.UUID]int, []uuid.UUID, error) {
	if len(items) == 0 {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout requires at least one item")
	}
	quantities := make(map[uuid.UUID]int, len(items))
	var order []uuid.UUID
	for _, item := range items {
		if item.ProductID == uuid.Nil {
			return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
		}
		if item.Quantity < 1 {
			return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
		}
		if _, seen := quantities[item.ProductID]; !seen {
			order = append(order, item.ProductID)
		}
		quantities[item.ProductID] += item.Quantity
	}
	return quantities, order, nil
}

// buildVendorGroups validates every requested product and groups the lines by
// vendor, preserving the submission order of both vendors and lines.
func buildVendorGroups(productIDs []uuid.UUID, quantities map[uuid.UUID]int, byID map[uuid.UUID]*models.Product) ([]vendorGroup, error) {
	var groups []vendorGroup
	index := make(map[uuid.UUID]int)

	for _, id := range productIDs {
		product, ok := byID[id]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("product %s not found", id))
		}
		if !product.Status.Purchasable() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s is not available", product.Name))
		}
		qty := quantities[id]
		if product.Stock < qty {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("insufficient stock for %s", product.Name))
		}

		pos, seen := index[product.VendorID]
		if !seen {
			pos = len(groups)
			index[product.VendorID] = pos
			groups = append(groups, vendorGroup{vendorID: product.VendorID})
		}
		groups[pos].lines = append(groups[pos].lines, line{product: product, qty: qty})
	}
	return groups, nil
}
