package stripewebhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/joaquinvalderas/regenmarket-backend/internal/cart"
	"github.com/joaquinvalderas/regenmarket-backend/internal/loyalty"
	"github.com/joaquinvalderas/regenmarket-backend/internal/orders"
	"github.com/joaquinvalderas/regenmarket-backend/internal/products"
	"github.com/joaquinvalderas/regenmarket-backend/internal/vendors"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/db/models"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/enums"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/logger"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/outbox"
)

func setupWebhookTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	statements := []string{
		`CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  vendor_id TEXT NOT NULL,
  name TEXT NOT NULL,
  description TEXT,
  category TEXT NOT NULL,
  tags TEXT NOT NULL DEFAULT '{}',
  price_cents INTEGER NOT NULL,
  stock INTEGER NOT NULL DEFAULT 0,
  in_stock INTEGER NOT NULL DEFAULT 0,
  sales_count INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL DEFAULT 'draft',
  co2_reduction REAL NOT NULL DEFAULT 0,
  water_saving REAL NOT NULL DEFAULT 0,
  energy_efficiency REAL NOT NULL DEFAULT 0,
  regen_score REAL NOT NULL DEFAULT 0,
  rating_avg REAL NOT NULL DEFAULT 0,
  rating_count INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  vendor_id TEXT NOT NULL,
  payment_intent_id TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'pending',
  payment_status TEXT NOT NULL DEFAULT 'pending',
  payment_method TEXT NOT NULL DEFAULT 'card',
  subtotal_cents INTEGER NOT NULL,
  tax_cents INTEGER NOT NULL DEFAULT 0,
  shipping_cents INTEGER NOT NULL DEFAULT 0,
  total_cents INTEGER NOT NULL,
  regen_score REAL NOT NULL DEFAULT 0,
  shipping_address TEXT,
  tracking_number TEXT,
  shipped_at DATETIME,
  delivered_at DATETIME,
  cancelled_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT,
  name TEXT NOT NULL,
  category TEXT NOT NULL,
  unit_price_cents INTEGER NOT NULL,
  qty INTEGER NOT NULL,
  total_cents INTEGER NOT NULL,
  regen_score REAL NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS cart_items (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (user_id, product_id)
);`,
		`CREATE TABLE IF NOT EXISTS loyalty_profiles (
  user_id TEXT PRIMARY KEY,
  points INTEGER NOT NULL DEFAULT 0,
  regen_score_total REAL NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS vendor_profiles (
  user_id TEXT PRIMARY KEY,
  display_name TEXT NOT NULL,
  description TEXT,
  website TEXT,
  total_orders INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`,
	}
	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

// memoryStore is an in-process stand-in for the Redis idempotency store.
type memoryStore struct {
	mu   sync.Mutex
	keys map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{keys: map[string]string{}}
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keys[key], nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.keys[key]; exists {
		return false, nil
	}
	m.keys[key] = fmt.Sprint(value)
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("rm:idempotency:%s:%s", scope, id)
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.keys, key)
	}
	return nil
}

func (m *memoryStore) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.keys[key]
	return ok
}

type stubIntentClient struct {
	intents map[string]*stripe.PaymentIntent
}

func (c *stubIntentClient) Retrieve(_ context.Context, id string) (*stripe.PaymentIntent, error) {
	intent, ok := c.intents[id]
	if !ok {
		return nil, fmt.Errorf("no such payment intent %s", id)
	}
	return intent, nil
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type webhookFixture struct {
	db      *gorm.DB
	svc     *Service
	store   *memoryStore
	intents *stubIntentClient
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()

	db := setupWebhookTestDB(t)
	store := newMemoryStore()
	guard, err := NewIdempotencyGuard(store, time.Hour, "stripe")
	require.NoError(t, err)

	intents := &stubIntentClient{intents: map[string]*stripe.PaymentIntent{}}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	svc, err := NewService(ServiceParams{
		Orders:   orders.NewRepository(db),
		Products: products.NewRepository(db),
		Cart:     cart.NewRepository(db),
		Loyalty:  loyalty.NewRepository(db),
		Vendors:  vendors.NewCounter(),
		Stripe:   intents,
		Tx:       gormTxRunner{db: db},
		Outbox:   outbox.NewService(outbox.NewRepository(db), logg),
		Guard:    guard,
		Logger:   logg,
	})
	require.NoError(t, err)
	return &webhookFixture{db: db, svc: svc, store: store, intents: intents}
}

func (f *webhookFixture) seedOrder(t *testing.T, intentID string, buyerID, vendorID uuid.UUID, status enums.OrderStatus, paymentStatus enums.PaymentStatus, regen float64) (*models.Order, *models.Product) {
	t.Helper()

	require.NoError(t, f.db.Create(&models.VendorProfile{
		UserID:      vendorID,
		DisplayName: "Vendor",
		TotalOrders: 1,
	}).Error)

	product := &models.Product{
		ID:         uuid.New(),
		VendorID:   vendorID,
		Name:       "Seeded Item",
		Category:   enums.ProductCategoryPantry,
		PriceCents: 1000,
		Stock:      5,
		InStock:    true,
		Status:     enums.ProductStatusActive,
	}
	require.NoError(t, f.db.Create(product).Error)

	order := &models.Order{
		ID:              uuid.New(),
		UserID:          buyerID,
		VendorID:        vendorID,
		PaymentIntentID: intentID,
		Status:          status,
		PaymentStatus:   paymentStatus,
		PaymentMethod:   enums.PaymentMethodCard,
		SubtotalCents:   2000,
		TaxCents:        200,
		ShippingCents:   1000,
		TotalCents:      3200,
		RegenScore:      regen,
	}
	require.NoError(t, f.db.Create(order).Error)

	productID := product.ID
	item := &models.OrderItem{
		ID:             uuid.New(),
		OrderID:        order.ID,
		ProductID:      &productID,
		Name:           product.Name,
		Category:       product.Category.String(),
		UnitPriceCents: 1000,
		Qty:            2,
		TotalCents:     2000,
		RegenScore:     regen,
	}
	require.NoError(t, f.db.Create(item).Error)
	order.Items = []models.OrderItem{*item}
	return order, product
}

func intentEvent(t *testing.T, id string, eventType stripe.EventType, intentID string) *stripe.Event {
	t.Helper()

	raw, err := json.Marshal(map[string]any{"id": intentID})
	require.NoError(t, err)
	return &stripe.Event{
		ID:   id,
		Type: eventType,
		Data: &stripe.EventData{Raw: raw},
	}
}

func TestProcessPaymentSucceededReconcilesOrders(t *testing.T) {
	f := newWebhookFixture(t)
	buyerID := uuid.New()
	order, product := f.seedOrder(t, "pi_succeed", buyerID, uuid.New(),
		enums.OrderStatusPending, enums.PaymentStatusPending, 100)

	require.NoError(t, f.db.Create(&models.CartItem{
		ID:        uuid.New(),
		UserID:    buyerID,
		ProductID: product.ID,
		Quantity:  2,
	}).Error)

	err := f.svc.Process(context.Background(),
		intentEvent(t, "evt_succeed_1", stripe.EventTypePaymentIntentSucceeded, "pi_succeed"))
	require.NoError(t, err)

	var reloaded models.Order
	require.NoError(t, f.db.First(&reloaded, "id = ?", order.ID).Error)
	assert.Equal(t, enums.OrderStatusProcessing, reloaded.Status)
	assert.Equal(t, enums.PaymentStatusPaid, reloaded.PaymentStatus)

	var reloadedProduct models.Product
	require.NoError(t, f.db.First(&reloadedProduct, "id = ?", product.ID).Error)
	assert.Equal(t, int64(2), reloadedProduct.SalesCount)

	var cartCount int64
	require.NoError(t, f.db.Model(&models.CartItem{}).
		Where("user_id = ?", buyerID).Count(&cartCount).Error)
	assert.Equal(t, int64(0), cartCount)

	var profile models.LoyaltyProfile
	require.NoError(t, f.db.First(&profile, "user_id = ?", buyerID).Error)
	assert.Equal(t, int64(10), profile.Points)

	var paidEvents int64
	require.NoError(t, f.db.Model(&models.OutboxEvent{}).
		Where("event_type = ? AND aggregate_id = ?", enums.EventOrderPaid, order.ID).
		Count(&paidEvents).Error)
	assert.Equal(t, int64(1), paidEvents)
}

func TestProcessDuplicateEventIsAckedWithoutSideEffects(t *testing.T) {
	f := newWebhookFixture(t)
	buyerID := uuid.New()
	order, _ := f.seedOrder(t, "pi_duplicate", buyerID, uuid.New(),
		enums.OrderStatusPending, enums.PaymentStatusPending, 0)

	event := intentEvent(t, "evt_duplicate_1", stripe.EventTypePaymentIntentSucceeded, "pi_duplicate")
	require.NoError(t, f.svc.Process(context.Background(), event))
	require.NoError(t, f.svc.Process(context.Background(), event))

	var paidEvents int64
	require.NoError(t, f.db.Model(&models.OutboxEvent{}).
		Where("event_type = ? AND aggregate_id = ?", enums.EventOrderPaid, order.ID).
		Count(&paidEvents).Error)
	assert.Equal(t, int64(1), paidEvents)
}

func TestProcessAlreadyPaidOrderIsSkipped(t *testing.T) {
	f := newWebhookFixture(t)
	buyerID := uuid.New()
	order, product := f.seedOrder(t, "pi_already_paid", buyerID, uuid.New(),
		enums.OrderStatusProcessing, enums.PaymentStatusPaid, 50)

	err := f.svc.Process(context.Background(),
		intentEvent(t, "evt_already_paid_1", stripe.EventTypePaymentIntentSucceeded, "pi_already_paid"))
	require.NoError(t, err)

	var reloadedProduct models.Product
	require.NoError(t, f.db.First(&reloadedProduct, "id = ?", product.ID).Error)
	assert.Equal(t, int64(0), reloadedProduct.SalesCount)

	var paidEvents int64
	require.NoError(t, f.db.Model(&models.OutboxEvent{}).
		Where("event_type = ? AND aggregate_id = ?", enums.EventOrderPaid, order.ID).
		Count(&paidEvents).Error)
	assert.Equal(t, int64(0), paidEvents)
}

func TestProcessPaymentFailedCancelsAndRestocks(t *testing.T) {
	f := newWebhookFixture(t)
	buyerID := uuid.New()
	vendorID := uuid.New()
	order, product := f.seedOrder(t, "pi_failed", buyerID, vendorID,
		enums.OrderStatusPending, enums.PaymentStatusPending, 0)

	err := f.svc.Process(context.Background(),
		intentEvent(t, "evt_failed_1", stripe.EventTypePaymentIntentPaymentFailed, "pi_failed"))
	require.NoError(t, err)

	var reloaded models.Order
	require.NoError(t, f.db.First(&reloaded, "id = ?", order.ID).Error)
	assert.Equal(t, enums.OrderStatusCancelled, reloaded.Status)
	assert.Equal(t, enums.PaymentStatusFailed, reloaded.PaymentStatus)
	assert.NotNil(t, reloaded.CancelledAt)

	// Two units go back on the shelf.
	var reloadedProduct models.Product
	require.NoError(t, f.db.First(&reloadedProduct, "id = ?", product.ID).Error)
	assert.Equal(t, 7, reloadedProduct.Stock)

	var profile models.VendorProfile
	require.NoError(t, f.db.First(&profile, "user_id = ?", vendorID).Error)
	assert.Equal(t, int64(0), profile.TotalOrders)

	var failedEvents int64
	require.NoError(t, f.db.Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventPaymentFailed).
		Count(&failedEvents).Error)
	assert.GreaterOrEqual(t, failedEvents, int64(1))
}

func TestProcessPaymentFailedSkipsTerminalOrders(t *testing.T) {
	f := newWebhookFixture(t)
	buyerID := uuid.New()
	order, product := f.seedOrder(t, "pi_terminal", buyerID, uuid.New(),
		enums.OrderStatusDelivered, enums.PaymentStatusPaid, 0)

	err := f.svc.Process(context.Background(),
		intentEvent(t, "evt_terminal_1", stripe.EventTypePaymentIntentPaymentFailed, "pi_terminal"))
	require.NoError(t, err)

	var reloaded models.Order
	require.NoError(t, f.db.First(&reloaded, "id = ?", order.ID).Error)
	assert.Equal(t, enums.OrderStatusDelivered, reloaded.Status)

	var reloadedProduct models.Product
	require.NoError(t, f.db.First(&reloadedProduct, "id = ?", product.ID).Error)
	assert.Equal(t, 5, reloadedProduct.Stock)
}

func TestProcessDisputeEmitsVendorAlert(t *testing.T) {
	f := newWebhookFixture(t)
	buyerID := uuid.New()
	f.seedOrder(t, "pi_disputed", buyerID, uuid.New(),
		enums.OrderStatusProcessing, enums.PaymentStatusPaid, 0)
	f.intents.intents["pi_disputed"] = &stripe.PaymentIntent{ID: "pi_disputed"}

	raw, err := json.Marshal(map[string]any{
		"id":             "dp_1",
		"amount":         3200,
		"payment_intent": map[string]any{"id": "pi_disputed"},
	})
	require.NoError(t, err)

	err = f.svc.Process(context.Background(), &stripe.Event{
		ID:   "evt_dispute_1",
		Type: stripe.EventTypeChargeDisputeCreated,
		Data: &stripe.EventData{Raw: raw},
	})
	require.NoError(t, err)

	var disputeEvents int64
	require.NoError(t, f.db.Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventPaymentDisputed).
		Count(&disputeEvents).Error)
	assert.GreaterOrEqual(t, disputeEvents, int64(1))
}

func TestProcessFailureReleasesIdempotencyKey(t *testing.T) {
	f := newWebhookFixture(t)

	// Payment intent payload with no id fails decoding after the fence is
	// claimed, so the claim must be released for the provider retry.
	event := &stripe.Event{
		ID:   "evt_release_1",
		Type: stripe.EventTypePaymentIntentSucceeded,
		Data: &stripe.EventData{Raw: json.RawMessage(`{"id":""}`)},
	}
	err := f.svc.Process(context.Background(), event)
	require.Error(t, err)

	key := f.store.IdempotencyKey("stripe", "evt_release_1")
	assert.False(t, f.store.has(key))

	// The retry claims the fence again instead of being treated as a replay.
	require.Error(t, f.svc.Process(context.Background(), event))
	assert.False(t, f.store.has(key))
}

func TestProcessUnhandledEventTypeIsAcked(t *testing.T) {
	f := newWebhookFixture(t)

	err := f.svc.Process(context.Background(), &stripe.Event{
		ID:   "evt_unhandled_1",
		Type: stripe.EventType("customer.created"),
		Data: &stripe.EventData{Raw: json.RawMessage(`{}`)},
	})
	require.NoError(t, err)
}

func TestNewServiceRequiresVendorsCounter(t *testing.T) {
	db := setupWebhookTestDB(t)
	store := newMemoryStore()
	guard, err := NewIdempotencyGuard(store, time.Hour, "stripe")
	require.NoError(t, err)

	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	_, err = NewService(ServiceParams{
		Orders:   orders.NewRepository(db),
		Products: products.NewRepository(db),
		Cart:     cart.NewRepository(db),
		Loyalty:  loyalty.NewRepository(db),
		Stripe:   &stubIntentClient{intents: map[string]*stripe.PaymentIntent{}},
		Tx:       gormTxRunner{db: db},
		Outbox:   outbox.NewService(outbox.NewRepository(db), logg),
		Guard:    guard,
		Logger:   logg,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vendors counter required")
}
