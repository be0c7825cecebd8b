package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/joaquinvalderas/regenmarket-backend/pkg/db/models"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/enums"
	pkgerrors "github.com/joaquinvalderas/regenmarket-backend/pkg/errors"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/outbox"
)

type stubOrdersRepo struct {
	order    *models.Order
	findErr  error
	updates  map[string]any
	listRows []models.Order
	listErr  error
}

func (s *stubOrdersRepo) WithTx(*gorm.DB) Repository { return s }

func (s *stubOrdersRepo) Create(_ context.Context, order *models.Order) (*models.Order, error) {
	return order, nil
}

func (s *stubOrdersRepo) CreateItems(context.Context, []models.OrderItem) error { return nil }

func (s *stubOrdersRepo) FindByID(context.Context, uuid.UUID) (*models.Order, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.order, nil
}

func (s *stubOrdersRepo) FindByPaymentIntent(context.Context, string) ([]models.Order, error) {
	return nil, nil
}

func (s *stubOrdersRepo) ListByUser(context.Context, uuid.UUID, ListFilters) ([]models.Order, error) {
	return s.listRows, s.listErr
}

func (s *stubOrdersRepo) ListByVendor(context.Context, uuid.UUID, ListFilters) ([]models.Order, error) {
	return s.listRows, s.listErr
}

func (s *stubOrdersRepo) UpdateStatus(_ context.Context, _ uuid.UUID, updates map[string]any) error {
	s.updates = updates
	return nil
}

func (s *stubOrdersRepo) HasDeliveredItem(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
	return false, nil
}

type stubTx struct{}

func (stubTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type stubOutbox struct {
	events []outbox.DomainEvent
}

func (s *stubOutbox) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

type stubRestorer struct {
	restored map[uuid.UUID]int
}

func (s *stubRestorer) Restore(_ context.Context, _ *gorm.DB, productID uuid.UUID, qty int) error {
	if s.restored == nil {
		s.restored = map[uuid.UUID]int{}
	}
	s.restored[productID] += qty
	return nil
}

type stubCounter struct {
	deltas []int
}

func (s *stubCounter) AdjustOrderCount(_ context.Context, _ *gorm.DB, _ uuid.UUID, delta int) error {
	s.deltas = append(s.deltas, delta)
	return nil
}

func newTestService(t *testing.T, repo Repository, ob *stubOutbox, restorer *stubRestorer, counter *stubCounter) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:    repo,
		Tx:      stubTx{},
		Outbox:  ob,
		Stock:   restorer,
		Vendors: counter,
		Now:     func() time.Time { return time.Date(2026, 2, 14, 10, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func pendingOrder(userID, vendorID uuid.UUID) *models.Order {
	productID := uuid.New()
	return &models.Order{
		ID:            uuid.New(),
		UserID:        userID,
		VendorID:      vendorID,
		Status:        enums.OrderStatusPending,
		PaymentStatus: enums.PaymentStatusPending,
		Items: []models.OrderItem{{
			ID:        uuid.New(),
			ProductID: &productID,
			Qty:       3,
		}},
	}
}

func TestServiceCancelRestoresStock(t *testing.T) {
	userID := uuid.New()
	order := pendingOrder(userID, uuid.New())
	repo := &stubOrdersRepo{order: order}
	ob := &stubOutbox{}
	restorer := &stubRestorer{}
	counter := &stubCounter{}
	svc := newTestService(t, repo, ob, restorer, counter)

	dto, err := svc.Cancel(context.Background(), userID, order.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if dto.Status != enums.OrderStatusCancelled {
		t.Fatalf("expected cancelled status, got %s", dto.Status)
	}
	if dto.CancelledAt == nil {
		t.Fatal("expected cancelled_at to be set")
	}
	if got := restorer.restored[*order.Items[0].ProductID]; got != 3 {
		t.Fatalf("expected 3 units restored, got %d", got)
	}
	if len(counter.deltas) != 1 || counter.deltas[0] != -1 {
		t.Fatalf("expected vendor counter decrement, got %v", counter.deltas)
	}
	if len(ob.events) != 1 || ob.events[0].EventType != enums.EventOrderCancelled {
		t.Fatalf("expected order.cancelled event, got %v", ob.events)
	}
}

func TestServiceCancelRejectsOtherBuyers(t *testing.T) {
	order := pendingOrder(uuid.New(), uuid.New())
	repo := &stubOrdersRepo{order: order}
	svc := newTestService(t, repo, &stubOutbox{}, &stubRestorer{}, &stubCounter{})

	_, err := svc.Cancel(context.Background(), uuid.New(), order.ID)
	if err == nil {
		t.Fatal("expected error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden code, got %v", err)
	}
}

func TestServiceCancelRejectsNonPendingOrders(t *testing.T) {
	userID := uuid.New()
	order := pendingOrder(userID, uuid.New())
	order.Status = enums.OrderStatusShipped
	repo := &stubOrdersRepo{order: order}
	svc := newTestService(t, repo, &stubOutbox{}, &stubRestorer{}, &stubCounter{})

	_, err := svc.Cancel(context.Background(), userID, order.ID)
	if err == nil {
		t.Fatal("expected error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict code, got %v", err)
	}
}

func TestServiceCancelNotFound(t *testing.T) {
	repo := &stubOrdersRepo{findErr: gorm.ErrRecordNotFound}
	svc := newTestService(t, repo, &stubOutbox{}, &stubRestorer{}, &stubCounter{})

	_, err := svc.Cancel(context.Background(), uuid.New(), uuid.New())
	if err == nil {
		t.Fatal("expected error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found code, got %v", err)
	}
}

func TestServiceShipRequiresTracking(t *testing.T) {
	svc := newTestService(t, &stubOrdersRepo{}, &stubOutbox{}, &stubRestorer{}, &stubCounter{})

	_, err := svc.Ship(context.Background(), uuid.New(), uuid.New(), "")
	if err == nil {
		t.Fatal("expected error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation code, got %v", err)
	}
}

func TestServiceShipMovesProcessingOrder(t *testing.T) {
	vendorID := uuid.New()
	order := pendingOrder(uuid.New(), vendorID)
	order.Status = enums.OrderStatusProcessing
	repo := &stubOrdersRepo{order: order}
	ob := &stubOutbox{}
	svc := newTestService(t, repo, ob, &stubRestorer{}, &stubCounter{})

	dto, err := svc.Ship(context.Background(), vendorID, order.ID, "TRACK-42")
	if err != nil {
		t.Fatalf("ship: %v", err)
	}
	if dto.Status != enums.OrderStatusShipped {
		t.Fatalf("expected shipped status, got %s", dto.Status)
	}
	if dto.TrackingNumber == nil || *dto.TrackingNumber != "TRACK-42" {
		t.Fatalf("expected tracking number, got %v", dto.TrackingNumber)
	}
	if repo.updates["tracking_number"] != "TRACK-42" {
		t.Fatalf("expected tracking persisted, got %v", repo.updates)
	}
	if len(ob.events) != 1 || ob.events[0].EventType != enums.EventOrderShipped {
		t.Fatalf("expected order.shipped event, got %v", ob.events)
	}
}

func TestServiceShipRejectsOtherVendors(t *testing.T) {
	order := pendingOrder(uuid.New(), uuid.New())
	order.Status = enums.OrderStatusProcessing
	repo := &stubOrdersRepo{order: order}
	svc := newTestService(t, repo, &stubOutbox{}, &stubRestorer{}, &stubCounter{})

	_, err := svc.Ship(context.Background(), uuid.New(), order.ID, "TRACK-42")
	if err == nil {
		t.Fatal("expected error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden code, got %v", err)
	}
}

func TestServiceShipRejectsPendingOrders(t *testing.T) {
	vendorID := uuid.New()
	order := pendingOrder(uuid.New(), vendorID)
	repo := &stubOrdersRepo{order: order}
	svc := newTestService(t, repo, &stubOutbox{}, &stubRestorer{}, &stubCounter{})

	_, err := svc.Ship(context.Background(), vendorID, order.ID, "TRACK-42")
	if err == nil {
		t.Fatal("expected error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict code, got %v", err)
	}
}

func TestServiceMarkDeliveredClosesShippedOrder(t *testing.T) {
	vendorID := uuid.New()
	order := pendingOrder(uuid.New(), vendorID)
	order.Status = enums.OrderStatusShipped
	repo := &stubOrdersRepo{order: order}
	ob := &stubOutbox{}
	svc := newTestService(t, repo, ob, &stubRestorer{}, &stubCounter{})

	dto, err := svc.MarkDelivered(context.Background(), vendorID, order.ID)
	if err != nil {
		t.Fatalf("mark delivered: %v", err)
	}
	if dto.Status != enums.OrderStatusDelivered {
		t.Fatalf("expected delivered status, got %s", dto.Status)
	}
	if dto.DeliveredAt == nil {
		t.Fatal("expected delivered_at to be set")
	}
	if len(ob.events) != 1 || ob.events[0].EventType != enums.EventOrderDelivered {
		t.Fatalf("expected order.delivered event, got %v", ob.events)
	}
}

func TestServiceMarkDeliveredRejectsUnshippedOrders(t *testing.T) {
	vendorID := uuid.New()
	order := pendingOrder(uuid.New(), vendorID)
	order.Status = enums.OrderStatusProcessing
	repo := &stubOrdersRepo{order: order}
	svc := newTestService(t, repo, &stubOutbox{}, &stubRestorer{}, &stubCounter{})

	_, err := svc.MarkDelivered(context.Background(), vendorID, order.ID)
	if err == nil {
		t.Fatal("expected error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict code, got %v", err)
	}
}

func TestServiceGetEnforcesOwnership(t *testing.T) {
	buyerID := uuid.New()
	vendorID := uuid.New()
	order := pendingOrder(buyerID, vendorID)
	repo := &stubOrdersRepo{order: order}
	svc := newTestService(t, repo, &stubOutbox{}, &stubRestorer{}, &stubCounter{})

	if _, err := svc.Get(context.Background(), buyerID, enums.UserRoleCustomer, order.ID); err != nil {
		t.Fatalf("buyer access: %v", err)
	}
	if _, err := svc.Get(context.Background(), vendorID, enums.UserRoleVendor, order.ID); err != nil {
		t.Fatalf("vendor access: %v", err)
	}
	if _, err := svc.Get(context.Background(), uuid.New(), enums.UserRoleAdmin, order.ID); err != nil {
		t.Fatalf("admin access: %v", err)
	}

	_, err := svc.Get(context.Background(), uuid.New(), enums.UserRoleCustomer, order.ID)
	if err == nil {
		t.Fatal("expected error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden code, got %v", err)
	}
}

func TestServiceListForUserPaginates(t *testing.T) {
	rows := make([]models.Order, 3)
	for i := range rows {
		rows[i] = models.Order{ID: uuid.New(), UserID: uuid.New(), VendorID: uuid.New()}
	}
	repo := &stubOrdersRepo{listRows: rows}
	svc := newTestService(t, repo, &stubOutbox{}, &stubRestorer{}, &stubCounter{})

	page, err := svc.ListForUser(context.Background(), uuid.New(), ListFilters{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Orders) != 3 {
		t.Fatalf("expected 3 orders, got %d", len(page.Orders))
	}
	if page.NextCursor != "" {
		t.Fatalf("expected no cursor, got %q", page.NextCursor)
	}
}
