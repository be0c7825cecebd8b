package reviews

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/joaquinvalderas/regenmarket-backend/internal/products"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/db/models"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/enums"
	pkgerrors "github.com/joaquinvalderas/regenmarket-backend/pkg/errors"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/outbox"
)

func setupReviewsTestDB(t *testing.T) *gorm.DB {
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
		`CREATE TABLE IF NOT EXISTS reviews (
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  rating INTEGER NOT NULL,
  title TEXT NOT NULL,
  body TEXT NOT NULL,
  vendor_reply TEXT,
  vendor_replied_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (product_id, user_id)
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

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type stubPurchases struct {
	delivered bool
	err       error
}

func (s stubPurchases) HasDeliveredItem(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
	return s.delivered, s.err
}

func newReviewsService(t *testing.T, db *gorm.DB, purchases PurchaseChecker) Service {
	t.Helper()

	svc, err := NewService(ServiceParams{
		Repo:      NewRepository(db),
		Products:  products.NewRepository(db),
		Purchases: purchases,
		Tx:        gormTxRunner{db: db},
		Outbox:    outbox.NewService(outbox.NewRepository(db), nil),
	})
	require.NoError(t, err)
	return svc
}

func seedReviewProduct(t *testing.T, db *gorm.DB, vendorID uuid.UUID) *models.Product {
	t.Helper()

	product := &models.Product{
		ID:         uuid.New(),
		VendorID:   vendorID,
		Name:       "Reviewed Item",
		Category:   enums.ProductCategorySkincare,
		PriceCents: 800,
		Stock:      10,
		InStock:    true,
		Status:     enums.ProductStatusActive,
	}
	require.NoError(t, db.Create(product).Error)
	return product
}

func TestReviewCreateUpdatesRatingAggregate(t *testing.T) {
	db := setupReviewsTestDB(t)
	svc := newReviewsService(t, db, stubPurchases{delivered: true})
	product := seedReviewProduct(t, db, uuid.New())

	review, err := svc.Create(context.Background(), uuid.New(), CreateRequest{
		ProductID: product.ID,
		Rating:    4,
		Title:     "Solid",
		Body:      "Does what it says.",
	})
	require.NoError(t, err)
	assert.Equal(t, 4, review.Rating)

	_, err = svc.Create(context.Background(), uuid.New(), CreateRequest{
		ProductID: product.ID,
		Rating:    2,
		Title:     "Mixed",
		Body:      "Packaging arrived damaged.",
	})
	require.NoError(t, err)

	var reloaded models.Product
	require.NoError(t, db.First(&reloaded, "id = ?", product.ID).Error)
	assert.Equal(t, int64(2), reloaded.RatingCount)
	assert.InDelta(t, 3.0, reloaded.RatingAvg, 0.001)
}

func TestReviewCreateRequiresDeliveredPurchase(t *testing.T) {
	db := setupReviewsTestDB(t)
	svc := newReviewsService(t, db, stubPurchases{delivered: false})
	product := seedReviewProduct(t, db, uuid.New())

	_, err := svc.Create(context.Background(), uuid.New(), CreateRequest{
		ProductID: product.ID,
		Rating:    5,
		Title:     "Great",
		Body:      "Love it.",
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeForbidden, typed.Code())
}

func TestReviewCreateRejectsOutOfRangeRating(t *testing.T) {
	db := setupReviewsTestDB(t)
	svc := newReviewsService(t, db, stubPurchases{delivered: true})

	for _, rating := range []int{0, 6} {
		_, err := svc.Create(context.Background(), uuid.New(), CreateRequest{
			ProductID: uuid.New(),
			Rating:    rating,
			Title:     "Bad rating",
			Body:      "n/a",
		})
		require.Error(t, err)
		typed := pkgerrors.As(err)
		require.NotNil(t, typed)
		assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	}
}

func TestReviewCreateRejectsSecondReview(t *testing.T) {
	db := setupReviewsTestDB(t)
	svc := newReviewsService(t, db, stubPurchases{delivered: true})
	product := seedReviewProduct(t, db, uuid.New())
	userID := uuid.New()

	_, err := svc.Create(context.Background(), userID, CreateRequest{
		ProductID: product.ID,
		Rating:    5,
		Title:     "First",
		Body:      "One review per buyer.",
	})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), userID, CreateRequest{
		ProductID: product.ID,
		Rating:    1,
		Title:     "Second",
		Body:      "Should be rejected.",
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&models.Review{}).
		Where("product_id = ? AND user_id = ?", product.ID, userID).
		Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestReviewReplyIsVendorScopedAndOneShot(t *testing.T) {
	db := setupReviewsTestDB(t)
	svc := newReviewsService(t, db, stubPurchases{delivered: true})
	vendorID := uuid.New()
	product := seedReviewProduct(t, db, vendorID)

	review, err := svc.Create(context.Background(), uuid.New(), CreateRequest{
		ProductID: product.ID,
		Rating:    3,
		Title:     "Okay",
		Body:      "Average experience.",
	})
	require.NoError(t, err)

	_, err = svc.Reply(context.Background(), uuid.New(), review.ID, "Thanks!")
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeForbidden, typed.Code())

	replied, err := svc.Reply(context.Background(), vendorID, review.ID, "Thanks for the feedback.")
	require.NoError(t, err)
	require.NotNil(t, replied.VendorReply)
	assert.Equal(t, "Thanks for the feedback.", *replied.VendorReply)

	_, err = svc.Reply(context.Background(), vendorID, review.ID, "Another reply")
	require.Error(t, err)
	typed = pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeConflict, typed.Code())

	var replyEvents int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).
		Where("event_type = ? AND aggregate_id = ?", enums.EventReviewReplied, review.ID).
		Count(&replyEvents).Error)
	assert.Equal(t, int64(1), replyEvents)
}

func TestReviewDeleteRecomputesAggregate(t *testing.T) {
	db := setupReviewsTestDB(t)
	svc := newReviewsService(t, db, stubPurchases{delivered: true})
	product := seedReviewProduct(t, db, uuid.New())
	authorID := uuid.New()

	review, err := svc.Create(context.Background(), authorID, CreateRequest{
		ProductID: product.ID,
		Rating:    5,
		Title:     "Gone soon",
		Body:      "To be deleted.",
	})
	require.NoError(t, err)

	// A stranger cannot delete it.
	err = svc.Delete(context.Background(), uuid.New(), enums.UserRoleCustomer, review.ID)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeForbidden, typed.Code())

	// The author can.
	require.NoError(t, svc.Delete(context.Background(), authorID, enums.UserRoleCustomer, review.ID))

	var reloaded models.Product
	require.NoError(t, db.First(&reloaded, "id = ?", product.ID).Error)
	assert.Equal(t, int64(0), reloaded.RatingCount)
	assert.InDelta(t, 0.0, reloaded.RatingAvg, 0.001)

	err = svc.Delete(context.Background(), authorID, enums.UserRoleCustomer, review.ID)
	require.Error(t, err)
	typed = pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestReviewDeleteAllowsAdmin(t *testing.T) {
	db := setupReviewsTestDB(t)
	svc := newReviewsService(t, db, stubPurchases{delivered: true})
	product := seedReviewProduct(t, db, uuid.New())

	review, err := svc.Create(context.Background(), uuid.New(), CreateRequest{
		ProductID: product.ID,
		Rating:    1,
		Title:     "Spam",
		Body:      "Removed by moderation.",
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), uuid.New(), enums.UserRoleAdmin, review.ID))
}
