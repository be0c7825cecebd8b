package cart

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
)

func setupCartTestDB(t *testing.T) *gorm.DB {
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
		`CREATE TABLE IF NOT EXISTS cart_items (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (user_id, product_id)
);`,
	}
	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func seedCartProduct(t *testing.T, db *gorm.DB, name string, priceCents, stock int) *models.Product {
	t.Helper()

	product := &models.Product{
		ID:         uuid.New(),
		VendorID:   uuid.New(),
		Name:       name,
		Category:   enums.ProductCategoryPantry,
		PriceCents: priceCents,
		Stock:      stock,
		InStock:    stock > 0,
		Status:     enums.ProductStatusActive,
	}
	require.NoError(t, db.Create(product).Error)
	return product
}

func newCartService(t *testing.T, db *gorm.DB) Service {
	t.Helper()

	svc, err := NewService(NewRepository(db), products.NewRepository(db))
	require.NoError(t, err)
	return svc
}

func TestPutAddsAndReplacesLines(t *testing.T) {
	db := setupCartTestDB(t)
	svc := newCartService(t, db)
	ctx := context.Background()

	userID := uuid.New()
	seeds := seedCartProduct(t, db, "Heirloom Seeds", 450, 20)
	soap := seedCartProduct(t, db, "Olive Oil Soap", 700, 8)

	cart, err := svc.Put(ctx, userID, PutRequest{ProductID: seeds.ID, Quantity: 2})
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 900, cart.SubtotalCents)

	cart, err = svc.Put(ctx, userID, PutRequest{ProductID: soap.ID, Quantity: 1})
	require.NoError(t, err)
	require.Len(t, cart.Items, 2)
	assert.Equal(t, 1600, cart.SubtotalCents)

	// Putting the same product again replaces the quantity, it does not add.
	cart, err = svc.Put(ctx, userID, PutRequest{ProductID: seeds.ID, Quantity: 5})
	require.NoError(t, err)
	require.Len(t, cart.Items, 2)
	assert.Equal(t, 450*5+700, cart.SubtotalCents)
	for _, line := range cart.Items {
		if line.ProductID == seeds.ID {
			assert.Equal(t, 5, line.Quantity)
		}
	}
}

func TestPutValidatesAvailability(t *testing.T) {
	db := setupCartTestDB(t)
	svc := newCartService(t, db)
	ctx := context.Background()

	userID := uuid.New()
	active := seedCartProduct(t, db, "Beeswax Wraps", 1200, 3)

	draft := seedCartProduct(t, db, "Unlisted Batch", 500, 10)
	require.NoError(t, db.Model(&models.Product{}).Where("id = ?", draft.ID).Update("status", enums.ProductStatusDraft).Error)

	cases := []struct {
		name string
		req  PutRequest
		code pkgerrors.Code
	}{
		{"unknown product", PutRequest{ProductID: uuid.New(), Quantity: 1}, pkgerrors.CodeNotFound},
		{"draft product", PutRequest{ProductID: draft.ID, Quantity: 1}, pkgerrors.CodeValidation},
		{"quantity above stock", PutRequest{ProductID: active.ID, Quantity: 4}, pkgerrors.CodeValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Put(ctx, userID, tc.req)
			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			assert.Equal(t, tc.code, typed.Code())
		})
	}

	cart, err := svc.Fetch(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
}

func TestRemoveDropsSingleLine(t *testing.T) {
	db := setupCartTestDB(t)
	svc := newCartService(t, db)
	ctx := context.Background()

	userID := uuid.New()
	first := seedCartProduct(t, db, "Compost Starter", 1500, 10)
	second := seedCartProduct(t, db, "Linen Towels", 2200, 10)

	_, err := svc.Put(ctx, userID, PutRequest{ProductID: first.ID, Quantity: 1})
	require.NoError(t, err)
	_, err = svc.Put(ctx, userID, PutRequest{ProductID: second.ID, Quantity: 1})
	require.NoError(t, err)

	cart, err := svc.Remove(ctx, userID, first.ID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, second.ID, cart.Items[0].ProductID)
	assert.Equal(t, 2200, cart.SubtotalCents)

	// Removing an absent line is a no-op.
	cart, err = svc.Remove(ctx, userID, first.ID)
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)
}

func TestFetchSkipsDeletedProducts(t *testing.T) {
	db := setupCartTestDB(t)
	svc := newCartService(t, db)
	ctx := context.Background()

	userID := uuid.New()
	kept := seedCartProduct(t, db, "Herbal Tea", 800, 10)
	doomed := seedCartProduct(t, db, "Discontinued Jar", 300, 10)

	_, err := svc.Put(ctx, userID, PutRequest{ProductID: kept.ID, Quantity: 2})
	require.NoError(t, err)
	_, err = svc.Put(ctx, userID, PutRequest{ProductID: doomed.ID, Quantity: 1})
	require.NoError(t, err)

	require.NoError(t, db.Where("id = ?", doomed.ID).Delete(&models.Product{}).Error)

	cart, err := svc.Fetch(ctx, userID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, kept.ID, cart.Items[0].ProductID)
	assert.Equal(t, 1600, cart.SubtotalCents)
}

func TestCartOperationsRequireUser(t *testing.T) {
	db := setupCartTestDB(t)
	svc := newCartService(t, db)
	ctx := context.Background()

	_, err := svc.Fetch(ctx, uuid.Nil)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())

	_, err = svc.Put(ctx, uuid.Nil, PutRequest{ProductID: uuid.New(), Quantity: 1})
	typed = pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}
