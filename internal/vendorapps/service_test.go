package vendorapps

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/joaquinvalderas/regenmarket-backend/internal/users"
	"github.com/joaquinvalderas/regenmarket-backend/internal/vendors"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/db/models"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/enums"
	pkgerrors "github.com/joaquinvalderas/regenmarket-backend/pkg/errors"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/outbox"
)

func setupVendorAppsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  name TEXT NOT NULL,
  role TEXT NOT NULL DEFAULT 'customer',
  is_active INTEGER NOT NULL DEFAULT 1,
  last_login_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS vendor_applications (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  business_name TEXT NOT NULL,
  description TEXT NOT NULL,
  website TEXT,
  status TEXT NOT NULL DEFAULT 'pending',
  rejection_reason TEXT,
  decided_by TEXT,
  decided_at DATETIME,
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

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func newVendorAppsService(t *testing.T, db *gorm.DB) Service {
	t.Helper()

	svc, err := NewService(ServiceParams{
		Repo:    NewRepository(db),
		Users:   users.NewRepository(db),
		Vendors: vendors.NewRepository(db),
		Tx:      gormTxRunner{db: db},
		Outbox:  outbox.NewService(outbox.NewRepository(db), nil),
	})
	require.NoError(t, err)
	return svc
}

func seedUser(t *testing.T, db *gorm.DB, role enums.UserRole) *models.User {
	t.Helper()

	user := &models.User{
		ID:           uuid.New(),
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "hash",
		Name:         "Applicant",
		Role:         role,
		IsActive:     true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func submitRequest() SubmitRequest {
	return SubmitRequest{
		BusinessName: "Verdant Goods",
		Description:  "Small-batch regenerative pantry staples.",
	}
}

func TestVendorAppSubmitOnePendingPerUser(t *testing.T) {
	db := setupVendorAppsTestDB(t)
	svc := newVendorAppsService(t, db)
	user := seedUser(t, db, enums.UserRoleCustomer)

	app, err := svc.Submit(context.Background(), user.ID, submitRequest())
	require.NoError(t, err)
	assert.Equal(t, enums.ApplicationStatusPending, app.Status)

	_, err = svc.Submit(context.Background(), user.ID, submitRequest())
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeConflict, typed.Code())
}

func TestVendorAppSubmitRejectsExistingVendors(t *testing.T) {
	db := setupVendorAppsTestDB(t)
	svc := newVendorAppsService(t, db)
	user := seedUser(t, db, enums.UserRoleVendor)

	_, err := svc.Submit(context.Background(), user.ID, submitRequest())
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeConflict, typed.Code())
}

func TestVendorAppApprovePromotesApplicant(t *testing.T) {
	db := setupVendorAppsTestDB(t)
	svc := newVendorAppsService(t, db)
	user := seedUser(t, db, enums.UserRoleCustomer)
	adminID := uuid.New()

	app, err := svc.Submit(context.Background(), user.ID, submitRequest())
	require.NoError(t, err)

	decided, err := svc.Approve(context.Background(), adminID, app.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ApplicationStatusApproved, decided.Status)
	require.NotNil(t, decided.DecidedAt)

	var reloadedUser models.User
	require.NoError(t, db.First(&reloadedUser, "id = ?", user.ID).Error)
	assert.Equal(t, enums.UserRoleVendor, reloadedUser.Role)

	var profile models.VendorProfile
	require.NoError(t, db.First(&profile, "user_id = ?", user.ID).Error)
	assert.Equal(t, "Verdant Goods", profile.DisplayName)

	var decisionEvents int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).
		Where("event_type = ? AND aggregate_id = ?", enums.EventApplicationDecided, app.ID).
		Count(&decisionEvents).Error)
	assert.Equal(t, int64(1), decisionEvents)
}

func TestVendorAppApproveRejectsDecidedApplications(t *testing.T) {
	db := setupVendorAppsTestDB(t)
	svc := newVendorAppsService(t, db)
	user := seedUser(t, db, enums.UserRoleCustomer)
	adminID := uuid.New()

	app, err := svc.Submit(context.Background(), user.ID, submitRequest())
	require.NoError(t, err)
	_, err = svc.Approve(context.Background(), adminID, app.ID)
	require.NoError(t, err)

	_, err = svc.Approve(context.Background(), adminID, app.ID)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestVendorAppRejectRequiresReason(t *testing.T) {
	db := setupVendorAppsTestDB(t)
	svc := newVendorAppsService(t, db)

	_, err := svc.Reject(context.Background(), uuid.New(), uuid.New(), "")
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestVendorAppRejectKeepsCustomerRole(t *testing.T) {
	db := setupVendorAppsTestDB(t)
	svc := newVendorAppsService(t, db)
	user := seedUser(t, db, enums.UserRoleCustomer)
	adminID := uuid.New()

	app, err := svc.Submit(context.Background(), user.ID, submitRequest())
	require.NoError(t, err)

	decided, err := svc.Reject(context.Background(), adminID, app.ID, "incomplete catalog details")
	require.NoError(t, err)
	assert.Equal(t, enums.ApplicationStatusRejected, decided.Status)
	require.NotNil(t, decided.RejectionReason)
	assert.Equal(t, "incomplete catalog details", *decided.RejectionReason)

	var reloadedUser models.User
	require.NoError(t, db.First(&reloadedUser, "id = ?", user.ID).Error)
	assert.Equal(t, enums.UserRoleCustomer, reloadedUser.Role)

	// A rejected applicant can file again.
	_, err = svc.Submit(context.Background(), user.ID, submitRequest())
	require.NoError(t, err)
}

func TestVendorAppOwnReturnsLatest(t *testing.T) {
	db := setupVendorAppsTestDB(t)
	svc := newVendorAppsService(t, db)
	user := seedUser(t, db, enums.UserRoleCustomer)

	_, err := svc.Own(context.Background(), user.ID)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())

	app, err := svc.Submit(context.Background(), user.ID, submitRequest())
	require.NoError(t, err)

	own, err := svc.Own(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, app.ID, own.ID)
}
