package vendorapps

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/joaquinvalderas/regenmarket-backend/pkg/db/models"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/enums"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/pagination"
)

// Repository persists vendor applications.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a vendor application repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx rebinds the repository to a transaction handle.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, app *models.VendorApplication) (*models.VendorApplication, error) {
	if app.ID == uuid.Nil {
		app.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(app).Error; err != nil {
		return nil, err
	}
	return app, nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.VendorApplication, error) {
	var app models.VendorApplication
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&app).Error
	if err != nil {
		return nil, err
	}
	return &app, nil
}

// FindPendingByUser returns the user's open application, or nil.
func (r *Repository) FindPendingByUser(ctx context.Context, userID uuid.UUID) (*models.VendorApplication, error) {
	var app models.VendorApplication
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, enums.ApplicationStatusPending).
		First(&app).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &app, nil
}

// FindLatestByUser returns the user's most recent application, or nil.
func (r *Repository) FindLatestByUser(ctx context.Context, userID uuid.UUID) (*models.VendorApplication, error) {
	var app models.VendorApplication
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		First(&app).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &app, nil
}

func (r *Repository) List(ctx context.Context, filters ListFilters) ([]models.VendorApplication, error) {
	q := r.db.WithContext(ctx).Model(&models.VendorApplication{})
	if filters.Status != nil {
		q = q.Where("status = ?", *filters.Status)
	}
	if filters.Pagination.Cursor != "" {
		cursor, err := pagination.ParseCursor(filters.Pagination.Cursor)
		if err != nil {
			return nil, err
		}
		q = q.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.VendorApplication
	err := q.Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(filters.Pagination.Limit)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.VendorApplication{}).
		Where("id = ?", id).
		Updates(updates).Error
}
