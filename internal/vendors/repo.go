package vendors

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/joaquinvalderas/regenmarket-backend/pkg/db/models"
)

// Repository persists vendor profiles.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a vendor profile repository bound to the provided DB.
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

// Create inserts a vendor profile. The user id is the primary key.
func (r *Repository) Create(ctx context.Context, profile *models.VendorProfile) (*models.VendorProfile, error) {
	if err := r.db.WithContext(ctx).Create(profile).Error; err != nil {
		return nil, err
	}
	return profile, nil
}

// FindByUser returns the vendor profile or nil when none exists.
func (r *Repository) FindByUser(ctx context.Context, userID uuid.UUID) (*models.VendorProfile, error) {
	var profile models.VendorProfile
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

// Update applies partial updates to a vendor profile.
func (r *Repository) Update(ctx context.Context, userID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.VendorProfile{}).
		Where("user_id = ?", userID).
		Updates(updates).Error
}

// Counter adjusts a vendor's running order total inside a transaction.
type Counter struct{}

// NewCounter exposes the default vendor counter implementation.
func NewCounter() Counter {
	return Counter{}
}

// AdjustOrderCount moves total_orders by delta, clamping at zero.
func (Counter) AdjustOrderCount(ctx context.Context, tx *gorm.DB, vendorID uuid.UUID, delta int) error {
	if delta == 0 {
		return nil
	}
	if tx == nil {
		return errors.New("transaction required for vendor counter")
	}
	return tx.WithContext(ctx).Exec(`
		UPDATE vendor_profiles
		SET total_orders = CASE WHEN total_orders + ? < 0 THEN 0 ELSE total_orders + ? END,
			updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ?
	`, delta, delta, vendorID).Error
}
