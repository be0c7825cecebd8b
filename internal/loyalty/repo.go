package loyalty

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/joaquinvalderas/regenmarket-backend/pkg/db/models"
)

// Repository persists loyalty balances, one row per user.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a loyalty repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx rebinds the repository to the supplied transaction handle.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindByUser loads the balance row, or nil when the user has none yet.
func (r *Repository) FindByUser(ctx context.Context, userID uuid.UUID) (*models.LoyaltyProfile, error) {
	var profile models.LoyaltyProfile
	err := r.db.WithContext(ctx).First(&profile, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

// AddPoints upserts the user's balance, accumulating points and regen score.
func (r *Repository) AddPoints(ctx context.Context, userID uuid.UUID, points int64, regenScore float64) error {
	profile := models.LoyaltyProfile{
		UserID:          userID,
		Points:          points,
		RegenScoreTotal: regenScore,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"points":            gorm.Expr("loyalty_profiles.points + ?", points),
			"regen_score_total": gorm.Expr("loyalty_profiles.regen_score_total + ?", regenScore),
			"updated_at":        gorm.Expr("CURRENT_TIMESTAMP"),
		}),
	}).Create(&profile).Error
}
