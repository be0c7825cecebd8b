package flags

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/joaquinvalderas/regenmarket-backend/pkg/db/models"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/enums"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/pagination"
)

// Repository persists moderation flags.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a flags repository bound to the provided DB.
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

func (r *Repository) Create(ctx context.Context, flag *models.ModerationFlag) (*models.ModerationFlag, error) {
	if flag.ID == uuid.Nil {
		flag.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(flag).Error; err != nil {
		return nil, err
	}
	return flag, nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.ModerationFlag, error) {
	var flag models.ModerationFlag
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&flag).Error
	if err != nil {
		return nil, err
	}
	return &flag, nil
}

// FindOpen returns the reporter's existing open flag on a target, or nil.
func (r *Repository) FindOpen(ctx context.Context, reporterID uuid.UUID, targetType enums.FlagTargetType, targetID uuid.UUID) (*models.ModerationFlag, error) {
	var flag models.ModerationFlag
	err := r.db.WithContext(ctx).
		Where("reporter_id = ? AND target_type = ? AND target_id = ? AND status = ?",
			reporterID, targetType, targetID, enums.FlagStatusOpen).
		First(&flag).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &flag, nil
}

func (r *Repository) List(ctx context.Context, filters ListFilters) ([]models.ModerationFlag, error) {
	q := r.db.WithContext(ctx).Model(&models.ModerationFlag{})
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

	var rows []models.ModerationFlag
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
		Model(&models.ModerationFlag{}).
		Where("id = ?", id).
		Updates(updates).Error
}
