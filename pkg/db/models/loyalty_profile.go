package models

import (
	"time"

	"github.com/google/uuid"
)

// LoyaltyProfile accumulates a buyer's loyalty points, one row per user.
type LoyaltyProfile struct {
	UserID          uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	Points          int64     `gorm:"column:points;not null;default:0"`
	RegenScoreTotal float64   `gorm:"column:regen_score_total;type:numeric(12,2);not null;default:0"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
