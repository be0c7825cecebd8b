package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/joaquinvalderas/regenmarket-backend/pkg/enums"
)

// ModerationFlag records a user report against a catalog target.
type ModerationFlag struct {
	ID             uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ReporterID     uuid.UUID            `gorm:"column:reporter_id;type:uuid;not null"`
	TargetType     enums.FlagTargetType `gorm:"column:target_type;type:flag_target_type;not null"`
	TargetID       uuid.UUID            `gorm:"column:target_id;type:uuid;not null"`
	Reason         string               `gorm:"column:reason;not null"`
	Status         enums.FlagStatus     `gorm:"column:status;type:flag_status;not null;default:'open'"`
	ResolvedBy     *uuid.UUID           `gorm:"column:resolved_by;type:uuid"`
	ResolutionNote *string              `gorm:"column:resolution_note"`
	ResolvedAt     *time.Time           `gorm:"column:resolved_at"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
