package loyalty

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joaquinvalderas/regenmarket-backend/pkg/db/models"
	pkgerrors "github.com/joaquinvalderas/regenmarket-backend/pkg/errors"
)

// BalanceDTO is the transport shape of a user's loyalty balance.
type BalanceDTO struct {
	UserID          uuid.UUID `json:"user_id"`
	Points          int64     `json:"points"`
	RegenScoreTotal float64   `json:"regen_score_total"`
}

// PointsFromScore converts an accumulated regen score into loyalty points:
// floor(score / 10), never negative.
func PointsFromScore(regenScore float64) int64 {
	if regenScore <= 0 {
		return 0
	}
	points := decimal.NewFromFloat(regenScore).
		Div(decimal.NewFromInt(10)).
		Floor().
		IntPart()
	return points
}

type repository interface {
	FindByUser(ctx context.Context, userID uuid.UUID) (*models.LoyaltyProfile, error)
}

// Service reads loyalty balances for the API surface.
type Service struct {
	repo repository
}

// NewService builds the loyalty read service.
func NewService(repo repository) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("loyalty repository required")
	}
	return &Service{repo: repo}, nil
}

// Balance returns the user's loyalty balance, zero-valued when absent.
func (s *Service) Balance(ctx context.Context, userID uuid.UUID) (*BalanceDTO, error) {
	profile, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load loyalty balance")
	}
	if profile == nil {
		return &BalanceDTO{UserID: userID}, nil
	}
	return &BalanceDTO{
		UserID:          profile.UserID,
		Points:          profile.Points,
		RegenScoreTotal: profile.RegenScoreTotal,
	}, nil
}
