package flags

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/joaquinvalderas/regenmarket-backend/internal/products"
	"github.com/joaquinvalderas/regenmarket-backend/internal/reviews"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/db"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/db/models"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/enums"
	pkgerrors "github.com/joaquinvalderas/regenmarket-backend/pkg/errors"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/outbox"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/outbox/payloads"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service defines the moderation flag operations.
type Service interface {
	Create(ctx context.Context, reporterID uuid.UUID, req CreateRequest) (*FlagDTO, error)
	List(ctx context.Context, filters ListFilters) (*ListPage, error)
	Resolve(ctx context.Context, adminID, flagID uuid.UUID, req ResolveRequest) (*FlagDTO, error)
	Dismiss(ctx context.Context, adminID, flagID uuid.UUID, note string) (*FlagDTO, error)
}

type service struct {
	repo     *Repository
	products *products.Repository
	reviews  *reviews.Repository
	tx       txRunner
	outbox   outboxPublisher
	now      func() time.Time
}

// ServiceParams carries the dependencies for the flags service.
type ServiceParams struct {
	Repo     *Repository
	Products *products.Repository
	Reviews  *reviews.Repository
	Tx       txRunner
	Outbox   outboxPublisher
	Now      func() time.Time
}

// NewService builds the moderation flags service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("flags repository required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("products repository required")
	}
	if params.Reviews == nil {
		return nil, fmt.Errorf("reviews repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &service{
		repo:     params.Repo,
		products: params.Products,
		reviews:  params.Reviews,
		tx:       params.Tx,
		outbox:   params.Outbox,
		now:      params.Now,
	}, nil
}

// Create records a report against a product or review. One open flag per
// reporter and target.
func (s *service) Create(ctx context.Context, reporterID uuid.UUID, req CreateRequest) (*FlagDTO, error) {
	if !req.TargetType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid flag target type")
	}

	vendorID, err := s.resolveTargetVendor(ctx, req.TargetType, req.TargetID)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindOpen(ctx, reporterID, req.TargetType, req.TargetID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check open flags")
	}
	if existing != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "target already flagged by this user")
	}

	var created *models.ModerationFlag
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		flag := &models.ModerationFlag{
			ReporterID: reporterID,
			TargetType: req.TargetType,
			TargetID:   req.TargetID,
			Reason:     req.Reason,
			Status:     enums.FlagStatusOpen,
		}
		flag, err := s.repo.WithTx(tx).Create(ctx, flag)
		if err != nil {
			if db.IsUniqueViolation(err, "ux_flags_open_reporter_target") {
				return pkgerrors.New(pkgerrors.CodeConflict, "target already flagged by this user")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create flag")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventListingFlagged,
			AggregateType: enums.AggregateFlag,
			AggregateID:   flag.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: reporterID},
			Data: payloads.ListingFlaggedEvent{
				FlagID:     flag.ID,
				TargetType: flag.TargetType,
				TargetID:   flag.TargetID,
				VendorID:   vendorID,
				Reason:     flag.Reason,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return err
		}
		created = flag
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := FromModel(created)
	return &dto, nil
}

func (s *service) List(ctx context.Context, filters ListFilters) (*ListPage, error) {
	filters.Pagination.Limit = pagination.NormalizeLimit(filters.Pagination.Limit)
	rows, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list flags")
	}

	page := &ListPage{}
	hasMore := len(rows) > filters.Pagination.Limit
	if hasMore {
		rows = rows[:filters.Pagination.Limit]
	}
	for i := range rows {
		page.Flags = append(page.Flags, FromModel(&rows[i]))
	}
	if hasMore {
		last := rows[len(rows)-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return page, nil
}

// Resolve closes an open flag, optionally pulling the flagged product from
// the catalog.
func (s *service) Resolve(ctx context.Context, adminID, flagID uuid.UUID, req ResolveRequest) (*FlagDTO, error) {
	return s.decide(ctx, adminID, flagID, enums.FlagStatusResolved, req.Note, req.RemoveListing)
}

// Dismiss closes an open flag without action.
func (s *service) Dismiss(ctx context.Context, adminID, flagID uuid.UUID, note string) (*FlagDTO, error) {
	return s.decide(ctx, adminID, flagID, enums.FlagStatusDismissed, note, false)
}

func (s *service) decide(ctx context.Context, adminID, flagID uuid.UUID, status enums.FlagStatus, note string, removeListing bool) (*FlagDTO, error) {
	var updated *models.ModerationFlag
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		flag, err := repo.FindByID(ctx, flagID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "flag not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load flag")
		}
		if flag.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "flag already decided")
		}

		now := s.now().UTC()
		updates := map[string]any{
			"status":      status,
			"resolved_by": adminID,
			"resolved_at": now,
			"updated_at":  now,
		}
		if note != "" {
			updates["resolution_note"] = note
		}
		if err := repo.Update(ctx, flag.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update flag")
		}
		flag.Status = status
		flag.ResolvedBy = &adminID
		flag.ResolvedAt = &now
		if note != "" {
			flag.ResolutionNote = &note
		}

		if removeListing && status == enums.FlagStatusResolved && flag.TargetType == enums.FlagTargetProduct {
			if err := s.removeListing(ctx, tx, adminID, flag, note); err != nil {
				return err
			}
		}
		updated = flag
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := FromModel(updated)
	return &dto, nil
}

func (s *service) removeListing(ctx context.Context, tx *gorm.DB, adminID uuid.UUID, flag *models.ModerationFlag, note string) error {
	productRepo := s.products.WithTx(tx)
	product, err := productRepo.FindByID(ctx, flag.TargetID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "flagged product not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load flagged product")
	}
	if err := productRepo.SetStatus(ctx, product.ID, enums.ProductStatusRemoved); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove listing")
	}

	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventListingRemoved,
		AggregateType: enums.AggregateFlag,
		AggregateID:   flag.ID,
		Version:       1,
		Actor:         &outbox.ActorRef{UserID: adminID, Role: enums.UserRoleAdmin.String()},
		Data: payloads.ListingRemovedEvent{
			FlagID:    flag.ID,
			ProductID: product.ID,
			VendorID:  product.VendorID,
			Note:      note,
		},
	})
}

// resolveTargetVendor validates the flagged target exists and returns the
// vendor accountable for it.
func (s *service) resolveTargetVendor(ctx context.Context, targetType enums.FlagTargetType, targetID uuid.UUID) (uuid.UUID, error) {
	switch targetType {
	case enums.FlagTargetProduct:
		product, err := s.products.FindByID(ctx, targetID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return uuid.Nil, pkgerrors.New(pkgerrors.CodeNotFound, "flagged product not found")
			}
			return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load flagged product")
		}
		return product.VendorID, nil
	case enums.FlagTargetReview:
		review, err := s.reviews.FindByID(ctx, targetID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return uuid.Nil, pkgerrors.New(pkgerrors.CodeNotFound, "flagged review not found")
			}
			return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load flagged review")
		}
		product, err := s.products.FindByID(ctx, review.ProductID)
		if err != nil {
			return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reviewed product")
		}
		return product.VendorID, nil
	case enums.FlagTargetVendor:
		return targetID, nil
	default:
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid flag target type")
	}
}
