package reviews

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/joaquinvalderas/regenmarket-backend/internal/products"
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

// PurchaseChecker gates reviews on a delivered order item.
type PurchaseChecker interface {
	HasDeliveredItem(ctx context.Context, userID, productID uuid.UUID) (bool, error)
}

// Service defines the review operations.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID, req CreateRequest) (*ReviewDTO, error)
	Reply(ctx context.Context, vendorID, reviewID uuid.UUID, reply string) (*ReviewDTO, error)
	ListByProduct(ctx context.Context, productID uuid.UUID, filters ListFilters) (*ListPage, error)
	Delete(ctx context.Context, actorID uuid.UUID, role enums.UserRole, reviewID uuid.UUID) error
}

type service struct {
	repo      *Repository
	products  *products.Repository
	purchases PurchaseChecker
	tx        txRunner
	outbox    outboxPublisher
	now       func() time.Time
}

// ServiceParams carries the dependencies for the reviews service.
type ServiceParams struct {
	Repo      *Repository
	Products  *products.Repository
	Purchases PurchaseChecker
	Tx        txRunner
	Outbox    outboxPublisher
	Now       func() time.Time
}

// NewService builds the reviews service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("reviews repository required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("products repository required")
	}
	if params.Purchases == nil {
		return nil, fmt.Errorf("purchase checker required")
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
		repo:      params.Repo,
		products:  params.Products,
		purchases: params.Purchases,
		tx:        params.Tx,
		outbox:    params.Outbox,
		now:       params.Now,
	}, nil
}

// Create stores a review and refreshes the product's rating aggregate in the
// same transaction. Only buyers with a delivered order item may review, and
// only once per product.
func (s *service) Create(ctx context.Context, userID uuid.UUID, req CreateRequest) (*ReviewDTO, error) {
	if req.Rating < 1 || req.Rating > 5 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rating must be between 1 and 5")
	}

	purchased, err := s.purchases.HasDeliveredItem(ctx, userID, req.ProductID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check purchase history")
	}
	if !purchased {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "reviews require a delivered purchase of the product")
	}

	var created *models.Review
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		productRepo := s.products.WithTx(tx)
		if _, err := productRepo.FindByID(ctx, req.ProductID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}

		review := &models.Review{
			ProductID: req.ProductID,
			UserID:    userID,
			Rating:    req.Rating,
			Title:     req.Title,
			Body:      req.Body,
		}
		review, err := s.repo.WithTx(tx).Create(ctx, review)
		if err != nil {
			if db.IsUniqueViolation(err, "idx_review_product_user") {
				return pkgerrors.New(pkgerrors.CodeConflict, "product already reviewed")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create review")
		}

		if err := productRepo.UpdateRatingAggregate(ctx, req.ProductID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refresh rating aggregate")
		}
		created = review
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := FromModel(created)
	return &dto, nil
}

// Reply attaches the vendor's single response and notifies the reviewer.
func (s *service) Reply(ctx context.Context, vendorID, reviewID uuid.UUID, reply string) (*ReviewDTO, error) {
	var updated *models.Review
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		review, err := repo.FindByID(ctx, reviewID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "review not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load review")
		}

		product, err := s.products.WithTx(tx).FindByID(ctx, review.ProductID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reviewed product")
		}
		if product.VendorID != vendorID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "review belongs to another vendor's product")
		}
		if review.VendorReply != nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "review already has a reply")
		}

		now := s.now().UTC()
		if err := repo.SetReply(ctx, review.ID, map[string]any{
			"vendor_reply":      reply,
			"vendor_replied_at": now,
			"updated_at":        now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store reply")
		}
		review.VendorReply = &reply
		review.VendorRepliedAt = &now

		event := outbox.DomainEvent{
			EventType:     enums.EventReviewReplied,
			AggregateType: enums.AggregateReview,
			AggregateID:   review.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: vendorID, Role: enums.UserRoleVendor.String()},
			Data: payloads.ReviewRepliedEvent{
				ReviewID:  review.ID,
				ProductID: review.ProductID,
				UserID:    review.UserID,
				VendorID:  vendorID,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return err
		}
		updated = review
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := FromModel(updated)
	return &dto, nil
}

func (s *service) ListByProduct(ctx context.Context, productID uuid.UUID, filters ListFilters) (*ListPage, error) {
	filters.Pagination.Limit = pagination.NormalizeLimit(filters.Pagination.Limit)
	rows, err := s.repo.ListByProduct(ctx, productID, filters.Pagination)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reviews")
	}

	page := &ListPage{}
	hasMore := len(rows) > filters.Pagination.Limit
	if hasMore {
		rows = rows[:filters.Pagination.Limit]
	}
	for i := range rows {
		page.Reviews = append(page.Reviews, FromModel(&rows[i]))
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

// Delete removes a review (author or admin) and recomputes the product's
// rating aggregate.
func (s *service) Delete(ctx context.Context, actorID uuid.UUID, role enums.UserRole, reviewID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		review, err := repo.FindByID(ctx, reviewID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "review not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load review")
		}
		if review.UserID != actorID && role != enums.UserRoleAdmin {
			return pkgerrors.New(pkgerrors.CodeForbidden, "review belongs to another user")
		}
		if err := repo.Delete(ctx, review.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete review")
		}
		if err := s.products.WithTx(tx).UpdateRatingAggregate(ctx, review.ProductID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refresh rating aggregate")
		}
		return nil
	})
}
