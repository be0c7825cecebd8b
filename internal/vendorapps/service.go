package vendorapps

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/joaquinvalderas/regenmarket-backend/internal/users"
	"github.com/joaquinvalderas/regenmarket-backend/internal/vendors"
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

// Service defines the vendor application operations.
type Service interface {
	Submit(ctx context.Context, userID uuid.UUID, req SubmitRequest) (*ApplicationDTO, error)
	Own(ctx context.Context, userID uuid.UUID) (*ApplicationDTO, error)
	List(ctx context.Context, filters ListFilters) (*ListPage, error)
	Approve(ctx context.Context, adminID, applicationID uuid.UUID) (*ApplicationDTO, error)
	Reject(ctx context.Context, adminID, applicationID uuid.UUID, reason string) (*ApplicationDTO, error)
}

type service struct {
	repo    *Repository
	users   *users.Repository
	vendors *vendors.Repository
	tx      txRunner
	outbox  outboxPublisher
	now     func() time.Time
}

// ServiceParams carries the dependencies for the vendor application service.
type ServiceParams struct {
	Repo    *Repository
	Users   *users.Repository
	Vendors *vendors.Repository
	Tx      txRunner
	Outbox  outboxPublisher
	Now     func() time.Time
}

// NewService builds the vendor application service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("applications repository required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if params.Vendors == nil {
		return nil, fmt.Errorf("vendors repository required")
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
		repo:    params.Repo,
		users:   params.Users,
		vendors: params.Vendors,
		tx:      params.Tx,
		outbox:  params.Outbox,
		now:     params.Now,
	}, nil
}

// Submit files a new application. One pending application per user.
func (s *service) Submit(ctx context.Context, userID uuid.UUID, req SubmitRequest) (*ApplicationDTO, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	if user.Role == enums.UserRoleVendor {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "user is already a vendor")
	}

	pending, err := s.repo.FindPendingByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check pending applications")
	}
	if pending != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "application already pending")
	}

	app := &models.VendorApplication{
		UserID:       userID,
		BusinessName: req.BusinessName,
		Description:  req.Description,
		Website:      req.Website,
		Status:       enums.ApplicationStatusPending,
	}
	app, err = s.repo.Create(ctx, app)
	if err != nil {
		if db.IsUniqueViolation(err, "ux_vendor_applications_open_user") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "application already pending")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create application")
	}
	dto := FromModel(app)
	return &dto, nil
}

// Own returns the caller's most recent application.
func (s *service) Own(ctx context.Context, userID uuid.UUID) (*ApplicationDTO, error) {
	app, err := s.repo.FindLatestByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load application")
	}
	if app == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no application on file")
	}
	dto := FromModel(app)
	return &dto, nil
}

func (s *service) List(ctx context.Context, filters ListFilters) (*ListPage, error) {
	filters.Pagination.Limit = pagination.NormalizeLimit(filters.Pagination.Limit)
	rows, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list applications")
	}

	page := &ListPage{}
	hasMore := len(rows) > filters.Pagination.Limit
	if hasMore {
		rows = rows[:filters.Pagination.Limit]
	}
	for i := range rows {
		page.Applications = append(page.Applications, FromModel(&rows[i]))
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

// Approve promotes the applicant to vendor and creates their storefront
// profile, all in one transaction.
func (s *service) Approve(ctx context.Context, adminID, applicationID uuid.UUID) (*ApplicationDTO, error) {
	var updated *models.VendorApplication
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		app, err := s.loadPending(ctx, repo, applicationID)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		if err := repo.Update(ctx, app.ID, map[string]any{
			"status":     enums.ApplicationStatusApproved,
			"decided_by": adminID,
			"decided_at": now,
			"updated_at": now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "approve application")
		}
		app.Status = enums.ApplicationStatusApproved
		app.DecidedBy = &adminID
		app.DecidedAt = &now

		if err := s.users.WithTx(tx).UpdateRole(ctx, app.UserID, enums.UserRoleVendor); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "promote user to vendor")
		}

		vendorRepo := s.vendors.WithTx(tx)
		existing, err := vendorRepo.FindByUser(ctx, app.UserID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check vendor profile")
		}
		if existing == nil {
			profile := &models.VendorProfile{
				UserID:      app.UserID,
				DisplayName: app.BusinessName,
				Description: &app.Description,
				Website:     app.Website,
			}
			if _, err := vendorRepo.Create(ctx, profile); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create vendor profile")
			}
		}

		if err := s.emitDecision(ctx, tx, adminID, app, ""); err != nil {
			return err
		}
		updated = app
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := FromModel(updated)
	return &dto, nil
}

// Reject declines the application with a reason the applicant will see.
func (s *service) Reject(ctx context.Context, adminID, applicationID uuid.UUID, reason string) (*ApplicationDTO, error) {
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rejection reason required")
	}

	var updated *models.VendorApplication
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		app, err := s.loadPending(ctx, repo, applicationID)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		if err := repo.Update(ctx, app.ID, map[string]any{
			"status":           enums.ApplicationStatusRejected,
			"rejection_reason": reason,
			"decided_by":       adminID,
			"decided_at":       now,
			"updated_at":       now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reject application")
		}
		app.Status = enums.ApplicationStatusRejected
		app.RejectionReason = &reason
		app.DecidedBy = &adminID
		app.DecidedAt = &now

		if err := s.emitDecision(ctx, tx, adminID, app, reason); err != nil {
			return err
		}
		updated = app
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := FromModel(updated)
	return &dto, nil
}

func (s *service) loadPending(ctx context.Context, repo *Repository, applicationID uuid.UUID) (*models.VendorApplication, error) {
	app, err := repo.FindByID(ctx, applicationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "application not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load application")
	}
	if app.Status.IsDecided() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "application already decided")
	}
	return app, nil
}

func (s *service) emitDecision(ctx context.Context, tx *gorm.DB, adminID uuid.UUID, app *models.VendorApplication, reason string) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventApplicationDecided,
		AggregateType: enums.AggregateApplication,
		AggregateID:   app.ID,
		Version:       1,
		Actor:         &outbox.ActorRef{UserID: adminID, Role: enums.UserRoleAdmin.String()},
		Data: payloads.ApplicationDecidedEvent{
			ApplicationID: app.ID,
			UserID:        app.UserID,
			Status:        app.Status,
			Reason:        reason,
		},
	})
}
