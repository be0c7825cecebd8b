package products

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/joaquinvalderas/regenmarket-backend/pkg/db/models"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/enums"
	pkgerrors "github.com/joaquinvalderas/regenmarket-backend/pkg/errors"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/pagination"
)

// Service exposes the catalog operations used by the controllers.
type Service interface {
	Create(ctx context.Context, vendorID uuid.UUID, req CreateProductRequest) (*ProductDTO, error)
	Update(ctx context.Context, vendorID, productID uuid.UUID, req UpdateProductRequest) (*ProductDTO, error)
	Delete(ctx context.Context, vendorID, productID uuid.UUID) error
	Get(ctx context.Context, productID uuid.UUID) (*ProductDTO, error)
	Browse(ctx context.Context, filters BrowseFilters) (*ListPage, error)
	ListOwn(ctx context.Context, vendorID uuid.UUID, params pagination.Params) (*ListPage, error)
}

type repository interface {
	Create(ctx context.Context, product *models.Product) (*models.Product, error)
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	Browse(ctx context.Context, filters BrowseFilters) ([]models.Product, error)
	ListByVendor(ctx context.Context, vendorID uuid.UUID, params pagination.Params) ([]models.Product, error)
}

type service struct {
	repo repository
}

// NewService builds the catalog service.
func NewService(repo repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("products repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, vendorID uuid.UUID, req CreateProductRequest) (*ProductDTO, error) {
	if vendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}
	category, err := enums.ParseProductCategory(strings.TrimSpace(req.Category))
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
	}

	status := enums.ProductStatusDraft
	if req.Activate {
		status = enums.ProductStatusActive
	}

	product := &models.Product{
		VendorID:         vendorID,
		Name:             strings.TrimSpace(req.Name),
		Description:      req.Description,
		Category:         category,
		Tags:             pq.StringArray(req.Tags),
		PriceCents:       req.PriceCents,
		Stock:            req.Stock,
		InStock:          req.Stock > 0,
		Status:           status,
		CO2Reduction:     req.CO2Reduction,
		WaterSaving:      req.WaterSaving,
		EnergyEfficiency: req.EnergyEfficiency,
		RegenScore:       ComputeRegenScore(req.CO2Reduction, req.WaterSaving, req.EnergyEfficiency),
	}
	created, err := s.repo.Create(ctx, product)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create product")
	}
	return FromModel(created), nil
}

func (s *service) Update(ctx context.Context, vendorID, productID uuid.UUID, req UpdateProductRequest) (*ProductDTO, error) {
	product, err := s.ownedProduct(ctx, vendorID, productID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		product.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		product.Description = req.Description
	}
	if req.Category != nil {
		category, err := enums.ParseProductCategory(strings.TrimSpace(*req.Category))
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
		}
		product.Category = category
	}
	if req.Tags != nil {
		product.Tags = pq.StringArray(req.Tags)
	}
	if req.PriceCents != nil {
		product.PriceCents = *req.PriceCents
	}
	if req.Stock != nil {
		product.Stock = *req.Stock
		product.InStock = *req.Stock > 0
	}
	if req.Status != nil {
		status, err := enums.ParseProductStatus(strings.TrimSpace(*req.Status))
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
		}
		product.Status = status
	}

	metricsChanged := false
	if req.CO2Reduction != nil {
		product.CO2Reduction = *req.CO2Reduction
		metricsChanged = true
	}
	if req.WaterSaving != nil {
		product.WaterSaving = *req.WaterSaving
		metricsChanged = true
	}
	if req.EnergyEfficiency != nil {
		product.EnergyEfficiency = *req.EnergyEfficiency
		metricsChanged = true
	}
	if metricsChanged {
		product.RegenScore = ComputeRegenScore(product.CO2Reduction, product.WaterSaving, product.EnergyEfficiency)
	}

	if err := s.repo.Update(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update product")
	}
	return FromModel(product), nil
}

func (s *service) Delete(ctx context.Context, vendorID, productID uuid.UUID) error {
	product, err := s.ownedProduct(ctx, vendorID, productID)
	if err != nil {
		return err
	}
	if product.SalesCount > 0 {
		// Listings with sales history are archived, never hard-deleted.
		product.Status = enums.ProductStatusArchived
		if err := s.repo.Update(ctx, product); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "archive product")
		}
		return nil
	}
	if err := s.repo.Delete(ctx, product.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete product")
	}
	return nil
}

func (s *service) Get(ctx context.Context, productID uuid.UUID) (*ProductDTO, error) {
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	return FromModel(product), nil
}

func (s *service) Browse(ctx context.Context, filters BrowseFilters) (*ListPage, error) {
	rows, err := s.repo.Browse(ctx, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "browse products")
	}
	return buildPage(rows, filters.Pagination), nil
}

func (s *service) ListOwn(ctx context.Context, vendorID uuid.UUID, params pagination.Params) (*ListPage, error) {
	rows, err := s.repo.ListByVendor(ctx, vendorID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list vendor products")
	}
	return buildPage(rows, params), nil
}

func (s *service) ownedProduct(ctx context.Context, vendorID, productID uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	if product.VendorID != vendorID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "product belongs to another vendor")
	}
	return product, nil
}

func buildPage(rows []models.Product, params pagination.Params) *ListPage {
	limit := pagination.NormalizeLimit(params.Limit)
	page := &ListPage{Items: make([]ProductDTO, 0, len(rows))}
	hasMore := len(rows) > limit
	if hasMore {
		rows = rows[:limit]
	}
	for i := range rows {
		page.Items = append(page.Items, *FromModel(&rows[i]))
	}
	if hasMore && len(rows) > 0 {
		last := rows[len(rows)-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return page
}
