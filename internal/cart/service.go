package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/joaquinvalderas/regenmarket-backend/internal/products"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/db/models"
	pkgerrors "github.com/joaquinvalderas/regenmarket-backend/pkg/errors"
)

// LineDTO is one cart line joined with its product snapshot.
type LineDTO struct {
	ProductID  uuid.UUID `json:"product_id"`
	Name       string    `json:"name"`
	PriceCents int       `json:"price_cents"`
	Quantity   int       `json:"quantity"`
	InStock    bool      `json:"in_stock"`
	AddedAt    time.Time `json:"added_at"`
}

// CartDTO is the buyer's full cart.
type CartDTO struct {
	Items         []LineDTO `json:"items"`
	SubtotalCents int       `json:"subtotal_cents"`
}

// PutRequest adds or replaces a single cart line.
type PutRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1,max=999"`
}

// Service exposes the buyer cart operations.
type Service interface {
	Fetch(ctx context.Context, userID uuid.UUID) (*CartDTO, error)
	Put(ctx context.Context, userID uuid.UUID, req PutRequest) (*CartDTO, error)
	Remove(ctx context.Context, userID, productID uuid.UUID) (*CartDTO, error)
}

type service struct {
	repo     *Repository
	products *products.Repository
}

// NewService wires the cart service dependencies.
func NewService(repo *Repository, productsRepo *products.Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if productsRepo == nil {
		return nil, fmt.Errorf("products repository required")
	}
	return &service{repo: repo, products: productsRepo}, nil
}

func (s *service) Fetch(ctx context.Context, userID uuid.UUID) (*CartDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	return s.assemble(ctx, userID)
}

func (s *service) Put(ctx context.Context, userID uuid.UUID, req PutRequest) (*CartDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	product, err := s.products.FindByID(ctx, req.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !product.Status.Purchasable() || !product.InStock {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("product %s is not available", product.Name))
	}
	if product.Stock < req.Quantity {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("insufficient stock for %s", product.Name)).
			WithDetails(map[string]any{"product_id": product.ID, "available": product.Stock})
	}

	line := &models.CartItem{
		UserID:    userID,
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
	}
	if err := s.repo.Upsert(ctx, line); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart line")
	}
	return s.assemble(ctx, userID)
}

func (s *service) Remove(ctx context.Context, userID, productID uuid.UUID) (*CartDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if err := s.repo.Remove(ctx, userID, productID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart line")
	}
	return s.assemble(ctx, userID)
}

func (s *service) assemble(ctx context.Context, userID uuid.UUID) (*CartDTO, error) {
	lines, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart")
	}

	cart := &CartDTO{Items: make([]LineDTO, 0, len(lines))}
	if len(lines) == 0 {
		return cart, nil
	}

	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	rows, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart products")
	}
	byID := make(map[uuid.UUID]*models.Product, len(rows))
	for i := range rows {
		byID[rows[i].ID] = &rows[i]
	}

	for _, line := range lines {
		product, ok := byID[line.ProductID]
		if !ok {
			// product was removed since the line was added; skip it
			continue
		}
		cart.Items = append(cart.Items, LineDTO{
			ProductID:  product.ID,
			Name:       product.Name,
			PriceCents: product.PriceCents,
			Quantity:   line.Quantity,
			InStock:    product.InStock,
			AddedAt:    line.CreatedAt,
		})
		cart.SubtotalCents += product.PriceCents * line.Quantity
	}
	return cart, nil
}
