package products

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mallhive/mallhive-backend/pkg/db/models"
	pkgerrors "github.com/mallhive/mallhive-backend/pkg/errors"
)

// Service exposes catalog lookups used by carts and checkout.
type Service interface {
	GetPurchasable(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

type service struct {
	repo Repository
}

// NewService wires a product service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	return &service{repo: repo}, nil
}

// GetPurchasable loads a product and verifies both it and its shop can accept
// new cart lines.
func (s *service) GetPurchasable(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}

	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading product")
	}
	if product == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeUnavailable, "product is unavailable").
			WithDetails(map[string]any{"product_id": product.ID})
	}
	if product.Shop == nil || !product.Shop.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeUnavailable, "shop is unavailable").
			WithDetails(map[string]any{"product_id": product.ID, "shop_id": product.ShopID})
	}
	return product, nil
}

func (s *service) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	list, err := s.repo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading products")
	}
	return list, nil
}
