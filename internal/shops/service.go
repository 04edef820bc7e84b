package shops

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mallhive/mallhive-backend/pkg/db/models"
	"github.com/mallhive/mallhive-backend/pkg/enums"
	pkgerrors "github.com/mallhive/mallhive-backend/pkg/errors"
)

// Service exposes shop lookups, the delivery fee policy, and the fulfilled
// counters used when an order completes.
type Service interface {
	WithTx(tx *gorm.DB) Service
	GetActive(ctx context.Context, id uuid.UUID) (*models.Shop, error)
	DeliveryFeeCents(shop *models.Shop, subtotalCents int, mode enums.DeliveryMode) int
	RecordFulfilled(ctx context.Context, shopID uuid.UUID, revenueCents int) error
}

type service struct {
	repo Repository
}

// NewService wires a shop service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("shop repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	if tx == nil {
		return s
	}
	return &service{repo: s.repo.WithTx(tx)}
}

func (s *service) GetActive(ctx context.Context, id uuid.UUID) (*models.Shop, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop id is required")
	}
	shop, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading shop")
	}
	if shop == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shop not found")
	}
	if !shop.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeUnavailable, "shop is unavailable").
			WithDetails(map[string]any{"shop_id": shop.ID})
	}
	return shop, nil
}

// DeliveryFeeCents applies the shop's flat fee. The fee is waived for pickup
// and for subtotals at or above the shop's free-delivery threshold.
func (s *service) DeliveryFeeCents(shop *models.Shop, subtotalCents int, mode enums.DeliveryMode) int {
	if shop == nil || mode == enums.DeliveryModePickup {
		return 0
	}
	if shop.FreeDeliveryThresholdCents > 0 && subtotalCents >= shop.FreeDeliveryThresholdCents {
		return 0
	}
	return shop.DeliveryFeeCents
}

func (s *service) RecordFulfilled(ctx context.Context, shopID uuid.UUID, revenueCents int) error {
	if shopID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "shop id is required")
	}
	affected, err := s.repo.IncrementFulfilled(ctx, shopID, revenueCents)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "incrementing shop counters")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "shop not found")
	}
	return nil
}
