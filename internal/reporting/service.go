package reporting

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mallhive/mallhive-backend/pkg/enums"
	pkgerrors "github.com/mallhive/mallhive-backend/pkg/errors"
)

// Actor identifies who is asking for a report.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
	ShopID *uuid.UUID
}

// ShopReport is the per-shop rollup served to managers and admins.
type ShopReport struct {
	ShopID            uuid.UUID       `json:"shop_id"`
	StatusCounts      []StatusCount   `json:"status_counts"`
	TotalOrders       int64           `json:"total_orders"`
	FulfilledOrders   int64           `json:"fulfilled_orders"`
	RevenueCents      int64           `json:"revenue_cents"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
}

// MarketplaceReport is the admin-only rollup across every shop.
type MarketplaceReport struct {
	StatusCounts      []StatusCount    `json:"status_counts"`
	TotalOrders       int64            `json:"total_orders"`
	FulfilledOrders   int64            `json:"fulfilled_orders"`
	RevenueCents      int64            `json:"revenue_cents"`
	AverageOrderValue decimal.Decimal  `json:"average_order_value"`
	Shops             []ShopRevenueRow `json:"shops"`
}

// Service computes read-only statistics over orders. Managers see their own
// shop, admins see everything.
type Service interface {
	ShopReport(ctx context.Context, actor Actor, shopID uuid.UUID) (*ShopReport, error)
	MarketplaceReport(ctx context.Context, actor Actor) (*MarketplaceReport, error)
}

type service struct {
	repo Repository
}

// NewService wires a reporting service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("reporting repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) ShopReport(ctx context.Context, actor Actor, shopID uuid.UUID) (*ShopReport, error) {
	if shopID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop id is required")
	}
	switch actor.Role {
	case enums.UserRoleAdmin:
	case enums.UserRoleManager:
		if actor.ShopID == nil || *actor.ShopID != shopID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "managers can only report on their own shop")
		}
	default:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "reports require a manager or admin role")
	}

	counts, err := s.repo.CountByStatus(ctx, &shopID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "counting orders by status")
	}
	revenue, err := s.repo.Revenue(ctx, &shopID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "aggregating revenue")
	}

	return &ShopReport{
		ShopID:            shopID,
		StatusCounts:      counts,
		TotalOrders:       sumCounts(counts),
		FulfilledOrders:   revenue.Orders,
		RevenueCents:      revenue.RevenueCents,
		AverageOrderValue: averageOrderValue(revenue),
	}, nil
}

func (s *service) MarketplaceReport(ctx context.Context, actor Actor) (*MarketplaceReport, error) {
	if actor.Role != enums.UserRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "marketplace reports are admin-only")
	}

	counts, err := s.repo.CountByStatus(ctx, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "counting orders by status")
	}
	revenue, err := s.repo.Revenue(ctx, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "aggregating revenue")
	}
	byShop, err := s.repo.RevenueByShop(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "aggregating revenue by shop")
	}

	return &MarketplaceReport{
		StatusCounts:      counts,
		TotalOrders:       sumCounts(counts),
		FulfilledOrders:   revenue.Orders,
		RevenueCents:      revenue.RevenueCents,
		AverageOrderValue: averageOrderValue(revenue),
		Shops:             byShop,
	}, nil
}

// averageOrderValue divides in decimal space so 1000/3 cents reports as
// 333.33 rather than truncating.
func averageOrderValue(revenue *RevenueRow) decimal.Decimal {
	if revenue.Orders == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(revenue.RevenueCents).
		Div(decimal.NewFromInt(revenue.Orders)).
		Round(2)
}

func sumCounts(counts []StatusCount) int64 {
	var total int64
	for _, row := range counts {
		total += row.Count
	}
	return total
}
