package reporting

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mallhive/mallhive-backend/pkg/db/models"
	"github.com/mallhive/mallhive-backend/pkg/enums"
)

// StatusCount is one row of the status histogram.
type StatusCount struct {
	Status enums.OrderStatus `json:"status"`
	Count  int64             `json:"count"`
}

// RevenueRow aggregates the delivered-and-paid orders that count as revenue.
type RevenueRow struct {
	Orders       int64 `json:"orders"`
	RevenueCents int64 `json:"revenue_cents"`
}

// ShopRevenueRow is the marketplace breakdown entry for one shop.
type ShopRevenueRow struct {
	ShopID       uuid.UUID `json:"shop_id"`
	ShopName     string    `json:"shop_name"`
	Orders       int64     `json:"orders"`
	RevenueCents int64     `json:"revenue_cents"`
}

// Repository runs the read-only aggregations behind reports. Everything is
// computed from the orders table at query time; nothing here writes.
type Repository interface {
	CountByStatus(ctx context.Context, shopID *uuid.UUID) ([]StatusCount, error)
	Revenue(ctx context.Context, shopID *uuid.UUID) (*RevenueRow, error)
	RevenueByShop(ctx context.Context) ([]ShopRevenueRow, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a reporting repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CountByStatus(ctx context.Context, shopID *uuid.UUID) ([]StatusCount, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("status, COUNT(*) AS count").
		Group("status")
	if shopID != nil {
		query = query.Where("shop_id = ?", *shopID)
	}

	var rows []StatusCount
	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Revenue counts only delivered orders whose payment settled; pending or
// refunded money never shows up as revenue.
func (r *repository) Revenue(ctx context.Context, shopID *uuid.UUID) (*RevenueRow, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("COUNT(*) AS orders, COALESCE(SUM(total_cents), 0) AS revenue_cents").
		Where("status = ? AND payment_status = ?", enums.OrderStatusDelivered, enums.PaymentStatusPaid)
	if shopID != nil {
		query = query.Where("shop_id = ?", *shopID)
	}

	var row RevenueRow
	if err := query.Scan(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) RevenueByShop(ctx context.Context) ([]ShopRevenueRow, error) {
	var rows []ShopRevenueRow
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("orders.shop_id AS shop_id, shops.name AS shop_name, COUNT(*) AS orders, COALESCE(SUM(orders.total_cents), 0) AS revenue_cents").
		Joins("JOIN shops ON shops.id = orders.shop_id").
		Where("orders.status = ? AND orders.payment_status = ?", enums.OrderStatusDelivered, enums.PaymentStatusPaid).
		Group("orders.shop_id, shops.name").
		Order("revenue_cents DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
