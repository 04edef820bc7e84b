package stock

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mallhive/mallhive-backend/pkg/db/models"
)

// Repository applies guarded stock mutations. The WHERE clause carries the
// non-negativity check so concurrent decrements can never oversell.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	AdjustStock(ctx context.Context, productID uuid.UUID, delta int) (int64, error)
	ProductExists(ctx context.Context, productID uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a stock repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// AdjustStock applies the delta only when the resulting quantity stays
// non-negative, and reports how many rows matched.
func (r *repository) AdjustStock(ctx context.Context, productID uuid.UUID, delta int) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock_qty + ? >= 0", productID, delta).
		UpdateColumn("stock_qty", gorm.Expr("stock_qty + ?", delta))
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repository) ProductExists(ctx context.Context, productID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
