package shops

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mallhive/mallhive-backend/pkg/db/models"
)

// Repository manages persistence for shops and their running counters.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetByID(ctx context.Context, id uuid.UUID) (*models.Shop, error)
	Create(ctx context.Context, shop *models.Shop) error
	IncrementFulfilled(ctx context.Context, shopID uuid.UUID, revenueCents int) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a shop repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Shop, error) {
	var shop models.Shop
	err := r.db.WithContext(ctx).First(&shop, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &shop, nil
}

func (r *repository) Create(ctx context.Context, shop *models.Shop) error {
	return r.db.WithContext(ctx).Create(shop).Error
}

// IncrementFulfilled bumps both running counters with a single atomic UPDATE.
func (r *repository) IncrementFulfilled(ctx context.Context, shopID uuid.UUID, revenueCents int) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Shop{}).
		Where("id = ?", shopID).
		UpdateColumns(map[string]any{
			"orders_fulfilled": gorm.Expr("orders_fulfilled + 1"),
			"revenue_cents":    gorm.Expr("revenue_cents + ?", revenueCents),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
