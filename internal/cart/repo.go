package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mallhive/mallhive-backend/pkg/db/models"
)

// Repository manages persistence for carts and their line items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetByShopper(ctx context.Context, shopperID uuid.UUID) (*models.Cart, error)
	EnsureForShopper(ctx context.Context, shopperID uuid.UUID) (*models.Cart, error)
	UpsertItemIncrement(ctx context.Context, item *models.CartItem) error
	GetItem(ctx context.Context, cartID, itemID uuid.UUID) (*models.CartItem, error)
	UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error
	DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) (int64, error)
	DeleteItemsByID(ctx context.Context, itemIDs []uuid.UUID) error
	ClearItems(ctx context.Context, cartID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a cart repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetByShopper(ctx context.Context, shopperID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("cart_items.created_at ASC")
		}).
		First(&cart, "shopper_id = ?", shopperID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// EnsureForShopper creates the shopper's cart on first use. The unique index
// on shopper_id keeps concurrent creates down to a single row.
func (r *repository) EnsureForShopper(ctx context.Context, shopperID uuid.UUID) (*models.Cart, error) {
	cart := models.Cart{ShopperID: shopperID}
	err := r.db.WithContext(ctx).
		Where("shopper_id = ?", shopperID).
		FirstOrCreate(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// UpsertItemIncrement inserts the line or, when the product is already in the
// cart, merges by adding the quantities in a single statement.
func (r *repository) UpsertItemIncrement(ctx context.Context, item *models.CartItem) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "cart_id"}, {Name: "product_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"quantity":         gorm.Expr("cart_items.quantity + excluded.quantity"),
				"unit_price_cents": gorm.Expr("excluded.unit_price_cents"),
				"updated_at":       time.Now().UTC(),
			}),
		}).
		Create(item).Error
}

func (r *repository) GetItem(ctx context.Context, cartID, itemID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	err := r.db.WithContext(ctx).
		First(&item, "id = ? AND cart_id = ?", itemID, cartID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error {
	return r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("id = ?", itemID).
		UpdateColumn("quantity", quantity).Error
}

func (r *repository) DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("id = ? AND cart_id = ?", itemID, cartID).
		Delete(&models.CartItem{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repository) DeleteItemsByID(ctx context.Context, itemIDs []uuid.UUID) error {
	if len(itemIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("id IN ?", itemIDs).
		Delete(&models.CartItem{}).Error
}

func (r *repository) ClearItems(ctx context.Context, cartID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Delete(&models.CartItem{}).Error
}
