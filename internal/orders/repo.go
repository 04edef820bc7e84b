package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mallhive/mallhive-backend/pkg/db/models"
	"github.com/mallhive/mallhive-backend/pkg/enums"
	"github.com/mallhive/mallhive-backend/pkg/pagination"
)

// Repository manages persistence for orders, their lines, and their history.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListByShopper(ctx context.Context, shopperID uuid.UUID, params pagination.Params) ([]models.Order, error)
	ListByShop(ctx context.Context, shopID uuid.UUID, params pagination.Params) ([]models.Order, error)
	ListAll(ctx context.Context, params pagination.Params) ([]models.Order, error)
	UpdateStatusGuarded(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, stamps map[string]any) (int64, error)
	AppendHistory(ctx context.Context, entry *models.OrderStatusEntry) error
	UpdatePaymentStatus(ctx context.Context, orderID uuid.UUID, status enums.PaymentStatus) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an order repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("StatusHistory", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_status_entries.created_at ASC")
		}).
		Preload("Payment").
		First(&order, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListByShopper(ctx context.Context, shopperID uuid.UUID, params pagination.Params) ([]models.Order, error) {
	return r.list(ctx, "shopper_id = ?", shopperID, params)
}

func (r *repository) ListByShop(ctx context.Context, shopID uuid.UUID, params pagination.Params) ([]models.Order, error) {
	return r.list(ctx, "shop_id = ?", shopID, params)
}

func (r *repository) ListAll(ctx context.Context, params pagination.Params) ([]models.Order, error) {
	return r.list(ctx, "", uuid.Nil, params)
}

func (r *repository) list(ctx context.Context, cond string, id uuid.UUID, params pagination.Params) ([]models.Order, error) {
	query := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Payment").
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit))
	if cond != "" {
		query = query.Where(cond, id)
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var list []models.Order
	if err := query.Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// UpdateStatusGuarded flips the status only when the row still holds the
// expected from-status, so two racing transitions cannot both win.
func (r *repository) UpdateStatusGuarded(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, stamps map[string]any) (int64, error) {
	updates := map[string]any{"status": to}
	for column, value := range stamps {
		updates[column] = value
	}
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Updates(updates)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repository) AppendHistory(ctx context.Context, entry *models.OrderStatusEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) UpdatePaymentStatus(ctx context.Context, orderID uuid.UUID, status enums.PaymentStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		UpdateColumn("payment_status", status).Error
}
