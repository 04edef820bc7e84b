package payments

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mallhive/mallhive-backend/pkg/db/models"
	"github.com/mallhive/mallhive-backend/pkg/enums"
)

// Repository manages persistence for payments and their attempt records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	UpdateStatusGuarded(ctx context.Context, paymentID uuid.UUID, from, to enums.PaymentStatus, stamps map[string]any) (int64, error)
	ApplyRefund(ctx context.Context, paymentID uuid.UUID, amountCents int, reason, reference *string) (int64, error)
	AppendAttempt(ctx context.Context, attempt *models.PaymentAttempt) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payment repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Preload("Attempts", func(db *gorm.DB) *gorm.DB {
			return db.Order("payment_attempts.created_at ASC")
		}).
		First(&payment, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		First(&payment, "order_id = ?", orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// UpdateStatusGuarded flips the status only while the row still holds the
// expected from-status.
func (r *repository) UpdateStatusGuarded(ctx context.Context, paymentID uuid.UUID, from, to enums.PaymentStatus, stamps map[string]any) (int64, error) {
	updates := map[string]any{"status": to}
	for column, value := range stamps {
		updates[column] = value
	}
	result := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status = ?", paymentID, from).
		Updates(updates)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ApplyRefund adds to refunded_cents with the cumulative bound enforced in the
// WHERE clause, so two racing refunds cannot exceed the paid amount. The status
// label derives from the post-refund total inside the same UPDATE, keeping it
// consistent no matter how stale the caller's read was.
func (r *repository) ApplyRefund(ctx context.Context, paymentID uuid.UUID, amountCents int, reason, reference *string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where(
			"id = ? AND status IN ? AND refunded_cents + ? <= amount_cents",
			paymentID,
			[]enums.PaymentStatus{enums.PaymentStatusPaid, enums.PaymentStatusPartial},
			amountCents,
		).
		Updates(map[string]any{
			"status": gorm.Expr(
				"CASE WHEN refunded_cents + ? = amount_cents THEN ? ELSE ? END",
				amountCents, enums.PaymentStatusRefunded, enums.PaymentStatusPartial,
			),
			"refunded_cents":   gorm.Expr("refunded_cents + ?", amountCents),
			"refund_reason":    reason,
			"refund_reference": reference,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repository) AppendAttempt(ctx context.Context, attempt *models.PaymentAttempt) error {
	return r.db.WithContext(ctx).Create(attempt).Error
}
