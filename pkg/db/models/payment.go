package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mallhive/mallhive-backend/pkg/enums"
)

// Payment is the authoritative payment record, 1:1 with an order. The order's
// payment_status column is only a projection of this row.
type Payment struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID         uuid.UUID           `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	Method          enums.PaymentMethod `gorm:"column:method;type:payment_method;not null;default:'card'"`
	Status          enums.PaymentStatus `gorm:"column:status;type:payment_status;not null;default:'pending'"`
	AmountCents     int                 `gorm:"column:amount_cents;not null"`
	RefundedCents   int                 `gorm:"column:refunded_cents;not null;default:0"`
	RefundReason    *string             `gorm:"column:refund_reason"`
	RefundReference *string             `gorm:"column:refund_reference"`
	PaidAt          *time.Time          `gorm:"column:paid_at"`
	Attempts        []PaymentAttempt    `gorm:"foreignKey:PaymentID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Payment) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
