package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mallhive/mallhive-backend/pkg/enums"
)

// PaymentAttempt is one append-only attempt record on a payment.
type PaymentAttempt struct {
	ID           uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	PaymentID    uuid.UUID           `gorm:"column:payment_id;type:uuid;not null;index"`
	AmountCents  int                 `gorm:"column:amount_cents;not null"`
	Outcome      enums.PaymentOutcome `gorm:"column:outcome;type:payment_outcome;not null"`
	ErrorMessage *string             `gorm:"column:error_message"`
	CreatedAt    time.Time           `gorm:"column:created_at;autoCreateTime"`
}

func (p *PaymentAttempt) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
