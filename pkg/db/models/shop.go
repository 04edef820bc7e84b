package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Shop represents a tenant storefront with its delivery-fee policy and the
// running fulfillment counters updated when orders are delivered.
type Shop struct {
	ID                         uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	Name                       string     `gorm:"column:name;not null"`
	Description                *string    `gorm:"column:description"`
	ManagerID                  uuid.UUID  `gorm:"column:manager_id;type:uuid;not null"`
	IsActive                   bool       `gorm:"column:is_active;not null"`
	DeliveryFeeCents           int        `gorm:"column:delivery_fee_cents;not null;default:0"`
	FreeDeliveryThresholdCents int        `gorm:"column:free_delivery_threshold_cents;not null;default:0"`
	OrdersFulfilled            int64      `gorm:"column:orders_fulfilled;not null;default:0"`
	RevenueCents               int64      `gorm:"column:revenue_cents;not null;default:0"`
	DeactivatedAt              *time.Time `gorm:"column:deactivated_at"`
	CreatedAt                  time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                  time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Shop) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
