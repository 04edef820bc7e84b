package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mallhive/mallhive-backend/pkg/enums"
	"github.com/mallhive/mallhive-backend/pkg/types"
)

// Order is the per-shop result of a checkout. Totals are computed server-side
// at creation and frozen; PaymentStatus is a denormalized read-model mirror of
// the authoritative Payment row.
type Order struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber      string              `gorm:"column:order_number;not null;uniqueIndex"`
	ShopperID        uuid.UUID           `gorm:"column:shopper_id;type:uuid;not null;index"`
	ShopID           uuid.UUID           `gorm:"column:shop_id;type:uuid;not null;index"`
	Status           enums.OrderStatus   `gorm:"column:status;type:order_status;not null;default:'pending'"`
	PaymentStatus    enums.PaymentStatus `gorm:"column:payment_status;type:payment_status;not null;default:'pending'"`
	DeliveryMode     enums.DeliveryMode  `gorm:"column:delivery_mode;type:delivery_mode;not null;default:'standard'"`
	DeliveryAddress  types.Address       `gorm:"column:delivery_address;type:jsonb;serializer:json"`
	Notes            *string             `gorm:"column:notes"`
	SubtotalCents    int                 `gorm:"column:subtotal_cents;not null"`
	DeliveryFeeCents int                 `gorm:"column:delivery_fee_cents;not null;default:0"`
	TotalCents       int                 `gorm:"column:total_cents;not null"`
	Items            []OrderLineItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	StatusHistory    []OrderStatusEntry  `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Payment          *Payment            `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	DeliveredAt      *time.Time          `gorm:"column:delivered_at"`
	CancelledAt      *time.Time          `gorm:"column:cancelled_at"`
	RefusedAt        *time.Time          `gorm:"column:refused_at"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
