package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mallhive/mallhive-backend/pkg/enums"
)

// OrderStatusEntry is the append-only audit trail of order transitions. Rows
// are inserted in the same transaction as the status change and never updated.
type OrderStatusEntry struct {
	ID         uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderID    uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	FromStatus enums.OrderStatus `gorm:"column:from_status;type:order_status;not null"`
	ToStatus   enums.OrderStatus `gorm:"column:to_status;type:order_status;not null"`
	ActorID    uuid.UUID         `gorm:"column:actor_id;type:uuid;not null"`
	ActorRole  enums.UserRole    `gorm:"column:actor_role;type:user_role;not null"`
	Reason     *string           `gorm:"column:reason"`
	CreatedAt  time.Time         `gorm:"column:created_at;autoCreateTime"`
}

func (e *OrderStatusEntry) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
