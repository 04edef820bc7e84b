package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product belongs to a single shop. StockQty is mutated exclusively through
// the stock ledger's conditional update; nothing else may assign it.
type Product struct {
	ID              uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	ShopID          uuid.UUID  `gorm:"column:shop_id;type:uuid;not null;index"`
	Shop            *Shop      `gorm:"foreignKey:ShopID"`
	Name            string     `gorm:"column:name;not null"`
	Description     *string    `gorm:"column:description"`
	PriceCents      int        `gorm:"column:price_cents;not null"`
	PromoPriceCents *int       `gorm:"column:promo_price_cents"`
	StockQty        int        `gorm:"column:stock_qty;not null;default:0"`
	IsActive        bool       `gorm:"column:is_active;not null"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// EffectivePriceCents returns the promotional price when it is set and lower
// than the list price, else the list price.
func (p *Product) EffectivePriceCents() int {
	if p.PromoPriceCents != nil && *p.PromoPriceCents > 0 && *p.PromoPriceCents < p.PriceCents {
		return *p.PromoPriceCents
	}
	return p.PriceCents
}
