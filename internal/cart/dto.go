package cart

import (
	"github.com/google/uuid"

	"github.com/mallhive/mallhive-backend/pkg/enums"
)

// AddItemInput captures the payload for adding a product to the cart.
type AddItemInput struct {
	ProductID uuid.UUID
	Quantity  int
}

// LineTotal is one cart line inside a per-shop breakdown.
type LineTotal struct {
	ItemID         uuid.UUID `json:"item_id"`
	ProductID      uuid.UUID `json:"product_id"`
	Name           string    `json:"name"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int       `json:"unit_price_cents"`
	SubtotalCents  int       `json:"subtotal_cents"`
}

// ShopBreakdown is the totals block for a single shop's slice of the cart.
type ShopBreakdown struct {
	ShopID           uuid.UUID   `json:"shop_id"`
	ShopName         string      `json:"shop_name"`
	SubtotalCents    int         `json:"subtotal_cents"`
	DeliveryFeeCents int         `json:"delivery_fee_cents"`
	TotalCents       int         `json:"total_cents"`
	Items            []LineTotal `json:"items"`
}

// Totals is the side-effect-free cart quote: per-shop breakdowns plus the
// grand total a checkout would charge.
type Totals struct {
	DeliveryMode    enums.DeliveryMode `json:"delivery_mode"`
	Shops           []ShopBreakdown    `json:"shops"`
	GrandTotalCents int                `json:"grand_total_cents"`
}
