package checkout

import (
	"github.com/google/uuid"

	"github.com/mallhive/mallhive-backend/pkg/db/models"
	"github.com/mallhive/mallhive-backend/pkg/enums"
	"github.com/mallhive/mallhive-backend/pkg/types"
)

// Input is the checkout payload. One checkout produces one order per shop
// represented in the cart.
type Input struct {
	DeliveryMode    enums.DeliveryMode
	PaymentMethod   enums.PaymentMethod
	DeliveryAddress types.Address
	Notes           *string
}

// FailedShop reports a shop whose order could not be created after validation
// passed, typically because a concurrent checkout drained its stock.
type FailedShop struct {
	ShopID   uuid.UUID `json:"shop_id"`
	ShopName string    `json:"shop_name"`
	Reason   string    `json:"reason"`
}

// Result reports the outcome per shop. Orders and Failed can both be
// non-empty: each shop's order commits independently.
type Result struct {
	Orders []models.Order `json:"orders"`
	Failed []FailedShop   `json:"failed_shops"`
}
