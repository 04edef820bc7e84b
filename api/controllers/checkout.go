package controllers

import (
	"net/http"

	"github.com/mallhive/mallhive-backend/api/responses"
	"github.com/mallhive/mallhive-backend/api/validators"
	checkoutsvc "github.com/mallhive/mallhive-backend/internal/checkout"
	"github.com/mallhive/mallhive-backend/pkg/enums"
	pkgerrors "github.com/mallhive/mallhive-backend/pkg/errors"
	"github.com/mallhive/mallhive-backend/pkg/logger"
	"github.com/mallhive/mallhive-backend/pkg/types"
)

type checkoutRequest struct {
	DeliveryMode    string        `json:"delivery_mode" validate:"required,oneof=standard express pickup"`
	PaymentMethod   string        `json:"payment_method" validate:"required,oneof=card cash_on_delivery transfer"`
	DeliveryAddress types.Address `json:"delivery_address" validate:"omitempty"`
	Notes           *string       `json:"notes,omitempty"`
}

// Checkout turns the cart into per-shop orders. Creating at least one order
// answers 201, with any failed shops listed alongside; a checkout where every
// shop failed answers 409 instead.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shopperID, _, _, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Checkout(r.Context(), shopperID, checkoutsvc.Input{
			DeliveryMode:    enums.DeliveryMode(payload.DeliveryMode),
			PaymentMethod:   enums.PaymentMethod(payload.PaymentMethod),
			DeliveryAddress: payload.DeliveryAddress,
			Notes:           payload.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if len(result.Orders) == 0 {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeConflict, "no orders could be created").
					WithDetails(map[string]any{"failed_shops": result.Failed}))
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
