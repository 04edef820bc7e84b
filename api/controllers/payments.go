package controllers

import (
	"net/http"

	"github.com/mallhive/mallhive-backend/api/responses"
	"github.com/mallhive/mallhive-backend/api/validators"
	paymentssvc "github.com/mallhive/mallhive-backend/internal/payments"
	"github.com/mallhive/mallhive-backend/pkg/enums"
	pkgerrors "github.com/mallhive/mallhive-backend/pkg/errors"
	"github.com/mallhive/mallhive-backend/pkg/logger"
)

type paymentStatusRequest struct {
	Status       string  `json:"status" validate:"required,oneof=paid failed"`
	ErrorMessage *string `json:"error_message,omitempty"`
}

type refundRequest struct {
	AmountCents int     `json:"amount_cents" validate:"required,gt=0"`
	Reason      *string `json:"reason,omitempty"`
	Reference   *string `json:"reference,omitempty"`
}

func paymentActor(r *http.Request) (paymentssvc.Actor, error) {
	userID, role, _, err := requestActor(r)
	if err != nil {
		return paymentssvc.Actor{}, err
	}
	return paymentssvc.Actor{UserID: userID, Role: role}, nil
}

func PaymentsDetail(svc paymentssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := paymentActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		paymentID, err := validators.UUIDParam(r, "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := svc.Get(r.Context(), actor, paymentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payment)
	}
}

func PaymentsUpdateStatus(svc paymentssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := paymentActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		paymentID, err := validators.UUIDParam(r, "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload paymentStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParsePaymentStatus(payload.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid status").
				WithDetails(map[string]any{"status": payload.Status}))
			return
		}

		payment, err := svc.UpdateStatus(r.Context(), actor, paymentssvc.UpdateStatusInput{
			PaymentID:    paymentID,
			To:           status,
			ErrorMessage: payload.ErrorMessage,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payment)
	}
}

func PaymentsRefund(svc paymentssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := paymentActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		paymentID, err := validators.UUIDParam(r, "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload refundRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := svc.Refund(r.Context(), actor, paymentssvc.RefundInput{
			PaymentID:   paymentID,
			AmountCents: payload.AmountCents,
			Reason:      payload.Reason,
			Reference:   payload.Reference,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payment)
	}
}
