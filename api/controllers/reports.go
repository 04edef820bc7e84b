package controllers

import (
	"net/http"

	"github.com/mallhive/mallhive-backend/api/responses"
	"github.com/mallhive/mallhive-backend/api/validators"
	reportingsvc "github.com/mallhive/mallhive-backend/internal/reporting"
	"github.com/mallhive/mallhive-backend/pkg/logger"
)

func reportActor(r *http.Request) (reportingsvc.Actor, error) {
	userID, role, shopID, err := requestActor(r)
	if err != nil {
		return reportingsvc.Actor{}, err
	}
	return reportingsvc.Actor{UserID: userID, Role: role, ShopID: shopID}, nil
}

func ReportsShop(svc reportingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := reportActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		shopID, err := validators.UUIDParam(r, "shopId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		report, err := svc.ShopReport(r.Context(), actor, shopID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

func ReportsMarketplace(svc reportingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := reportActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		report, err := svc.MarketplaceReport(r.Context(), actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}
