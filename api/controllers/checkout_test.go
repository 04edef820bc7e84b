package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/mallhive/mallhive-backend/api/middleware"
	checkoutsvc "github.com/mallhive/mallhive-backend/internal/checkout"
	"github.com/mallhive/mallhive-backend/pkg/db/models"
	"github.com/mallhive/mallhive-backend/pkg/enums"
	"github.com/mallhive/mallhive-backend/pkg/logger"
)

type stubCheckoutService struct {
	result *checkoutsvc.Result
	err    error
}

func (s stubCheckoutService) Checkout(ctx context.Context, shopperID uuid.UUID, input checkoutsvc.Input) (*checkoutsvc.Result, error) {
	return s.result, s.err
}

func checkoutTestRequest() *http.Request {
	body := `{"delivery_mode":"standard","payment_method":"card","delivery_address":{"line1":"12 Arcade Way","city":"Lagos","postal_code":"100001","country":"NG"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	ctx := middleware.WithUserID(req.Context(), uuid.NewString())
	ctx = middleware.WithRole(ctx, string(enums.UserRoleShopper))
	return req.WithContext(ctx)
}

func TestCheckoutPartialSuccessAnswersCreated(t *testing.T) {
	t.Parallel()

	shopID := uuid.New()
	failedShopID := uuid.New()
	result := &checkoutsvc.Result{
		Orders: []models.Order{
			{ID: uuid.New(), ShopID: shopID, Status: enums.OrderStatusPending, TotalCents: 2400},
		},
		Failed: []checkoutsvc.FailedShop{
			{ShopID: failedShopID, ShopName: "Dry Goods", Reason: "insufficient stock"},
		},
	}

	handler := Checkout(
		stubCheckoutService{result: result},
		logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, checkoutTestRequest())

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.Code)
	}

	var envelope struct {
		Data checkoutsvc.Result `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data.Orders) != 1 {
		t.Fatalf("expected 1 order, got %d", len(envelope.Data.Orders))
	}
	if len(envelope.Data.Failed) != 1 || envelope.Data.Failed[0].ShopID != failedShopID {
		t.Fatalf("unexpected failed shops: %+v", envelope.Data.Failed)
	}
}

func TestCheckoutAllShopsFailedAnswersConflict(t *testing.T) {
	t.Parallel()

	failedShopID := uuid.New()
	result := &checkoutsvc.Result{
		Failed: []checkoutsvc.FailedShop{
			{ShopID: failedShopID, ShopName: "Dry Goods", Reason: "insufficient stock"},
		},
	}

	handler := Checkout(
		stubCheckoutService{result: result},
		logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, checkoutTestRequest())

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}

	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Details struct {
				FailedShops []checkoutsvc.FailedShop `json:"failed_shops"`
			} `json:"details"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Error.Code != "CONFLICT" {
		t.Fatalf("unexpected error code: %s", envelope.Error.Code)
	}
	if len(envelope.Error.Details.FailedShops) != 1 || envelope.Error.Details.FailedShops[0].ShopID != failedShopID {
		t.Fatalf("expected failed shops in details, got %+v", envelope.Error.Details.FailedShops)
	}
}

func TestCheckoutRejectsUnknownDeliveryMode(t *testing.T) {
	t.Parallel()

	handler := Checkout(
		stubCheckoutService{},
		logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout",
		strings.NewReader(`{"delivery_mode":"drone","payment_method":"card"}`))
	req.Header.Set("Content-Type", "application/json")
	ctx := middleware.WithUserID(req.Context(), uuid.NewString())
	ctx = middleware.WithRole(ctx, string(enums.UserRoleShopper))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req.WithContext(ctx))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
