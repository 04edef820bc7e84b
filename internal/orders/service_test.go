package orders

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mallhive/mallhive-backend/internal/shops"
	"github.com/mallhive/mallhive-backend/internal/stock"
	"github.com/mallhive/mallhive-backend/pkg/db/models"
	"github.com/mallhive/mallhive-backend/pkg/enums"
	pkgerrors "github.com/mallhive/mallhive-backend/pkg/errors"
	"github.com/mallhive/mallhive-backend/pkg/logger"
	"github.com/mallhive/mallhive-backend/pkg/pagination"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r *gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(fn)
}

type fixture struct {
	svc     Service
	db      *gorm.DB
	shop    *models.Shop
	product *models.Product
	shopper uuid.UUID
	manager Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Shop{}, &models.Product{},
		&models.Order{}, &models.OrderLineItem{}, &models.OrderStatusEntry{}, &models.Payment{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	ledger, err := stock.NewLedger(stock.NewRepository(db))
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	shopSvc, err := shops.NewService(shops.NewRepository(db))
	if err != nil {
		t.Fatalf("new shop service: %v", err)
	}
	logg := logger.New(logger.Options{ServiceName: "orders-test", Level: zerolog.Disabled})
	svc, err := NewService(NewRepository(db), &gormTxRunner{db: db}, ledger, shopSvc, logg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	shop := &models.Shop{ID: uuid.New(), Name: "Test Shop", ManagerID: uuid.New(), IsActive: true}
	if err := db.Create(shop).Error; err != nil {
		t.Fatalf("seed shop: %v", err)
	}
	product := &models.Product{
		ID: uuid.New(), ShopID: shop.ID, Name: "Widget", PriceCents: 1500, StockQty: 8, IsActive: true,
	}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}

	shopID := shop.ID
	return &fixture{
		svc:     svc,
		db:      db,
		shop:    shop,
		product: product,
		shopper: uuid.New(),
		manager: Actor{UserID: shop.ManagerID, Role: enums.UserRoleManager, ShopID: &shopID},
	}
}

func (f *fixture) seedOrder(t *testing.T, paymentStatus enums.PaymentStatus) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:            uuid.New(),
		OrderNumber:   "MH-TEST-" + uuid.NewString()[:8],
		ShopperID:     f.shopper,
		ShopID:        f.shop.ID,
		Status:        enums.OrderStatusPending,
		PaymentStatus: paymentStatus,
		DeliveryMode:  enums.DeliveryModeStandard,
		SubtotalCents: 3000,
		TotalCents:    3400,
		Items: []models.OrderLineItem{
			{ProductID: f.product.ID, Name: f.product.Name, Quantity: 2, UnitPriceCents: 1500, SubtotalCents: 3000},
		},
	}
	if err := f.db.Create(order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return order
}

func (f *fixture) shopperActor() Actor {
	return Actor{UserID: f.shopper, Role: enums.UserRoleShopper}
}

func TestForwardPathToDelivered(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, enums.PaymentStatusPaid)

	for _, next := range []enums.OrderStatus{
		enums.OrderStatusPreparing,
		enums.OrderStatusReady,
		enums.OrderStatusDelivered,
	} {
		updated, err := f.svc.Transition(ctx, f.manager, TransitionInput{OrderID: order.ID, To: next})
		if err != nil {
			t.Fatalf("transition to %s: %v", next, err)
		}
		if updated.Status != next {
			t.Fatalf("expected status %s, got %s", next, updated.Status)
		}
	}

	final, err := f.svc.Get(ctx, f.manager, order.ID)
	if err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if len(final.StatusHistory) != 3 {
		t.Fatalf("expected 3 history entries, got %d", len(final.StatusHistory))
	}
	if final.DeliveredAt == nil {
		t.Fatal("expected delivered_at to be stamped")
	}

	var shop models.Shop
	if err := f.db.First(&shop, "id = ?", f.shop.ID).Error; err != nil {
		t.Fatalf("reload shop: %v", err)
	}
	if shop.OrdersFulfilled != 1 || shop.RevenueCents != 3400 {
		t.Fatalf("expected counters 1/3400, got %d/%d", shop.OrdersFulfilled, shop.RevenueCents)
	}
}

func TestDeliveredCountersFollowPaymentRow(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	// Projection lags behind: the payment row is paid but the order column
	// still says pending.
	order := f.seedOrder(t, enums.PaymentStatusPending)
	payment := &models.Payment{
		ID:          uuid.New(),
		OrderID:     order.ID,
		Method:      enums.PaymentMethodCard,
		Status:      enums.PaymentStatusPaid,
		AmountCents: order.TotalCents,
	}
	if err := f.db.Create(payment).Error; err != nil {
		t.Fatalf("seed payment: %v", err)
	}

	for _, next := range []enums.OrderStatus{
		enums.OrderStatusPreparing, enums.OrderStatusReady, enums.OrderStatusDelivered,
	} {
		if _, err := f.svc.Transition(ctx, f.manager, TransitionInput{OrderID: order.ID, To: next}); err != nil {
			t.Fatalf("transition to %s: %v", next, err)
		}
	}

	var shop models.Shop
	if err := f.db.First(&shop, "id = ?", f.shop.ID).Error; err != nil {
		t.Fatalf("reload shop: %v", err)
	}
	if shop.OrdersFulfilled != 1 || shop.RevenueCents != 3400 {
		t.Fatalf("authoritative paid payment must bump counters, got %d/%d", shop.OrdersFulfilled, shop.RevenueCents)
	}
}

func TestDeliveredUnpaidSkipsCounters(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, enums.PaymentStatusPending)

	for _, next := range []enums.OrderStatus{
		enums.OrderStatusPreparing, enums.OrderStatusReady, enums.OrderStatusDelivered,
	} {
		if _, err := f.svc.Transition(ctx, f.manager, TransitionInput{OrderID: order.ID, To: next}); err != nil {
			t.Fatalf("transition to %s: %v", next, err)
		}
	}

	var shop models.Shop
	if err := f.db.First(&shop, "id = ?", f.shop.ID).Error; err != nil {
		t.Fatalf("reload shop: %v", err)
	}
	if shop.OrdersFulfilled != 0 {
		t.Fatalf("unpaid delivery must not bump counters, got %d", shop.OrdersFulfilled)
	}
}

func TestShopperCancelRestoresStock(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, enums.PaymentStatusPending)

	reason := "changed my mind"
	cancelled, err := f.svc.Cancel(ctx, f.shopperActor(), order.ID, &reason)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != enums.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
	if cancelled.CancelledAt == nil {
		t.Fatal("expected cancelled_at to be stamped")
	}
	if len(cancelled.StatusHistory) != 1 || cancelled.StatusHistory[0].Reason == nil {
		t.Fatalf("expected one history entry with reason, got %+v", cancelled.StatusHistory)
	}

	var product models.Product
	if err := f.db.First(&product, "id = ?", f.product.ID).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	if product.StockQty != 10 {
		t.Fatalf("expected stock restored to 10, got %d", product.StockQty)
	}
}

func TestShopperCannotCancelAfterPreparing(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, enums.PaymentStatusPending)

	if _, err := f.svc.Transition(ctx, f.manager, TransitionInput{OrderID: order.ID, To: enums.OrderStatusPreparing}); err != nil {
		t.Fatalf("prepare: %v", err)
	}

	_, err := f.svc.Cancel(ctx, f.shopperActor(), order.ID, nil)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestManagerRefuseRestoresStock(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, enums.PaymentStatusPending)

	reason := "out of stock at the counter"
	refused, err := f.svc.Transition(ctx, f.manager, TransitionInput{
		OrderID: order.ID, To: enums.OrderStatusRefused, Reason: &reason,
	})
	if err != nil {
		t.Fatalf("refuse: %v", err)
	}
	if refused.Status != enums.OrderStatusRefused || refused.RefusedAt == nil {
		t.Fatalf("unexpected refused order: %+v", refused)
	}

	var product models.Product
	if err := f.db.First(&product, "id = ?", f.product.ID).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	if product.StockQty != 10 {
		t.Fatalf("expected stock restored to 10, got %d", product.StockQty)
	}
}

func TestTerminalStatesAreImmutable(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, enums.PaymentStatusPaid)

	for _, next := range []enums.OrderStatus{
		enums.OrderStatusPreparing, enums.OrderStatusReady, enums.OrderStatusDelivered,
	} {
		if _, err := f.svc.Transition(ctx, f.manager, TransitionInput{OrderID: order.ID, To: next}); err != nil {
			t.Fatalf("transition to %s: %v", next, err)
		}
	}

	_, err := f.svc.Transition(ctx, f.manager, TransitionInput{OrderID: order.ID, To: enums.OrderStatusPreparing})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict on terminal order, got %v", err)
	}
}

func TestAuthorizationRules(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, enums.PaymentStatusPending)

	otherShop := uuid.New()
	stranger := Actor{UserID: uuid.New(), Role: enums.UserRoleManager, ShopID: &otherShop}
	_, err := f.svc.Transition(ctx, stranger, TransitionInput{OrderID: order.ID, To: enums.OrderStatusPreparing})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden for foreign manager, got %v", err)
	}

	_, err = f.svc.Transition(ctx, f.manager, TransitionInput{OrderID: order.ID, To: enums.OrderStatusCancelled})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden for manager cancel, got %v", err)
	}

	otherShopper := Actor{UserID: uuid.New(), Role: enums.UserRoleShopper}
	_, err = f.svc.Cancel(ctx, otherShopper, order.ID, nil)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden for foreign shopper, got %v", err)
	}

	if _, err := f.svc.Get(ctx, f.shopperActor(), order.ID); err != nil {
		t.Fatalf("owner read: %v", err)
	}
	_, err = f.svc.Get(ctx, otherShopper, order.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden read, got %v", err)
	}
}

func TestListScopesByRole(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.seedOrder(t, enums.PaymentStatusPending)
	f.seedOrder(t, enums.PaymentStatusPending)

	otherShop := &models.Shop{ID: uuid.New(), Name: "Other Shop", ManagerID: uuid.New(), IsActive: true}
	if err := f.db.Create(otherShop).Error; err != nil {
		t.Fatalf("seed other shop: %v", err)
	}
	foreign := &models.Order{
		ID:            uuid.New(),
		OrderNumber:   "MH-TEST-" + uuid.NewString()[:8],
		ShopperID:     uuid.New(),
		ShopID:        otherShop.ID,
		Status:        enums.OrderStatusPending,
		PaymentStatus: enums.PaymentStatusPending,
		DeliveryMode:  enums.DeliveryModeStandard,
		SubtotalCents: 500,
		TotalCents:    500,
	}
	if err := f.db.Create(foreign).Error; err != nil {
		t.Fatalf("seed foreign order: %v", err)
	}

	mine, err := f.svc.List(ctx, f.shopperActor(), pagination.Params{})
	if err != nil {
		t.Fatalf("shopper list: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("expected 2 shopper orders, got %d", len(mine))
	}

	shopOrders, err := f.svc.List(ctx, f.manager, pagination.Params{})
	if err != nil {
		t.Fatalf("manager list: %v", err)
	}
	if len(shopOrders) != 2 {
		t.Fatalf("expected 2 shop orders, got %d", len(shopOrders))
	}

	all, err := f.svc.List(ctx, Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin}, pagination.Params{})
	if err != nil {
		t.Fatalf("admin list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 orders marketplace-wide, got %d", len(all))
	}
}
