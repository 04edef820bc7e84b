package shops

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mallhive/mallhive-backend/pkg/db/models"
	"github.com/mallhive/mallhive-backend/pkg/enums"
	pkgerrors "github.com/mallhive/mallhive-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:shops_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Shop{}); err != nil {
		t.Fatalf("migrate shops: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewRepository(db))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestDeliveryFeeCents(t *testing.T) {
	t.Parallel()

	svc := &service{}
	shop := &models.Shop{
		DeliveryFeeCents:           500,
		FreeDeliveryThresholdCents: 5000,
	}

	cases := []struct {
		name     string
		subtotal int
		mode     enums.DeliveryMode
		want     int
	}{
		{name: "below threshold", subtotal: 3000, mode: enums.DeliveryModeStandard, want: 500},
		{name: "at threshold", subtotal: 5000, mode: enums.DeliveryModeStandard, want: 0},
		{name: "above threshold", subtotal: 9000, mode: enums.DeliveryModeExpress, want: 0},
		{name: "pickup always free", subtotal: 100, mode: enums.DeliveryModePickup, want: 0},
	}
	for _, tc := range cases {
		if got := svc.DeliveryFeeCents(shop, tc.subtotal, tc.mode); got != tc.want {
			t.Errorf("%s: fee = %d, want %d", tc.name, got, tc.want)
		}
	}

	noThreshold := &models.Shop{DeliveryFeeCents: 300}
	if got := svc.DeliveryFeeCents(noThreshold, 100000, enums.DeliveryModeStandard); got != 300 {
		t.Errorf("zero threshold must never waive the fee, got %d", got)
	}
}

func TestGetActive(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	active := &models.Shop{ID: uuid.New(), Name: "Open Shop", ManagerID: uuid.New(), IsActive: true}
	closed := &models.Shop{ID: uuid.New(), Name: "Closed Shop", ManagerID: uuid.New(), IsActive: false}
	for _, shop := range []*models.Shop{active, closed} {
		if err := db.Create(shop).Error; err != nil {
			t.Fatalf("seed shop: %v", err)
		}
	}

	got, err := svc.GetActive(ctx, active.ID)
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if got.ID != active.ID {
		t.Fatalf("unexpected shop returned")
	}

	_, err = svc.GetActive(ctx, closed.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeUnavailable {
		t.Fatalf("expected unavailable for inactive shop, got %v", err)
	}

	_, err = svc.GetActive(ctx, uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRecordFulfilledIncrementsCounters(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	shop := &models.Shop{ID: uuid.New(), Name: "Counter Shop", ManagerID: uuid.New(), IsActive: true}
	if err := db.Create(shop).Error; err != nil {
		t.Fatalf("seed shop: %v", err)
	}

	if err := svc.RecordFulfilled(ctx, shop.ID, 2500); err != nil {
		t.Fatalf("record fulfilled: %v", err)
	}
	if err := svc.RecordFulfilled(ctx, shop.ID, 1500); err != nil {
		t.Fatalf("record fulfilled: %v", err)
	}

	var reloaded models.Shop
	if err := db.First(&reloaded, "id = ?", shop.ID).Error; err != nil {
		t.Fatalf("reload shop: %v", err)
	}
	if reloaded.OrdersFulfilled != 2 {
		t.Fatalf("expected 2 fulfilled orders, got %d", reloaded.OrdersFulfilled)
	}
	if reloaded.RevenueCents != 4000 {
		t.Fatalf("expected revenue 4000, got %d", reloaded.RevenueCents)
	}

	err := svc.RecordFulfilled(ctx, uuid.New(), 100)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for unknown shop, got %v", err)
	}
}
