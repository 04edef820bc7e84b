package payments

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mallhive/mallhive-backend/internal/orders"
	"github.com/mallhive/mallhive-backend/pkg/db/models"
	"github.com/mallhive/mallhive-backend/pkg/enums"
	pkgerrors "github.com/mallhive/mallhive-backend/pkg/errors"
	"github.com/mallhive/mallhive-backend/pkg/logger"
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
	shopper uuid.UUID
	admin   Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := "file:payments_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Order{}, &models.OrderLineItem{}, &models.OrderStatusEntry{},
		&models.Payment{}, &models.PaymentAttempt{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	logg := logger.New(logger.Options{ServiceName: "payments-test", Level: zerolog.Disabled})
	svc, err := NewService(NewRepository(db), &gormTxRunner{db: db}, orders.NewRepository(db), logg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &fixture{
		svc:     svc,
		db:      db,
		shopper: uuid.New(),
		admin:   Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin},
	}
}

func (f *fixture) seedPayment(t *testing.T, status enums.PaymentStatus, amountCents, refundedCents int) *models.Payment {
	t.Helper()
	order := &models.Order{
		ID:            uuid.New(),
		OrderNumber:   "MH-TEST-" + uuid.NewString()[:8],
		ShopperID:     f.shopper,
		ShopID:        uuid.New(),
		Status:        enums.OrderStatusPending,
		PaymentStatus: status,
		SubtotalCents: amountCents,
		TotalCents:    amountCents,
	}
	if err := f.db.Create(order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	payment := &models.Payment{
		ID:            uuid.New(),
		OrderID:       order.ID,
		Method:        enums.PaymentMethodCard,
		Status:        status,
		AmountCents:   amountCents,
		RefundedCents: refundedCents,
	}
	if err := f.db.Create(payment).Error; err != nil {
		t.Fatalf("seed payment: %v", err)
	}
	return payment
}

func TestUpdateStatusToPaid(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	payment := f.seedPayment(t, enums.PaymentStatusPending, 5000, 0)

	updated, err := f.svc.UpdateStatus(ctx, f.admin, UpdateStatusInput{
		PaymentID: payment.ID,
		To:        enums.PaymentStatusPaid,
	})
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if updated.Status != enums.PaymentStatusPaid || updated.PaidAt == nil {
		t.Fatalf("unexpected payment state: %+v", updated)
	}
	if len(updated.Attempts) != 1 || updated.Attempts[0].Outcome != enums.PaymentOutcomeSucceeded {
		t.Fatalf("expected one succeeded attempt, got %+v", updated.Attempts)
	}

	var order models.Order
	if err := f.db.First(&order, "id = ?", payment.OrderID).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if order.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("expected projection to paid, got %s", order.PaymentStatus)
	}
}

func TestUpdateStatusToFailedRecordsAttempt(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	payment := f.seedPayment(t, enums.PaymentStatusPending, 2500, 0)

	msg := "card declined"
	updated, err := f.svc.UpdateStatus(ctx, f.admin, UpdateStatusInput{
		PaymentID:    payment.ID,
		To:           enums.PaymentStatusFailed,
		ErrorMessage: &msg,
	})
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if updated.Status != enums.PaymentStatusFailed || updated.PaidAt != nil {
		t.Fatalf("unexpected payment state: %+v", updated)
	}
	if len(updated.Attempts) != 1 || updated.Attempts[0].Outcome != enums.PaymentOutcomeFailed {
		t.Fatalf("expected one failed attempt, got %+v", updated.Attempts)
	}
	if updated.Attempts[0].ErrorMessage == nil || *updated.Attempts[0].ErrorMessage != msg {
		t.Fatalf("expected attempt error message, got %+v", updated.Attempts[0])
	}
}

func TestUpdateStatusRejectsBadTransitions(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	paid := f.seedPayment(t, enums.PaymentStatusPaid, 1000, 0)

	_, err := f.svc.UpdateStatus(ctx, f.admin, UpdateStatusInput{PaymentID: paid.ID, To: enums.PaymentStatusPaid})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}

	_, err = f.svc.UpdateStatus(ctx, f.admin, UpdateStatusInput{PaymentID: paid.ID, To: enums.PaymentStatusRefunded})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for refund via status, got %v", err)
	}

	shopper := Actor{UserID: f.shopper, Role: enums.UserRoleShopper}
	_, err = f.svc.UpdateStatus(ctx, shopper, UpdateStatusInput{PaymentID: paid.ID, To: enums.PaymentStatusPaid})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestPartialThenFullRefund(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	payment := f.seedPayment(t, enums.PaymentStatusPaid, 10000, 0)

	reason := "damaged item"
	partial, err := f.svc.Refund(ctx, f.admin, RefundInput{
		PaymentID:   payment.ID,
		AmountCents: 4000,
		Reason:      &reason,
	})
	if err != nil {
		t.Fatalf("partial refund: %v", err)
	}
	if partial.Status != enums.PaymentStatusPartial || partial.RefundedCents != 4000 {
		t.Fatalf("unexpected partial state: %+v", partial)
	}

	full, err := f.svc.Refund(ctx, f.admin, RefundInput{PaymentID: payment.ID, AmountCents: 6000})
	if err != nil {
		t.Fatalf("full refund: %v", err)
	}
	if full.Status != enums.PaymentStatusRefunded || full.RefundedCents != 10000 {
		t.Fatalf("unexpected refunded state: %+v", full)
	}

	var order models.Order
	if err := f.db.First(&order, "id = ?", payment.OrderID).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if order.PaymentStatus != enums.PaymentStatusRefunded {
		t.Fatalf("expected projection refunded, got %s", order.PaymentStatus)
	}
}

func TestRefundStatusFollowsCumulativeTotal(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	payment := f.seedPayment(t, enums.PaymentStatusPaid, 1000, 0)
	repo := NewRepository(f.db)

	// Applied back to back without re-reading in between, the way two racing
	// requests would land. The second must flip the label to refunded even
	// though its caller last saw refunded_cents == 0.
	for _, amount := range []int{600, 400} {
		affected, err := repo.ApplyRefund(ctx, payment.ID, amount, nil, nil)
		if err != nil {
			t.Fatalf("apply refund %d: %v", amount, err)
		}
		if affected != 1 {
			t.Fatalf("expected refund of %d to apply, affected %d rows", amount, affected)
		}
	}

	var reloaded models.Payment
	if err := f.db.First(&reloaded, "id = ?", payment.ID).Error; err != nil {
		t.Fatalf("reload payment: %v", err)
	}
	if reloaded.Status != enums.PaymentStatusRefunded || reloaded.RefundedCents != 1000 {
		t.Fatalf("expected refunded/1000, got %s/%d", reloaded.Status, reloaded.RefundedCents)
	}
}

func TestRefundBounds(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	payment := f.seedPayment(t, enums.PaymentStatusPaid, 3000, 2000)

	_, err := f.svc.Refund(ctx, f.admin, RefundInput{PaymentID: payment.ID, AmountCents: 1500})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for excess refund, got %v", err)
	}

	_, err = f.svc.Refund(ctx, f.admin, RefundInput{PaymentID: payment.ID, AmountCents: 0})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for zero refund, got %v", err)
	}

	pending := f.seedPayment(t, enums.PaymentStatusPending, 3000, 0)
	_, err = f.svc.Refund(ctx, f.admin, RefundInput{PaymentID: pending.ID, AmountCents: 100})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict for unpaid refund, got %v", err)
	}
}

func TestGetAuthorization(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	payment := f.seedPayment(t, enums.PaymentStatusPaid, 1200, 0)

	owner := Actor{UserID: f.shopper, Role: enums.UserRoleShopper}
	if _, err := f.svc.Get(ctx, owner, payment.ID); err != nil {
		t.Fatalf("owner read: %v", err)
	}

	stranger := Actor{UserID: uuid.New(), Role: enums.UserRoleShopper}
	_, err := f.svc.Get(ctx, stranger, payment.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}

	if _, err := f.svc.Get(ctx, f.admin, payment.ID); err != nil {
		t.Fatalf("admin read: %v", err)
	}
}
