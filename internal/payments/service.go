package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mallhive/mallhive-backend/pkg/db/models"
	"github.com/mallhive/mallhive-backend/pkg/enums"
	pkgerrors "github.com/mallhive/mallhive-backend/pkg/errors"
	"github.com/mallhive/mallhive-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type orderReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	UpdatePaymentStatus(ctx context.Context, orderID uuid.UUID, status enums.PaymentStatus) error
}

// Actor identifies who is asking; payment writes are admin-only, reads are
// open to the order's owner as well.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

// UpdateStatusInput marks a pending payment paid or failed and records the
// attempt that produced the outcome.
type UpdateStatusInput struct {
	PaymentID    uuid.UUID
	To           enums.PaymentStatus
	ErrorMessage *string
}

// RefundInput applies a full or partial refund to a paid payment.
type RefundInput struct {
	PaymentID   uuid.UUID
	AmountCents int
	Reason      *string
	Reference   *string
}

// Service tracks payment state. The payment row is authoritative; the
// matching column on the order is only a projection.
type Service interface {
	Get(ctx context.Context, actor Actor, paymentID uuid.UUID) (*models.Payment, error)
	UpdateStatus(ctx context.Context, actor Actor, input UpdateStatusInput) (*models.Payment, error)
	Refund(ctx context.Context, actor Actor, input RefundInput) (*models.Payment, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	orders orderReader
	logg   *logger.Logger
}

// NewService wires a payment service with its collaborators.
func NewService(repo Repository, tx txRunner, orders orderReader, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payment repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if orders == nil {
		return nil, fmt.Errorf("order reader required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, tx: tx, orders: orders, logg: logg}, nil
}

func (s *service) Get(ctx context.Context, actor Actor, paymentID uuid.UUID) (*models.Payment, error) {
	payment, err := s.load(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	if actor.Role != enums.UserRoleAdmin {
		order, err := s.orders.GetByID(ctx, payment.OrderID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order for payment")
		}
		if order == nil || order.ShopperID != actor.UserID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to view this payment")
		}
	}
	return payment, nil
}

// UpdateStatus resolves a pending payment. The attempt record and the status
// flip commit together; the order projection follows best-effort.
func (s *service) UpdateStatus(ctx context.Context, actor Actor, input UpdateStatusInput) (*models.Payment, error) {
	if actor.Role != enums.UserRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "payment updates are admin-only")
	}
	if input.To != enums.PaymentStatusPaid && input.To != enums.PaymentStatusFailed {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "status must be paid or failed").
			WithDetails(map[string]any{"to": input.To})
	}

	payment, err := s.load(ctx, input.PaymentID)
	if err != nil {
		return nil, err
	}
	if !payment.Status.CanTransitionTo(input.To) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment transition disallowed").
			WithDetails(map[string]any{"from": payment.Status, "to": input.To})
	}

	outcome := enums.PaymentOutcomeSucceeded
	stamps := map[string]any{"paid_at": time.Now().UTC()}
	if input.To == enums.PaymentStatusFailed {
		outcome = enums.PaymentOutcomeFailed
		stamps = nil
	}

	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		affected, err := txRepo.UpdateStatusGuarded(ctx, payment.ID, payment.Status, input.To, stamps)
		if err != nil {
			return err
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment changed concurrently")
		}
		return txRepo.AppendAttempt(ctx, &models.PaymentAttempt{
			PaymentID:    payment.ID,
			AmountCents:  payment.AmountCents,
			Outcome:      outcome,
			ErrorMessage: input.ErrorMessage,
		})
	}); err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating payment")
	}

	s.projectOntoOrder(ctx, payment.OrderID, input.To)
	return s.load(ctx, payment.ID)
}

// Refund applies a refund bounded by the paid amount. A cumulative total that
// reaches the full amount marks the payment refunded, anything less partial.
func (s *service) Refund(ctx context.Context, actor Actor, input RefundInput) (*models.Payment, error) {
	if actor.Role != enums.UserRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "refunds are admin-only")
	}
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}

	payment, err := s.load(ctx, input.PaymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != enums.PaymentStatusPaid && payment.Status != enums.PaymentStatusPartial {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only paid payments can be refunded").
			WithDetails(map[string]any{"status": payment.Status})
	}
	if payment.RefundedCents+input.AmountCents > payment.AmountCents {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund exceeds remaining paid amount").
			WithDetails(map[string]any{
				"amount_cents":    payment.AmountCents,
				"refunded_cents":  payment.RefundedCents,
				"requested_cents": input.AmountCents,
			})
	}

	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		affected, err := s.repo.WithTx(tx).ApplyRefund(ctx, payment.ID, input.AmountCents, input.Reason, input.Reference)
		if err != nil {
			return err
		}
		if affected == 0 {
			// The guarded UPDATE found no eligible row: a concurrent refund
			// got there first.
			return pkgerrors.New(pkgerrors.CodeStateConflict, "refund raced another update")
		}
		return nil
	}); err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "applying refund")
	}

	updated, err := s.load(ctx, payment.ID)
	if err != nil {
		return nil, err
	}
	s.projectOntoOrder(ctx, payment.OrderID, updated.Status)
	return updated, nil
}

// projectOntoOrder mirrors the authoritative payment status onto the order.
// Failures are logged and swallowed; the payment row already committed.
func (s *service) projectOntoOrder(ctx context.Context, orderID uuid.UUID, status enums.PaymentStatus) {
	if err := s.orders.UpdatePaymentStatus(ctx, orderID, status); err != nil {
		s.logg.Error(ctx, "projecting payment status onto order", err)
	}
}

func (s *service) load(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	if paymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	payment, err := s.repo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading payment")
	}
	if payment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
	}
	return payment, nil
}
