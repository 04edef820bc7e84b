package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mallhive/mallhive-backend/internal/shops"
	"github.com/mallhive/mallhive-backend/internal/stock"
	"github.com/mallhive/mallhive-backend/pkg/db/models"
	"github.com/mallhive/mallhive-backend/pkg/enums"
	pkgerrors "github.com/mallhive/mallhive-backend/pkg/errors"
	"github.com/mallhive/mallhive-backend/pkg/logger"
	"github.com/mallhive/mallhive-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Actor identifies who is driving a transition and what they may touch.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
	ShopID *uuid.UUID
}

// TransitionInput is one requested status change.
type TransitionInput struct {
	OrderID uuid.UUID
	To      enums.OrderStatus
	Reason  *string
}

// Service drives the order state machine. Every transition goes through
// Transition; there is no other write path for order status.
type Service interface {
	Get(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, actor Actor, params pagination.Params) ([]models.Order, error)
	Transition(ctx context.Context, actor Actor, input TransitionInput) (*models.Order, error)
	Cancel(ctx context.Context, actor Actor, orderID uuid.UUID, reason *string) (*models.Order, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	ledger stock.Ledger
	shops  shops.Service
	logg   *logger.Logger
}

// NewService wires the order state machine with its collaborators.
func NewService(repo Repository, tx txRunner, ledger stock.Ledger, shops shops.Service, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if shops == nil {
		return nil, fmt.Errorf("shop counters required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, tx: tx, ledger: ledger, shops: shops, logg: logg}, nil
}

func (s *service) Get(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := authorizeRead(actor, order); err != nil {
		return nil, err
	}
	return order, nil
}

// List scopes the result set by role: shoppers see their own orders, managers
// their shop's, admins everything.
func (s *service) List(ctx context.Context, actor Actor, params pagination.Params) ([]models.Order, error) {
	var (
		list []models.Order
		err  error
	)
	switch actor.Role {
	case enums.UserRoleShopper:
		list, err = s.repo.ListByShopper(ctx, actor.UserID, params)
	case enums.UserRoleManager:
		if actor.ShopID == nil {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "no shop scope for listing")
		}
		list, err = s.repo.ListByShop(ctx, *actor.ShopID, params)
	case enums.UserRoleAdmin:
		list, err = s.repo.ListAll(ctx, params)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "unknown role")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing orders")
	}
	return list, nil
}

// Transition validates the move against the closed transition table, then
// applies the status flip, the history entry, and any stock or counter side
// effects in one transaction.
func (s *service) Transition(ctx context.Context, actor Actor, input TransitionInput) (*models.Order, error) {
	if !input.To.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status").
			WithDetails(map[string]any{"status": input.To})
	}

	order, err := s.load(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if err := authorizeTransition(actor, order, input.To); err != nil {
		return nil, err
	}

	from := order.Status
	if !from.CanTransitionTo(input.To) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "status transition disallowed").
			WithDetails(map[string]any{"from": from, "to": input.To})
	}

	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		affected, err := txRepo.UpdateStatusGuarded(ctx, order.ID, from, input.To, statusStamps(input.To))
		if err != nil {
			return err
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order changed concurrently").
				WithDetails(map[string]any{"from": from, "to": input.To})
		}

		if err := txRepo.AppendHistory(ctx, &models.OrderStatusEntry{
			OrderID:    order.ID,
			FromStatus: from,
			ToStatus:   input.To,
			ActorID:    actor.UserID,
			ActorRole:  actor.Role,
			Reason:     input.Reason,
		}); err != nil {
			return err
		}

		if input.To == enums.OrderStatusCancelled || input.To == enums.OrderStatusRefused {
			if err := s.ledger.WithTx(tx).AdjustMany(ctx, restockAdjustments(order)); err != nil {
				return err
			}
		}

		if input.To == enums.OrderStatusDelivered && paymentIsPaid(order) {
			if err := s.shops.WithTx(tx).RecordFulfilled(ctx, order.ShopID, order.TotalCents); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "applying transition")
	}

	return s.load(ctx, order.ID)
}

// Cancel is the shopper-facing wrapper around Transition.
func (s *service) Cancel(ctx context.Context, actor Actor, orderID uuid.UUID, reason *string) (*models.Order, error) {
	return s.Transition(ctx, actor, TransitionInput{
		OrderID: orderID,
		To:      enums.OrderStatusCancelled,
		Reason:  reason,
	})
}

func (s *service) load(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func authorizeRead(actor Actor, order *models.Order) error {
	switch actor.Role {
	case enums.UserRoleAdmin:
		return nil
	case enums.UserRoleShopper:
		if order.ShopperID == actor.UserID {
			return nil
		}
	case enums.UserRoleManager:
		if actor.ShopID != nil && *actor.ShopID == order.ShopID {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to view this order")
}

// authorizeTransition applies the role rules: shoppers may only cancel their
// own pending order; forward moves and refusal belong to the owning shop's
// manager; admins may do either.
func authorizeTransition(actor Actor, order *models.Order, to enums.OrderStatus) error {
	if actor.Role == enums.UserRoleAdmin {
		return nil
	}

	if to == enums.OrderStatusCancelled && actor.Role == enums.UserRoleShopper {
		if order.ShopperID != actor.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "not your order")
		}
		if order.Status != enums.OrderStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be cancelled").
				WithDetails(map[string]any{"status": order.Status})
		}
		return nil
	}

	if actor.Role == enums.UserRoleManager {
		if actor.ShopID == nil || *actor.ShopID != order.ShopID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another shop")
		}
		if to == enums.OrderStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeForbidden, "managers refuse orders instead of cancelling")
		}
		return nil
	}

	return pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to change this order")
}

func statusStamps(to enums.OrderStatus) map[string]any {
	now := time.Now().UTC()
	switch to {
	case enums.OrderStatusDelivered:
		return map[string]any{"delivered_at": now}
	case enums.OrderStatusCancelled:
		return map[string]any{"cancelled_at": now}
	case enums.OrderStatusRefused:
		return map[string]any{"refused_at": now}
	default:
		return nil
	}
}

// paymentIsPaid consults the authoritative payment row. The order's
// payment_status column is a best-effort projection and may lag behind it, so
// it only decides when no payment row is loaded.
func paymentIsPaid(order *models.Order) bool {
	if order.Payment != nil {
		return order.Payment.Status == enums.PaymentStatusPaid
	}
	return order.PaymentStatus == enums.PaymentStatusPaid
}

func restockAdjustments(order *models.Order) []stock.Adjustment {
	adjustments := make([]stock.Adjustment, 0, len(order.Items))
	for _, item := range order.Items {
		adjustments = append(adjustments, stock.Adjustment{
			ProductID: item.ProductID,
			Delta:     item.Quantity,
		})
	}
	return adjustments
}
