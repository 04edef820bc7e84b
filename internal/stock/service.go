package stock

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/mallhive/mallhive-backend/pkg/errors"
)

// Adjustment is one signed stock delta for a product. Negative deltas reserve
// stock at checkout, positive deltas restore it on cancellation or refusal.
type Adjustment struct {
	ProductID uuid.UUID
	Delta     int
}

// Ledger is the single entry point for stock mutations. Nothing else in the
// codebase updates stock_qty.
type Ledger interface {
	WithTx(tx *gorm.DB) Ledger
	Adjust(ctx context.Context, adjustment Adjustment) error
	AdjustMany(ctx context.Context, adjustments []Adjustment) error
}

type ledger struct {
	repo Repository
}

// NewLedger wires a stock ledger with the provided repository.
func NewLedger(repo Repository) (Ledger, error) {
	if repo == nil {
		return nil, fmt.Errorf("stock repository required")
	}
	return &ledger{repo: repo}, nil
}

func (l *ledger) WithTx(tx *gorm.DB) Ledger {
	if tx == nil {
		return l
	}
	return &ledger{repo: l.repo.WithTx(tx)}
}

func (l *ledger) Adjust(ctx context.Context, adjustment Adjustment) error {
	if adjustment.ProductID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if adjustment.Delta == 0 {
		return nil
	}

	affected, err := l.repo.AdjustStock(ctx, adjustment.ProductID, adjustment.Delta)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "adjusting stock")
	}
	if affected > 0 {
		return nil
	}

	// No row matched: either the product is gone or the decrement would have
	// driven stock below zero.
	exists, err := l.repo.ProductExists(ctx, adjustment.ProductID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "checking product")
	}
	if !exists {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
			WithDetails(map[string]any{"product_id": adjustment.ProductID})
	}
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
		WithDetails(map[string]any{
			"product_id": adjustment.ProductID,
			"requested":  -adjustment.Delta,
		})
}

// AdjustMany applies adjustments in order and stops at the first failure. Run
// it inside a transaction so earlier deltas roll back with the failure.
func (l *ledger) AdjustMany(ctx context.Context, adjustments []Adjustment) error {
	for _, adjustment := range adjustments {
		if err := l.Adjust(ctx, adjustment); err != nil {
			return err
		}
	}
	return nil
}
