package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mallhive/mallhive-backend/internal/cart"
	"github.com/mallhive/mallhive-backend/internal/orders"
	"github.com/mallhive/mallhive-backend/internal/payments"
	"github.com/mallhive/mallhive-backend/internal/shops"
	"github.com/mallhive/mallhive-backend/internal/stock"
	"github.com/mallhive/mallhive-backend/pkg/db"
	"github.com/mallhive/mallhive-backend/pkg/db/models"
	"github.com/mallhive/mallhive-backend/pkg/enums"
	pkgerrors "github.com/mallhive/mallhive-backend/pkg/errors"
	"github.com/mallhive/mallhive-backend/pkg/logger"
)

const orderNumberRetries = 3

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productCatalog interface {
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

// Service turns a shopper's cart into per-shop orders. Every shop's slice is
// validated up front; creation then runs shop by shop, each in its own
// transaction, so one shop failing never rolls back another shop's order.
type Service interface {
	Checkout(ctx context.Context, shopperID uuid.UUID, input Input) (*Result, error)
}

type service struct {
	carts    cart.Service
	products productCatalog
	shops    shops.Service
	ledger   stock.Ledger
	orders   orders.Repository
	payments payments.Repository
	tx       txRunner
	logg     *logger.Logger
}

// NewService wires the checkout saga with its collaborators.
func NewService(
	carts cart.Service,
	products productCatalog,
	shopSvc shops.Service,
	ledger stock.Ledger,
	orderRepo orders.Repository,
	paymentRepo payments.Repository,
	tx txRunner,
	logg *logger.Logger,
) (Service, error) {
	if carts == nil {
		return nil, fmt.Errorf("cart service required")
	}
	if products == nil {
		return nil, fmt.Errorf("product catalog required")
	}
	if shopSvc == nil {
		return nil, fmt.Errorf("shop service required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if orderRepo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if paymentRepo == nil {
		return nil, fmt.Errorf("payment repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		carts:    carts,
		products: products,
		shops:    shopSvc,
		ledger:   ledger,
		orders:   orderRepo,
		payments: paymentRepo,
		tx:       tx,
		logg:     logg,
	}, nil
}

// shopSlice is one shop's portion of the cart, priced and ready to become an
// order.
type shopSlice struct {
	shop          *models.Shop
	items         []models.OrderLineItem
	deltas        []stock.Adjustment
	subtotalCents int
}

func (s *service) Checkout(ctx context.Context, shopperID uuid.UUID, input Input) (*Result, error) {
	if shopperID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shopper id is required")
	}
	if !input.DeliveryMode.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid delivery mode")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	if input.DeliveryMode != enums.DeliveryModePickup && input.DeliveryAddress.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery address is required")
	}

	shopperCart, err := s.carts.GetCart(ctx, shopperID)
	if err != nil {
		return nil, err
	}
	if len(shopperCart.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	slices, err := s.partition(ctx, shopperCart.Items)
	if err != nil {
		return nil, err
	}

	result := &Result{Orders: []models.Order{}, Failed: []FailedShop{}}
	for _, slice := range slices {
		order, err := s.createShopOrder(ctx, shopperID, input, slice)
		if err != nil {
			s.logg.Error(s.logg.WithFields(ctx, map[string]any{"shop_id": slice.shop.ID}), "checkout failed for shop", err)
			result.Failed = append(result.Failed, FailedShop{
				ShopID:   slice.shop.ID,
				ShopName: slice.shop.Name,
				Reason:   failureReason(err),
			})
			continue
		}
		result.Orders = append(result.Orders, *order)
	}

	// Lines for failed shops stay in the cart so the shopper can retry them.
	if len(result.Orders) > 0 && len(result.Failed) == 0 {
		if err := s.carts.Clear(ctx, shopperID); err != nil {
			s.logg.Error(ctx, "clearing cart after checkout", err)
		}
	} else if len(result.Orders) > 0 {
		s.removeOrderedLines(ctx, shopperID, shopperCart, result.Orders)
	}

	return result, nil
}

// partition groups cart lines by shop in first-appearance order and validates
// every slice before anything is created. Any stock shortfall fails the whole
// checkout here.
func (s *service) partition(ctx context.Context, items []models.CartItem) ([]*shopSlice, error) {
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	list, err := s.products.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	catalog := map[uuid.UUID]*models.Product{}
	for i := range list {
		catalog[list[i].ID] = &list[i]
	}

	short := []map[string]any{}
	order := []uuid.UUID{}
	byShop := map[uuid.UUID]*shopSlice{}
	for _, item := range items {
		product := catalog[item.ProductID]
		if product == nil || !product.IsActive || product.Shop == nil || !product.Shop.IsActive {
			return nil, pkgerrors.New(pkgerrors.CodeUnavailable, "product no longer available").
				WithDetails(map[string]any{"product_id": item.ProductID})
		}
		if item.Quantity > product.StockQty {
			short = append(short, map[string]any{
				"product_id": product.ID,
				"name":       product.Name,
				"requested":  item.Quantity,
				"available":  product.StockQty,
			})
			continue
		}

		slice, ok := byShop[item.ShopID]
		if !ok {
			slice = &shopSlice{shop: product.Shop}
			byShop[item.ShopID] = slice
			order = append(order, item.ShopID)
		}
		lineSubtotal := item.Quantity * item.UnitPriceCents
		slice.items = append(slice.items, models.OrderLineItem{
			ProductID:      product.ID,
			Name:           product.Name,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			SubtotalCents:  lineSubtotal,
		})
		slice.deltas = append(slice.deltas, stock.Adjustment{ProductID: product.ID, Delta: -item.Quantity})
		slice.subtotalCents += lineSubtotal
	}
	if len(short) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
			WithDetails(map[string]any{"products": short})
	}

	slices := make([]*shopSlice, 0, len(order))
	for _, shopID := range order {
		slices = append(slices, byShop[shopID])
	}
	return slices, nil
}

// createShopOrder commits one shop's order, its stock decrement and its
// pending payment row atomically. The order number retries on the rare
// collision with the unique index.
func (s *service) createShopOrder(ctx context.Context, shopperID uuid.UUID, input Input, slice *shopSlice) (*models.Order, error) {
	feeCents := s.shops.DeliveryFeeCents(slice.shop, slice.subtotalCents, input.DeliveryMode)

	var created *models.Order
	for attempt := 0; attempt < orderNumberRetries; attempt++ {
		order := &models.Order{
			OrderNumber:      newOrderNumber(time.Now().UTC()),
			ShopperID:        shopperID,
			ShopID:           slice.shop.ID,
			Status:           enums.OrderStatusPending,
			PaymentStatus:    enums.PaymentStatusPending,
			DeliveryMode:     input.DeliveryMode,
			DeliveryAddress:  input.DeliveryAddress,
			Notes:            input.Notes,
			SubtotalCents:    slice.subtotalCents,
			DeliveryFeeCents: feeCents,
			TotalCents:       slice.subtotalCents + feeCents,
			Items:            cloneLines(slice.items),
		}

		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			if err := s.ledger.WithTx(tx).AdjustMany(ctx, slice.deltas); err != nil {
				return err
			}
			if err := s.orders.WithTx(tx).Create(ctx, order); err != nil {
				return err
			}
			payment := &models.Payment{
				OrderID:     order.ID,
				Method:      input.PaymentMethod,
				Status:      enums.PaymentStatusPending,
				AmountCents: order.TotalCents,
			}
			if err := s.payments.WithTx(tx).Create(ctx, payment); err != nil {
				return err
			}
			order.Payment = payment
			return nil
		})
		if err == nil {
			created = order
			break
		}
		if db.IsUniqueViolation(err, "order_number") && attempt < orderNumberRetries-1 {
			continue
		}
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating order")
	}
	if created == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "could not allocate an order number")
	}
	return created, nil
}

// removeOrderedLines drops only the cart lines that became orders, keeping the
// failed shops' lines for a retry. Failures are logged; the orders already
// committed.
func (s *service) removeOrderedLines(ctx context.Context, shopperID uuid.UUID, shopperCart *models.Cart, created []models.Order) {
	orderedShops := map[uuid.UUID]bool{}
	for _, order := range created {
		orderedShops[order.ShopID] = true
	}
	for _, item := range shopperCart.Items {
		if !orderedShops[item.ShopID] {
			continue
		}
		if _, err := s.carts.RemoveItem(ctx, shopperID, item.ID); err != nil {
			s.logg.Error(ctx, "removing ordered cart line", err)
		}
	}
}

func cloneLines(lines []models.OrderLineItem) []models.OrderLineItem {
	out := make([]models.OrderLineItem, len(lines))
	copy(out, lines)
	return out
}

func failureReason(err error) string {
	if typed := pkgerrors.As(err); typed != nil {
		return typed.Error()
	}
	return "order could not be created"
}
