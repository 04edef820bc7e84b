package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/mallhive/mallhive-backend/pkg/db/models"
	"github.com/mallhive/mallhive-backend/pkg/enums"
	pkgerrors "github.com/mallhive/mallhive-backend/pkg/errors"
	"github.com/mallhive/mallhive-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productCatalog interface {
	GetPurchasable(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

type feePolicy interface {
	DeliveryFeeCents(shop *models.Shop, subtotalCents int, mode enums.DeliveryMode) int
}

// Service exposes the shopper-facing cart operations.
type Service interface {
	GetCart(ctx context.Context, shopperID uuid.UUID) (*models.Cart, error)
	AddItem(ctx context.Context, shopperID uuid.UUID, input AddItemInput) (*models.Cart, error)
	UpdateQuantity(ctx context.Context, shopperID, itemID uuid.UUID, quantity int) (*models.Cart, error)
	RemoveItem(ctx context.Context, shopperID, itemID uuid.UUID) (*models.Cart, error)
	Clear(ctx context.Context, shopperID uuid.UUID) error
	ComputeTotals(ctx context.Context, shopperID uuid.UUID, mode enums.DeliveryMode) (*Totals, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	products productCatalog
	shops    feePolicy
	logg     *logger.Logger
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo Repository, tx txRunner, products productCatalog, shops feePolicy, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if products == nil {
		return nil, fmt.Errorf("product catalog required")
	}
	if shops == nil {
		return nil, fmt.Errorf("fee policy required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		products: products,
		shops:    shops,
		logg:     logg,
	}, nil
}

// GetCart returns the shopper's cart with dead lines pruned. A shopper who
// never added anything gets an empty cart rather than a 404.
func (s *service) GetCart(ctx context.Context, shopperID uuid.UUID) (*models.Cart, error) {
	if shopperID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shopper id is required")
	}

	cart, err := s.repo.GetByShopper(ctx, shopperID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading cart")
	}
	if cart == nil {
		return &models.Cart{ShopperID: shopperID, Items: []models.CartItem{}}, nil
	}

	s.pruneDeadLines(ctx, cart, nil)
	return cart, nil
}

// AddItem puts a product in the cart, merging quantities when the line already
// exists. The unit price snapshot is refreshed to the current effective price.
func (s *service) AddItem(ctx context.Context, shopperID uuid.UUID, input AddItemInput) (*models.Cart, error) {
	if shopperID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shopper id is required")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	product, err := s.products.GetPurchasable(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}

	existing := 0
	cart, err := s.repo.GetByShopper(ctx, shopperID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading cart")
	}
	if cart != nil {
		for _, item := range cart.Items {
			if item.ProductID == product.ID {
				existing = item.Quantity
				break
			}
		}
	}
	if existing+input.Quantity > product.StockQty {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
			WithDetails(map[string]any{
				"product_id": product.ID,
				"requested":  existing + input.Quantity,
				"available":  product.StockQty,
			})
	}

	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		target, err := txRepo.EnsureForShopper(ctx, shopperID)
		if err != nil {
			return err
		}
		return txRepo.UpsertItemIncrement(ctx, &models.CartItem{
			CartID:         target.ID,
			ProductID:      product.ID,
			ShopID:         product.ShopID,
			Quantity:       input.Quantity,
			UnitPriceCents: product.EffectivePriceCents(),
		})
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persisting cart line")
	}

	return s.GetCart(ctx, shopperID)
}

// UpdateQuantity replaces a line's quantity. If the product went away since it
// was added, the line is dropped and the caller told why.
func (s *service) UpdateQuantity(ctx context.Context, shopperID, itemID uuid.UUID, quantity int) (*models.Cart, error) {
	if shopperID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shopper id is required")
	}
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	cart, err := s.repo.GetByShopper(ctx, shopperID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading cart")
	}
	if cart == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
	}

	item, err := s.repo.GetItem(ctx, cart.ID, itemID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading cart item")
	}
	if item == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}

	product, err := s.products.GetPurchasable(ctx, item.ProductID)
	if err != nil {
		typed := pkgerrors.As(err)
		if typed != nil && (typed.Code() == pkgerrors.CodeNotFound || typed.Code() == pkgerrors.CodeUnavailable) {
			if _, dropErr := s.repo.DeleteItem(ctx, cart.ID, itemID); dropErr != nil {
				s.logg.Error(ctx, "dropping dead cart line", dropErr)
			}
			return nil, pkgerrors.New(pkgerrors.CodeUnavailable, "product no longer available").
				WithDetails(map[string]any{"item_id": itemID, "product_id": item.ProductID})
		}
		return nil, err
	}

	if quantity > product.StockQty {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
			WithDetails(map[string]any{
				"product_id": product.ID,
				"requested":  quantity,
				"available":  product.StockQty,
			})
	}

	if err := s.repo.UpdateItemQuantity(ctx, itemID, quantity); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating cart line")
	}
	return s.GetCart(ctx, shopperID)
}

// RemoveItem deletes a line. Removing an absent line is a success.
func (s *service) RemoveItem(ctx context.Context, shopperID, itemID uuid.UUID) (*models.Cart, error) {
	if shopperID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shopper id is required")
	}

	cart, err := s.repo.GetByShopper(ctx, shopperID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading cart")
	}
	if cart == nil {
		return &models.Cart{ShopperID: shopperID, Items: []models.CartItem{}}, nil
	}

	if _, err := s.repo.DeleteItem(ctx, cart.ID, itemID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "removing cart line")
	}
	return s.GetCart(ctx, shopperID)
}

// Clear empties the cart. Clearing a missing or empty cart is a success.
func (s *service) Clear(ctx context.Context, shopperID uuid.UUID) error {
	if shopperID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "shopper id is required")
	}

	cart, err := s.repo.GetByShopper(ctx, shopperID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading cart")
	}
	if cart == nil {
		return nil
	}
	if err := s.repo.ClearItems(ctx, cart.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clearing cart")
	}
	return nil
}

// ComputeTotals quotes the cart without side effects beyond pruning: per-shop
// subtotal, delivery fee from the shop's policy, and the grand total.
func (s *service) ComputeTotals(ctx context.Context, shopperID uuid.UUID, mode enums.DeliveryMode) (*Totals, error) {
	if shopperID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shopper id is required")
	}
	if !mode.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid delivery mode")
	}

	cart, err := s.repo.GetByShopper(ctx, shopperID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading cart")
	}
	totals := &Totals{DeliveryMode: mode, Shops: []ShopBreakdown{}}
	if cart == nil {
		return totals, nil
	}

	catalog := map[uuid.UUID]*models.Product{}
	s.pruneDeadLines(ctx, cart, catalog)

	order := []uuid.UUID{}
	byShop := map[uuid.UUID]*ShopBreakdown{}
	for _, item := range cart.Items {
		product := catalog[item.ProductID]
		if product == nil {
			continue
		}
		group, ok := byShop[item.ShopID]
		if !ok {
			group = &ShopBreakdown{ShopID: item.ShopID, ShopName: product.Shop.Name}
			byShop[item.ShopID] = group
			order = append(order, item.ShopID)
		}
		lineSubtotal := item.Quantity * item.UnitPriceCents
		group.Items = append(group.Items, LineTotal{
			ItemID:         item.ID,
			ProductID:      item.ProductID,
			Name:           product.Name,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			SubtotalCents:  lineSubtotal,
		})
		group.SubtotalCents += lineSubtotal
	}

	for _, shopID := range order {
		group := byShop[shopID]
		product := firstProductForShop(cart.Items, catalog, shopID)
		if product != nil {
			group.DeliveryFeeCents = s.shops.DeliveryFeeCents(product.Shop, group.SubtotalCents, mode)
		}
		group.TotalCents = group.SubtotalCents + group.DeliveryFeeCents
		totals.GrandTotalCents += group.TotalCents
		totals.Shops = append(totals.Shops, *group)
	}

	return totals, nil
}

// pruneDeadLines drops lines whose product or shop went inactive. Failures are
// collected and logged; reads never fail because pruning did.
func (s *service) pruneDeadLines(ctx context.Context, cart *models.Cart, catalog map[uuid.UUID]*models.Product) {
	if len(cart.Items) == 0 {
		return
	}

	ids := make([]uuid.UUID, 0, len(cart.Items))
	for _, item := range cart.Items {
		ids = append(ids, item.ProductID)
	}

	list, err := s.products.ListByIDs(ctx, ids)
	if err != nil {
		s.logg.Error(ctx, "loading products for cart prune", err)
		return
	}
	byID := map[uuid.UUID]*models.Product{}
	for i := range list {
		byID[list[i].ID] = &list[i]
	}

	var pruneErr error
	kept := cart.Items[:0]
	dead := []uuid.UUID{}
	for _, item := range cart.Items {
		product := byID[item.ProductID]
		alive := product != nil && product.IsActive && product.Shop != nil && product.Shop.IsActive
		if !alive {
			dead = append(dead, item.ID)
			continue
		}
		if catalog != nil {
			catalog[item.ProductID] = product
		}
		kept = append(kept, item)
	}
	cart.Items = kept

	if len(dead) > 0 {
		if err := s.repo.DeleteItemsByID(ctx, dead); err != nil {
			pruneErr = multierr.Append(pruneErr, err)
		}
	}
	if pruneErr != nil {
		s.logg.Error(ctx, "pruning dead cart lines", pruneErr)
	}
}

func firstProductForShop(items []models.CartItem, catalog map[uuid.UUID]*models.Product, shopID uuid.UUID) *models.Product {
	for _, item := range items {
		if item.ShopID != shopID {
			continue
		}
		if product := catalog[item.ProductID]; product != nil {
			return product
		}
	}
	return nil
}
