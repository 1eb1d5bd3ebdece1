package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/zynvolt/storefront/internal/application/storetx"
	domain "github.com/zynvolt/storefront/internal/domain/cart"
	"github.com/zynvolt/storefront/internal/domain/inventory"
	"github.com/zynvolt/storefront/internal/observability"
)

var ErrValidation = errors.New("cart: validation")

// View is the cart read model: items joined with their ledger rows so the
// client can render current price and availability.
type View struct {
	CartID string
	Items  []LineView
}

type LineView struct {
	ProductID    string
	Quantity     int
	SKU          string
	CurrentPrice string
	StockLevel   int
}

// Service keeps per-user carts against ledger product ids. It is a thin
// producer of order input; the only rule it owns is the merge-on-add
// uniqueness of (cart, product).
type Service struct {
	stores storetx.Stores
	log    observability.Logger
}

func NewService(stores storetx.Stores, tel observability.Observability) *Service {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Service{
		stores: stores,
		log:    tel.Logger().With(observability.F("service", "cart-service")),
	}
}

// AddItem validates current stock (soft check) and merges into an existing
// row when the product is already in the cart. Concurrent adds for the same
// (user, product) converge on one row via the repository's upsert.
func (s *Service) AddItem(ctx context.Context, userID, productID string, qty int) error {
	if userID == "" || productID == "" {
		return fmt.Errorf("%w: user id and product id are required", ErrValidation)
	}
	if qty <= 0 {
		return fmt.Errorf("%w: %s", ErrValidation, domain.ErrInvalidQuantity)
	}

	return s.stores.InTx(ctx, func(tx storetx.Tx) error {
		ledger, err := tx.Inventory().Get(ctx, productID)
		if err != nil {
			return err
		}
		if !ledger.HasStock(qty) {
			return fmt.Errorf("%w: product %s", inventory.ErrInsufficientStock, productID)
		}
		c, err := tx.Carts().GetOrCreate(ctx, userID)
		if err != nil {
			return err
		}
		return tx.Carts().AddOrIncrement(ctx, c.ID, productID, qty)
	})
}

// SetQuantity replaces the line quantity with an absolute value.
func (s *Service) SetQuantity(ctx context.Context, userID, productID string, qty int) error {
	if qty < 1 {
		return fmt.Errorf("%w: %s", ErrValidation, domain.ErrInvalidQuantity)
	}
	return s.stores.InTx(ctx, func(tx storetx.Tx) error {
		c, err := tx.Carts().Find(ctx, userID)
		if err != nil {
			return err
		}
		return tx.Carts().SetQuantity(ctx, c.ID, productID, qty)
	})
}

func (s *Service) RemoveItem(ctx context.Context, userID, productID string) error {
	return s.stores.InTx(ctx, func(tx storetx.Tx) error {
		c, err := tx.Carts().Find(ctx, userID)
		if err != nil {
			return err
		}
		return tx.Carts().RemoveItem(ctx, c.ID, productID)
	})
}

func (s *Service) Clear(ctx context.Context, userID string) error {
	return s.stores.Repos().Carts().ClearByUser(ctx, userID)
}

// Get returns the cart joined with ledger data; a user without a cart gets
// an empty view, not an error.
func (s *Service) Get(ctx context.Context, userID string) (*View, error) {
	repos := s.stores.Repos()

	c, err := repos.Carts().Find(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return &View{}, nil
	}
	if err != nil {
		return nil, err
	}

	items, err := repos.Carts().Items(ctx, c.ID)
	if err != nil {
		return nil, err
	}

	view := &View{CartID: c.ID, Items: make([]LineView, 0, len(items))}
	for _, it := range items {
		line := LineView{ProductID: it.ProductID, Quantity: it.Quantity}
		if ledger, lerr := repos.Inventory().Get(ctx, it.ProductID); lerr == nil {
			line.SKU = ledger.SKU
			line.CurrentPrice = ledger.CurrentPrice.StringFixed(2)
			line.StockLevel = ledger.StockLevel
		}
		view.Items = append(view.Items, line)
	}
	return view, nil
}
