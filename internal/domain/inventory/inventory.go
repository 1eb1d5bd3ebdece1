package inventory

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("inventory: product not found")
	ErrConflict          = errors.New("inventory: conflict")
	ErrInvalidQuantity   = errors.New("inventory: quantity must be greater than zero")
	ErrInvalidPrice      = errors.New("inventory: price must be zero or greater")
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
)

// Item is the ledger row for a product. StockLevel and CurrentPrice here are
// authoritative; any copy on the catalog document is a derived mirror.
type Item struct {
	ProductID    string
	SKU          string
	StockLevel   int
	CurrentPrice decimal.Decimal
	UpdatedAt    time.Time
}

func NewItem(productID, sku string, stockLevel int, price decimal.Decimal) (*Item, error) {
	if stockLevel < 0 {
		return nil, ErrInvalidQuantity
	}
	if price.IsNegative() {
		return nil, ErrInvalidPrice
	}
	return &Item{
		ProductID:    productID,
		SKU:          sku,
		StockLevel:   stockLevel,
		CurrentPrice: price,
		UpdatedAt:    time.Now().UTC(),
	}, nil
}

// HasStock is the soft check used at order-creation time. It holds no lock;
// the conditional decrement at confirmation time is the hard guard.
func (i *Item) HasStock(qty int) bool {
	return qty > 0 && i.StockLevel >= qty
}
