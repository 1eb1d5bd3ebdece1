package cart

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("cart: not found")
	ErrItemNotFound    = errors.New("cart: item not found")
	ErrInvalidQuantity = errors.New("cart: quantity must be at least one")
)

// Cart is created lazily; one active cart per user.
type Cart struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Item rows are unique per (cart, product); concurrent adds for the same
// product merge into a single quantity.
type Item struct {
	CartID    string
	ProductID string
	Quantity  int
}

type Repository interface {
	GetOrCreate(ctx context.Context, userID string) (*Cart, error)
	Find(ctx context.Context, userID string) (*Cart, error)
	Items(ctx context.Context, cartID string) ([]Item, error)
	// AddOrIncrement merges concurrent adds for the same product into one row.
	AddOrIncrement(ctx context.Context, cartID, productID string, qty int) error
	SetQuantity(ctx context.Context, cartID, productID string, qty int) error
	RemoveItem(ctx context.Context, cartID, productID string) error
	// ClearByUser empties the user's cart; a missing cart is not an error.
	ClearByUser(ctx context.Context, userID string) error
}
