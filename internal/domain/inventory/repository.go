package inventory

import "context"

type Repository interface {
	Get(ctx context.Context, productID string) (*Item, error)
	Insert(ctx context.Context, item *Item) error
	Update(ctx context.Context, item *Item) error
	Delete(ctx context.Context, productID string) error
	// Decrement atomically subtracts qty where stock_level >= qty. It returns
	// ErrInsufficientStock when the condition does not hold, never driving the
	// level negative.
	Decrement(ctx context.Context, productID string, qty int) error
}
