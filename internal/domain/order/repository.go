package order

import "context"

type Repository interface {
	// Insert persists the order together with its item snapshots.
	Insert(ctx context.Context, o *Order, items []Item) error
	Get(ctx context.Context, id string) (*Order, error)
	GetForUser(ctx context.Context, id, userID string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]*Order, error)
	ListItems(ctx context.Context, orderID string) ([]Item, error)
	FindByTracking(ctx context.Context, trackingNumber string) (*Order, error)
	// Update persists status, tracking fields and UpdatedAt.
	Update(ctx context.Context, o *Order) error
	// UpdateFrom persists like Update but only while the stored status still
	// equals from. ErrStatusChanged means another transaction moved the order
	// first; under read-committed isolation this compare-and-set is what keeps
	// concurrent status transitions from both applying.
	UpdateFrom(ctx context.Context, o *Order, from Status) error
	// CountActiveRefs counts order items that reference productID from orders
	// whose status is outside the terminal set.
	CountActiveRefs(ctx context.Context, productID string) (int, error)
}
