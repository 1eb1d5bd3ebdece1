package order

import (
	"context"

	domain "github.com/zynvolt/storefront/internal/domain/order"
)

// OrderView pairs an order with its item snapshots for read endpoints.
type OrderView struct {
	Order *domain.Order
	Items []domain.Item
}

func (s *Service) ListMine(ctx context.Context, userID string) ([]*domain.Order, error) {
	if userID == "" {
		return nil, newValidation("user id is required")
	}
	return s.stores.Repos().Orders().ListByUser(ctx, userID)
}

// GetMine fetches one order scoped to its owner; other users see NotFound.
func (s *Service) GetMine(ctx context.Context, orderID, userID string) (*OrderView, error) {
	if orderID == "" || userID == "" {
		return nil, newValidation("order id and user id are required")
	}
	repos := s.stores.Repos()
	entity, err := repos.Orders().GetForUser(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}
	items, err := repos.Orders().ListItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &OrderView{Order: entity, Items: items}, nil
}
