package memory

import (
	"context"
	"time"

	domain "github.com/zynvolt/storefront/internal/domain/inventory"
)

type inventoryRepo struct{ t *txHandle }

func (r *inventoryRepo) Get(_ context.Context, productID string) (*domain.Item, error) {
	var out *domain.Item
	err := r.t.run(func(st *state) error {
		item, ok := st.inventory[productID]
		if !ok {
			return domain.ErrNotFound
		}
		clone := *item
		out = &clone
		return nil
	})
	return out, err
}

func (r *inventoryRepo) Insert(_ context.Context, item *domain.Item) error {
	if item == nil {
		return nil
	}
	return r.t.run(func(st *state) error {
		if _, exists := st.inventory[item.ProductID]; exists {
			return domain.ErrConflict
		}
		clone := *item
		st.inventory[item.ProductID] = &clone
		return nil
	})
}

func (r *inventoryRepo) Update(_ context.Context, item *domain.Item) error {
	return r.t.run(func(st *state) error {
		if _, exists := st.inventory[item.ProductID]; !exists {
			return domain.ErrNotFound
		}
		clone := *item
		clone.UpdatedAt = time.Now().UTC()
		st.inventory[item.ProductID] = &clone
		return nil
	})
}

func (r *inventoryRepo) Delete(_ context.Context, productID string) error {
	return r.t.run(func(st *state) error {
		if _, exists := st.inventory[productID]; !exists {
			return domain.ErrNotFound
		}
		delete(st.inventory, productID)
		return nil
	})
}

// Decrement applies the same conditional-update contract as the SQL adapter:
// subtract only when the level covers qty, otherwise fail without mutating.
func (r *inventoryRepo) Decrement(_ context.Context, productID string, qty int) error {
	if qty <= 0 {
		return domain.ErrInvalidQuantity
	}
	return r.t.run(func(st *state) error {
		item, ok := st.inventory[productID]
		if !ok {
			return domain.ErrNotFound
		}
		if item.StockLevel < qty {
			return domain.ErrInsufficientStock
		}
		item.StockLevel -= qty
		item.UpdatedAt = time.Now().UTC()
		return nil
	})
}
