package memory

import (
	"context"
	"fmt"
	"time"

	domain "github.com/zynvolt/storefront/internal/domain/cart"
)

type cartRepo struct{ t *txHandle }

func (r *cartRepo) GetOrCreate(_ context.Context, userID string) (*domain.Cart, error) {
	var out *domain.Cart
	err := r.t.run(func(st *state) error {
		if c, ok := st.carts[userID]; ok {
			clone := *c
			out = &clone
			return nil
		}
		st.seq++
		now := time.Now().UTC()
		c := &domain.Cart{
			ID:        fmt.Sprintf("cart_%d", st.seq),
			UserID:    userID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		st.carts[userID] = c
		clone := *c
		out = &clone
		return nil
	})
	return out, err
}

func (r *cartRepo) Find(_ context.Context, userID string) (*domain.Cart, error) {
	var out *domain.Cart
	err := r.t.run(func(st *state) error {
		c, ok := st.carts[userID]
		if !ok {
			return domain.ErrNotFound
		}
		clone := *c
		out = &clone
		return nil
	})
	return out, err
}

func (r *cartRepo) Items(_ context.Context, cartID string) ([]domain.Item, error) {
	var out []domain.Item
	err := r.t.run(func(st *state) error {
		out = append([]domain.Item(nil), st.cartItems[cartID]...)
		return nil
	})
	return out, err
}

func (r *cartRepo) AddOrIncrement(_ context.Context, cartID, productID string, qty int) error {
	if qty <= 0 {
		return domain.ErrInvalidQuantity
	}
	return r.t.run(func(st *state) error {
		items := st.cartItems[cartID]
		for i := range items {
			if items[i].ProductID == productID {
				items[i].Quantity += qty
				return nil
			}
		}
		st.cartItems[cartID] = append(items, domain.Item{
			CartID:    cartID,
			ProductID: productID,
			Quantity:  qty,
		})
		return nil
	})
}

func (r *cartRepo) SetQuantity(_ context.Context, cartID, productID string, qty int) error {
	if qty < 1 {
		return domain.ErrInvalidQuantity
	}
	return r.t.run(func(st *state) error {
		items := st.cartItems[cartID]
		for i := range items {
			if items[i].ProductID == productID {
				items[i].Quantity = qty
				return nil
			}
		}
		return domain.ErrItemNotFound
	})
}

func (r *cartRepo) RemoveItem(_ context.Context, cartID, productID string) error {
	return r.t.run(func(st *state) error {
		items := st.cartItems[cartID]
		for i := range items {
			if items[i].ProductID == productID {
				st.cartItems[cartID] = append(items[:i], items[i+1:]...)
				return nil
			}
		}
		return domain.ErrItemNotFound
	})
}

func (r *cartRepo) ClearByUser(_ context.Context, userID string) error {
	return r.t.run(func(st *state) error {
		c, ok := st.carts[userID]
		if !ok {
			return nil
		}
		delete(st.cartItems, c.ID)
		return nil
	})
}
