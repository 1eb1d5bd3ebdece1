package memory

import (
	"context"
	"fmt"
	"sort"

	domain "github.com/zynvolt/storefront/internal/domain/order"
)

type orderRepo struct{ t *txHandle }

func (r *orderRepo) Insert(_ context.Context, o *domain.Order, items []domain.Item) error {
	if o == nil || o.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}
	return r.t.run(func(st *state) error {
		if _, exists := st.orders[o.ID]; exists {
			return domain.ErrConflict
		}
		st.orders[o.ID] = o.Clone()
		st.orderItems[o.ID] = append([]domain.Item(nil), items...)
		return nil
	})
}

func (r *orderRepo) Get(_ context.Context, id string) (*domain.Order, error) {
	var out *domain.Order
	err := r.t.run(func(st *state) error {
		o, ok := st.orders[id]
		if !ok {
			return domain.ErrNotFound
		}
		out = o.Clone()
		return nil
	})
	return out, err
}

func (r *orderRepo) GetForUser(_ context.Context, id, userID string) (*domain.Order, error) {
	var out *domain.Order
	err := r.t.run(func(st *state) error {
		o, ok := st.orders[id]
		if !ok || o.UserID != userID {
			return domain.ErrNotFound
		}
		out = o.Clone()
		return nil
	})
	return out, err
}

func (r *orderRepo) ListByUser(_ context.Context, userID string) ([]*domain.Order, error) {
	var out []*domain.Order
	err := r.t.run(func(st *state) error {
		for _, o := range st.orders {
			if o.UserID == userID {
				out = append(out, o.Clone())
			}
		}
		sort.Slice(out, func(i, j int) bool {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		})
		return nil
	})
	return out, err
}

func (r *orderRepo) ListItems(_ context.Context, orderID string) ([]domain.Item, error) {
	var out []domain.Item
	err := r.t.run(func(st *state) error {
		out = append([]domain.Item(nil), st.orderItems[orderID]...)
		return nil
	})
	return out, err
}

func (r *orderRepo) FindByTracking(_ context.Context, trackingNumber string) (*domain.Order, error) {
	var out *domain.Order
	err := r.t.run(func(st *state) error {
		for _, o := range st.orders {
			if o.TrackingNumber == trackingNumber && trackingNumber != "" {
				out = o.Clone()
				return nil
			}
		}
		return domain.ErrNotFound
	})
	return out, err
}

func (r *orderRepo) Update(_ context.Context, o *domain.Order) error {
	if o == nil || o.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}
	return r.t.run(func(st *state) error {
		if _, exists := st.orders[o.ID]; !exists {
			return domain.ErrNotFound
		}
		st.orders[o.ID] = o.Clone()
		return nil
	})
}

func (r *orderRepo) UpdateFrom(_ context.Context, o *domain.Order, from domain.Status) error {
	if o == nil || o.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}
	return r.t.run(func(st *state) error {
		stored, exists := st.orders[o.ID]
		if !exists {
			return domain.ErrNotFound
		}
		// Compare-and-set against the live status, matching the SQL adapter's
		// conditional UPDATE.
		if stored.Status != from {
			return domain.ErrStatusChanged
		}
		st.orders[o.ID] = o.Clone()
		return nil
	})
}

func (r *orderRepo) CountActiveRefs(_ context.Context, productID string) (int, error) {
	count := 0
	err := r.t.run(func(st *state) error {
		for orderID, items := range st.orderItems {
			o, ok := st.orders[orderID]
			if !ok || o.Status.IsTerminal() {
				continue
			}
			for _, it := range items {
				if it.ProductID == productID {
					count++
				}
			}
		}
		return nil
	})
	return count, err
}
