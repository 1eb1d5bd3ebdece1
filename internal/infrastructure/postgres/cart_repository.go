package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	domain "github.com/zynvolt/storefront/internal/domain/cart"
)

type cartRepo struct {
	q querier
}

// GetOrCreate leans on the unique user_id constraint: the upsert makes the
// lazy creation race-safe under concurrent first adds.
func (r *cartRepo) GetOrCreate(ctx context.Context, userID string) (*domain.Cart, error) {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO carts (id, user_id, created_at, updated_at)
		 VALUES ($1, $2, NOW(), NOW())
		 ON CONFLICT (user_id) DO NOTHING`,
		uuid.NewString(), userID,
	)
	if err != nil {
		return nil, fmt.Errorf("create cart: %w", err)
	}
	return r.Find(ctx, userID)
}

func (r *cartRepo) Find(ctx context.Context, userID string) (*domain.Cart, error) {
	var c domain.Cart
	err := r.q.QueryRowContext(ctx,
		`SELECT id, user_id, created_at, updated_at FROM carts WHERE user_id = $1`, userID,
	).Scan(&c.ID, &c.UserID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query cart: %w", err)
	}
	return &c, nil
}

func (r *cartRepo) Items(ctx context.Context, cartID string) ([]domain.Item, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT cart_id, product_id, quantity FROM cart_items WHERE cart_id = $1 ORDER BY product_id`, cartID)
	if err != nil {
		return nil, fmt.Errorf("query cart items: %w", err)
	}
	defer rows.Close()

	var out []domain.Item
	for rows.Next() {
		var it domain.Item
		if err := rows.Scan(&it.CartID, &it.ProductID, &it.Quantity); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

// AddOrIncrement merges concurrent adds for the same product into one row via
// the (cart_id, product_id) unique constraint.
func (r *cartRepo) AddOrIncrement(ctx context.Context, cartID, productID string, qty int) error {
	if qty <= 0 {
		return domain.ErrInvalidQuantity
	}
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO cart_items (cart_id, product_id, quantity)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (cart_id, product_id)
		 DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity`,
		cartID, productID, qty,
	)
	if err != nil {
		return fmt.Errorf("add cart item: %w", err)
	}
	return nil
}

func (r *cartRepo) SetQuantity(ctx context.Context, cartID, productID string, qty int) error {
	if qty < 1 {
		return domain.ErrInvalidQuantity
	}
	res, err := r.q.ExecContext(ctx,
		`UPDATE cart_items SET quantity = $3 WHERE cart_id = $1 AND product_id = $2`,
		cartID, productID, qty,
	)
	if err != nil {
		return fmt.Errorf("set cart quantity: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set cart quantity rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}

func (r *cartRepo) RemoveItem(ctx context.Context, cartID, productID string) error {
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM cart_items WHERE cart_id = $1 AND product_id = $2`,
		cartID, productID,
	)
	if err != nil {
		return fmt.Errorf("remove cart item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove cart item rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}

func (r *cartRepo) ClearByUser(ctx context.Context, userID string) error {
	_, err := r.q.ExecContext(ctx,
		`DELETE FROM cart_items
		 WHERE cart_id IN (SELECT id FROM carts WHERE user_id = $1)`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}
