package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	domain "github.com/zynvolt/storefront/internal/domain/inventory"
)

type inventoryRepo struct {
	q querier
}

func (r *inventoryRepo) Get(ctx context.Context, productID string) (*domain.Item, error) {
	var item domain.Item
	err := r.q.QueryRowContext(ctx,
		`SELECT product_id, sku, stock_level, current_price, updated_at
		 FROM inventory WHERE product_id = $1`, productID,
	).Scan(&item.ProductID, &item.SKU, &item.StockLevel, &item.CurrentPrice, &item.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query inventory: %w", err)
	}
	return &item, nil
}

func (r *inventoryRepo) Insert(ctx context.Context, item *domain.Item) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO inventory (product_id, sku, stock_level, current_price, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		item.ProductID, item.SKU, item.StockLevel, item.CurrentPrice, item.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return domain.ErrConflict
		}
		return fmt.Errorf("insert inventory: %w", err)
	}
	return nil
}

func (r *inventoryRepo) Update(ctx context.Context, item *domain.Item) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE inventory SET sku = $2, stock_level = $3, current_price = $4, updated_at = NOW()
		 WHERE product_id = $1`,
		item.ProductID, item.SKU, item.StockLevel, item.CurrentPrice,
	)
	if err != nil {
		return fmt.Errorf("update inventory: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update inventory rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *inventoryRepo) Delete(ctx context.Context, productID string) error {
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM inventory WHERE product_id = $1`, productID)
	if err != nil {
		return fmt.Errorf("delete inventory: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete inventory rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Decrement is the hard stock guard. The WHERE clause only matches when the
// remaining level covers qty, so concurrent confirmations cannot drive the
// level negative; a zero row count distinguishes "missing" from "short".
func (r *inventoryRepo) Decrement(ctx context.Context, productID string, qty int) error {
	if qty <= 0 {
		return domain.ErrInvalidQuantity
	}
	res, err := r.q.ExecContext(ctx,
		`UPDATE inventory
		 SET stock_level = stock_level - $2, updated_at = NOW()
		 WHERE product_id = $1 AND stock_level >= $2`,
		productID, qty,
	)
	if err != nil {
		return fmt.Errorf("decrement inventory: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("decrement inventory rows affected: %w", err)
	}
	if n == 0 {
		var exists bool
		if qerr := r.q.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM inventory WHERE product_id = $1)`, productID,
		).Scan(&exists); qerr != nil {
			return fmt.Errorf("decrement inventory existence check: %w", qerr)
		}
		if !exists {
			return domain.ErrNotFound
		}
		return domain.ErrInsufficientStock
	}
	return nil
}
