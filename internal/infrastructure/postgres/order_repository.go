package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	domain "github.com/zynvolt/storefront/internal/domain/order"
)

const uniqueViolation = "23505"

type orderRepo struct {
	q querier
}

const orderColumns = `id, user_id, shipping_name, shipping_line1, shipping_city, shipping_state, shipping_pincode,
	total_amount, status, tracking_number, carrier_name, tracking_url, created_at, updated_at`

func (r *orderRepo) Insert(ctx context.Context, o *domain.Order, items []domain.Item) error {
	query := `INSERT INTO orders (` + orderColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.q.ExecContext(ctx, query,
		o.ID,
		o.UserID,
		o.Shipping.Name,
		o.Shipping.Line1,
		o.Shipping.City,
		o.Shipping.State,
		o.Shipping.Pincode,
		o.TotalAmount,
		string(o.Status),
		o.TrackingNumber,
		o.CarrierName,
		o.TrackingURL,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return domain.ErrConflict
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for _, it := range items {
		_, err := r.q.ExecContext(ctx,
			`INSERT INTO order_items (id, order_id, product_id, quantity, unit_price)
			 VALUES ($1, $2, $3, $4, $5)`,
			it.ID, o.ID, it.ProductID, it.Quantity, it.UnitPrice,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

func (r *orderRepo) Get(ctx context.Context, id string) (*domain.Order, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

func (r *orderRepo) GetForUser(ctx context.Context, id, userID string) (*domain.Order, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 AND user_id = $2`, id, userID)
	return scanOrder(row)
}

func (r *orderRepo) ListByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query orders by user: %w", err)
	}
	defer rows.Close()

	var out []*domain.Order
	for rows.Next() {
		o, serr := scanOrder(rows)
		if serr != nil {
			return nil, serr
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

func (r *orderRepo) ListItems(ctx context.Context, orderID string) ([]domain.Item, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, order_id, product_id, quantity, unit_price
		 FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	var out []domain.Item
	for rows.Next() {
		var it domain.Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

func (r *orderRepo) FindByTracking(ctx context.Context, trackingNumber string) (*domain.Order, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE tracking_number = $1`, trackingNumber)
	return scanOrder(row)
}

func (r *orderRepo) Update(ctx context.Context, o *domain.Order) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE orders
		 SET status = $2, tracking_number = $3, carrier_name = $4, tracking_url = $5, updated_at = $6
		 WHERE id = $1`,
		o.ID, string(o.Status), o.TrackingNumber, o.CarrierName, o.TrackingURL, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update order rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *orderRepo) UpdateFrom(ctx context.Context, o *domain.Order, from domain.Status) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE orders
		 SET status = $2, tracking_number = $3, carrier_name = $4, tracking_url = $5, updated_at = $6
		 WHERE id = $1 AND status = $7`,
		o.ID, string(o.Status), o.TrackingNumber, o.CarrierName, o.TrackingURL, o.UpdatedAt,
		string(from),
	)
	if err != nil {
		return fmt.Errorf("update order from status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update order from status rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}

	// Zero rows is ambiguous: the order may not exist, or a concurrent
	// transaction already moved it off from. The loser's UPDATE waits on the
	// winner's row lock and re-checks the predicate, so the follow-up read
	// sees the committed status.
	var exists bool
	if err := r.q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, o.ID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("check order exists: %w", err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrStatusChanged
}

func (r *orderRepo) CountActiveRefs(ctx context.Context, productID string) (int, error) {
	var count int
	err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(*)
		 FROM order_items oi
		 JOIN orders o ON o.id = oi.order_id
		 WHERE oi.product_id = $1 AND o.status NOT IN ($2, $3, $4)`,
		productID,
		string(domain.StatusDelivered),
		string(domain.StatusCancelled),
		string(domain.StatusReturned),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active order refs: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var o domain.Order
	var status string
	err := row.Scan(
		&o.ID,
		&o.UserID,
		&o.Shipping.Name,
		&o.Shipping.Line1,
		&o.Shipping.City,
		&o.Shipping.State,
		&o.Shipping.Pincode,
		&o.TotalAmount,
		&status,
		&o.TrackingNumber,
		&o.CarrierName,
		&o.TrackingURL,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}
	o.Status = domain.Status(status)
	return &o, nil
}
