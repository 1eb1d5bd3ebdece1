package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	domain "github.com/zynvolt/storefront/internal/domain/payment"
)

type paymentRepo struct {
	q querier
}

const paymentColumns = `id, order_id, provider_order_ref, provider_payment_ref, amount, status, created_at, updated_at`

func (r *paymentRepo) Insert(ctx context.Context, p *domain.Payment) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO payments (`+paymentColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.OrderID, p.ProviderOrderRef, p.ProviderPaymentRef, p.Amount, string(p.Status), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (r *paymentRepo) FindByProviderOrderRef(ctx context.Context, ref string) (*domain.Payment, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE provider_order_ref = $1`, ref)
	return scanPayment(row)
}

func (r *paymentRepo) FindLatestByOrder(ctx context.Context, orderID string) (*domain.Payment, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments
		 WHERE order_id = $1 ORDER BY created_at DESC LIMIT 1`, orderID)
	return scanPayment(row)
}

func (r *paymentRepo) MarkSucceeded(ctx context.Context, id, providerPaymentRef string) error {
	return r.setStatus(ctx, id, domain.StatusSuccess, providerPaymentRef)
}

func (r *paymentRepo) MarkFailed(ctx context.Context, id string) error {
	return r.setStatus(ctx, id, domain.StatusFailed, "")
}

func (r *paymentRepo) setStatus(ctx context.Context, id string, status domain.Status, providerPaymentRef string) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE payments
		 SET status = $2,
		     provider_payment_ref = COALESCE(NULLIF($3, ''), provider_payment_ref),
		     updated_at = NOW()
		 WHERE id = $1`,
		id, string(status), providerPaymentRef,
	)
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update payment rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanPayment(row rowScanner) (*domain.Payment, error) {
	var p domain.Payment
	var status string
	err := row.Scan(
		&p.ID,
		&p.OrderID,
		&p.ProviderOrderRef,
		&p.ProviderPaymentRef,
		&p.Amount,
		&status,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan payment: %w", err)
	}
	p.Status = domain.Status(status)
	return &p, nil
}
