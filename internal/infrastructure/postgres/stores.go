package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/zynvolt/storefront/internal/application/storetx"
	"github.com/zynvolt/storefront/internal/domain/cart"
	"github.com/zynvolt/storefront/internal/domain/inventory"
	"github.com/zynvolt/storefront/internal/domain/order"
	"github.com/zynvolt/storefront/internal/domain/payment"
)

// querier is the common surface of *sql.DB and *sql.Tx; repositories run
// against either without knowing which.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Stores implements storetx.Stores on a PostgreSQL pool.
type Stores struct {
	db *sql.DB
}

func NewStores(db *sql.DB) *Stores {
	return &Stores{db: db}
}

func (s *Stores) InTx(ctx context.Context, fn func(tx storetx.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(&txHandle{q: sqlTx}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Stores) Repos() storetx.Tx {
	return &txHandle{q: s.db}
}

type txHandle struct {
	q querier
}

func (t *txHandle) Orders() order.Repository        { return &orderRepo{q: t.q} }
func (t *txHandle) Payments() payment.Repository    { return &paymentRepo{q: t.q} }
func (t *txHandle) Inventory() inventory.Repository { return &inventoryRepo{q: t.q} }
func (t *txHandle) Carts() cart.Repository          { return &cartRepo{q: t.q} }
