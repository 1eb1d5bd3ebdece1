// Package storetx defines the explicit transaction boundary for the
// relational store. Every coordinated operation receives a Tx rather than
// relying on ambient connection state, which also makes the boundary
// injectable in unit tests.
package storetx

import (
	"context"

	"github.com/zynvolt/storefront/internal/domain/cart"
	"github.com/zynvolt/storefront/internal/domain/inventory"
	"github.com/zynvolt/storefront/internal/domain/order"
	"github.com/zynvolt/storefront/internal/domain/payment"
)

// Tx exposes the relational repositories bound to one transaction (or to the
// autocommit connection when obtained via Repos).
type Tx interface {
	Orders() order.Repository
	Payments() payment.Repository
	Inventory() inventory.Repository
	Carts() cart.Repository
}

// Stores is the relational store's entry point. InTx runs fn inside a single
// transaction: an error from fn rolls everything back, a nil return commits.
// The commit error, if any, is returned to the caller so compensation against
// a second store can distinguish "fn failed" from "commit failed".
type Stores interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
	// Repos returns repositories running in autocommit mode, for single-store
	// reads that need no coordination.
	Repos() Tx
}
