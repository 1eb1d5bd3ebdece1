// Package memory provides in-memory implementations of the relational store
// ports. They back unit tests and local development; the transaction
// semantics mirror the postgres adapter: work happens on a copy and is only
// swapped in on commit, so an error from the closure rolls everything back.
package memory

import (
	"context"
	"sync"

	"github.com/zynvolt/storefront/internal/application/storetx"
	"github.com/zynvolt/storefront/internal/domain/cart"
	"github.com/zynvolt/storefront/internal/domain/inventory"
	"github.com/zynvolt/storefront/internal/domain/order"
	"github.com/zynvolt/storefront/internal/domain/payment"
)

type state struct {
	inventory  map[string]*inventory.Item
	orders     map[string]*order.Order
	orderItems map[string][]order.Item
	payments   map[string]*payment.Payment
	paymentSeq []string
	carts      map[string]*cart.Cart
	cartItems  map[string][]cart.Item
	seq        int
}

func newState() *state {
	return &state{
		inventory:  make(map[string]*inventory.Item),
		orders:     make(map[string]*order.Order),
		orderItems: make(map[string][]order.Item),
		payments:   make(map[string]*payment.Payment),
		carts:      make(map[string]*cart.Cart),
		cartItems:  make(map[string][]cart.Item),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.inventory {
		item := *v
		c.inventory[k] = &item
	}
	for k, v := range s.orders {
		c.orders[k] = v.Clone()
	}
	for k, v := range s.orderItems {
		c.orderItems[k] = append([]order.Item(nil), v...)
	}
	for k, v := range s.payments {
		p := *v
		c.payments[k] = &p
	}
	c.paymentSeq = append([]string(nil), s.paymentSeq...)
	for k, v := range s.carts {
		cc := *v
		c.carts[k] = &cc
	}
	for k, v := range s.cartItems {
		c.cartItems[k] = append([]cart.Item(nil), v...)
	}
	c.seq = s.seq
	return c
}

// Stores is the in-memory storetx.Stores. CommitErr, when set, makes commits
// fail after the closure ran; tests use it to reach the compensation path
// that only a failed commit can trigger.
type Stores struct {
	mu    sync.Mutex
	state *state

	CommitErr error
}

func NewStores() *Stores {
	return &Stores{state: newState()}
}

func (s *Stores) InTx(_ context.Context, fn func(tx storetx.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(&txHandle{st: work}); err != nil {
		return err
	}
	if s.CommitErr != nil {
		return s.CommitErr
	}
	s.state = work
	return nil
}

func (s *Stores) Repos() storetx.Tx {
	return &txHandle{stores: s}
}

// txHandle serves both modes: bound to a working state inside a transaction,
// or routing each call through the store mutex in autocommit mode.
type txHandle struct {
	stores *Stores
	st     *state
}

func (t *txHandle) run(fn func(st *state) error) error {
	if t.st != nil {
		return fn(t.st)
	}
	t.stores.mu.Lock()
	defer t.stores.mu.Unlock()
	return fn(t.stores.state)
}

func (t *txHandle) Orders() order.Repository         { return &orderRepo{t} }
func (t *txHandle) Payments() payment.Repository     { return &paymentRepo{t} }
func (t *txHandle) Inventory() inventory.Repository  { return &inventoryRepo{t} }
func (t *txHandle) Carts() cart.Repository           { return &cartRepo{t} }
