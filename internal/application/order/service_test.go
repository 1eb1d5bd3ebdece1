package order_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apporder "github.com/zynvolt/storefront/internal/application/order"
	"github.com/zynvolt/storefront/internal/application/storetx"
	"github.com/zynvolt/storefront/internal/domain/inventory"
	domain "github.com/zynvolt/storefront/internal/domain/order"
	"github.com/zynvolt/storefront/internal/domain/payment"
	"github.com/zynvolt/storefront/internal/infrastructure/id"
	"github.com/zynvolt/storefront/internal/infrastructure/memory"
)

func newFixture(t *testing.T) (*apporder.Service, *memory.Stores, *memory.Gateway) {
	t.Helper()
	stores := memory.NewStores()
	gw := memory.NewGateway()
	svc := apporder.NewService(stores, gw, nil, id.NewUUIDGenerator(), "INR", nil)
	return svc, stores, gw
}

func seedProduct(t *testing.T, stores *memory.Stores, productID string, stock int, price string) {
	t.Helper()
	p, err := decimal.NewFromString(price)
	require.NoError(t, err)
	item, err := inventory.NewItem(productID, "SKU-"+productID, stock, p)
	require.NoError(t, err)
	require.NoError(t, stores.Repos().Inventory().Insert(context.Background(), item))
}

func shipping() domain.ShippingAddress {
	return domain.ShippingAddress{
		Name:    "Asha Rao",
		Line1:   "14 MG Road",
		City:    "Bengaluru",
		State:   "Karnataka",
		Pincode: "560001",
	}
}

func TestCheckoutFreezesPrices(t *testing.T) {
	svc, stores, _ := newFixture(t)
	ctx := context.Background()
	seedProduct(t, stores, "prod_1", 10, "100.00")

	result, err := svc.Checkout(ctx, apporder.CheckoutInput{
		UserID:   "user_1",
		Items:    []apporder.CheckoutItem{{ProductID: "prod_1", Quantity: 2}},
		Shipping: shipping(),
	})
	require.NoError(t, err)
	assert.True(t, result.Amount.Equal(decimal.NewFromInt(200)), "expected 200, got %s", result.Amount)
	assert.NotEmpty(t, result.ProviderOrderRef)
	assert.NotEmpty(t, result.CheckoutURL)

	// Ledger price change after checkout must not affect the order total.
	ledger, err := stores.Repos().Inventory().Get(ctx, "prod_1")
	require.NoError(t, err)
	ledger.CurrentPrice = decimal.NewFromInt(999)
	require.NoError(t, stores.Repos().Inventory().Update(ctx, ledger))

	entity, err := stores.Repos().Orders().Get(ctx, result.OrderID)
	require.NoError(t, err)
	assert.True(t, entity.TotalAmount.Equal(decimal.NewFromInt(200)))
	assert.Equal(t, domain.StatusPendingPayment, entity.Status)

	items, err := stores.Repos().Orders().ListItems(ctx, result.OrderID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, items[0].UnitPrice.Equal(decimal.NewFromInt(100)))

	// Checkout alone must not touch stock.
	ledger, err = stores.Repos().Inventory().Get(ctx, "prod_1")
	require.NoError(t, err)
	assert.Equal(t, 10, ledger.StockLevel)
}

func TestCheckoutRejectsInsufficientStock(t *testing.T) {
	svc, stores, _ := newFixture(t)
	ctx := context.Background()
	seedProduct(t, stores, "prod_1", 1, "50.00")

	_, err := svc.Checkout(ctx, apporder.CheckoutInput{
		UserID:   "user_1",
		Items:    []apporder.CheckoutItem{{ProductID: "prod_1", Quantity: 2}},
		Shipping: shipping(),
	})
	require.Error(t, err)
	assert.True(t, apporder.IsStockError(err))

	// Rolled back: no order rows survive a failed checkout.
	orders, err := stores.Repos().Orders().ListByUser(ctx, "user_1")
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestCheckoutValidation(t *testing.T) {
	svc, stores, _ := newFixture(t)
	ctx := context.Background()
	seedProduct(t, stores, "prod_1", 5, "10.00")

	cases := []struct {
		name  string
		input apporder.CheckoutInput
	}{
		{"missing user", apporder.CheckoutInput{
			Items:    []apporder.CheckoutItem{{ProductID: "prod_1", Quantity: 1}},
			Shipping: shipping(),
		}},
		{"empty items", apporder.CheckoutInput{
			UserID:   "user_1",
			Shipping: shipping(),
		}},
		{"zero quantity", apporder.CheckoutInput{
			UserID:   "user_1",
			Items:    []apporder.CheckoutItem{{ProductID: "prod_1", Quantity: 0}},
			Shipping: shipping(),
		}},
		{"incomplete shipping", apporder.CheckoutInput{
			UserID: "user_1",
			Items:  []apporder.CheckoutItem{{ProductID: "prod_1", Quantity: 1}},
			Shipping: domain.ShippingAddress{
				Name: "Asha Rao",
			},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Checkout(ctx, tc.input)
			assert.ErrorIs(t, err, apporder.ErrValidation)
		})
	}
}

func checkoutOne(t *testing.T, svc *apporder.Service, userID, productID string, qty int) *apporder.CheckoutResult {
	t.Helper()
	result, err := svc.Checkout(context.Background(), apporder.CheckoutInput{
		UserID:   userID,
		Items:    []apporder.CheckoutItem{{ProductID: productID, Quantity: qty}},
		Shipping: shipping(),
	})
	require.NoError(t, err)
	return result
}

func TestMarkPaidDecrementsOnce(t *testing.T) {
	svc, stores, _ := newFixture(t)
	ctx := context.Background()
	seedProduct(t, stores, "prod_1", 10, "100.00")
	result := checkoutOne(t, svc, "user_1", "prod_1", 2)

	require.NoError(t, svc.MarkPaid(ctx, result.OrderID, "pay_abc"))

	// Replays must converge without a second decrement.
	for i := 0; i < 3; i++ {
		err := svc.MarkPaid(ctx, result.OrderID, "pay_abc")
		assert.ErrorIs(t, err, apporder.ErrAlreadyPaid)
	}

	ledger, err := stores.Repos().Inventory().Get(ctx, "prod_1")
	require.NoError(t, err)
	assert.Equal(t, 8, ledger.StockLevel)

	entity, err := stores.Repos().Orders().Get(ctx, result.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, entity.Status)

	pay, err := stores.Repos().Payments().FindLatestByOrder(ctx, result.OrderID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusSuccess, pay.Status)
	assert.Equal(t, "pay_abc", pay.ProviderPaymentRef)
}

func TestConcurrentConfirmAndWebhookConverge(t *testing.T) {
	svc, stores, _ := newFixture(t)
	ctx := context.Background()
	seedProduct(t, stores, "prod_1", 10, "100.00")
	result := checkoutOne(t, svc, "user_1", "prod_1", 2)

	const racers = 8
	errs := make([]error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = svc.MarkPaid(ctx, result.OrderID, "pay_race")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, apporder.ErrAlreadyPaid)
	}
	assert.Equal(t, 1, succeeded, "exactly one Paid transition must win")

	ledger, err := stores.Repos().Inventory().Get(ctx, "prod_1")
	require.NoError(t, err)
	assert.Equal(t, 8, ledger.StockLevel)
}

// readCommittedStores runs each closure against the live repositories with no
// transaction-wide lock, the visibility a read-committed SQL backend gives:
// two transitions can both read the order before either writes. afterOrderRead
// fires after every successful order read so the test can line the racers up
// at the worst interleaving.
type readCommittedStores struct {
	inner          *memory.Stores
	afterOrderRead func()
}

func (s *readCommittedStores) InTx(_ context.Context, fn func(tx storetx.Tx) error) error {
	return fn(&gatedTx{Tx: s.inner.Repos(), afterOrderRead: s.afterOrderRead})
}

func (s *readCommittedStores) Repos() storetx.Tx { return s.inner.Repos() }

type gatedTx struct {
	storetx.Tx
	afterOrderRead func()
}

func (t *gatedTx) Orders() domain.Repository {
	return &gatedOrders{Repository: t.Tx.Orders(), afterOrderRead: t.afterOrderRead}
}

type gatedOrders struct {
	domain.Repository
	afterOrderRead func()
}

func (r *gatedOrders) Get(ctx context.Context, id string) (*domain.Order, error) {
	o, err := r.Repository.Get(ctx, id)
	if err == nil {
		r.afterOrderRead()
	}
	return o, err
}

func TestMarkPaidRaceWithoutTxSerialization(t *testing.T) {
	mem := memory.NewStores()
	gw := memory.NewGateway()

	// Both racers must observe Pending Payment before either attempts the
	// status flip; later reads pass straight through.
	barrier := make(chan struct{})
	var arrivals int32
	stores := &readCommittedStores{
		inner: mem,
		afterOrderRead: func() {
			if atomic.AddInt32(&arrivals, 1) == 2 {
				close(barrier)
			}
			<-barrier
		},
	}
	svc := apporder.NewService(stores, gw, nil, id.NewUUIDGenerator(), "INR", nil)

	ctx := context.Background()
	seedProduct(t, mem, "prod_1", 10, "100.00")
	result := checkoutOne(t, svc, "user_1", "prod_1", 2)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = svc.MarkPaid(ctx, result.OrderID, "pay_race")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, apporder.ErrAlreadyPaid)
	}
	assert.Equal(t, 1, succeeded, "exactly one Paid transition must win")

	// The loser backed out before the decrement even though both passed the
	// in-memory precondition.
	ledger, err := mem.Repos().Inventory().Get(ctx, "prod_1")
	require.NoError(t, err)
	assert.Equal(t, 8, ledger.StockLevel)
}

func TestMarkPaidStockConflictRollsBack(t *testing.T) {
	svc, stores, _ := newFixture(t)
	ctx := context.Background()
	seedProduct(t, stores, "prod_1", 5, "100.00")
	result := checkoutOne(t, svc, "user_1", "prod_1", 5)

	// Someone else drains the stock between checkout and confirmation.
	ledger, err := stores.Repos().Inventory().Get(ctx, "prod_1")
	require.NoError(t, err)
	ledger.StockLevel = 3
	require.NoError(t, stores.Repos().Inventory().Update(ctx, ledger))

	err = svc.MarkPaid(ctx, result.OrderID, "pay_late")
	assert.ErrorIs(t, err, apporder.ErrStockConflict)

	// Everything rolled back: stock untouched, order still pending.
	ledger, err = stores.Repos().Inventory().Get(ctx, "prod_1")
	require.NoError(t, err)
	assert.Equal(t, 3, ledger.StockLevel)

	entity, err := stores.Repos().Orders().Get(ctx, result.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingPayment, entity.Status)
}

func TestConfirmPaymentEndToEnd(t *testing.T) {
	svc, stores, gw := newFixture(t)
	ctx := context.Background()
	seedProduct(t, stores, "prod_1", 10, "100.00")

	// Cart has content before checkout so the paid transition can clear it.
	cart, err := stores.Repos().Carts().GetOrCreate(ctx, "user_1")
	require.NoError(t, err)
	require.NoError(t, stores.Repos().Carts().AddOrIncrement(ctx, cart.ID, "prod_1", 2))

	result := checkoutOne(t, svc, "user_1", "prod_1", 2)
	assert.True(t, result.Amount.Equal(decimal.NewFromInt(200)))

	gw.PrimeSession(payment.Session{ID: result.ProviderOrderRef, Paid: true, OrderID: result.OrderID, UserID: "user_1"})
	require.NoError(t, svc.ConfirmPayment(ctx, "user_1", result.ProviderOrderRef))

	entity, err := stores.Repos().Orders().Get(ctx, result.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, entity.Status)

	ledger, err := stores.Repos().Inventory().Get(ctx, "prod_1")
	require.NoError(t, err)
	assert.Equal(t, 8, ledger.StockLevel)

	items, err := stores.Repos().Carts().Items(ctx, cart.ID)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestConfirmPaymentRejectsUnpaidSession(t *testing.T) {
	svc, stores, gw := newFixture(t)
	ctx := context.Background()
	seedProduct(t, stores, "prod_1", 10, "100.00")
	result := checkoutOne(t, svc, "user_1", "prod_1", 1)

	// The fake session starts unpaid.
	err := svc.ConfirmPayment(ctx, "user_1", result.ProviderOrderRef)
	assert.ErrorIs(t, err, payment.ErrIncomplete)

	entity, err := stores.Repos().Orders().Get(ctx, result.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingPayment, entity.Status)

	ledger, err := stores.Repos().Inventory().Get(ctx, "prod_1")
	require.NoError(t, err)
	assert.Equal(t, 10, ledger.StockLevel)

	_ = gw
}

func TestConfirmPaymentRejectsForeignSession(t *testing.T) {
	svc, stores, gw := newFixture(t)
	ctx := context.Background()
	seedProduct(t, stores, "prod_1", 10, "100.00")
	result := checkoutOne(t, svc, "user_1", "prod_1", 2)

	gw.PrimeSession(payment.Session{ID: result.ProviderOrderRef, Paid: true, OrderID: result.OrderID, UserID: "user_1"})

	// Another user confirming with a stolen session id gets NotFound, the
	// same answer a nonexistent session gives.
	err := svc.ConfirmPayment(ctx, "user_2", result.ProviderOrderRef)
	assert.ErrorIs(t, err, payment.ErrNotFound)

	entity, err := stores.Repos().Orders().Get(ctx, result.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingPayment, entity.Status)

	ledger, err := stores.Repos().Inventory().Get(ctx, "prod_1")
	require.NoError(t, err)
	assert.Equal(t, 10, ledger.StockLevel)
}

func TestUpdateStatusRoutesPaidThroughMarkPaid(t *testing.T) {
	svc, stores, _ := newFixture(t)
	ctx := context.Background()
	seedProduct(t, stores, "prod_1", 10, "100.00")
	result := checkoutOne(t, svc, "user_1", "prod_1", 2)

	require.NoError(t, svc.UpdateStatus(ctx, result.OrderID, domain.StatusPaid, apporder.Tracking{}))

	// The admin path must not bypass the inventory side effects.
	ledger, err := stores.Repos().Inventory().Get(ctx, "prod_1")
	require.NoError(t, err)
	assert.Equal(t, 8, ledger.StockLevel)
}

func TestUpdateStatusWithTracking(t *testing.T) {
	svc, stores, _ := newFixture(t)
	ctx := context.Background()
	seedProduct(t, stores, "prod_1", 10, "100.00")
	result := checkoutOne(t, svc, "user_1", "prod_1", 1)

	require.NoError(t, svc.MarkPaid(ctx, result.OrderID, "pay_1"))
	require.NoError(t, svc.UpdateStatus(ctx, result.OrderID, domain.StatusProcessing, apporder.Tracking{}))
	require.NoError(t, svc.UpdateStatus(ctx, result.OrderID, domain.StatusShipped, apporder.Tracking{
		Number:  "TRK123",
		Carrier: "BlueDart",
		URL:     "https://track.test/TRK123",
	}))

	entity, err := stores.Repos().Orders().Get(ctx, result.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusShipped, entity.Status)
	assert.Equal(t, "TRK123", entity.TrackingNumber)
	assert.Equal(t, "BlueDart", entity.CarrierName)
}

func TestTrackShipment(t *testing.T) {
	svc, stores, _ := newFixture(t)
	ctx := context.Background()
	seedProduct(t, stores, "prod_1", 10, "100.00")
	result := checkoutOne(t, svc, "user_1", "prod_1", 1)

	require.NoError(t, svc.MarkPaid(ctx, result.OrderID, "pay_1"))
	require.NoError(t, svc.UpdateStatus(ctx, result.OrderID, domain.StatusProcessing, apporder.Tracking{}))
	require.NoError(t, svc.UpdateStatus(ctx, result.OrderID, domain.StatusShipped, apporder.Tracking{Number: "TRK9"}))

	require.NoError(t, svc.TrackShipment(ctx, "TRK9", string(domain.StatusOutForDelivery)))

	entity, err := stores.Repos().Orders().Get(ctx, result.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOutForDelivery, entity.Status)

	t.Run("unmapped status rejected", func(t *testing.T) {
		err := svc.TrackShipment(ctx, "TRK9", "Lost In Transit")
		assert.ErrorIs(t, err, apporder.ErrValidation)
	})

	t.Run("payment status rejected on carrier channel", func(t *testing.T) {
		err := svc.TrackShipment(ctx, "TRK9", string(domain.StatusPaid))
		assert.ErrorIs(t, err, apporder.ErrValidation)
	})

	t.Run("unknown tracking number", func(t *testing.T) {
		err := svc.TrackShipment(ctx, "TRK404", string(domain.StatusDelivered))
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("out of order carrier update", func(t *testing.T) {
		// Delivered is terminal; a late OutForDelivery must not regress it.
		require.NoError(t, svc.TrackShipment(ctx, "TRK9", string(domain.StatusDelivered)))
		err := svc.TrackShipment(ctx, "TRK9", string(domain.StatusOutForDelivery))
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})
}

func TestUserScopedReads(t *testing.T) {
	svc, stores, _ := newFixture(t)
	ctx := context.Background()
	seedProduct(t, stores, "prod_1", 10, "100.00")
	result := checkoutOne(t, svc, "user_1", "prod_1", 1)

	view, err := svc.GetMine(ctx, result.OrderID, "user_1")
	require.NoError(t, err)
	assert.Equal(t, result.OrderID, view.Order.ID)
	require.Len(t, view.Items, 1)

	// Another user sees NotFound, not Forbidden, to avoid leaking existence.
	_, err = svc.GetMine(ctx, result.OrderID, "user_2")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	mine, err := svc.ListMine(ctx, "user_1")
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	theirs, err := svc.ListMine(ctx, "user_2")
	require.NoError(t, err)
	assert.Empty(t, theirs)
}

func TestMarkPaidWithoutPaymentRowStillConfirms(t *testing.T) {
	svc, stores, _ := newFixture(t)
	ctx := context.Background()
	seedProduct(t, stores, "prod_1", 10, "100.00")

	// Order inserted without a payment row, as if intent creation was
	// interrupted after the order insert.
	items := []domain.Item{{ID: "oi_1", OrderID: "ord_1", ProductID: "prod_1", Quantity: 1, UnitPrice: decimal.NewFromInt(100)}}
	entity, err := domain.New("ord_1", "user_1", shipping(), items)
	require.NoError(t, err)
	require.NoError(t, stores.Repos().Orders().Insert(ctx, entity, items))

	require.NoError(t, svc.MarkPaid(ctx, "ord_1", "pay_manual"))

	got, err := stores.Repos().Orders().Get(ctx, "ord_1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, got.Status)
}

func TestMarkPaidUnknownOrder(t *testing.T) {
	svc, _, _ := newFixture(t)
	err := svc.MarkPaid(context.Background(), "ord_missing", "pay_1")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
