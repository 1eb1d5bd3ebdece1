package webhook_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apporder "github.com/zynvolt/storefront/internal/application/order"
	"github.com/zynvolt/storefront/internal/application/webhook"
	"github.com/zynvolt/storefront/internal/domain/inventory"
	domainorder "github.com/zynvolt/storefront/internal/domain/order"
	domainpayment "github.com/zynvolt/storefront/internal/domain/payment"
	"github.com/zynvolt/storefront/internal/infrastructure/id"
	"github.com/zynvolt/storefront/internal/infrastructure/memory"
	"github.com/zynvolt/storefront/internal/pkg/hmacsig"
)

var secret = []byte("whsec_test")

type fixture struct {
	processor *webhook.Processor
	orders    *apporder.Service
	stores    *memory.Stores
	gw        *memory.Gateway
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	stores := memory.NewStores()
	gw := memory.NewGateway()
	orders := apporder.NewService(stores, gw, nil, id.NewUUIDGenerator(), "INR", nil)
	processor := webhook.NewProcessor(stores, orders, secret, nil)
	return &fixture{processor: processor, orders: orders, stores: stores, gw: gw}
}

// seedOrder creates a product, checks out an order for it, and returns the
// provider order reference the webhook will carry.
func (f *fixture) seedOrder(t *testing.T, stock, qty int) (orderID, providerOrderRef string) {
	t.Helper()
	ctx := context.Background()

	price := decimal.NewFromInt(100)
	item, err := inventory.NewItem("prod_1", "SKU-1", stock, price)
	require.NoError(t, err)
	require.NoError(t, f.stores.Repos().Inventory().Insert(ctx, item))

	result, err := f.orders.Checkout(ctx, apporder.CheckoutInput{
		UserID: "user_1",
		Items:  []apporder.CheckoutItem{{ProductID: "prod_1", Quantity: qty}},
		Shipping: domainorder.ShippingAddress{
			Name: "Asha Rao", Line1: "14 MG Road", City: "Bengaluru", State: "Karnataka", Pincode: "560001",
		},
	})
	require.NoError(t, err)
	return result.OrderID, result.ProviderOrderRef
}

func paidEnvelope(providerOrderRef, providerPaymentRef string) webhook.Envelope {
	var env webhook.Envelope
	env.Event = webhook.EventOrderPaid
	env.Payload.Order.Entity.ID = providerOrderRef
	env.Payload.Payment.Entity.ID = providerPaymentRef
	return env
}

func TestVerifySignature(t *testing.T) {
	f := newFixture(t)
	body := []byte(`{"event":"order.paid"}`)

	require.NoError(t, f.processor.Verify(body, hmacsig.Sign(secret, body)))

	assert.ErrorIs(t, f.processor.Verify(body, hmacsig.Sign([]byte("wrong"), body)), webhook.ErrSignature)
	assert.ErrorIs(t, f.processor.Verify(body, ""), webhook.ErrSignature)
	assert.ErrorIs(t, f.processor.Verify(append(body, ' '), hmacsig.Sign(secret, body)), webhook.ErrSignature)
}

func TestInvalidSignatureMutatesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orderID, ref := f.seedOrder(t, 10, 2)

	env := paidEnvelope(ref, "pay_1")
	body, err := json.Marshal(env)
	require.NoError(t, err)

	// The edge rejects before Process ever runs; this asserts the contract.
	require.Error(t, f.processor.Verify(body, "deadbeef"))

	entity, err := f.stores.Repos().Orders().Get(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, domainorder.StatusPendingPayment, entity.Status)

	ledger, err := f.stores.Repos().Inventory().Get(ctx, "prod_1")
	require.NoError(t, err)
	assert.Equal(t, 10, ledger.StockLevel)
}

func TestOrderPaidAppliedOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orderID, ref := f.seedOrder(t, 10, 2)

	env := paidEnvelope(ref, "pay_1")
	require.NoError(t, f.processor.Process(ctx, env))

	entity, err := f.stores.Repos().Orders().Get(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, domainorder.StatusPaid, entity.Status)

	pay, err := f.stores.Repos().Payments().FindByProviderOrderRef(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, domainpayment.StatusSuccess, pay.Status)
	assert.Equal(t, "pay_1", pay.ProviderPaymentRef)

	ledger, err := f.stores.Repos().Inventory().Get(ctx, "prod_1")
	require.NoError(t, err)
	assert.Equal(t, 8, ledger.StockLevel)
}

func TestOrderPaidReplayIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, ref := f.seedOrder(t, 10, 2)

	env := paidEnvelope(ref, "pay_1")
	for i := 0; i < 5; i++ {
		require.NoError(t, f.processor.Process(ctx, env), "replay %d must be dropped silently", i)
	}

	ledger, err := f.stores.Repos().Inventory().Get(ctx, "prod_1")
	require.NoError(t, err)
	assert.Equal(t, 8, ledger.StockLevel, "stock decremented exactly once")
}

func TestOrderPaidUnknownRefDropped(t *testing.T) {
	f := newFixture(t)
	env := paidEnvelope("po_never_created", "pay_1")

	// Dropping, not erroring: redelivery of an unknown ref cannot succeed.
	require.NoError(t, f.processor.Process(context.Background(), env))
}

func TestOrderPaidMissingRefMalformed(t *testing.T) {
	f := newFixture(t)
	env := paidEnvelope("", "pay_1")
	assert.ErrorIs(t, f.processor.Process(context.Background(), env), webhook.ErrMalformed)
}

func TestOrderPaidStockConflictSurfaces(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orderID, ref := f.seedOrder(t, 5, 5)

	// Drain stock between checkout and webhook delivery.
	ledger, err := f.stores.Repos().Inventory().Get(ctx, "prod_1")
	require.NoError(t, err)
	ledger.StockLevel = 3
	require.NoError(t, f.stores.Repos().Inventory().Update(ctx, ledger))

	err = f.processor.Process(ctx, paidEnvelope(ref, "pay_1"))
	assert.ErrorIs(t, err, apporder.ErrStockConflict)

	entity, err := f.stores.Repos().Orders().Get(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, domainorder.StatusPendingPayment, entity.Status)
}

func TestPaymentFailedLeavesOrderPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orderID, ref := f.seedOrder(t, 10, 1)

	var env webhook.Envelope
	env.Event = webhook.EventPaymentFailed
	env.Payload.Payment.Entity.OrderID = ref

	require.NoError(t, f.processor.Process(ctx, env))

	pay, err := f.stores.Repos().Payments().FindByProviderOrderRef(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, domainpayment.StatusFailed, pay.Status)

	// The order stays pending so the user can retry payment.
	entity, err := f.stores.Repos().Orders().Get(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, domainorder.StatusPendingPayment, entity.Status)

	ledger, err := f.stores.Repos().Inventory().Get(ctx, "prod_1")
	require.NoError(t, err)
	assert.Equal(t, 10, ledger.StockLevel)
}

func TestUnknownEventIgnored(t *testing.T) {
	f := newFixture(t)
	var env webhook.Envelope
	env.Event = "refund.created"
	require.NoError(t, f.processor.Process(context.Background(), env))
}
