package webhook

import (
	"context"
	"errors"
	"fmt"

	apporder "github.com/zynvolt/storefront/internal/application/order"
	"github.com/zynvolt/storefront/internal/application/storetx"
	"github.com/zynvolt/storefront/internal/domain/payment"
	"github.com/zynvolt/storefront/internal/observability"
	"github.com/zynvolt/storefront/internal/observability/logctx"
	"github.com/zynvolt/storefront/internal/pkg/hmacsig"
)

const (
	EventOrderPaid     = "order.paid"
	EventPaymentFailed = "payment.failed"
)

var (
	// ErrSignature means the payload did not verify against the shared
	// secret. The caller rejects with a client error and mutates nothing.
	ErrSignature = errors.New("webhook: invalid signature")

	ErrMalformed = errors.New("webhook: malformed payload")
)

// Envelope is the provider's webhook body: {event, payload} with entity
// wrappers around the provider-side order and payment objects.
type Envelope struct {
	Event   string  `json:"event"`
	Payload Payload `json:"payload"`
}

type Payload struct {
	Order   EntityWrapper `json:"order"`
	Payment EntityWrapper `json:"payment"`
}

type EntityWrapper struct {
	Entity Entity `json:"entity"`
}

type Entity struct {
	ID      string `json:"id"`
	OrderID string `json:"order_id"`
}

// Received adapts a verified envelope to the event bus so delivery
// acknowledgment and business effect stay decoupled.
type Received struct {
	Envelope Envelope
}

func (Received) EventName() string { return "webhook.payment_event" }

// PaidApplier is the Paid-transition entry point shared with the confirm
// path; both converge on the same status precondition.
type PaidApplier interface {
	MarkPaid(ctx context.Context, orderID, providerPaymentRef string) error
}

// Processor applies payment-provider webhook events. Deliveries are
// at-least-once and unordered; every handler here is idempotent.
type Processor struct {
	stores storetx.Stores
	orders PaidApplier
	secret []byte

	log    observability.Logger
	events observability.Counter
}

func NewProcessor(stores storetx.Stores, orders PaidApplier, secret []byte, tel observability.Observability) *Processor {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Processor{
		stores: stores,
		orders: orders,
		secret: secret,
		log:    tel.Logger().With(observability.F("service", "webhook-processor")),
		events: tel.Metrics().Counter(observability.MWebhookEvents),
	}
}

// Verify checks the signature over the raw request body. It must run before
// the body is parsed or any state is touched.
func (p *Processor) Verify(body []byte, signature string) error {
	if !hmacsig.Verify(p.secret, body, signature) {
		return ErrSignature
	}
	return nil
}

// Process applies one verified event. The HTTP layer has already acknowledged
// the delivery, so errors returned here go to logs and metrics only, never
// back to the provider.
func (p *Processor) Process(ctx context.Context, env Envelope) error {
	logger := logctx.FromOr(ctx, p.log).With(observability.F("event", env.Event))

	switch env.Event {
	case EventOrderPaid:
		return p.processOrderPaid(ctx, logger, env)
	case EventPaymentFailed:
		return p.processPaymentFailed(ctx, logger, env)
	default:
		p.count(env.Event, "ignored")
		logger.Debug("webhook_event_ignored")
		return nil
	}
}

func (p *Processor) processOrderPaid(ctx context.Context, logger observability.Logger, env Envelope) error {
	providerOrderRef := env.Payload.Order.Entity.ID
	providerPaymentRef := env.Payload.Payment.Entity.ID
	if providerOrderRef == "" {
		p.count(env.Event, "malformed")
		return fmt.Errorf("%w: missing order reference", ErrMalformed)
	}

	pay, err := p.stores.Repos().Payments().FindByProviderOrderRef(ctx, providerOrderRef)
	if errors.Is(err, payment.ErrNotFound) {
		// An event for an order this system never created, or one already
		// purged. Log and drop; retrying cannot help.
		p.count(env.Event, "unknown_ref")
		logger.Warn("webhook_payment_record_missing",
			observability.F("provider_order_ref", providerOrderRef),
		)
		return nil
	}
	if err != nil {
		p.count(env.Event, "error")
		return fmt.Errorf("webhook: payment lookup: %w", err)
	}

	err = p.orders.MarkPaid(ctx, pay.OrderID, providerPaymentRef)
	switch {
	case err == nil:
		p.count(env.Event, "applied")
		return nil
	case errors.Is(err, apporder.ErrAlreadyPaid):
		// Duplicate delivery; the first one already moved the inventory.
		p.count(env.Event, "duplicate")
		logger.Info("webhook_duplicate_dropped",
			observability.F("order_id", pay.OrderID),
		)
		return nil
	case errors.Is(err, apporder.ErrStockConflict):
		// The money has moved but stock ran out between checkout and
		// confirmation. This must stay loud and distinguishable.
		p.count(env.Event, "stock_conflict")
		logger.Error("webhook_fulfillment_conflict",
			observability.F("order_id", pay.OrderID),
			observability.F("error", err.Error()),
		)
		return err
	default:
		p.count(env.Event, "error")
		return fmt.Errorf("webhook: apply paid transition: %w", err)
	}
}

func (p *Processor) processPaymentFailed(ctx context.Context, logger observability.Logger, env Envelope) error {
	// The provider nests the order reference under the payment entity here.
	providerOrderRef := env.Payload.Payment.Entity.OrderID
	if providerOrderRef == "" {
		p.count(env.Event, "malformed")
		return fmt.Errorf("%w: missing order reference", ErrMalformed)
	}

	pay, err := p.stores.Repos().Payments().FindByProviderOrderRef(ctx, providerOrderRef)
	if errors.Is(err, payment.ErrNotFound) {
		p.count(env.Event, "unknown_ref")
		logger.Warn("webhook_payment_record_missing",
			observability.F("provider_order_ref", providerOrderRef),
		)
		return nil
	}
	if err != nil {
		p.count(env.Event, "error")
		return fmt.Errorf("webhook: payment lookup: %w", err)
	}

	// A failed attempt marks the payment only; the order stays pending so the
	// user can retry.
	if err := p.stores.Repos().Payments().MarkFailed(ctx, pay.ID); err != nil {
		p.count(env.Event, "error")
		return fmt.Errorf("webhook: mark payment failed: %w", err)
	}
	p.count(env.Event, "applied")
	logger.Info("payment_marked_failed",
		observability.F("order_id", pay.OrderID),
		observability.F("provider_order_ref", providerOrderRef),
	)
	return nil
}

func (p *Processor) count(event, outcome string) {
	p.events.Add(1,
		observability.L("event", event),
		observability.L("outcome", outcome),
	)
}
