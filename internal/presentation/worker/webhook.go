// Package worker hosts the bus subscribers: webhook application and the
// catalog stock-mirror refresh.
package worker

import (
	"context"

	appwebhook "github.com/zynvolt/storefront/internal/application/webhook"
	"github.com/zynvolt/storefront/internal/domain/outbox"
	"github.com/zynvolt/storefront/internal/observability"
	"github.com/zynvolt/storefront/internal/observability/logctx"
)

// WebhookWorker applies verified payment-provider events off the bus. The
// HTTP edge already acknowledged the delivery; failures here surface through
// logs and the webhook_events_total counter.
type WebhookWorker struct {
	subscriber outbox.Subscriber
	processor  *appwebhook.Processor
	log        observability.Logger
}

func NewWebhookWorker(subscriber outbox.Subscriber, processor *appwebhook.Processor, tel observability.Observability) *WebhookWorker {
	if tel == nil {
		tel = observability.Nop()
	}
	return &WebhookWorker{
		subscriber: subscriber,
		processor:  processor,
		log:        tel.Logger().With(observability.F("component", "webhook_worker")),
	}
}

func (w *WebhookWorker) Start() {
	w.subscriber.Subscribe(appwebhook.Received{}.EventName(), w.handleReceived)
}

func (w *WebhookWorker) handleReceived(ctx context.Context, e outbox.Event) error {
	evt, ok := e.(appwebhook.Received)
	if !ok {
		return nil
	}

	if err := w.processor.Process(ctx, evt.Envelope); err != nil {
		logctx.FromOr(ctx, w.log).Warn("webhook_apply_failed",
			observability.F("event", evt.Envelope.Event),
			observability.F("error", err.Error()),
		)
		return err
	}
	return nil
}
