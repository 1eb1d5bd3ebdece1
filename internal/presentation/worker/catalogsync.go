package worker

import (
	"context"

	appcatalog "github.com/zynvolt/storefront/internal/application/catalog"
	domorder "github.com/zynvolt/storefront/internal/domain/order"
	"github.com/zynvolt/storefront/internal/domain/outbox"
	"github.com/zynvolt/storefront/internal/observability"
	"github.com/zynvolt/storefront/internal/observability/logctx"
)

// CatalogSyncWorker refreshes the derived stock mirror on catalog documents
// after an order is paid. Re-application is harmless; the mirror is an
// absolute copy of the ledger level.
type CatalogSyncWorker struct {
	subscriber outbox.Subscriber
	catalog    *appcatalog.Service
	log        observability.Logger
}

func NewCatalogSyncWorker(subscriber outbox.Subscriber, catalog *appcatalog.Service, tel observability.Observability) *CatalogSyncWorker {
	if tel == nil {
		tel = observability.Nop()
	}
	return &CatalogSyncWorker{
		subscriber: subscriber,
		catalog:    catalog,
		log:        tel.Logger().With(observability.F("component", "catalog_sync_worker")),
	}
}

func (w *CatalogSyncWorker) Start() {
	w.subscriber.Subscribe(domorder.PaidEvent{}.EventName(), w.handleOrderPaid)
}

func (w *CatalogSyncWorker) handleOrderPaid(ctx context.Context, e outbox.Event) error {
	evt, ok := e.(domorder.PaidEvent)
	if !ok {
		return nil
	}

	if err := w.catalog.SyncStockMirror(ctx, evt.ProductIDs); err != nil {
		logctx.FromOr(ctx, w.log).Warn("stock_mirror_sync_failed",
			observability.F("order_id", evt.OrderID),
			observability.F("error", err.Error()),
		)
		return err
	}

	logctx.FromOr(ctx, w.log).Info("stock_mirror_synced",
		observability.F("order_id", evt.OrderID),
		observability.F("products", len(evt.ProductIDs)),
	)
	return nil
}
