package catalog

import (
	"context"
	"errors"

	domain "github.com/zynvolt/storefront/internal/domain/catalog"
	"github.com/zynvolt/storefront/internal/observability"
	"github.com/zynvolt/storefront/internal/observability/logctx"
)

// GetProduct serves reads cache-aside: redis first, document store on miss,
// then a best-effort backfill.
func (s *Service) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	if s.cache != nil {
		cached, cerr := s.cache.Get(ctx, productID)
		if cerr == nil {
			return cached, nil
		}
		if !errors.Is(cerr, ErrCacheMiss) {
			logctx.FromOr(ctx, s.log).Warn("cache_read_failed",
				observability.F("product_id", productID),
				observability.F("error", cerr.Error()),
			)
		}
	}

	doc, err := s.catalog.Get(ctx, productID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if serr := s.cache.Set(ctx, doc); serr != nil {
			logctx.FromOr(ctx, s.log).Warn("cache_backfill_failed",
				observability.F("product_id", productID),
				observability.F("error", serr.Error()),
			)
		}
	}
	return doc, nil
}

func (s *Service) ListProducts(ctx context.Context, f domain.Filter) ([]*domain.Product, error) {
	return s.catalog.List(ctx, f)
}

// SyncStockMirror re-reads authoritative stock levels for the given products
// and refreshes the catalog documents. Invoked by the order-paid worker; safe
// to re-apply.
func (s *Service) SyncStockMirror(ctx context.Context, productIDs []string) error {
	repos := s.stores.Repos()
	logger := logctx.FromOr(ctx, s.log)

	var firstErr error
	for _, id := range productIDs {
		ledger, err := repos.Inventory().Get(ctx, id)
		if err != nil {
			// Product may have been deleted since the order was paid.
			logger.Warn("stock_mirror_skip",
				observability.F("product_id", id),
				observability.F("error", err.Error()),
			)
			continue
		}
		if err := s.catalog.SetStockLevel(ctx, id, ledger.StockLevel); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			logger.Warn("stock_mirror_update_failed",
				observability.F("product_id", id),
				observability.F("error", err.Error()),
			)
			continue
		}
		s.invalidate(ctx, id)
	}
	return firstErr
}
