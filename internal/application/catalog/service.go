package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zynvolt/storefront/internal/application/storetx"
	domain "github.com/zynvolt/storefront/internal/domain/catalog"
	"github.com/zynvolt/storefront/internal/domain/inventory"
	"github.com/zynvolt/storefront/internal/observability"
	"github.com/zynvolt/storefront/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	serviceName = "catalog-service"
	spanPrefix  = "UC."

	useCaseCreate          = "catalog.create_product"
	useCaseUpdateProduct   = "catalog.update_product"
	useCaseUpdateInventory = "catalog.update_inventory"
	useCaseDelete          = "catalog.delete_product"
)

var (
	ErrValidation = errors.New("catalog: validation")

	// ErrPartialFailure is returned when the document write failed and the
	// relational transaction was rolled back: the operation was fully undone.
	ErrPartialFailure = errors.New("catalog: partial failure, operation rolled back")

	// ErrOrphanedCatalog is the one failure mode the coordinator cannot
	// self-heal: compensation against the document store failed after the
	// relational side already diverged. Logged at highest severity for
	// manual reconciliation.
	ErrOrphanedCatalog = errors.New("catalog: stores diverged, manual reconciliation required")

	// ErrActiveOrderRefs refuses deletion of a product still referenced by a
	// non-terminal order.
	ErrActiveOrderRefs = errors.New("catalog: product referenced by active orders")
)

// IDGenerator mints product ids when the admin payload omits one.
type IDGenerator interface {
	NewID() string
}

// Cache is the read-side cache for product documents (cache-aside).
type Cache interface {
	Get(ctx context.Context, productID string) (*domain.Product, error)
	Set(ctx context.Context, p *domain.Product) error
	Delete(ctx context.Context, productID string) error
}

// ErrCacheMiss is returned by Cache.Get when no entry exists.
var ErrCacheMiss = errors.New("catalog: cache miss")

// Service coordinates the product lifecycle across the relational inventory
// ledger and the catalog document store. The two stores share no transaction,
// so every cross-store operation follows one compensation discipline:
// relational write first inside an open transaction, document write second,
// rollback on document failure, compensating document delete if the commit
// itself fails afterward.
type Service struct {
	stores     storetx.Stores
	catalog    domain.Repository
	categories domain.CategoryRepository
	cache      Cache
	ids        IDGenerator

	tel observability.Observability
	log observability.Logger

	reqCounter   observability.Counter
	durHistogram observability.Histogram
	orphans      observability.Counter
}

func NewService(
	stores storetx.Stores,
	catalogRepo domain.Repository,
	categories domain.CategoryRepository,
	cache Cache,
	ids IDGenerator,
	tel observability.Observability,
) *Service {
	if tel == nil {
		tel = observability.Nop()
	}
	metrics := tel.Metrics()
	return &Service{
		stores:       stores,
		catalog:      catalogRepo,
		categories:   categories,
		cache:        cache,
		ids:          ids,
		tel:          tel,
		log:          tel.Logger().With(observability.F("service", serviceName)),
		reqCounter:   metrics.Counter(observability.MUsecaseRequests),
		durHistogram: metrics.Histogram(observability.MUsecaseDuration),
		orphans:      metrics.Counter(observability.MCatalogOrphans),
	}
}

func (s *Service) begin(ctx context.Context, useCase string, attrs ...attribute.KeyValue) (context.Context, func(err error)) {
	attrs = append(attrs, attribute.String("use_case", useCase))
	ctx, span := s.tel.Tracer().Start(ctx, spanPrefix+useCase, attrs...)

	logger := logctx.FromOr(ctx, s.log).With(observability.F("use_case", useCase))
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		logger = logger.With(
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}
	ctx = logctx.With(ctx, logger)
	start := time.Now()

	return ctx, func(err error) {
		lat := time.Since(start).Seconds()
		outcome := "success"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "OK")
		}
		span.End()

		s.reqCounter.Add(1,
			observability.L("use_case", useCase),
			observability.L("outcome", outcome),
		)
		s.durHistogram.Observe(lat, observability.L("use_case", useCase))
		logger.Info("use_case_done",
			observability.F("outcome", outcome),
			observability.F("latency_seconds", lat),
		)
	}
}

type CreateProductInput struct {
	ProductID      string
	SKU            string
	StockLevel     int
	CurrentPrice   decimal.Decimal
	CategoryID     string
	Name           string
	Description    string
	Images         []string
	TechnicalSpecs map[string]string
	DisplayFlags   []string
}

type CreateProductResult struct {
	Product   *domain.Product
	Inventory *inventory.Item
}

// CreateProduct writes the inventory row and the catalog document together:
// both stores contain the product afterward, or neither does. The only gap
// is a commit failure after the document write, which is compensated by
// deleting the document; if that delete also fails the orphan is logged and
// counted for manual reconciliation.
func (s *Service) CreateProduct(ctx context.Context, input CreateProductInput) (_ *CreateProductResult, err error) {
	ctx, finish := s.begin(ctx, useCaseCreate,
		attribute.String("product.category_id", input.CategoryID),
	)
	defer func() { finish(err) }()

	if input.CategoryID == "" {
		return nil, fmt.Errorf("%w: category_id is required", ErrValidation)
	}
	exists, cerr := s.categories.Exists(ctx, input.CategoryID)
	if cerr != nil {
		return nil, fmt.Errorf("catalog: category lookup: %w", cerr)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownCategory, input.CategoryID)
	}

	productID := input.ProductID
	if productID == "" {
		productID = "prod_" + s.ids.NewID()
	}

	now := time.Now().UTC()
	doc := &domain.Product{
		ProductID:      productID,
		CategoryID:     input.CategoryID,
		Name:           input.Name,
		Description:    input.Description,
		DisplayPrice:   input.CurrentPrice.InexactFloat64(),
		StockLevel:     input.StockLevel,
		Images:         input.Images,
		TechnicalSpecs: input.TechnicalSpecs,
		DisplayFlags:   input.DisplayFlags,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if nerr := doc.Normalize(); nerr != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, nerr)
	}

	ledger, ierr := inventory.NewItem(productID, input.SKU, input.StockLevel, input.CurrentPrice)
	if ierr != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, ierr)
	}

	docWritten := false
	err = s.stores.InTx(ctx, func(tx storetx.Tx) error {
		if serr := tx.Inventory().Insert(ctx, ledger); serr != nil {
			return serr
		}
		if derr := s.catalog.Insert(ctx, doc); derr != nil {
			// The relational insert rolls back with the transaction; the
			// caller sees a fully undone operation.
			return fmt.Errorf("%w: document insert: %w", ErrPartialFailure, derr)
		}
		docWritten = true
		return nil
	})
	if err != nil {
		if docWritten {
			// Commit failed after the document landed: compensate by delete.
			s.compensateDocument(ctx, productID, err)
			return nil, fmt.Errorf("%w: commit: %w", ErrPartialFailure, err)
		}
		return nil, err
	}

	logctx.FromOr(ctx, s.log).Info("product_created",
		observability.F("product_id", productID),
		observability.F("sku", input.SKU),
	)
	return &CreateProductResult{Product: doc, Inventory: ledger}, nil
}

// compensateDocument removes an orphaned catalog document after a failed
// relational commit. Failure here is the unrecoverable case.
func (s *Service) compensateDocument(ctx context.Context, productID string, cause error) {
	logger := logctx.FromOr(ctx, s.log)
	if derr := s.catalog.Delete(ctx, productID); derr != nil && !errors.Is(derr, domain.ErrNotFound) {
		s.orphans.Add(1, observability.L("operation", "create"))
		logger.Error("catalog_orphan_detected",
			observability.F("product_id", productID),
			observability.F("cause", cause.Error()),
			observability.F("compensation_error", derr.Error()),
			observability.F("action_required", "manual reconciliation"),
		)
		return
	}
	logger.Warn("catalog_document_compensated",
		observability.F("product_id", productID),
		observability.F("cause", cause.Error()),
	)
}

type UpdateInventoryInput struct {
	StockLevel   *int
	CurrentPrice *decimal.Decimal
}

// UpdateInventory mutates the authoritative ledger row, then refreshes the
// cosmetic mirrors on the document (best-effort).
func (s *Service) UpdateInventory(ctx context.Context, productID string, input UpdateInventoryInput) (_ *inventory.Item, err error) {
	ctx, finish := s.begin(ctx, useCaseUpdateInventory,
		attribute.String("product.id", productID),
	)
	defer func() { finish(err) }()

	var ledger *inventory.Item
	err = s.stores.InTx(ctx, func(tx storetx.Tx) error {
		item, gerr := tx.Inventory().Get(ctx, productID)
		if gerr != nil {
			return gerr
		}
		if input.StockLevel != nil {
			if *input.StockLevel < 0 {
				return fmt.Errorf("%w: stock_level must be zero or greater", ErrValidation)
			}
			item.StockLevel = *input.StockLevel
		}
		if input.CurrentPrice != nil {
			if input.CurrentPrice.IsNegative() {
				return fmt.Errorf("%w: current_price must be zero or greater", ErrValidation)
			}
			item.CurrentPrice = *input.CurrentPrice
		}
		if uerr := tx.Inventory().Update(ctx, item); uerr != nil {
			return uerr
		}
		ledger = item
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger := logctx.FromOr(ctx, s.log)
	if input.StockLevel != nil {
		if merr := s.catalog.SetStockLevel(ctx, productID, ledger.StockLevel); merr != nil {
			logger.Warn("stock_mirror_update_failed",
				observability.F("product_id", productID),
				observability.F("error", merr.Error()),
			)
		}
	}
	if input.CurrentPrice != nil {
		if merr := s.catalog.SetDisplayPrice(ctx, productID, ledger.CurrentPrice.InexactFloat64()); merr != nil {
			logger.Warn("price_mirror_update_failed",
				observability.F("product_id", productID),
				observability.F("error", merr.Error()),
			)
		}
	}
	s.invalidate(ctx, productID)
	return ledger, nil
}

// UpdateProduct edits display data only; the ledger is untouched.
func (s *Service) UpdateProduct(ctx context.Context, productID string, u domain.Update) (_ *domain.Product, err error) {
	ctx, finish := s.begin(ctx, useCaseUpdateProduct,
		attribute.String("product.id", productID),
	)
	defer func() { finish(err) }()

	if u.CategoryID != nil {
		exists, cerr := s.categories.Exists(ctx, *u.CategoryID)
		if cerr != nil {
			return nil, fmt.Errorf("catalog: category lookup: %w", cerr)
		}
		if !exists {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnknownCategory, *u.CategoryID)
		}
	}

	doc, uerr := s.catalog.Update(ctx, productID, u)
	if uerr != nil {
		return nil, uerr
	}
	s.invalidate(ctx, productID)
	return doc, nil
}

// DeleteProduct removes the product from both stores, refusing while any
// non-terminal order still references it. The relational delete runs inside
// a transaction that only commits once the document delete succeeded.
func (s *Service) DeleteProduct(ctx context.Context, productID string) (err error) {
	ctx, finish := s.begin(ctx, useCaseDelete,
		attribute.String("product.id", productID),
	)
	defer func() { finish(err) }()

	docDeleted := false
	err = s.stores.InTx(ctx, func(tx storetx.Tx) error {
		refs, cerr := tx.Orders().CountActiveRefs(ctx, productID)
		if cerr != nil {
			return cerr
		}
		if refs > 0 {
			return fmt.Errorf("%w: %d active orders reference %s", ErrActiveOrderRefs, refs, productID)
		}
		if derr := tx.Inventory().Delete(ctx, productID); derr != nil {
			return derr
		}
		if derr := s.catalog.Delete(ctx, productID); derr != nil {
			return fmt.Errorf("%w: document delete: %w", ErrPartialFailure, derr)
		}
		docDeleted = true
		return nil
	})
	if err != nil {
		if docDeleted {
			// Commit failed after the document was already removed: the
			// ledger row survives without its display document. There is no
			// compensating re-insert; flag for manual reconciliation.
			s.orphans.Add(1, observability.L("operation", "delete"))
			logctx.FromOr(ctx, s.log).Error("catalog_orphan_detected",
				observability.F("product_id", productID),
				observability.F("cause", err.Error()),
				observability.F("action_required", "manual reconciliation"),
			)
			return fmt.Errorf("%w: %w", ErrOrphanedCatalog, err)
		}
		return err
	}

	s.invalidate(ctx, productID)
	logctx.FromOr(ctx, s.log).Info("product_deleted",
		observability.F("product_id", productID),
	)
	return nil
}

func (s *Service) invalidate(ctx context.Context, productID string) {
	if s.cache == nil {
		return
	}
	if cerr := s.cache.Delete(ctx, productID); cerr != nil {
		logctx.FromOr(ctx, s.log).Warn("cache_invalidate_failed",
			observability.F("product_id", productID),
			observability.F("error", cerr.Error()),
		)
	}
}
