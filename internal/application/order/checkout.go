package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/zynvolt/storefront/internal/application/storetx"
	"github.com/zynvolt/storefront/internal/domain/inventory"
	domain "github.com/zynvolt/storefront/internal/domain/order"
	"github.com/zynvolt/storefront/internal/domain/payment"
	"github.com/zynvolt/storefront/internal/observability"
	"github.com/zynvolt/storefront/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
)

const useCaseCheckout = "order.checkout"

var minorUnits = decimal.NewFromInt(100)

type CheckoutItem struct {
	ProductID string
	Quantity  int
}

type CheckoutInput struct {
	UserID   string
	Email    string
	Items    []CheckoutItem
	Shipping domain.ShippingAddress
}

type CheckoutResult struct {
	OrderID          string
	ProviderOrderRef string
	CheckoutURL      string
	Amount           decimal.Decimal
	Currency         string
}

// Checkout validates stock (soft check), freezes unit prices into the order
// items, persists order+items+payment and creates the provider intent, all
// inside one relational transaction, so a failure at any step leaves nothing
// behind.
func (s *Service) Checkout(ctx context.Context, input CheckoutInput) (_ *CheckoutResult, err error) {
	ctx, finish := s.begin(ctx, useCaseCheckout,
		attribute.String("order.user_id", input.UserID),
		attribute.Int("order.item_count", len(input.Items)),
	)
	defer func() { finish(err) }()

	if input.UserID == "" {
		return nil, newValidation("user id is required")
	}
	if len(input.Items) == 0 {
		return nil, newValidation("cart is empty")
	}
	for _, it := range input.Items {
		if it.ProductID == "" {
			return nil, newValidation("product id is required")
		}
		if it.Quantity <= 0 {
			return nil, newValidation("quantity must be greater than zero for product %s", it.ProductID)
		}
	}
	if verr := input.Shipping.Validate(); verr != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, verr)
	}

	var result *CheckoutResult

	err = s.stores.InTx(ctx, func(tx storetx.Tx) error {
		orderID := s.ids.NewID()

		items := make([]domain.Item, 0, len(input.Items))
		lines := make([]payment.IntentLine, 0, len(input.Items))
		for _, it := range input.Items {
			ledger, gerr := tx.Inventory().Get(ctx, it.ProductID)
			if gerr != nil {
				return gerr
			}
			// Point-in-time guard only; the hard guard is the conditional
			// decrement at confirmation time.
			if !ledger.HasStock(it.Quantity) {
				return fmt.Errorf("%w: product %s", inventory.ErrInsufficientStock, it.ProductID)
			}
			items = append(items, domain.Item{
				ID:        s.ids.NewID(),
				OrderID:   orderID,
				ProductID: it.ProductID,
				Quantity:  it.Quantity,
				UnitPrice: ledger.CurrentPrice,
			})
			lines = append(lines, payment.IntentLine{
				Name:       ledger.SKU,
				UnitAmount: ledger.CurrentPrice.Mul(minorUnits).IntPart(),
				Quantity:   it.Quantity,
			})
		}

		entity, derr := domain.New(orderID, input.UserID, input.Shipping, items)
		if derr != nil {
			return fmt.Errorf("%w: %s", ErrValidation, derr)
		}
		if ierr := tx.Orders().Insert(ctx, entity, items); ierr != nil {
			return fmt.Errorf("%w: %w", ErrRepository, ierr)
		}

		intent, perr := s.gateway.CreateIntent(ctx, payment.IntentRequest{
			OrderID:       entity.ID,
			UserID:        input.UserID,
			CustomerEmail: input.Email,
			Currency:      s.currency,
			Amount:        entity.TotalAmount.Mul(minorUnits).IntPart(),
			Lines:         lines,
		})
		if perr != nil {
			return fmt.Errorf("order: create payment intent: %w", perr)
		}

		pay := payment.New(s.ids.NewID(), entity.ID, intent.ProviderOrderRef, entity.TotalAmount)
		if ierr := tx.Payments().Insert(ctx, pay); ierr != nil {
			return fmt.Errorf("%w: %w", ErrRepository, ierr)
		}

		result = &CheckoutResult{
			OrderID:          entity.ID,
			ProviderOrderRef: intent.ProviderOrderRef,
			CheckoutURL:      intent.CheckoutURL,
			Amount:           entity.TotalAmount,
			Currency:         s.currency,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger := logctx.FromOr(ctx, s.log)
	logger.Info("order_created",
		observability.F("order_id", result.OrderID),
		observability.F("provider_order_ref", result.ProviderOrderRef),
		observability.F("amount", result.Amount.StringFixed(2)),
	)
	return result, nil
}

// IsStockError reports whether err came from the soft stock check.
func IsStockError(err error) bool {
	return errors.Is(err, inventory.ErrInsufficientStock)
}
