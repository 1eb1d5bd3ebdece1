package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/zynvolt/storefront/internal/application/storetx"
	"github.com/zynvolt/storefront/internal/domain/inventory"
	domain "github.com/zynvolt/storefront/internal/domain/order"
	"github.com/zynvolt/storefront/internal/domain/payment"
	"github.com/zynvolt/storefront/internal/observability"
	"github.com/zynvolt/storefront/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
)

const (
	useCaseMarkPaid = "order.mark_paid"
	useCaseConfirm  = "order.confirm_payment"
)

// MarkPaid applies the Paid transition as one atomic relational operation:
// status precondition, payment success, inventory decrement per item, cart
// clearing. It is safe to call from both the client-confirm path and the
// webhook path; a duplicate call is rejected with ErrAlreadyPaid before any
// mutation, which is what makes replays and races converge.
func (s *Service) MarkPaid(ctx context.Context, orderID, providerPaymentRef string) (err error) {
	ctx, finish := s.begin(ctx, useCaseMarkPaid,
		attribute.String("order.id", orderID),
	)
	defer func() { finish(err) }()

	if orderID == "" {
		return newValidation("order id is required")
	}

	var paidEvent domain.PaidEvent

	err = s.stores.InTx(ctx, func(tx storetx.Tx) error {
		entity, gerr := tx.Orders().Get(ctx, orderID)
		if gerr != nil {
			return gerr
		}

		// Idempotency guard: duplicate confirmations stop here, before any
		// write, so inventory is decremented at most once per order.
		from := entity.Status
		if terr := entity.Transition(domain.StatusPaid); terr != nil {
			return terr
		}

		// The compare-and-set flip claims the order. Two concurrent
		// confirmations both read Pending Payment; the one whose flip matches
		// zero rows loses and backs out before touching payment or inventory.
		if uerr := tx.Orders().UpdateFrom(ctx, entity, from); uerr != nil {
			if errors.Is(uerr, domain.ErrStatusChanged) {
				return s.resolveLostRace(ctx, tx, orderID)
			}
			return fmt.Errorf("%w: %w", ErrRepository, uerr)
		}

		pay, perr := tx.Payments().FindLatestByOrder(ctx, orderID)
		switch {
		case perr == nil:
			if merr := tx.Payments().MarkSucceeded(ctx, pay.ID, providerPaymentRef); merr != nil {
				return fmt.Errorf("%w: %w", ErrRepository, merr)
			}
		case errors.Is(perr, payment.ErrNotFound):
			// An order can exist without a payment row only if intent
			// creation was interrupted; the confirmation still stands.
		default:
			return fmt.Errorf("%w: %w", ErrRepository, perr)
		}

		items, lerr := tx.Orders().ListItems(ctx, orderID)
		if lerr != nil {
			return fmt.Errorf("%w: %w", ErrRepository, lerr)
		}
		for _, it := range items {
			if derr := tx.Inventory().Decrement(ctx, it.ProductID, it.Quantity); derr != nil {
				if errors.Is(derr, inventory.ErrInsufficientStock) {
					s.stockConflicts.Add(1, observability.L("product_id", it.ProductID))
					return fmt.Errorf("%w: product %s", ErrStockConflict, it.ProductID)
				}
				return fmt.Errorf("%w: %w", ErrRepository, derr)
			}
		}

		if cerr := tx.Carts().ClearByUser(ctx, entity.UserID); cerr != nil {
			return fmt.Errorf("%w: %w", ErrRepository, cerr)
		}

		paidEvent = domain.NewPaidEvent(entity, items)
		return nil
	})
	if err != nil {
		return err
	}

	// Best-effort fanout after commit: the catalog stock mirror refreshes
	// asynchronously and re-application is harmless.
	if s.publisher != nil {
		if perr := s.publisher.Publish(ctx, paidEvent); perr != nil {
			logctx.FromOr(ctx, s.log).Warn("paid_event_publish_failed",
				observability.F("order_id", orderID),
				observability.F("error", perr.Error()),
			)
		}
	}

	logctx.FromOr(ctx, s.log).Info("order_paid",
		observability.F("order_id", orderID),
	)
	return nil
}

// resolveLostRace rereads an order whose compare-and-set flip matched zero
// rows and translates the winner's committed status into the caller's error,
// ErrAlreadyPaid when the concurrent confirmation won.
func (s *Service) resolveLostRace(ctx context.Context, tx storetx.Tx, orderID string) error {
	cur, gerr := tx.Orders().Get(ctx, orderID)
	if gerr != nil {
		return fmt.Errorf("%w: %w", ErrRepository, gerr)
	}
	if terr := cur.Transition(domain.StatusPaid); terr != nil {
		return terr
	}
	return fmt.Errorf("%w: %w", ErrRepository, domain.ErrStatusChanged)
}

// ConfirmPayment is the client-driven confirmation path: it resolves the
// provider session, requires a paid session, then applies the same Paid
// transition as the webhook path.
func (s *Service) ConfirmPayment(ctx context.Context, userID, sessionID string) (err error) {
	ctx, finish := s.begin(ctx, useCaseConfirm,
		attribute.String("order.user_id", userID),
	)
	defer func() { finish(err) }()

	if sessionID == "" {
		return newValidation("session id is required")
	}

	sess, rerr := s.gateway.ResolveSession(ctx, sessionID)
	if rerr != nil {
		return fmt.Errorf("order: resolve session: %w", rerr)
	}
	if !sess.Paid {
		return fmt.Errorf("%w: session %s", payment.ErrIncomplete, sessionID)
	}
	if sess.OrderID == "" {
		return newValidation("session carries no order reference")
	}
	// The session metadata names its owner; confirming someone else's session
	// answers as if it does not exist.
	if sess.UserID != "" && sess.UserID != userID {
		return fmt.Errorf("%w: session %s", payment.ErrNotFound, sessionID)
	}

	return s.MarkPaid(ctx, sess.OrderID, sess.ID)
}
