package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/zynvolt/storefront/internal/application/storetx"
	domain "github.com/zynvolt/storefront/internal/domain/order"
	"github.com/zynvolt/storefront/internal/observability"
	"github.com/zynvolt/storefront/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
)

const (
	useCaseUpdateStatus  = "order.update_status"
	useCaseTrackShipment = "order.track_shipment"
)

type Tracking struct {
	Number  string
	Carrier string
	URL     string
}

// UpdateStatus moves an order along the lifecycle graph (admin path). A move
// into Paid is routed through MarkPaid so the inventory side effects cannot
// be bypassed.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, to domain.Status, tracking Tracking) (err error) {
	if to == domain.StatusPaid {
		return s.MarkPaid(ctx, orderID, "")
	}

	ctx, finish := s.begin(ctx, useCaseUpdateStatus,
		attribute.String("order.id", orderID),
		attribute.String("order.to_status", string(to)),
	)
	defer func() { finish(err) }()

	err = s.stores.InTx(ctx, func(tx storetx.Tx) error {
		entity, gerr := tx.Orders().Get(ctx, orderID)
		if gerr != nil {
			return gerr
		}
		from := entity.Status
		if terr := entity.Transition(to); terr != nil {
			return terr
		}
		entity.SetTracking(tracking.Number, tracking.Carrier, tracking.URL)
		if uerr := tx.Orders().UpdateFrom(ctx, entity, from); uerr != nil {
			if errors.Is(uerr, domain.ErrStatusChanged) {
				return retryTransition(ctx, tx, entity.ID, to)
			}
			return fmt.Errorf("%w: %w", ErrRepository, uerr)
		}
		return nil
	})
	return err
}

// retryTransition revalidates a transition whose compare-and-set flip lost to
// a concurrent writer, so the caller gets the transition-table error for the
// status that actually won.
func retryTransition(ctx context.Context, tx storetx.Tx, orderID string, to domain.Status) error {
	cur, gerr := tx.Orders().Get(ctx, orderID)
	if gerr != nil {
		return fmt.Errorf("%w: %w", ErrRepository, gerr)
	}
	if terr := cur.Transition(to); terr != nil {
		return terr
	}
	return fmt.Errorf("%w: %w", ErrRepository, domain.ErrStatusChanged)
}

// TrackShipment applies a carrier webhook update. The external status string
// must map onto the enum and respect the transition table; unmapped values
// are rejected instead of being written through.
func (s *Service) TrackShipment(ctx context.Context, trackingNumber, externalStatus string) (err error) {
	ctx, finish := s.begin(ctx, useCaseTrackShipment,
		attribute.String("order.tracking_number", trackingNumber),
	)
	defer func() { finish(err) }()

	if trackingNumber == "" {
		return newValidation("tracking number is required")
	}
	to, perr := domain.ParseStatus(externalStatus)
	if perr != nil {
		return fmt.Errorf("%w: %q", ErrValidation, externalStatus)
	}
	if to == domain.StatusPaid {
		// Carriers report fulfillment states; payment state never arrives on
		// this channel.
		return fmt.Errorf("%w: %q", ErrValidation, externalStatus)
	}

	err = s.stores.InTx(ctx, func(tx storetx.Tx) error {
		entity, gerr := tx.Orders().FindByTracking(ctx, trackingNumber)
		if gerr != nil {
			return gerr
		}
		from := entity.Status
		if terr := entity.Transition(to); terr != nil {
			return terr
		}
		if uerr := tx.Orders().UpdateFrom(ctx, entity, from); uerr != nil {
			if errors.Is(uerr, domain.ErrStatusChanged) {
				return retryTransition(ctx, tx, entity.ID, to)
			}
			return fmt.Errorf("%w: %w", ErrRepository, uerr)
		}
		if entity.Status.IsTerminal() {
			logctx.FromOr(ctx, s.log).Info("order_reached_terminal_status",
				observability.F("order_id", entity.ID),
				observability.F("status", string(entity.Status)),
			)
		}
		return nil
	})
	return err
}
