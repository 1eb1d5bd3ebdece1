package order

import (
	"context"
	"time"

	"github.com/zynvolt/storefront/internal/application/storetx"
	domoutbox "github.com/zynvolt/storefront/internal/domain/outbox"
	"github.com/zynvolt/storefront/internal/domain/payment"
	"github.com/zynvolt/storefront/internal/observability"
	"github.com/zynvolt/storefront/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	serviceName = "order-service"
	spanPrefix  = "UC."
)

// Service owns the order lifecycle: checkout, the idempotent Paid transition
// shared by the confirm and webhook paths, admin/shipping status moves, and
// user-scoped reads.
type Service struct {
	stores    storetx.Stores
	gateway   payment.Gateway
	publisher domoutbox.Publisher
	ids       IDGenerator
	currency  string

	tel observability.Observability
	log observability.Logger

	reqCounter     observability.Counter
	durHistogram   observability.Histogram
	stockConflicts observability.Counter
}

func NewService(
	stores storetx.Stores,
	gateway payment.Gateway,
	publisher domoutbox.Publisher,
	ids IDGenerator,
	currency string,
	tel observability.Observability,
) *Service {
	if tel == nil {
		tel = observability.Nop()
	}
	if currency == "" {
		currency = "INR"
	}
	metrics := tel.Metrics()
	return &Service{
		stores:         stores,
		gateway:        gateway,
		publisher:      publisher,
		ids:            ids,
		currency:       currency,
		tel:            tel,
		log:            tel.Logger().With(observability.F("service", serviceName)),
		reqCounter:     metrics.Counter(observability.MUsecaseRequests),
		durHistogram:   metrics.Histogram(observability.MUsecaseDuration),
		stockConflicts: metrics.Counter(observability.MStockConflicts),
	}
}

// begin opens a span and a request-scoped logger for a use case, returning a
// finish func that records RED metrics and the final outcome.
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

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("latency_seconds", lat),
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}
		logger.Info("use_case_done", fields...)
	}
}
