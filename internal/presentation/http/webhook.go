package httppresentation

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	appwebhook "github.com/zynvolt/storefront/internal/application/webhook"
	domainorder "github.com/zynvolt/storefront/internal/domain/order"
	"github.com/zynvolt/storefront/internal/observability"
	"github.com/zynvolt/storefront/internal/observability/logctx"
)

const headerWebhookSignature = "X-Webhook-Signature"

// Payment webhook bodies are small; anything larger is not from the provider.
const maxWebhookBody = 1 << 20

// handlePaymentWebhook verifies the signature over the raw body, acknowledges
// the delivery with 200, and hands the event to the bus. The provider only
// needs to know the delivery arrived intact; applying it is this system's
// problem, and retries of the application happen on the provider's redelivery
// because every handler downstream is idempotent.
func (h *Handler) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("unreadable body"))
		return
	}

	if err := h.webhooks.Verify(body, r.Header.Get(headerWebhookSignature)); err != nil {
		logctx.FromOr(r.Context(), h.log).Warn("webhook_signature_rejected",
			observability.F("remote_addr", r.RemoteAddr),
		)
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var env appwebhook.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		writeError(w, http.StatusBadRequest, appwebhook.ErrMalformed)
		return
	}

	// Ack before effect: the 200 is queued now, the business effect runs on
	// the bus worker.
	if err := h.bus.Publish(r.Context(), appwebhook.Received{Envelope: env}); err != nil {
		logctx.FromOr(r.Context(), h.log).Error("webhook_enqueue_failed",
			observability.F("event", env.Event),
			observability.F("error", err.Error()),
		)
		writeError(w, http.StatusServiceUnavailable, errors.New("event not accepted"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
}

type shippingWebhookRequest struct {
	TrackingNumber string `json:"tracking_number"`
	Status         string `json:"status"`
}

// handleShippingWebhook applies carrier status updates synchronously: the
// carrier's retry policy is the redelivery mechanism, so a rejected update
// must fail the request.
func (h *Handler) handleShippingWebhook(w http.ResponseWriter, r *http.Request) {
	var req shippingWebhookRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	err := h.orders.TrackShipment(r.Context(), req.TrackingNumber, req.Status)
	if err != nil {
		if errors.Is(err, domainorder.ErrInvalidTransition) {
			// Out-of-order carrier notification; the order already moved on.
			writeError(w, http.StatusConflict, err)
			return
		}
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "applied"})
}
