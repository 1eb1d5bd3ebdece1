// Package gateway is the HTTP client for the hosted-checkout payment
// provider. The order id travels in the session metadata and comes back on
// session lookup, which is how a confirmation finds its order.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/zynvolt/storefront/internal/domain/payment"
	"github.com/zynvolt/storefront/internal/observability"
)

const componentGateway = "payment_gateway"

type Config struct {
	BaseURL    string
	APIKey     string
	SuccessURL string
	CancelURL  string
}

type Client struct {
	cfg  Config
	http *http.Client
	log  observability.Logger

	extRequests  observability.Counter
	extDurations observability.Histogram
}

func NewClient(cfg Config, tel observability.Observability) *Client {
	if tel == nil {
		tel = observability.Nop()
	}
	metrics := tel.Metrics()
	return &Client{
		cfg:          cfg,
		http:         &http.Client{Timeout: 15 * time.Second},
		log:          tel.Logger().With(observability.F("component", componentGateway)),
		extRequests:  metrics.Counter(observability.MExternalRequests),
		extDurations: metrics.Histogram(observability.MExternalRequestDuration),
	}
}

type sessionLine struct {
	Name       string `json:"name"`
	ImageURL   string `json:"image_url,omitempty"`
	UnitAmount int64  `json:"unit_amount"`
	Quantity   int    `json:"quantity"`
}

type createSessionRequest struct {
	Currency      string            `json:"currency"`
	Amount        int64             `json:"amount"`
	CustomerEmail string            `json:"customer_email,omitempty"`
	SuccessURL    string            `json:"success_url"`
	CancelURL     string            `json:"cancel_url"`
	Lines         []sessionLine     `json:"line_items"`
	Metadata      map[string]string `json:"metadata"`
}

type sessionResponse struct {
	ID            string            `json:"id"`
	URL           string            `json:"url"`
	Currency      string            `json:"currency"`
	Amount        int64             `json:"amount"`
	PaymentStatus string            `json:"payment_status"`
	Metadata      map[string]string `json:"metadata"`
}

func (c *Client) CreateIntent(ctx context.Context, req payment.IntentRequest) (*payment.Intent, error) {
	lines := make([]sessionLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, sessionLine{
			Name:       l.Name,
			ImageURL:   l.ImageURL,
			UnitAmount: l.UnitAmount,
			Quantity:   l.Quantity,
		})
	}

	body := createSessionRequest{
		Currency:      req.Currency,
		Amount:        req.Amount,
		CustomerEmail: req.CustomerEmail,
		SuccessURL:    c.cfg.SuccessURL + "?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     c.cfg.CancelURL,
		Lines:         lines,
		Metadata: map[string]string{
			"order_id": req.OrderID,
			"user_id":  req.UserID,
		},
	}

	var resp sessionResponse
	if err := c.do(ctx, http.MethodPost, "/v1/checkout/sessions", body, &resp); err != nil {
		return nil, err
	}

	return &payment.Intent{
		ProviderOrderRef: resp.ID,
		CheckoutURL:      resp.URL,
		Currency:         resp.Currency,
		Amount:           resp.Amount,
	}, nil
}

func (c *Client) ResolveSession(ctx context.Context, sessionID string) (*payment.Session, error) {
	var resp sessionResponse
	if err := c.do(ctx, http.MethodGet, "/v1/checkout/sessions/"+sessionID, nil, &resp); err != nil {
		return nil, err
	}
	return &payment.Session{
		ID:      resp.ID,
		Paid:    resp.PaymentStatus == "paid",
		OrderID: resp.Metadata["order_id"],
		UserID:  resp.Metadata["user_id"],
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("gateway: encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("gateway: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	lat := time.Since(start).Seconds()

	outcome := "success"
	statusLabel := "0"
	if err == nil {
		statusLabel = strconv.Itoa(resp.StatusCode)
		if resp.StatusCode >= 400 {
			outcome = "error"
		}
	} else {
		outcome = "error"
	}
	c.extRequests.Add(1,
		observability.L("target", componentGateway),
		observability.L("outcome", outcome),
		observability.L("status", statusLabel),
	)
	c.extDurations.Observe(lat, observability.L("target", componentGateway))

	if err != nil {
		return fmt.Errorf("gateway: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return payment.ErrNotFound
	}
	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.log.Warn("gateway_request_failed",
			observability.F("method", method),
			observability.F("path", path),
			observability.F("status", resp.StatusCode),
			observability.F("body", string(raw)),
		)
		return fmt.Errorf("gateway: %s %s: status %d", method, path, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("gateway: decode response: %w", err)
		}
	}
	return nil
}
