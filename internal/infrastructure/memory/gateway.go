package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/zynvolt/storefront/internal/domain/payment"
)

// Gateway is a payment provider fake. Every intent it creates is remembered,
// and PrimeSession decides how ResolveSession answers for a given session ID.
type Gateway struct {
	mu       sync.Mutex
	seq      int
	intents  map[string]payment.IntentRequest
	sessions map[string]*payment.Session

	FailCreate error
}

func NewGateway() *Gateway {
	return &Gateway{
		intents:  make(map[string]payment.IntentRequest),
		sessions: make(map[string]*payment.Session),
	}
}

func (g *Gateway) CreateIntent(_ context.Context, req payment.IntentRequest) (*payment.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.FailCreate != nil {
		return nil, g.FailCreate
	}
	g.seq++
	ref := fmt.Sprintf("po_test_%d", g.seq)
	g.intents[ref] = req
	// The hosted page would mark this paid; tests prime it explicitly.
	g.sessions[ref] = &payment.Session{ID: ref, Paid: false, OrderID: req.OrderID, UserID: req.UserID}
	return &payment.Intent{
		ProviderOrderRef: ref,
		CheckoutURL:      "https://checkout.test/session/" + ref,
		Currency:         req.Currency,
		Amount:           req.Amount,
	}, nil
}

func (g *Gateway) ResolveSession(_ context.Context, sessionID string) (*payment.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.sessions[sessionID]
	if !ok {
		return nil, payment.ErrNotFound
	}
	clone := *s
	return &clone, nil
}

// PrimeSession overrides the stored session, simulating the provider-side
// outcome of a checkout.
func (g *Gateway) PrimeSession(s payment.Session) {
	g.mu.Lock()
	defer g.mu.Unlock()
	clone := s
	g.sessions[s.ID] = &clone
}

// LastIntent returns the most recent intent request, for assertions.
func (g *Gateway) Intent(ref string) (payment.IntentRequest, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	req, ok := g.intents[ref]
	return req, ok
}
