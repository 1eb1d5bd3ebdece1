package payment

import "context"

// IntentLine describes one display line on the provider's hosted checkout page.
type IntentLine struct {
	Name     string
	ImageURL string
	// UnitAmount is in the currency's minor unit (paise, cents).
	UnitAmount int64
	Quantity   int
}

type IntentRequest struct {
	OrderID       string
	UserID        string
	CustomerEmail string
	Currency      string
	// Amount is the frozen order total in minor units.
	Amount int64
	Lines  []IntentLine
}

// Intent is the provider-side order/session created for a checkout.
type Intent struct {
	ProviderOrderRef string
	CheckoutURL      string
	Currency         string
	Amount           int64
}

// Session is the provider's view of a completed (or not) checkout session.
// OrderID and UserID are read back from the metadata attached at intent
// creation.
type Session struct {
	ID      string
	Paid    bool
	OrderID string
	UserID  string
}

// Gateway abstracts the external payment provider. Both the redirect-based
// checkout-session provider and the server-initiated order+signature provider
// fit behind this pair of calls.
type Gateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	ResolveSession(ctx context.Context, sessionID string) (*Session, error)
}
