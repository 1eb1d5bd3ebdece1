package payment

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound   = errors.New("payment: not found")
	ErrIncomplete = errors.New("payment: not completed")
)

// Status mirrors the provider-side payment lifecycle.
type Status string

const (
	StatusCreated Status = "Created"
	StatusSuccess Status = "Success"
	StatusFailed  Status = "Failed"
)

// Payment links an order to the provider's identifiers. ProviderOrderRef is
// the join key used by webhook deliveries to find their way back to the order.
type Payment struct {
	ID                 string
	OrderID            string
	ProviderOrderRef   string
	ProviderPaymentRef string
	Amount             decimal.Decimal
	Status             Status
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func New(id, orderID, providerOrderRef string, amount decimal.Decimal) *Payment {
	now := time.Now().UTC()
	return &Payment{
		ID:               id,
		OrderID:          orderID,
		ProviderOrderRef: providerOrderRef,
		Amount:           amount,
		Status:           StatusCreated,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}
