package order

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("order: not found")
	ErrConflict          = errors.New("order: conflict")
	ErrEmptyOrder        = errors.New("order: at least one item is required")
	ErrInvalidQuantity   = errors.New("order: quantity must be greater than zero")
	ErrInvalidShipping   = errors.New("order: shipping address is incomplete")
	ErrUnknownStatus     = errors.New("order: unknown status")
	ErrInvalidTransition = errors.New("order: illegal status transition")
	ErrAlreadyPaid       = errors.New("order: already paid")
	ErrStatusChanged     = errors.New("order: status changed concurrently")
)

// ShippingAddress is snapshotted onto the order at creation time and never
// updated afterward, even if the user edits their address book.
type ShippingAddress struct {
	Name    string
	Line1   string
	City    string
	State   string
	Pincode string
}

func (a ShippingAddress) Validate() error {
	if a.Name == "" || a.Line1 == "" || a.City == "" || a.State == "" || a.Pincode == "" {
		return ErrInvalidShipping
	}
	return nil
}

type Order struct {
	ID             string
	UserID         string
	Shipping       ShippingAddress
	TotalAmount    decimal.Decimal
	Status         Status
	TrackingNumber string
	CarrierName    string
	TrackingURL    string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Item carries the price snapshot taken at order creation. UnitPrice stays
// frozen even if the ledger price changes later; it is the authoritative
// record for revenue and inventory deduction.
type Item struct {
	ID        string
	OrderID   string
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

func New(id, userID string, shipping ShippingAddress, items []Item) (*Order, error) {
	if len(items) == 0 {
		return nil, ErrEmptyOrder
	}
	if err := shipping.Validate(); err != nil {
		return nil, err
	}

	total := decimal.Zero
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		total = total.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}

	now := time.Now().UTC()
	return &Order{
		ID:          id,
		UserID:      userID,
		Shipping:    shipping,
		TotalAmount: total,
		Status:      StatusPendingPayment,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Transition moves the order to the target status after checking the
// lifecycle graph. A repeated transition into Paid reports ErrAlreadyPaid so
// callers can distinguish duplicate confirmations from genuinely illegal moves.
func (o *Order) Transition(to Status) error {
	if to == StatusPaid && o.Status.AtLeastPaid() {
		return ErrAlreadyPaid
	}
	if !o.Status.CanTransition(to) {
		return ErrInvalidTransition
	}
	o.Status = to
	o.touch()
	return nil
}

func (o *Order) SetTracking(number, carrier, url string) {
	if number != "" {
		o.TrackingNumber = number
	}
	if carrier != "" {
		o.CarrierName = carrier
	}
	if url != "" {
		o.TrackingURL = url
	}
	o.touch()
}

func (o *Order) Clone() *Order {
	clone := *o
	return &clone
}

func (o *Order) touch() {
	o.UpdatedAt = time.Now().UTC()
}
