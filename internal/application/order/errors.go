package order

import (
	"errors"
	"fmt"

	domain "github.com/zynvolt/storefront/internal/domain/order"
)

var (
	ErrNotFound    = domain.ErrNotFound
	ErrAlreadyPaid = domain.ErrAlreadyPaid
	ErrValidation  = errors.New("order: validation")
	ErrRepository  = errors.New("order: repository failure")

	// ErrStockConflict means a conditional decrement failed during the Paid
	// transition: the soft reservation at checkout was oversold in the
	// meantime. Distinct from a payment failure: by the time it fires the
	// money has already moved.
	ErrStockConflict = errors.New("order: insufficient stock at fulfillment")
)

func newValidation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
