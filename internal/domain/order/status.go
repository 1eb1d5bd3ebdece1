package order

// Status values are the wire strings shared with shipping-webhook payloads.
// They are case-sensitive and persisted as-is.
type Status string

const (
	StatusPendingPayment Status = "Pending Payment"
	StatusPaid           Status = "Paid"
	StatusProcessing     Status = "Processing"
	StatusShipped        Status = "Shipped"
	StatusOutForDelivery Status = "Out for Delivery"
	StatusDelivered      Status = "Delivered"
	StatusCancelled      Status = "Cancelled"
	StatusReturned       Status = "Returned"
)

// transitions is the single source of truth for the order lifecycle graph.
// Cancelled and Returned are reachable from every non-terminal state.
var transitions = map[Status][]Status{
	StatusPendingPayment: {StatusPaid, StatusCancelled, StatusReturned},
	StatusPaid:           {StatusProcessing, StatusCancelled, StatusReturned},
	StatusProcessing:     {StatusShipped, StatusCancelled, StatusReturned},
	StatusShipped:        {StatusOutForDelivery, StatusCancelled, StatusReturned},
	StatusOutForDelivery: {StatusDelivered, StatusCancelled, StatusReturned},
}

// ParseStatus maps an external status string onto the enum. Unknown values
// are rejected instead of being written through.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPendingPayment, StatusPaid, StatusProcessing, StatusShipped,
		StatusOutForDelivery, StatusDelivered, StatusCancelled, StatusReturned:
		return Status(s), nil
	}
	return "", ErrUnknownStatus
}

// IsTerminal reports whether no further transitions are allowed.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// CanTransition reports whether s -> to is a legal edge in the lifecycle graph.
func (s Status) CanTransition(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// AtLeastPaid reports whether the order has already passed through the Paid
// transition. Used as the idempotency precondition for payment confirmations.
func (s Status) AtLeastPaid() bool {
	switch s {
	case StatusPaid, StatusProcessing, StatusShipped, StatusOutForDelivery, StatusDelivered:
		return true
	}
	return false
}

// ActiveStatuses are the states in which an order still references its
// products for fulfillment; products in such orders cannot be deleted.
func ActiveStatuses() []Status {
	return []Status{StatusPendingPayment, StatusPaid, StatusProcessing, StatusShipped, StatusOutForDelivery}
}
