package order

import "time"

// PaidEvent is emitted after the Paid transition commits. Handlers refresh
// derived read models (catalog stock mirror); re-delivery is harmless.
type PaidEvent struct {
	OrderID    string
	UserID     string
	ProductIDs []string
	OccurredAt time.Time
}

func (PaidEvent) EventName() string { return "order.paid" }

func NewPaidEvent(o *Order, items []Item) PaidEvent {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	return PaidEvent{
		OrderID:    o.ID,
		UserID:     o.UserID,
		ProductIDs: ids,
		OccurredAt: time.Now().UTC(),
	}
}
