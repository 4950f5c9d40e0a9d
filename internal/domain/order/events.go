package order

import "time"

// OrderCreatedEvent is emitted after the coordinator has reserved stock
// and persisted the order.
type OrderCreatedEvent struct {
	OrderID    string
	UserID     string
	OccurredAt time.Time
}

func (OrderCreatedEvent) EventName() string { return "order.created" }

func NewOrderCreatedEvent(o *Order) OrderCreatedEvent {
	return OrderCreatedEvent{
		OrderID:    o.ID,
		UserID:     o.UserID,
		OccurredAt: time.Now().UTC(),
	}
}

// OrderCancelledEvent is emitted when an order leaves the delivery path.
type OrderCancelledEvent struct {
	OrderID    string
	Reason     string
	OccurredAt time.Time
}

func (OrderCancelledEvent) EventName() string { return "order.cancelled" }

func NewOrderCancelledEvent(orderID, reason string) OrderCancelledEvent {
	return OrderCancelledEvent{
		OrderID:    orderID,
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	}
}
