package payment

import "time"

// PaymentSucceededEvent is emitted when an attempt reaches SUCCEEDED.
type PaymentSucceededEvent struct {
	PaymentID  string
	OrderID    string
	OccurredAt time.Time
}

func (PaymentSucceededEvent) EventName() string { return "payment.succeeded" }

func NewPaymentSucceededEvent(p *Payment) PaymentSucceededEvent {
	return PaymentSucceededEvent{
		PaymentID:  p.ID,
		OrderID:    p.OrderID,
		OccurredAt: time.Now().UTC(),
	}
}

// PaymentFailedEvent is emitted when an attempt reaches FAILED. The
// checkout worker reacts by releasing the order's stock reservation.
type PaymentFailedEvent struct {
	PaymentID  string
	OrderID    string
	Reason     string
	OccurredAt time.Time
}

func (PaymentFailedEvent) EventName() string { return "payment.failed" }

func NewPaymentFailedEvent(p *Payment, reason string) PaymentFailedEvent {
	return PaymentFailedEvent{
		PaymentID:  p.ID,
		OrderID:    p.OrderID,
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	}
}
