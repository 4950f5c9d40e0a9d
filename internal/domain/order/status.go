package order

// FulfillmentStatus tracks the physical side of an order, independently
// of payment.
type FulfillmentStatus string

const (
	FulfillmentPending    FulfillmentStatus = "PENDING"
	FulfillmentInProgress FulfillmentStatus = "IN_PROGRESS"
	FulfillmentInTransit  FulfillmentStatus = "IN_TRANSIT"
	FulfillmentDelivered  FulfillmentStatus = "DELIVERED"
	FulfillmentCancelled  FulfillmentStatus = "CANCELLED"
)

// PaymentStatus tracks the money side. PAID and FAILED are terminal for
// the current attempt; only the checkout coordinator may reopen FAILED
// back to PENDING when a retry payment is created.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
	PaymentFailed  PaymentStatus = "FAILED"
)

// fulfillmentTransitions is the directed edge set. No back-edges exist;
// cancellation is the only branch off the delivery path.
var fulfillmentTransitions = map[FulfillmentStatus][]FulfillmentStatus{
	FulfillmentPending:    {FulfillmentInProgress, FulfillmentCancelled},
	FulfillmentInProgress: {FulfillmentInTransit, FulfillmentCancelled},
	FulfillmentInTransit:  {FulfillmentDelivered, FulfillmentCancelled},
	FulfillmentDelivered:  {},
	FulfillmentCancelled:  {},
}

func (s FulfillmentStatus) CanTransitionTo(next FulfillmentStatus) bool {
	if s == next {
		return true
	}
	for _, allowed := range fulfillmentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s FulfillmentStatus) Valid() bool {
	_, ok := fulfillmentTransitions[s]
	return ok
}

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending: {PaymentPaid, PaymentFailed},
	PaymentPaid:    {},
	PaymentFailed:  {},
}

func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	if s == next {
		return true
	}
	for _, allowed := range paymentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s PaymentStatus) Valid() bool {
	_, ok := paymentTransitions[s]
	return ok
}
