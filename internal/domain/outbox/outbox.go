// Package outbox defines the event fanout ports. Order and payment
// lifecycle events flow through a Publisher; the checkout worker hangs
// its settlement off a Subscriber.
package outbox

import "context"

// Event is any domain event. The name keys subscriber dispatch, so it
// must be stable across releases ("order.created", "payment.failed").
type Event interface {
	EventName() string
}

// Handler processes a delivered event. A returned error marks the
// delivery failed but does not stop fanout to other subscribers.
type Handler func(ctx context.Context, e Event) error

// Publisher hands an event to the bus. Delivery is at-most-once and
// asynchronous; handlers must tolerate missed events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Subscriber registers a handler for one event name.
type Subscriber interface {
	Subscribe(eventName string, h Handler)
}
