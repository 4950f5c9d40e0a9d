package checkout

import (
	"context"

	domoutbox "github.com/somba-market/commerce/internal/domain/outbox"
	dompayment "github.com/somba-market/commerce/internal/domain/payment"
	"github.com/somba-market/commerce/internal/observability"
	"github.com/somba-market/commerce/internal/observability/logctx"
)

const checkoutWorker = "checkout_worker"

// Worker subscribes the coordinator's settlement to the event bus, so an
// attempt failed directly through the payment service still releases the
// order's reservation.
type Worker struct {
	subscriber  domoutbox.Subscriber
	coordinator *Coordinator

	log observability.Logger
}

func NewWorker(subscriber domoutbox.Subscriber, coordinator *Coordinator, tel observability.Observability) *Worker {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Worker{
		subscriber:  subscriber,
		coordinator: coordinator,
		log:         tel.Logger().With(observability.F("service", checkoutWorker)),
	}
}

func (w *Worker) Start() {
	if w.subscriber == nil || w.coordinator == nil {
		return
	}
	w.subscriber.Subscribe(dompayment.PaymentFailedEvent{}.EventName(), w.handlePaymentFailed)
}

func (w *Worker) handlePaymentFailed(ctx context.Context, e domoutbox.Event) error {
	logger := logctx.FromOr(ctx, w.log).With(observability.F("event", e.EventName()))

	evt, ok := e.(dompayment.PaymentFailedEvent)
	if !ok {
		return nil
	}

	if err := w.coordinator.HandlePaymentFailed(ctx, evt.OrderID, evt.PaymentID); err != nil {
		logger.Warn("payment_failure_settlement_failed",
			observability.F("order_id", evt.OrderID),
			observability.F("payment_id", evt.PaymentID),
			observability.F("error", err.Error()),
		)
		return err
	}

	logger.Info("payment_failure_settled",
		observability.F("order_id", evt.OrderID),
		observability.F("payment_id", evt.PaymentID),
	)
	return nil
}
