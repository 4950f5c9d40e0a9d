package checkout

import (
	"context"
	"errors"
	"fmt"
	"sort"

	appinventory "github.com/somba-market/commerce/internal/application/inventory"
	apporder "github.com/somba-market/commerce/internal/application/order"
	apppayment "github.com/somba-market/commerce/internal/application/payment"
	domorder "github.com/somba-market/commerce/internal/domain/order"
	domoutbox "github.com/somba-market/commerce/internal/domain/outbox"
	dompayment "github.com/somba-market/commerce/internal/domain/payment"
	"github.com/somba-market/commerce/internal/domain/product"
	"github.com/somba-market/commerce/internal/observability"
	"github.com/somba-market/commerce/internal/observability/logctx"
)

const checkoutService = "checkout-coordinator"

var (
	// ErrOrderAlreadyPaid rejects new payment attempts once any attempt
	// for the order has succeeded.
	ErrOrderAlreadyPaid = errors.New("checkout: order already paid")

	// ErrOrderClosed rejects retries against orders whose fulfillment
	// axis is terminal.
	ErrOrderClosed = errors.New("checkout: order is closed")

	// ErrPaymentAttemptPending rejects a retry while an earlier attempt
	// for the order is still open; at most one attempt may ever succeed,
	// so a new one opens only after the open one settles.
	ErrPaymentAttemptPending = errors.New("checkout: a payment attempt is still pending")
)

// InventoryService is the slice of the inventory application the
// coordinator needs for reservations and releases.
type InventoryService interface {
	Get(ctx context.Context, productID string) (*product.Product, error)
	AdjustStock(ctx context.Context, productID string, delta int) (*appinventory.StockLevel, error)
}

// OrderService is the slice of the order application the coordinator
// drives through the saga.
type OrderService interface {
	Create(ctx context.Context, input apporder.CreateOrderInput) (*domorder.Order, error)
	Get(ctx context.Context, id string) (*domorder.Order, error)
	UpdateStatus(ctx context.Context, id string, fulfillment *domorder.FulfillmentStatus, payment *domorder.PaymentStatus) (*domorder.Order, error)
	MarkStockReserved(ctx context.Context, id string) (*domorder.Order, error)
	ClearStockReserved(ctx context.Context, id string) (bool, error)
	ReopenPayment(ctx context.Context, id string) (*domorder.Order, error)
	ReopenFulfillment(ctx context.Context, id string) (*domorder.Order, error)
}

// PaymentService is the slice of the payment application the coordinator
// uses to open attempts and inspect the ledger.
type PaymentService interface {
	Create(ctx context.Context, input apppayment.CreatePaymentInput) (*dompayment.Payment, error)
	Confirm(ctx context.Context, id, providerPayload string) (*dompayment.Payment, error)
	Fail(ctx context.Context, id, reason string) (*dompayment.Payment, error)
	Get(ctx context.Context, id string) (*dompayment.Payment, error)
	HasSuccessfulPayment(ctx context.Context, orderID string) (bool, error)
	HasPendingPayment(ctx context.Context, orderID, excludePaymentID string) (bool, error)
}

// CartService clears a user's cart after a successful placement.
type CartService interface {
	Clear(ctx context.Context, userID string) error
}

// Coordinator runs the purchase saga: reserve stock, create the order,
// open a payment attempt, and settle or compensate on the payment
// outcome. Release is fenced by the order's persisted StockReserved
// marker: clearing it is a conditional write, and only the settler that
// wins the clear applies compensating increments, so the event-driven
// path and the direct path never double-credit stock.
type Coordinator struct {
	inventory InventoryService
	orders    OrderService
	payments  PaymentService
	carts     CartService
	publisher domoutbox.Publisher

	log observability.Logger
}

func NewCoordinator(inventory InventoryService, orders OrderService, payments PaymentService, carts CartService, publisher domoutbox.Publisher, tel observability.Observability) *Coordinator {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Coordinator{
		inventory: inventory,
		orders:    orders,
		payments:  payments,
		carts:     carts,
		publisher: publisher,
		log:       tel.Logger().With(observability.F("service", checkoutService)),
	}
}

// PlaceOrderLine is a requested purchase line; price and title are
// snapshotted from the product ledger at placement time.
type PlaceOrderLine struct {
	ProductID string
	Quantity  int
}

type PlaceOrderInput struct {
	UserID          string
	Currency        string
	DeliveryAddress domorder.DeliveryAddress
	Notes           string
	Lines           []PlaceOrderLine
	Method          dompayment.Method

	// ClearCart drops the user's cart once the order is persisted.
	ClearCart bool
}

// PlaceOrderResult carries the created aggregate and its opening payment
// attempt.
type PlaceOrderResult struct {
	Order   *domorder.Order
	Payment *dompayment.Payment
}

// PlaceOrder reserves stock line by line, creates the order, and opens a
// PENDING payment attempt for the order total. On any reservation or
// persistence failure every prior decrement is compensated and no order
// is left behind.
func (c *Coordinator) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*PlaceOrderResult, error) {
	logger := logctx.FromOr(ctx, c.log)

	if input.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", domorder.ErrValidation)
	}
	lines, err := mergeLines(input.Lines)
	if err != nil {
		return nil, err
	}

	orderLines := make([]domorder.Line, 0, len(lines))
	for _, line := range lines {
		p, err := c.inventory.Get(ctx, line.ProductID)
		if err != nil {
			return nil, err
		}
		orderLines = append(orderLines, domorder.Line{
			ProductID: p.ID,
			Title:     p.Title,
			UnitPrice: p.Price,
			Quantity:  line.Quantity,
		})
	}

	reserved, err := c.reserve(ctx, lines)
	if err != nil {
		c.release(ctx, reserved)
		return nil, err
	}

	o, err := c.orders.Create(ctx, apporder.CreateOrderInput{
		UserID:          input.UserID,
		Currency:        input.Currency,
		DeliveryAddress: input.DeliveryAddress,
		Notes:           input.Notes,
		Lines:           orderLines,
	})
	if err != nil {
		c.release(ctx, reserved)
		return nil, err
	}
	if o, err = c.orders.MarkStockReserved(ctx, o.ID); err != nil {
		c.release(ctx, reserved)
		return nil, err
	}

	pay, err := c.payments.Create(ctx, apppayment.CreatePaymentInput{
		OrderID:  o.ID,
		UserID:   o.UserID,
		Amount:   o.Total,
		Currency: o.Currency,
		Method:   input.Method,
	})
	if err != nil {
		c.release(ctx, reserved)
		if _, clearErr := c.orders.ClearStockReserved(ctx, o.ID); clearErr != nil {
			logger.Warn("reservation_marker_clear_failed",
				observability.F("order_id", o.ID),
				observability.F("error", clearErr.Error()),
			)
		}
		return nil, err
	}

	if input.ClearCart && c.carts != nil {
		if err := c.carts.Clear(ctx, input.UserID); err != nil {
			logger.Warn("cart_clear_failed",
				observability.F("user_id", input.UserID),
				observability.F("error", err.Error()),
			)
		}
	}

	logger.Info("order_placed",
		observability.F("order_id", o.ID),
		observability.F("user_id", o.UserID),
		observability.F("total", o.Total.String()),
		observability.F("payment_id", pay.ID),
	)
	c.publish(ctx, domorder.NewOrderCreatedEvent(o))
	return &PlaceOrderResult{Order: o, Payment: pay}, nil
}

// ConfirmPayment settles a successful attempt: the ledger record moves
// to SUCCEEDED and the order's payment axis to PAID. Stock stays
// decremented. At most one attempt per order may ever succeed; once any
// other attempt has, confirming returns ErrOrderAlreadyPaid and the
// ledger is left untouched.
func (c *Coordinator) ConfirmPayment(ctx context.Context, paymentID, providerPayload string) (*dompayment.Payment, error) {
	p, err := c.payments.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	settled, err := c.payments.HasSuccessfulPayment(ctx, p.OrderID)
	if err != nil {
		return nil, err
	}
	if settled && p.Status != dompayment.StatusSucceeded {
		return nil, ErrOrderAlreadyPaid
	}

	p, err = c.payments.Confirm(ctx, paymentID, providerPayload)
	if err != nil {
		return nil, err
	}

	paid := domorder.PaymentPaid
	if _, err := c.orders.UpdateStatus(ctx, p.OrderID, nil, &paid); err != nil {
		return nil, err
	}
	return p, nil
}

// FailPayment records the failed attempt and runs settlement directly.
// The failure event also reaches the checkout worker, whose handler is
// idempotent, so failing a payment through the payment service alone
// converges to the same state.
func (c *Coordinator) FailPayment(ctx context.Context, paymentID, reason string) (*dompayment.Payment, error) {
	p, err := c.payments.Fail(ctx, paymentID, reason)
	if err != nil {
		return nil, err
	}
	if err := c.HandlePaymentFailed(ctx, p.OrderID, p.ID); err != nil {
		return nil, err
	}
	return p, nil
}

// HandlePaymentFailed releases the order's reservation and cancels its
// fulfillment when no other attempt can still pay for it. Safe to call
// more than once for the same failure, including concurrently: the
// conditional marker clear picks a single winner to credit stock back.
func (c *Coordinator) HandlePaymentFailed(ctx context.Context, orderID, paymentID string) error {
	logger := logctx.FromOr(ctx, c.log)

	pending, err := c.payments.HasPendingPayment(ctx, orderID, paymentID)
	if err != nil {
		return err
	}
	if pending {
		return nil
	}
	paid, err := c.payments.HasSuccessfulPayment(ctx, orderID)
	if err != nil {
		return err
	}
	if paid {
		return nil
	}

	o, err := c.orders.Get(ctx, orderID)
	if err != nil {
		return err
	}

	if o.PaymentStatus == domorder.PaymentPending {
		failed := domorder.PaymentFailed
		if o, err = c.orders.UpdateStatus(ctx, orderID, nil, &failed); err != nil {
			return err
		}
	}

	cleared, err := c.orders.ClearStockReserved(ctx, orderID)
	if err != nil {
		return err
	}
	if cleared {
		c.release(ctx, itemLines(o))
	}

	if o.FulfillmentStatus.CanTransitionTo(domorder.FulfillmentCancelled) &&
		o.FulfillmentStatus != domorder.FulfillmentCancelled {
		cancelled := domorder.FulfillmentCancelled
		if _, err := c.orders.UpdateStatus(ctx, orderID, &cancelled, nil); err != nil {
			return err
		}
		logger.Info("order_cancelled_after_payment_failure", observability.F("order_id", orderID))
		c.publish(ctx, domorder.NewOrderCancelledEvent(orderID, "payment failed"))
	}
	return nil
}

// RetryPayment opens a fresh attempt against an order whose previous
// attempts all failed. Once any attempt has succeeded retries are
// rejected with ErrOrderAlreadyPaid; while one is still open they are
// rejected with ErrPaymentAttemptPending; a closed fulfillment axis
// rejects with ErrOrderClosed.
func (c *Coordinator) RetryPayment(ctx context.Context, orderID string, method dompayment.Method) (*dompayment.Payment, error) {
	logger := logctx.FromOr(ctx, c.log)

	paid, err := c.payments.HasSuccessfulPayment(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if paid {
		return nil, ErrOrderAlreadyPaid
	}
	pending, err := c.payments.HasPendingPayment(ctx, orderID, "")
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, ErrPaymentAttemptPending
	}

	o, err := c.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.FulfillmentStatus == domorder.FulfillmentDelivered {
		return nil, ErrOrderClosed
	}

	if !o.StockReserved {
		reserved, err := c.reserve(ctx, itemLines(o))
		if err != nil {
			c.release(ctx, reserved)
			return nil, err
		}
		if o, err = c.orders.MarkStockReserved(ctx, orderID); err != nil {
			c.release(ctx, reserved)
			return nil, err
		}
	}
	if o.FulfillmentStatus == domorder.FulfillmentCancelled {
		if o, err = c.orders.ReopenFulfillment(ctx, orderID); err != nil {
			return nil, err
		}
	}
	if o.PaymentStatus == domorder.PaymentFailed {
		if o, err = c.orders.ReopenPayment(ctx, orderID); err != nil {
			return nil, err
		}
	}

	pay, err := c.payments.Create(ctx, apppayment.CreatePaymentInput{
		OrderID:  o.ID,
		UserID:   o.UserID,
		Amount:   o.Total,
		Currency: o.Currency,
		Method:   method,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("payment_retry_opened",
		observability.F("order_id", o.ID),
		observability.F("payment_id", pay.ID),
	)
	return pay, nil
}

// reserve decrements stock per line in ascending product order. It
// returns the lines that were decremented, whether or not it succeeded,
// so the caller can compensate.
func (c *Coordinator) reserve(ctx context.Context, lines []PlaceOrderLine) ([]PlaceOrderLine, error) {
	reserved := make([]PlaceOrderLine, 0, len(lines))
	for _, line := range lines {
		if _, err := c.inventory.AdjustStock(ctx, line.ProductID, -line.Quantity); err != nil {
			return reserved, err
		}
		reserved = append(reserved, line)
	}
	return reserved, nil
}

// release compensates decrements in reverse order. Failures are logged
// and skipped so one bad product does not strand the rest.
func (c *Coordinator) release(ctx context.Context, reserved []PlaceOrderLine) {
	logger := logctx.FromOr(ctx, c.log)
	for i := len(reserved) - 1; i >= 0; i-- {
		line := reserved[i]
		if _, err := c.inventory.AdjustStock(ctx, line.ProductID, line.Quantity); err != nil {
			logger.Error("stock_release_failed",
				observability.F("product_id", line.ProductID),
				observability.F("quantity", line.Quantity),
				observability.F("error", err.Error()),
			)
		}
	}
}

// mergeLines validates quantities, merges duplicate products, and sorts
// ascending by product id so concurrent placements touch the ledger in
// the same order.
func mergeLines(lines []PlaceOrderLine) ([]PlaceOrderLine, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: at least one line is required", domorder.ErrValidation)
	}
	merged := make(map[string]int, len(lines))
	for _, line := range lines {
		if line.ProductID == "" || line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: line requires a product id and a positive quantity", domorder.ErrValidation)
		}
		merged[line.ProductID] += line.Quantity
	}

	out := make([]PlaceOrderLine, 0, len(merged))
	for id, qty := range merged {
		out = append(out, PlaceOrderLine{ProductID: id, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func itemLines(o *domorder.Order) []PlaceOrderLine {
	lines := make([]PlaceOrderLine, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, PlaceOrderLine{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
	return lines
}

func (c *Coordinator) publish(ctx context.Context, e domoutbox.Event) {
	if c.publisher == nil {
		return
	}
	if err := c.publisher.Publish(ctx, e); err != nil {
		logctx.FromOr(ctx, c.log).Warn("event_publish_failed",
			observability.F("event", e.EventName()),
			observability.F("error", err.Error()),
		)
	}
}
