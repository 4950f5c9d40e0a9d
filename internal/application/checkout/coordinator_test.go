package checkout

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	appcart "github.com/somba-market/commerce/internal/application/cart"
	appinventory "github.com/somba-market/commerce/internal/application/inventory"
	apporder "github.com/somba-market/commerce/internal/application/order"
	apppayment "github.com/somba-market/commerce/internal/application/payment"
	domorder "github.com/somba-market/commerce/internal/domain/order"
	domoutbox "github.com/somba-market/commerce/internal/domain/outbox"
	dompayment "github.com/somba-market/commerce/internal/domain/payment"
	domproduct "github.com/somba-market/commerce/internal/domain/product"
	"github.com/somba-market/commerce/internal/infrastructure/memory"
	"github.com/somba-market/commerce/internal/observability"
)

type uuidGen struct{}

func (uuidGen) NewID() string { return uuid.NewString() }

// recordingInventory wraps the inventory service and records every stock
// adjustment in call order.
type recordingInventory struct {
	*appinventory.Service

	mu    sync.Mutex
	calls []string
}

func (r *recordingInventory) AdjustStock(ctx context.Context, productID string, delta int) (*appinventory.StockLevel, error) {
	r.mu.Lock()
	r.calls = append(r.calls, productID)
	r.mu.Unlock()
	return r.Service.AdjustStock(ctx, productID, delta)
}

type fixture struct {
	coordinator *Coordinator
	inventory   *recordingInventory
	orders      *apporder.Service
	payments    *apppayment.Service
	carts       *appcart.Service
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithBus(t, nil)
}

func newFixtureWithBus(t *testing.T, bus domoutbox.Publisher) *fixture {
	t.Helper()
	tel := observability.Nop()

	inventorySvc := appinventory.NewService(memory.NewProductRepository(), uuidGen{}, tel)
	inventory := &recordingInventory{Service: inventorySvc}
	orders := apporder.NewService(memory.NewOrderRepository(), uuidGen{}, tel)
	payments := apppayment.NewService(memory.NewPaymentRepository(), uuidGen{}, bus, tel)
	carts := appcart.NewService(memory.NewCartRepository(time.Hour), tel)

	return &fixture{
		coordinator: NewCoordinator(inventory, orders, payments, carts, bus, tel),
		inventory:   inventory,
		orders:      orders,
		payments:    payments,
		carts:       carts,
	}
}

func (f *fixture) seedProduct(t *testing.T, title string, price float64, stock int) *domproduct.Product {
	t.Helper()
	p, err := f.inventory.RegisterProduct(context.Background(), appinventory.RegisterProductInput{
		SellerID: "s-1",
		Title:    title,
		Price:    decimal.NewFromFloat(price),
		Currency: "USD",
		Stock:    stock,
	})
	if err != nil {
		t.Fatalf("RegisterProduct: %v", err)
	}
	return p
}

func (f *fixture) stockOf(t *testing.T, productID string) int {
	t.Helper()
	p, err := f.inventory.Get(context.Background(), productID)
	if err != nil {
		t.Fatalf("Get product: %v", err)
	}
	return p.Stock
}

func TestPlaceOrder_ReservesStockAndOpensPayment(t *testing.T) {
	f := newFixture(t)
	p1 := f.seedProduct(t, "Keyboard", 12.25, 5)
	p2 := f.seedProduct(t, "Mouse", 1.00, 1)

	result, err := f.coordinator.PlaceOrder(context.Background(), PlaceOrderInput{
		UserID: "u-1",
		Lines: []PlaceOrderLine{
			{ProductID: p1.ID, Quantity: 2},
			{ProductID: p2.ID, Quantity: 1},
		},
		Method: dompayment.MethodMPesa,
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	if !result.Order.Total.Equal(decimal.NewFromFloat(25.50)) {
		t.Errorf("expected total 25.50, got %s", result.Order.Total)
	}
	if !result.Order.StockReserved {
		t.Error("expected reservation marker set")
	}
	if result.Payment.Status != dompayment.StatusPending {
		t.Errorf("expected PENDING payment, got %s", result.Payment.Status)
	}
	if !result.Payment.Amount.Equal(result.Order.Total) {
		t.Errorf("payment amount %s != order total %s", result.Payment.Amount, result.Order.Total)
	}

	if got := f.stockOf(t, p1.ID); got != 3 {
		t.Errorf("expected p1 stock 3, got %d", got)
	}
	if got := f.stockOf(t, p2.ID); got != 0 {
		t.Errorf("expected p2 stock 0, got %d", got)
	}
}

func TestPlaceOrder_ReservesInAscendingProductOrder(t *testing.T) {
	f := newFixture(t)
	p1 := f.seedProduct(t, "Keyboard", 10, 5)
	p2 := f.seedProduct(t, "Mouse", 5, 5)
	p3 := f.seedProduct(t, "Cable", 2, 5)

	_, err := f.coordinator.PlaceOrder(context.Background(), PlaceOrderInput{
		UserID: "u-1",
		Lines: []PlaceOrderLine{
			{ProductID: p3.ID, Quantity: 1},
			{ProductID: p1.ID, Quantity: 1},
			{ProductID: p2.ID, Quantity: 1},
		},
		Method: dompayment.MethodCard,
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	if len(f.inventory.calls) != 3 {
		t.Fatalf("expected 3 reservations, got %d", len(f.inventory.calls))
	}
	if !sort.StringsAreSorted(f.inventory.calls) {
		t.Errorf("reservations must run in ascending product order, got %v", f.inventory.calls)
	}
}

func TestPlaceOrder_MergesDuplicateLines(t *testing.T) {
	f := newFixture(t)
	p1 := f.seedProduct(t, "Keyboard", 10, 5)

	result, err := f.coordinator.PlaceOrder(context.Background(), PlaceOrderInput{
		UserID: "u-1",
		Lines: []PlaceOrderLine{
			{ProductID: p1.ID, Quantity: 2},
			{ProductID: p1.ID, Quantity: 3},
		},
		Method: dompayment.MethodCard,
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if len(result.Order.Items) != 1 || result.Order.Items[0].Quantity != 5 {
		t.Errorf("expected one merged item of quantity 5, got %+v", result.Order.Items)
	}
	if got := f.stockOf(t, p1.ID); got != 0 {
		t.Errorf("expected stock 0, got %d", got)
	}
}

func TestPlaceOrder_RollsBackOnInsufficientStock(t *testing.T) {
	f := newFixture(t)
	p1 := f.seedProduct(t, "Keyboard", 10, 5)
	p2 := f.seedProduct(t, "Mouse", 5, 1)

	// Force p1 to sort before p2 so its reservation happens first.
	first, second := p1, p2
	if second.ID < first.ID {
		first, second = second, first
	}

	_, err := f.coordinator.PlaceOrder(context.Background(), PlaceOrderInput{
		UserID: "u-1",
		Lines: []PlaceOrderLine{
			{ProductID: first.ID, Quantity: 1},
			{ProductID: second.ID, Quantity: 100},
		},
		Method: dompayment.MethodCard,
	})
	if !errors.Is(err, domproduct.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	if got := f.stockOf(t, p1.ID); got != 5 {
		t.Errorf("p1 stock must be restored to 5, got %d", got)
	}
	if got := f.stockOf(t, p2.ID); got != 1 {
		t.Errorf("p2 stock must be restored to 1, got %d", got)
	}

	orders, err := f.orders.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(orders) != 0 {
		t.Errorf("no order must be created on reservation failure, got %d", len(orders))
	}
}

func TestPlaceOrder_ValidatesLines(t *testing.T) {
	f := newFixture(t)

	_, err := f.coordinator.PlaceOrder(context.Background(), PlaceOrderInput{
		UserID: "u-1",
		Method: dompayment.MethodCard,
	})
	if !errors.Is(err, domorder.ErrValidation) {
		t.Errorf("no lines: expected ErrValidation, got %v", err)
	}

	_, err = f.coordinator.PlaceOrder(context.Background(), PlaceOrderInput{
		UserID: "u-1",
		Lines:  []PlaceOrderLine{{ProductID: "p-1", Quantity: 0}},
		Method: dompayment.MethodCard,
	})
	if !errors.Is(err, domorder.ErrValidation) {
		t.Errorf("zero quantity: expected ErrValidation, got %v", err)
	}
}

func TestPlaceOrder_ClearsCart(t *testing.T) {
	f := newFixture(t)
	p1 := f.seedProduct(t, "Keyboard", 10, 5)

	if _, err := f.carts.AddItem(context.Background(), "u-1", p1.ID, 2); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	_, err := f.coordinator.PlaceOrder(context.Background(), PlaceOrderInput{
		UserID:    "u-1",
		Lines:     []PlaceOrderLine{{ProductID: p1.ID, Quantity: 2}},
		Method:    dompayment.MethodCard,
		ClearCart: true,
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	c, err := f.carts.Get(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("Get cart: %v", err)
	}
	if c.TotalItems() != 0 {
		t.Errorf("expected cleared cart, got %d items", c.TotalItems())
	}
}

func TestConfirmPayment_MarksOrderPaid(t *testing.T) {
	f := newFixture(t)
	p1 := f.seedProduct(t, "Keyboard", 10, 5)

	result, err := f.coordinator.PlaceOrder(context.Background(), PlaceOrderInput{
		UserID: "u-1",
		Lines:  []PlaceOrderLine{{ProductID: p1.ID, Quantity: 2}},
		Method: dompayment.MethodCard,
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	if _, err := f.coordinator.ConfirmPayment(context.Background(), result.Payment.ID, `{"ok":true}`); err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}

	o, err := f.orders.Get(context.Background(), result.Order.ID)
	if err != nil {
		t.Fatalf("Get order: %v", err)
	}
	if o.PaymentStatus != domorder.PaymentPaid {
		t.Errorf("expected PAID, got %s", o.PaymentStatus)
	}
	// Stock stays decremented.
	if got := f.stockOf(t, p1.ID); got != 3 {
		t.Errorf("expected stock 3, got %d", got)
	}
}

func TestFailPayment_ReleasesStockAndCancelsOrder(t *testing.T) {
	f := newFixture(t)
	p1 := f.seedProduct(t, "Keyboard", 12.25, 5)
	p2 := f.seedProduct(t, "Mouse", 1.00, 1)

	result, err := f.coordinator.PlaceOrder(context.Background(), PlaceOrderInput{
		UserID: "u-1",
		Lines: []PlaceOrderLine{
			{ProductID: p1.ID, Quantity: 2},
			{ProductID: p2.ID, Quantity: 1},
		},
		Method: dompayment.MethodMPesa,
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	pay, err := f.coordinator.FailPayment(context.Background(), result.Payment.ID, "provider timeout")
	if err != nil {
		t.Fatalf("FailPayment: %v", err)
	}
	if pay.Status != dompayment.StatusFailed {
		t.Errorf("expected FAILED payment, got %s", pay.Status)
	}

	if got := f.stockOf(t, p1.ID); got != 5 {
		t.Errorf("expected p1 stock restored to 5, got %d", got)
	}
	if got := f.stockOf(t, p2.ID); got != 1 {
		t.Errorf("expected p2 stock restored to 1, got %d", got)
	}

	o, err := f.orders.Get(context.Background(), result.Order.ID)
	if err != nil {
		t.Fatalf("Get order: %v", err)
	}
	if o.PaymentStatus != domorder.PaymentFailed {
		t.Errorf("expected payment axis FAILED, got %s", o.PaymentStatus)
	}
	if o.FulfillmentStatus != domorder.FulfillmentCancelled {
		t.Errorf("expected order CANCELLED, got %s", o.FulfillmentStatus)
	}
	if o.StockReserved {
		t.Error("reservation marker must be cleared")
	}
}

func TestHandlePaymentFailed_Idempotent(t *testing.T) {
	f := newFixture(t)
	p1 := f.seedProduct(t, "Keyboard", 10, 5)

	result, err := f.coordinator.PlaceOrder(context.Background(), PlaceOrderInput{
		UserID: "u-1",
		Lines:  []PlaceOrderLine{{ProductID: p1.ID, Quantity: 2}},
		Method: dompayment.MethodCard,
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	if _, err := f.coordinator.FailPayment(context.Background(), result.Payment.ID, "declined"); err != nil {
		t.Fatalf("FailPayment: %v", err)
	}
	// Replaying the failure (the worker path) is a no-op.
	if err := f.coordinator.HandlePaymentFailed(context.Background(), result.Order.ID, result.Payment.ID); err != nil {
		t.Fatalf("HandlePaymentFailed replay: %v", err)
	}

	if got := f.stockOf(t, p1.ID); got != 5 {
		t.Errorf("stock must not be credited twice, got %d", got)
	}
}

func TestRetryPayment_RevivesFailedOrder(t *testing.T) {
	f := newFixture(t)
	p1 := f.seedProduct(t, "Keyboard", 10, 5)

	result, err := f.coordinator.PlaceOrder(context.Background(), PlaceOrderInput{
		UserID: "u-1",
		Lines:  []PlaceOrderLine{{ProductID: p1.ID, Quantity: 2}},
		Method: dompayment.MethodCard,
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if _, err := f.coordinator.FailPayment(context.Background(), result.Payment.ID, "declined"); err != nil {
		t.Fatalf("FailPayment: %v", err)
	}

	retry, err := f.coordinator.RetryPayment(context.Background(), result.Order.ID, dompayment.MethodOrangeMoney)
	if err != nil {
		t.Fatalf("RetryPayment: %v", err)
	}
	if retry.Status != dompayment.StatusPending {
		t.Errorf("expected PENDING retry, got %s", retry.Status)
	}
	if retry.Method != dompayment.MethodOrangeMoney {
		t.Errorf("expected ORANGE_MONEY, got %s", retry.Method)
	}

	o, err := f.orders.Get(context.Background(), result.Order.ID)
	if err != nil {
		t.Fatalf("Get order: %v", err)
	}
	if o.PaymentStatus != domorder.PaymentPending {
		t.Errorf("expected payment axis reopened to PENDING, got %s", o.PaymentStatus)
	}
	if o.FulfillmentStatus != domorder.FulfillmentPending {
		t.Errorf("expected fulfillment revived to PENDING, got %s", o.FulfillmentStatus)
	}
	if !o.StockReserved {
		t.Error("retry must re-reserve stock")
	}
	if got := f.stockOf(t, p1.ID); got != 3 {
		t.Errorf("expected stock re-reserved to 3, got %d", got)
	}

	if _, err := f.coordinator.ConfirmPayment(context.Background(), retry.ID, "ok"); err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}
	o, _ = f.orders.Get(context.Background(), result.Order.ID)
	if o.PaymentStatus != domorder.PaymentPaid {
		t.Errorf("expected PAID after retry confirm, got %s", o.PaymentStatus)
	}
}

func TestRetryPayment_RejectedOncePaid(t *testing.T) {
	f := newFixture(t)
	p1 := f.seedProduct(t, "Keyboard", 10, 5)

	result, err := f.coordinator.PlaceOrder(context.Background(), PlaceOrderInput{
		UserID: "u-1",
		Lines:  []PlaceOrderLine{{ProductID: p1.ID, Quantity: 2}},
		Method: dompayment.MethodCard,
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if _, err := f.coordinator.ConfirmPayment(context.Background(), result.Payment.ID, "ok"); err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}

	if _, err := f.coordinator.RetryPayment(context.Background(), result.Order.ID, dompayment.MethodCard); !errors.Is(err, ErrOrderAlreadyPaid) {
		t.Errorf("expected ErrOrderAlreadyPaid, got %v", err)
	}
}

func TestFailPayment_KeepsOrderWhileAnotherAttemptPending(t *testing.T) {
	f := newFixture(t)
	p1 := f.seedProduct(t, "Keyboard", 10, 5)

	result, err := f.coordinator.PlaceOrder(context.Background(), PlaceOrderInput{
		UserID: "u-1",
		Lines:  []PlaceOrderLine{{ProductID: p1.ID, Quantity: 2}},
		Method: dompayment.MethodCard,
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	// A second attempt for the same order is still open.
	second, err := f.payments.Create(context.Background(), apppayment.CreatePaymentInput{
		OrderID:  result.Order.ID,
		UserID:   "u-1",
		Amount:   result.Order.Total,
		Currency: "USD",
		Method:   dompayment.MethodMPesa,
	})
	if err != nil {
		t.Fatalf("Create second attempt: %v", err)
	}

	if _, err := f.coordinator.FailPayment(context.Background(), result.Payment.ID, "declined"); err != nil {
		t.Fatalf("FailPayment: %v", err)
	}

	// Reservation and order stay intact while the other attempt can pay.
	if got := f.stockOf(t, p1.ID); got != 3 {
		t.Errorf("stock must stay reserved, got %d", got)
	}
	o, _ := f.orders.Get(context.Background(), result.Order.ID)
	if o.FulfillmentStatus != domorder.FulfillmentPending {
		t.Errorf("order must not be cancelled, got %s", o.FulfillmentStatus)
	}

	// Once the second attempt fails too, settlement runs.
	if _, err := f.coordinator.FailPayment(context.Background(), second.ID, "declined"); err != nil {
		t.Fatalf("FailPayment second: %v", err)
	}
	if got := f.stockOf(t, p1.ID); got != 5 {
		t.Errorf("stock must be released after last attempt fails, got %d", got)
	}
	o, _ = f.orders.Get(context.Background(), result.Order.ID)
	if o.FulfillmentStatus != domorder.FulfillmentCancelled {
		t.Errorf("expected CANCELLED, got %s", o.FulfillmentStatus)
	}
}

func TestConfirmPayment_SingleSuccessPerOrder(t *testing.T) {
	f := newFixture(t)
	p1 := f.seedProduct(t, "Keyboard", 10, 5)

	result, err := f.coordinator.PlaceOrder(context.Background(), PlaceOrderInput{
		UserID: "u-1",
		Lines:  []PlaceOrderLine{{ProductID: p1.ID, Quantity: 2}},
		Method: dompayment.MethodCard,
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	// A second attempt for the same order is open in the ledger.
	second, err := f.payments.Create(context.Background(), apppayment.CreatePaymentInput{
		OrderID:  result.Order.ID,
		UserID:   "u-1",
		Amount:   result.Order.Total,
		Currency: "USD",
		Method:   dompayment.MethodMPesa,
	})
	if err != nil {
		t.Fatalf("Create second attempt: %v", err)
	}

	if _, err := f.coordinator.ConfirmPayment(context.Background(), result.Payment.ID, "ok"); err != nil {
		t.Fatalf("ConfirmPayment first: %v", err)
	}
	if _, err := f.coordinator.ConfirmPayment(context.Background(), second.ID, "ok"); !errors.Is(err, ErrOrderAlreadyPaid) {
		t.Fatalf("expected ErrOrderAlreadyPaid for the second confirm, got %v", err)
	}

	attempts, err := f.payments.ListByOrder(context.Background(), result.Order.ID)
	if err != nil {
		t.Fatalf("ListByOrder: %v", err)
	}
	succeeded := 0
	for _, p := range attempts {
		if p.Status == dompayment.StatusSucceeded {
			succeeded++
		}
	}
	if succeeded != 1 {
		t.Errorf("expected exactly 1 SUCCEEDED attempt, got %d", succeeded)
	}
}

func TestRetryPayment_RejectedWhileAttemptPending(t *testing.T) {
	f := newFixture(t)
	p1 := f.seedProduct(t, "Keyboard", 10, 5)

	result, err := f.coordinator.PlaceOrder(context.Background(), PlaceOrderInput{
		UserID: "u-1",
		Lines:  []PlaceOrderLine{{ProductID: p1.ID, Quantity: 2}},
		Method: dompayment.MethodCard,
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	// The opening attempt is still PENDING.
	if _, err := f.coordinator.RetryPayment(context.Background(), result.Order.ID, dompayment.MethodMPesa); !errors.Is(err, ErrPaymentAttemptPending) {
		t.Fatalf("expected ErrPaymentAttemptPending, got %v", err)
	}

	// Once it settles, a retry opens normally.
	if _, err := f.coordinator.FailPayment(context.Background(), result.Payment.ID, "declined"); err != nil {
		t.Fatalf("FailPayment: %v", err)
	}
	if _, err := f.coordinator.RetryPayment(context.Background(), result.Order.ID, dompayment.MethodMPesa); err != nil {
		t.Fatalf("RetryPayment after settlement: %v", err)
	}
}

func TestHandlePaymentFailed_ConcurrentSettlersReleaseOnce(t *testing.T) {
	f := newFixture(t)
	p1 := f.seedProduct(t, "Keyboard", 10, 5)

	result, err := f.coordinator.PlaceOrder(context.Background(), PlaceOrderInput{
		UserID: "u-1",
		Lines:  []PlaceOrderLine{{ProductID: p1.ID, Quantity: 2}},
		Method: dompayment.MethodCard,
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	// Fail the ledger record only, then settle from two goroutines, as
	// when the direct path and the event worker race.
	if _, err := f.payments.Fail(context.Background(), result.Payment.ID, "declined"); err != nil {
		t.Fatalf("Fail: %v", err)
	}

	start := make(chan struct{})
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			errs[i] = f.coordinator.HandlePaymentFailed(context.Background(), result.Order.ID, result.Payment.ID)
		}(i)
	}
	close(start)
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("HandlePaymentFailed #%d: %v", i, err)
		}
	}

	if got := f.stockOf(t, p1.ID); got != 5 {
		t.Errorf("stock must be credited back exactly once, got %d", got)
	}
	o, err := f.orders.Get(context.Background(), result.Order.ID)
	if err != nil {
		t.Fatalf("Get order: %v", err)
	}
	if o.StockReserved {
		t.Error("reservation marker must be cleared")
	}
	if o.FulfillmentStatus != domorder.FulfillmentCancelled {
		t.Errorf("expected CANCELLED, got %s", o.FulfillmentStatus)
	}
}
