package order

import "context"

type Repository interface {
	Insert(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	Update(ctx context.Context, o *Order) error
	Delete(ctx context.Context, id string) error

	// ClearStockReserved drops the reservation marker with a single
	// conditional write and reports whether this call flipped it. Exactly
	// one of any number of concurrent callers sees true, so compensating
	// stock increments run once.
	ClearStockReserved(ctx context.Context, id string) (bool, error)

	List(ctx context.Context) ([]*Order, error)
	ListByUser(ctx context.Context, userID string) ([]*Order, error)
	ListByFulfillment(ctx context.Context, status FulfillmentStatus) ([]*Order, error)
	ListByPayment(ctx context.Context, status PaymentStatus) ([]*Order, error)
}
