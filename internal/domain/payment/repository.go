package payment

import "context"

type Repository interface {
	// Insert persists a new payment. A transaction reference already held
	// by another record fails with ErrDuplicateReference and writes
	// nothing; the caller regenerates and retries.
	Insert(ctx context.Context, p *Payment) error

	Get(ctx context.Context, id string) (*Payment, error)
	Update(ctx context.Context, p *Payment) error

	List(ctx context.Context) ([]*Payment, error)
	ListByOrder(ctx context.Context, orderID string) ([]*Payment, error)
	ListByUser(ctx context.Context, userID string) ([]*Payment, error)
	ListByStatus(ctx context.Context, status Status) ([]*Payment, error)

	// HasSuccess is an indexed existence check on (orderID, SUCCEEDED).
	HasSuccess(ctx context.Context, orderID string) (bool, error)
}
