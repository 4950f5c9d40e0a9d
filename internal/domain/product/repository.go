package product

import "context"

type Repository interface {
	Insert(ctx context.Context, p *Product) error
	Get(ctx context.Context, id string) (*Product, error)

	// Update writes the product back conditioned on p.Version matching
	// the stored version. On success the stored version (and p.Version)
	// advance by exactly one; on mismatch it returns ErrVersionConflict
	// and writes nothing.
	Update(ctx context.Context, p *Product) error

	ListBySeller(ctx context.Context, sellerID string) ([]*Product, error)
	ListOutOfStock(ctx context.Context) ([]*Product, error)
}
