package cart

import "context"

// Repository is a keyed store with expiry. Mutations go through Mutate so
// concurrent read-modify-write cycles for the same user cannot lose an
// update: implementations serialize (mutex) or detect-and-retry (WATCH).
type Repository interface {
	Get(ctx context.Context, userID string) (*Cart, error)

	// Mutate loads the user's cart (materializing an empty one when
	// absent), applies fn, persists the result, and refreshes the expiry
	// window. An error from fn aborts the write and is returned as-is.
	Mutate(ctx context.Context, userID string, fn func(*Cart) error) (*Cart, error)

	Delete(ctx context.Context, userID string) error
	Exists(ctx context.Context, userID string) (bool, error)
}
