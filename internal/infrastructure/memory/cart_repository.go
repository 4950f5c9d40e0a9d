package memory

import (
	"context"
	"sync"
	"time"

	domain "github.com/somba-market/commerce/internal/domain/cart"
)

// CartRepository keeps carts in process memory. Mutate serializes
// read-modify-write cycles per store, so concurrent merges for the same
// user cannot lose an update. Expiry is tracked per cart and checked
// lazily on access.
type CartRepository struct {
	mu    sync.Mutex
	carts map[string]cartEntry
	ttl   time.Duration
	now   func() time.Time
}

type cartEntry struct {
	cart      *domain.Cart
	expiresAt time.Time
}

func NewCartRepository(ttl time.Duration) *CartRepository {
	return &CartRepository{
		carts: make(map[string]cartEntry),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (r *CartRepository) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.live(userID)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return entry.cart.Clone(), nil
}

func (r *CartRepository) Mutate(ctx context.Context, userID string, fn func(*domain.Cart) error) (*domain.Cart, error) {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	var c *domain.Cart
	if entry, ok := r.live(userID); ok {
		c = entry.cart.Clone()
	} else {
		c = domain.New(userID)
	}

	if err := fn(c); err != nil {
		return nil, err
	}

	r.carts[userID] = cartEntry{
		cart:      c.Clone(),
		expiresAt: r.now().Add(r.ttl),
	}
	return c, nil
}

func (r *CartRepository) Delete(ctx context.Context, userID string) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.carts, userID)
	return nil
}

func (r *CartRepository) Exists(ctx context.Context, userID string) (bool, error) {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.live(userID)
	return ok, nil
}

// live returns the entry for userID, dropping it first when expired.
// Callers must hold the mutex.
func (r *CartRepository) live(userID string) (cartEntry, bool) {
	entry, ok := r.carts[userID]
	if !ok {
		return cartEntry{}, false
	}
	if r.now().After(entry.expiresAt) {
		delete(r.carts, userID)
		return cartEntry{}, false
	}
	return entry, true
}
