package memory

import (
	"context"
	"fmt"
	"sync"

	domain "github.com/somba-market/commerce/internal/domain/order"
)

type OrderRepository struct {
	mu     sync.RWMutex
	orders map[string]*domain.Order
}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		orders: make(map[string]*domain.Order),
	}
}

func (r *OrderRepository) Insert(ctx context.Context, o *domain.Order) error {
	_ = ctx
	if o == nil || o.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[o.ID]; exists {
		return domain.ErrConflict
	}

	r.orders[o.ID] = o.Clone()
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return o.Clone(), nil
}

func (r *OrderRepository) Update(ctx context.Context, o *domain.Order) error {
	_ = ctx
	if o == nil || o.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[o.ID]; !exists {
		return domain.ErrNotFound
	}

	r.orders[o.ID] = o.Clone()
	return nil
}

func (r *OrderRepository) ClearStockReserved(ctx context.Context, id string) (bool, error) {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if !o.StockReserved {
		return false, nil
	}
	o.ClearStockReserved()
	return true, nil
}

func (r *OrderRepository) Delete(ctx context.Context, id string) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[id]; !exists {
		return domain.ErrNotFound
	}
	delete(r.orders, id)
	return nil
}

func (r *OrderRepository) List(ctx context.Context) ([]*domain.Order, error) {
	return r.filter(ctx, func(*domain.Order) bool { return true })
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	return r.filter(ctx, func(o *domain.Order) bool { return o.UserID == userID })
}

func (r *OrderRepository) ListByFulfillment(ctx context.Context, status domain.FulfillmentStatus) ([]*domain.Order, error) {
	return r.filter(ctx, func(o *domain.Order) bool { return o.FulfillmentStatus == status })
}

func (r *OrderRepository) ListByPayment(ctx context.Context, status domain.PaymentStatus) ([]*domain.Order, error) {
	return r.filter(ctx, func(o *domain.Order) bool { return o.PaymentStatus == status })
}

func (r *OrderRepository) filter(ctx context.Context, keep func(*domain.Order) bool) ([]*domain.Order, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.Order
	for _, o := range r.orders {
		if keep(o) {
			out = append(out, o.Clone())
		}
	}
	return out, nil
}
