package memory

import (
	"context"
	"fmt"
	"sync"

	domain "github.com/somba-market/commerce/internal/domain/payment"
)

// PaymentRepository keeps payments in process memory with two indexes:
// a uniqueness index on transaction reference and a success set keyed by
// order id for O(1) HasSuccess lookups.
type PaymentRepository struct {
	mu         sync.RWMutex
	payments   map[string]*domain.Payment
	references map[string]string // transactionReference -> paymentID
	successes  map[string]int    // orderID -> count of SUCCEEDED records
}

func NewPaymentRepository() *PaymentRepository {
	return &PaymentRepository{
		payments:   make(map[string]*domain.Payment),
		references: make(map[string]string),
		successes:  make(map[string]int),
	}
}

func (r *PaymentRepository) Insert(ctx context.Context, p *domain.Payment) error {
	_ = ctx
	if p == nil || p.ID == "" {
		return fmt.Errorf("payment repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.references[p.TransactionReference]; taken {
		return domain.ErrDuplicateReference
	}
	if _, exists := r.payments[p.ID]; exists {
		return fmt.Errorf("payment repository: duplicate id %s", p.ID)
	}

	r.payments[p.ID] = p.Clone()
	r.references[p.TransactionReference] = p.ID
	if p.Status == domain.StatusSucceeded {
		r.successes[p.OrderID]++
	}
	return nil
}

func (r *PaymentRepository) Get(ctx context.Context, id string) (*domain.Payment, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.payments[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p.Clone(), nil
}

func (r *PaymentRepository) Update(ctx context.Context, p *domain.Payment) error {
	_ = ctx
	if p == nil || p.ID == "" {
		return fmt.Errorf("payment repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.payments[p.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if stored.TransactionReference != p.TransactionReference {
		if owner, taken := r.references[p.TransactionReference]; taken && owner != p.ID {
			return domain.ErrDuplicateReference
		}
		delete(r.references, stored.TransactionReference)
		r.references[p.TransactionReference] = p.ID
	}

	if stored.Status == domain.StatusSucceeded && p.Status != domain.StatusSucceeded {
		r.successes[stored.OrderID]--
		if r.successes[stored.OrderID] <= 0 {
			delete(r.successes, stored.OrderID)
		}
	}
	if stored.Status != domain.StatusSucceeded && p.Status == domain.StatusSucceeded {
		r.successes[p.OrderID]++
	}

	r.payments[p.ID] = p.Clone()
	return nil
}

func (r *PaymentRepository) List(ctx context.Context) ([]*domain.Payment, error) {
	return r.filter(ctx, func(*domain.Payment) bool { return true })
}

func (r *PaymentRepository) ListByOrder(ctx context.Context, orderID string) ([]*domain.Payment, error) {
	return r.filter(ctx, func(p *domain.Payment) bool { return p.OrderID == orderID })
}

func (r *PaymentRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Payment, error) {
	return r.filter(ctx, func(p *domain.Payment) bool { return p.UserID == userID })
}

func (r *PaymentRepository) ListByStatus(ctx context.Context, status domain.Status) ([]*domain.Payment, error) {
	return r.filter(ctx, func(p *domain.Payment) bool { return p.Status == status })
}

func (r *PaymentRepository) HasSuccess(ctx context.Context, orderID string) (bool, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.successes[orderID] > 0, nil
}

func (r *PaymentRepository) filter(ctx context.Context, keep func(*domain.Payment) bool) ([]*domain.Payment, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.Payment
	for _, p := range r.payments {
		if keep(p) {
			out = append(out, p.Clone())
		}
	}
	return out, nil
}
