package inventory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	domain "github.com/somba-market/commerce/internal/domain/product"
	"github.com/somba-market/commerce/internal/infrastructure/memory"
	"github.com/somba-market/commerce/internal/observability"
)

type uuidGen struct{}

func (uuidGen) NewID() string { return uuid.NewString() }

func newTestService(t *testing.T) (*Service, *memory.ProductRepository) {
	t.Helper()
	repo := memory.NewProductRepository()
	return NewService(repo, uuidGen{}, observability.Nop()), repo
}

func registerProduct(t *testing.T, svc *Service, stock int) *domain.Product {
	t.Helper()
	p, err := svc.RegisterProduct(context.Background(), RegisterProductInput{
		SellerID: "s-1",
		Title:    "Keyboard",
		Price:    decimal.NewFromFloat(49.99),
		Currency: "USD",
		Stock:    stock,
	})
	if err != nil {
		t.Fatalf("RegisterProduct: %v", err)
	}
	return p
}

func TestAdjustStock_Decrement(t *testing.T) {
	svc, _ := newTestService(t)
	p := registerProduct(t, svc, 10)

	level, err := svc.AdjustStock(context.Background(), p.ID, -4)
	if err != nil {
		t.Fatalf("AdjustStock: %v", err)
	}
	if level.Stock != 6 {
		t.Errorf("expected stock 6, got %d", level.Stock)
	}
	if level.Version != p.Version+1 {
		t.Errorf("expected version %d, got %d", p.Version+1, level.Version)
	}
}

func TestAdjustStock_InsufficientLeavesStockUntouched(t *testing.T) {
	svc, _ := newTestService(t)
	p := registerProduct(t, svc, 10)

	if _, err := svc.AdjustStock(context.Background(), p.ID, -11); !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	stored, err := svc.Get(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Stock != 10 {
		t.Errorf("failed decrement must not change stock, got %d", stored.Stock)
	}
	if stored.Version != p.Version {
		t.Errorf("failed decrement must not bump version, got %d", stored.Version)
	}
}

func TestAdjustStock_UnknownProduct(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.AdjustStock(context.Background(), "nope", -1); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// Fifty concurrent buyers of two units each against a stock of one
// hundred must drain it to exactly zero, with every write applied once.
func TestAdjustStock_ConcurrentDecrementsDrainToZero(t *testing.T) {
	svc, _ := newTestService(t)
	p := registerProduct(t, svc, 100)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				_, err := svc.AdjustStock(context.Background(), p.ID, -2)
				if err == nil {
					return
				}
				if !errors.Is(err, domain.ErrVersionConflict) {
					t.Errorf("unexpected error: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	stored, err := svc.Get(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Stock != 0 {
		t.Errorf("expected stock drained to 0, got %d", stored.Stock)
	}
}

// conflictRepo wraps the product repository and fails every Update with a
// version conflict.
type conflictRepo struct {
	domain.Repository
}

func (r conflictRepo) Update(ctx context.Context, p *domain.Product) error {
	_ = ctx
	_ = p
	return domain.ErrVersionConflict
}

func TestAdjustStock_ConflictRetriesExhausted(t *testing.T) {
	inner := memory.NewProductRepository()
	p, err := domain.New("p-1", "s-1", "Keyboard", decimal.NewFromInt(10), "USD", 10)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := inner.Insert(context.Background(), p); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	svc := NewService(conflictRepo{Repository: inner}, uuidGen{}, observability.Nop())
	if _, err := svc.AdjustStock(context.Background(), "p-1", -1); !errors.Is(err, domain.ErrVersionConflict) {
		t.Errorf("expected ErrVersionConflict after exhausted retries, got %v", err)
	}
}

func TestReconcileAvailability(t *testing.T) {
	svc, _ := newTestService(t)
	p := registerProduct(t, svc, 1)

	if _, err := svc.AdjustStock(context.Background(), p.ID, -1); err != nil {
		t.Fatalf("AdjustStock: %v", err)
	}
	updated, err := svc.ReconcileAvailability(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("ReconcileAvailability: %v", err)
	}
	if updated.Status != domain.StatusOutOfStock {
		t.Errorf("expected OUT_OF_STOCK, got %s", updated.Status)
	}
}

func TestRegisterProduct_RequiresSeller(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.RegisterProduct(context.Background(), RegisterProductInput{
		Title: "Keyboard",
		Price: decimal.NewFromInt(10),
		Stock: 1,
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}
