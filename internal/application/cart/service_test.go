package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/somba-market/commerce/internal/domain/cart"
	"github.com/somba-market/commerce/internal/infrastructure/memory"
	"github.com/somba-market/commerce/internal/observability"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(memory.NewCartRepository(time.Hour), observability.Nop())
}

func TestGet_MaterializesEmptyCart(t *testing.T) {
	svc := newTestService(t)

	c, err := svc.Get(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if c.UserID != "u-1" || len(c.Lines) != 0 {
		t.Errorf("expected fresh empty cart, got %+v", c)
	}

	// Reading an absent cart must not persist it.
	ok, err := svc.Exists(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if ok {
		t.Error("Get must not materialize the cart in the store")
	}
}

func TestAddItem_Merges(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.AddItem(context.Background(), "u-1", "p-1", 2); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	c, err := svc.AddItem(context.Background(), "u-1", "p-1", 3)
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if len(c.Lines) != 1 || c.Lines[0].Quantity != 5 {
		t.Errorf("expected one line of 5, got %+v", c.Lines)
	}
}

func TestAddItem_RejectsInvalidQuantity(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.AddItem(context.Background(), "u-1", "p-1", 0); !errors.Is(err, domain.ErrInvalidQuantity) {
		t.Errorf("expected ErrInvalidQuantity, got %v", err)
	}
}

func TestSetQuantity_MissingCartOrLine(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.SetQuantity(context.Background(), "u-1", "p-1", 3); !errors.Is(err, domain.ErrLineNotFound) {
		t.Errorf("absent cart: expected ErrLineNotFound, got %v", err)
	}

	if _, err := svc.AddItem(context.Background(), "u-1", "p-1", 2); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if _, err := svc.SetQuantity(context.Background(), "u-1", "p-404", 3); !errors.Is(err, domain.ErrLineNotFound) {
		t.Errorf("absent line: expected ErrLineNotFound, got %v", err)
	}

	c, err := svc.SetQuantity(context.Background(), "u-1", "p-1", 7)
	if err != nil {
		t.Fatalf("SetQuantity: %v", err)
	}
	if c.Lines[0].Quantity != 7 {
		t.Errorf("expected quantity 7, got %d", c.Lines[0].Quantity)
	}
}

func TestRemoveItem_MissingLineIsNoError(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.AddItem(context.Background(), "u-1", "p-1", 2); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	c, err := svc.RemoveItem(context.Background(), "u-1", "p-404")
	if err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	if len(c.Lines) != 1 {
		t.Errorf("unrelated line must survive, got %+v", c.Lines)
	}
}

func TestClearAndExists(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.AddItem(context.Background(), "u-1", "p-1", 2); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	ok, _ := svc.Exists(context.Background(), "u-1")
	if !ok {
		t.Fatal("expected cart to exist")
	}

	if err := svc.Clear(context.Background(), "u-1"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	ok, _ = svc.Exists(context.Background(), "u-1")
	if ok {
		t.Error("expected cart gone")
	}
}

func TestUserRequired(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.Get(context.Background(), ""); !errors.Is(err, ErrUserRequired) {
		t.Errorf("Get: expected ErrUserRequired, got %v", err)
	}
	if _, err := svc.AddItem(context.Background(), "", "p-1", 1); !errors.Is(err, ErrUserRequired) {
		t.Errorf("AddItem: expected ErrUserRequired, got %v", err)
	}
	if err := svc.Clear(context.Background(), ""); !errors.Is(err, ErrUserRequired) {
		t.Errorf("Clear: expected ErrUserRequired, got %v", err)
	}
}
