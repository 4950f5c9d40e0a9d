package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	domain "github.com/somba-market/commerce/internal/domain/payment"
)

func seedPayment(t *testing.T, repo *PaymentRepository, id, orderID string) *domain.Payment {
	t.Helper()
	p, err := domain.New(id, orderID, "u-1", decimal.NewFromInt(10), "USD", domain.MethodCard)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := repo.Insert(context.Background(), p); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	return p
}

func TestPaymentRepository_DuplicateReferenceRejected(t *testing.T) {
	repo := NewPaymentRepository()
	first := seedPayment(t, repo, "pay-1", "o-1")

	second, err := domain.New("pay-2", "o-1", "u-1", decimal.NewFromInt(10), "USD", domain.MethodCard)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	second.TransactionReference = first.TransactionReference

	if err := repo.Insert(context.Background(), second); !errors.Is(err, domain.ErrDuplicateReference) {
		t.Errorf("expected ErrDuplicateReference, got %v", err)
	}
}

func TestPaymentRepository_HasSuccess(t *testing.T) {
	repo := NewPaymentRepository()
	p := seedPayment(t, repo, "pay-1", "o-1")

	ok, err := repo.HasSuccess(context.Background(), "o-1")
	if err != nil {
		t.Fatalf("HasSuccess: %v", err)
	}
	if ok {
		t.Fatal("pending payment must not count as success")
	}

	if err := p.Confirm("ok"); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if err := repo.Update(context.Background(), p); err != nil {
		t.Fatalf("Update: %v", err)
	}

	ok, err = repo.HasSuccess(context.Background(), "o-1")
	if err != nil {
		t.Fatalf("HasSuccess: %v", err)
	}
	if !ok {
		t.Error("expected success after confirm")
	}
}

func TestPaymentRepository_ListByOrderAndStatus(t *testing.T) {
	repo := NewPaymentRepository()
	seedPayment(t, repo, "pay-1", "o-1")
	p2 := seedPayment(t, repo, "pay-2", "o-1")
	seedPayment(t, repo, "pay-3", "o-2")

	if err := p2.Fail("declined"); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if err := repo.Update(context.Background(), p2); err != nil {
		t.Fatalf("Update: %v", err)
	}

	byOrder, err := repo.ListByOrder(context.Background(), "o-1")
	if err != nil {
		t.Fatalf("ListByOrder: %v", err)
	}
	if len(byOrder) != 2 {
		t.Errorf("expected 2 payments for o-1, got %d", len(byOrder))
	}

	failed, err := repo.ListByStatus(context.Background(), domain.StatusFailed)
	if err != nil {
		t.Fatalf("ListByStatus: %v", err)
	}
	if len(failed) != 1 || failed[0].ID != "pay-2" {
		t.Errorf("expected only pay-2 failed, got %v", failed)
	}
}

func TestPaymentRepository_GetMissing(t *testing.T) {
	repo := NewPaymentRepository()
	if _, err := repo.Get(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
