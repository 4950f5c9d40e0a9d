package payment

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func newTestPayment(t *testing.T, method Method) *Payment {
	t.Helper()
	p, err := New("pay-1", "o-1", "u-1", decimal.NewFromFloat(25.50), "USD", method)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestNewReference_Format(t *testing.T) {
	cases := map[Method]string{
		MethodMPesa:          "MP",
		MethodOrangeMoney:    "OM",
		MethodAirtelMoney:    "AM",
		MethodAfriMoney:      "AF",
		MethodCard:           "CB",
		MethodCashOnDelivery: "COD",
	}
	pattern := regexp.MustCompile(`^[A-Z]+-[0-9A-F]{8}$`)

	for method, prefix := range cases {
		ref := NewReference(method)
		if !strings.HasPrefix(ref, prefix+"-") {
			t.Errorf("%s: expected prefix %q, got %q", method, prefix, ref)
		}
		if !pattern.MatchString(ref) {
			t.Errorf("%s: reference %q does not match expected shape", method, ref)
		}
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New("", "o-1", "u-1", decimal.NewFromInt(1), "USD", MethodCard); !errors.Is(err, ErrValidation) {
		t.Errorf("missing id: expected ErrValidation, got %v", err)
	}
	if _, err := New("pay-1", "o-1", "u-1", decimal.Zero, "USD", MethodCard); !errors.Is(err, ErrValidation) {
		t.Errorf("zero amount: expected ErrValidation, got %v", err)
	}
	if _, err := New("pay-1", "o-1", "u-1", decimal.NewFromInt(1), "USD", Method("BARTER")); !errors.Is(err, ErrValidation) {
		t.Errorf("unknown method: expected ErrValidation, got %v", err)
	}
}

func TestNew_StartsPendingWithReference(t *testing.T) {
	p := newTestPayment(t, MethodMPesa)
	if p.Status != StatusPending {
		t.Errorf("expected PENDING, got %s", p.Status)
	}
	if !strings.HasPrefix(p.TransactionReference, "MP-") {
		t.Errorf("expected MP- reference, got %q", p.TransactionReference)
	}
}

func TestRegenerateReference_Changes(t *testing.T) {
	p := newTestPayment(t, MethodCard)
	before := p.TransactionReference
	p.RegenerateReference()
	if p.TransactionReference == before {
		t.Errorf("expected a fresh reference, still %q", before)
	}
	if !strings.HasPrefix(p.TransactionReference, "CB-") {
		t.Errorf("regenerated reference must keep the method prefix, got %q", p.TransactionReference)
	}
}

func TestConfirm(t *testing.T) {
	p := newTestPayment(t, MethodCard)
	if err := p.Confirm(`{"provider":"ok"}`); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if p.Status != StatusSucceeded {
		t.Errorf("expected SUCCEEDED, got %s", p.Status)
	}
	if p.ProviderPayload != `{"provider":"ok"}` {
		t.Errorf("payload must be stored verbatim, got %q", p.ProviderPayload)
	}

	if err := p.Confirm("again"); !errors.Is(err, ErrInvalidStateTransition) {
		t.Errorf("double confirm: expected ErrInvalidStateTransition, got %v", err)
	}
}

func TestFail(t *testing.T) {
	p := newTestPayment(t, MethodCard)
	if err := p.Fail("card declined"); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if p.Status != StatusFailed {
		t.Errorf("expected FAILED, got %s", p.Status)
	}

	var payload map[string]string
	if err := json.Unmarshal([]byte(p.ProviderPayload), &payload); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if payload["reason"] != "card declined" {
		t.Errorf("expected reason in payload, got %v", payload)
	}

	if err := p.Confirm("late"); !errors.Is(err, ErrInvalidStateTransition) {
		t.Errorf("confirm after fail: expected ErrInvalidStateTransition, got %v", err)
	}
}

func TestTerminal(t *testing.T) {
	p := newTestPayment(t, MethodCard)
	if p.Terminal() {
		t.Error("PENDING must not be terminal")
	}
	_ = p.Fail("declined")
	if !p.Terminal() {
		t.Error("FAILED must be terminal")
	}
}
