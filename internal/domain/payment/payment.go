package payment

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound               = errors.New("payment: not found")
	ErrValidation             = errors.New("payment: validation failed")
	ErrInvalidStateTransition = errors.New("payment: invalid state transition")
	ErrDuplicateReference     = errors.New("payment: duplicate transaction reference")
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
)

// Method is the payment channel. Each channel owns a short prefix used
// in transaction references.
type Method string

const (
	MethodMPesa          Method = "MPESA"
	MethodOrangeMoney    Method = "ORANGE_MONEY"
	MethodAirtelMoney    Method = "AIRTEL_MONEY"
	MethodAfriMoney      Method = "AFRI_MONEY"
	MethodCard           Method = "CARD"
	MethodCashOnDelivery Method = "CASH_ON_DELIVERY"
)

var methodPrefixes = map[Method]string{
	MethodMPesa:          "MP",
	MethodOrangeMoney:    "OM",
	MethodAirtelMoney:    "AM",
	MethodAfriMoney:      "AF",
	MethodCard:           "CB",
	MethodCashOnDelivery: "COD",
}

func (m Method) Valid() bool {
	_, ok := methodPrefixes[m]
	return ok
}

// NewReference generates a `{prefix}-{8 uppercase chars}` transaction
// reference. Collisions are possible; the store's uniqueness constraint
// plus regeneration handles them.
func NewReference(m Method) string {
	prefix := methodPrefixes[m]
	return prefix + "-" + strings.ToUpper(uuid.NewString()[:8])
}

// Payment is one attempt against an order. Several attempts may exist
// per order; the coordinator keeps at most one at SUCCEEDED.
type Payment struct {
	ID                   string
	OrderID              string
	UserID               string
	Amount               decimal.Decimal
	Currency             string
	Method               Method
	Status               Status
	TransactionReference string
	ProviderPayload      string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func New(id, orderID, userID string, amount decimal.Decimal, currency string, method Method) (*Payment, error) {
	if id == "" || orderID == "" || userID == "" {
		return nil, ErrValidation
	}
	if !amount.IsPositive() {
		return nil, ErrValidation
	}
	if !method.Valid() {
		return nil, ErrValidation
	}
	if currency == "" {
		currency = "USD"
	}
	now := time.Now().UTC()
	return &Payment{
		ID:                   id,
		OrderID:              orderID,
		UserID:               userID,
		Amount:               amount,
		Currency:             currency,
		Method:               method,
		Status:               StatusPending,
		TransactionReference: NewReference(method),
		CreatedAt:            now,
		UpdatedAt:            now,
	}, nil
}

// RegenerateReference replaces the transaction reference after a store
// uniqueness violation.
func (p *Payment) RegenerateReference() {
	p.TransactionReference = NewReference(p.Method)
	p.touch()
}

// Confirm moves PENDING to SUCCEEDED, storing the provider payload
// verbatim.
func (p *Payment) Confirm(providerPayload string) error {
	if p.Status != StatusPending {
		return ErrInvalidStateTransition
	}
	p.Status = StatusSucceeded
	p.ProviderPayload = providerPayload
	p.touch()
	return nil
}

// Fail moves PENDING to FAILED with a structured {message, reason}
// payload.
func (p *Payment) Fail(reason string) error {
	if p.Status != StatusPending {
		return ErrInvalidStateTransition
	}
	p.Status = StatusFailed
	payload, err := json.Marshal(map[string]string{
		"message": "payment failed",
		"reason":  reason,
	})
	if err != nil {
		payload = []byte(`{"message":"payment failed"}`)
	}
	p.ProviderPayload = string(payload)
	p.touch()
	return nil
}

func (p *Payment) Terminal() bool {
	return p.Status != StatusPending
}

func (p *Payment) Clone() *Payment {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

func (p *Payment) touch() {
	p.UpdatedAt = time.Now().UTC()
}
