package product

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrValidation        = errors.New("product: validation failed")
	ErrNotFound          = errors.New("product: not found")
	ErrInvalidQuantity   = errors.New("product: quantity must be greater than zero")
	ErrInvalidPrice      = errors.New("product: price must be greater than zero")
	ErrInsufficientStock = errors.New("product: insufficient stock")
	ErrVersionConflict   = errors.New("product: concurrent update conflict")
)

type Status string

const (
	StatusAvailable  Status = "AVAILABLE"
	StatusOutOfStock Status = "OUT_OF_STOCK"
	StatusPromoted   Status = "PROMOTED"
	StatusDisabled   Status = "DISABLED"
)

// Product is the inventory ledger entry for a sellable item. Stock and
// Version form the optimistic-concurrency pair: every successful write
// increments Version by exactly one.
type Product struct {
	ID        string
	SellerID  string
	Title     string
	Price     decimal.Decimal
	Currency  string
	Status    Status
	Stock     int
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

func New(id, sellerID, title string, price decimal.Decimal, currency string, stock int) (*Product, error) {
	if !price.IsPositive() {
		return nil, ErrInvalidPrice
	}
	if stock < 0 {
		return nil, ErrInvalidQuantity
	}
	if currency == "" {
		currency = "USD"
	}
	now := time.Now().UTC()
	return &Product{
		ID:        id,
		SellerID:  sellerID,
		Title:     title,
		Price:     price,
		Currency:  currency,
		Status:    StatusAvailable,
		Stock:     stock,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// AdjustStock applies a signed delta. A negative delta that would take
// stock below zero fails with ErrInsufficientStock and leaves the
// product untouched.
func (p *Product) AdjustStock(delta int) error {
	if delta == 0 {
		return ErrInvalidQuantity
	}
	if p.Stock+delta < 0 {
		return ErrInsufficientStock
	}
	p.Stock += delta
	p.touch()
	return nil
}

// ReconcileAvailability derives AVAILABLE/OUT_OF_STOCK from the current
// stock. It never overwrites PROMOTED or DISABLED; those are seller
// decisions, not stock facts.
func (p *Product) ReconcileAvailability() {
	switch p.Status {
	case StatusPromoted, StatusDisabled:
		return
	}
	if p.Stock == 0 {
		p.Status = StatusOutOfStock
	} else {
		p.Status = StatusAvailable
	}
	p.touch()
}

func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

func (p *Product) touch() {
	p.UpdatedAt = time.Now().UTC()
}
