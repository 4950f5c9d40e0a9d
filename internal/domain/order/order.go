package order

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound               = errors.New("order: not found")
	ErrValidation             = errors.New("order: validation failed")
	ErrInvalidStateTransition = errors.New("order: invalid state transition")
	ErrItemsFrozen            = errors.New("order: items are frozen once payment is no longer pending")
	ErrItemNotFound           = errors.New("order: item not found")
	ErrConflict               = errors.New("order: already exists")
)

// DeliveryAddress is carried opaquely; the core never interprets it.
type DeliveryAddress struct {
	Country       string `json:"country"`
	Province      string `json:"province"`
	City          string `json:"city"`
	Commune       string `json:"commune"`
	Quarter       string `json:"quarter"`
	Avenue        string `json:"avenue"`
	Reference     string `json:"reference"`
	Phone         string `json:"phone"`
	RecipientName string `json:"recipient_name"`
}

// Item is a snapshot of a product at order time. Price and title are
// copied by value so later catalog changes never alter existing orders.
type Item struct {
	ID        string
	ProductID string
	Title     string
	Image     string
	UnitPrice decimal.Decimal
	Quantity  int
	Subtotal  decimal.Decimal
}

// Line is the caller-supplied input an Item snapshot is built from.
type Line struct {
	ProductID string
	Title     string
	Image     string
	UnitPrice decimal.Decimal
	Quantity  int
}

type Order struct {
	ID                string
	UserID            string
	Currency          string
	DeliveryAddress   DeliveryAddress
	Notes             string
	Items             []Item
	FulfillmentStatus FulfillmentStatus
	PaymentStatus     PaymentStatus
	Total             decimal.Decimal

	// StockReserved marks that the checkout coordinator has decremented
	// inventory for every item. Reserving an already-marked order is a
	// no-op; releasing clears it.
	StockReserved bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// New builds an order from snapshot lines. Every line must carry a
// positive unit price and a quantity of at least one.
func New(id, userID, currency string, address DeliveryAddress, notes string, lines []Line, itemID func() string) (*Order, error) {
	if id == "" || userID == "" {
		return nil, ErrValidation
	}
	if len(lines) == 0 {
		return nil, ErrValidation
	}
	if currency == "" {
		currency = "USD"
	}

	now := time.Now().UTC()
	o := &Order{
		ID:                id,
		UserID:            userID,
		Currency:          currency,
		DeliveryAddress:   address,
		Notes:             notes,
		FulfillmentStatus: FulfillmentPending,
		PaymentStatus:     PaymentPending,
		Total:             decimal.Zero,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	for _, line := range lines {
		if err := o.AddItem(line, itemID()); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// AddItem appends a snapshot item and recomputes the total. Items are
// structural only while the payment axis is still PENDING.
func (o *Order) AddItem(line Line, itemID string) error {
	if o.PaymentStatus != PaymentPending {
		return ErrItemsFrozen
	}
	if line.ProductID == "" || line.Quantity < 1 || !line.UnitPrice.IsPositive() {
		return ErrValidation
	}
	qty := decimal.NewFromInt(int64(line.Quantity))
	o.Items = append(o.Items, Item{
		ID:        itemID,
		ProductID: line.ProductID,
		Title:     line.Title,
		Image:     line.Image,
		UnitPrice: line.UnitPrice,
		Quantity:  line.Quantity,
		Subtotal:  line.UnitPrice.Mul(qty),
	})
	o.recomputeTotal()
	return nil
}

func (o *Order) RemoveItem(itemID string) error {
	if o.PaymentStatus != PaymentPending {
		return ErrItemsFrozen
	}
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			o.Items = append(o.Items[:i], o.Items[i+1:]...)
			o.recomputeTotal()
			return nil
		}
	}
	return ErrItemNotFound
}

func (o *Order) recomputeTotal() {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Subtotal)
	}
	o.Total = total
	o.touch()
}

// ApplyFulfillment moves the fulfillment axis, validating the transition.
func (o *Order) ApplyFulfillment(next FulfillmentStatus) error {
	if !next.Valid() {
		return ErrValidation
	}
	if !o.FulfillmentStatus.CanTransitionTo(next) {
		return ErrInvalidStateTransition
	}
	o.FulfillmentStatus = next
	o.touch()
	return nil
}

// ApplyPayment moves the payment axis, validating the transition.
func (o *Order) ApplyPayment(next PaymentStatus) error {
	if !next.Valid() {
		return ErrValidation
	}
	if !o.PaymentStatus.CanTransitionTo(next) {
		return ErrInvalidStateTransition
	}
	o.PaymentStatus = next
	o.touch()
	return nil
}

// Cancel is shorthand for a CANCELLED fulfillment transition. Delivered
// orders cannot be cancelled.
func (o *Order) Cancel() error {
	return o.ApplyFulfillment(FulfillmentCancelled)
}

// ReopenPayment resets a FAILED payment axis back to PENDING. Reserved
// to the checkout coordinator when a retry payment attempt is created.
func (o *Order) ReopenPayment() error {
	if o.PaymentStatus != PaymentFailed {
		return ErrInvalidStateTransition
	}
	o.PaymentStatus = PaymentPending
	o.touch()
	return nil
}

// ReopenFulfillment revives a CANCELLED order back to PENDING. Like
// ReopenPayment it is reserved to the checkout coordinator; the edge is
// deliberately absent from the public transition map.
func (o *Order) ReopenFulfillment() error {
	if o.FulfillmentStatus != FulfillmentCancelled {
		return ErrInvalidStateTransition
	}
	o.FulfillmentStatus = FulfillmentPending
	o.touch()
	return nil
}

func (o *Order) MarkStockReserved() {
	o.StockReserved = true
	o.touch()
}

func (o *Order) ClearStockReserved() {
	o.StockReserved = false
	o.touch()
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	if len(o.Items) > 0 {
		clone.Items = make([]Item, len(o.Items))
		copy(clone.Items, o.Items)
	}
	return &clone
}

func (o *Order) touch() {
	o.UpdatedAt = time.Now().UTC()
}
