package cart

import (
	"errors"
	"time"
)

var (
	ErrInvalidQuantity = errors.New("cart: quantity must be greater than zero")
	ErrLineNotFound    = errors.New("cart: line not found")
	ErrNotFound        = errors.New("cart: not found")
	ErrConflict        = errors.New("cart: concurrent update conflict")
)

// Line is a single (product, quantity) selection. Lines carry no price:
// prices are captured only when the cart becomes an order.
type Line struct {
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Cart is a per-user mutable selection list. It is lazily materialized:
// an absent cart behaves as an empty one.
type Cart struct {
	UserID string `json:"user_id"`
	Lines  []Line `json:"lines"`
}

func New(userID string) *Cart {
	return &Cart{UserID: userID}
}

// AddLine merges into an existing line for the product (quantity adds up)
// or appends a new one.
func (c *Cart) AddLine(productID string, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	now := time.Now().UTC()
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			c.Lines[i].Quantity += quantity
			c.Lines[i].UpdatedAt = now
			return nil
		}
	}
	c.Lines = append(c.Lines, Line{ProductID: productID, Quantity: quantity, UpdatedAt: now})
	return nil
}

// SetQuantity replaces the line's quantity. Unlike AddLine it does not
// merge and requires the line to exist.
func (c *Cart) SetQuantity(productID string, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			c.Lines[i].Quantity = quantity
			c.Lines[i].UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return ErrLineNotFound
}

// RemoveLine deletes the line if present. Absence is not an error.
func (c *Cart) RemoveLine(productID string) {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			return
		}
	}
}

func (c *Cart) TotalItems() int {
	total := 0
	for _, l := range c.Lines {
		total += l.Quantity
	}
	return total
}

func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	clone := &Cart{UserID: c.UserID}
	if len(c.Lines) > 0 {
		clone.Lines = make([]Line, len(c.Lines))
		copy(clone.Lines, c.Lines)
	}
	return clone
}
