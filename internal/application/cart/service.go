package cart

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/somba-market/commerce/internal/domain/cart"
	"github.com/somba-market/commerce/internal/observability"
	"github.com/somba-market/commerce/internal/observability/logctx"
)

const cartService = "cart-service"

var ErrUserRequired = errors.New("cart: user id is required")

// Service owns the per-user selection list. It deliberately never talks
// to the inventory ledger: stock is validated only when the cart becomes
// an order.
type Service struct {
	repo domain.Repository
	log  observability.Logger
}

func NewService(repo domain.Repository, tel observability.Observability) *Service {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Service{
		repo: repo,
		log:  tel.Logger().With(observability.F("service", cartService)),
	}
}

// Get returns the user's cart, materializing an empty one when absent.
func (s *Service) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	if userID == "" {
		return nil, ErrUserRequired
	}
	c, err := s.repo.Get(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.New(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("cart: get: %w", err)
	}
	return c, nil
}

// AddItem merges the quantity into an existing line for the product or
// appends a new one, refreshing the cart's expiry window.
func (s *Service) AddItem(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	logger := logctx.FromOr(ctx, s.log)
	if userID == "" {
		return nil, ErrUserRequired
	}
	if productID == "" {
		return nil, domain.ErrLineNotFound
	}

	c, err := s.repo.Mutate(ctx, userID, func(c *domain.Cart) error {
		return c.AddLine(productID, quantity)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("cart_item_added",
		observability.F("user_id", userID),
		observability.F("product_id", productID),
		observability.F("quantity", quantity),
	)
	return c, nil
}

// SetQuantity replaces a line's quantity. The cart and line must exist.
func (s *Service) SetQuantity(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	logger := logctx.FromOr(ctx, s.log)
	if userID == "" {
		return nil, ErrUserRequired
	}

	exists, err := s.repo.Exists(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("cart: exists: %w", err)
	}
	if !exists {
		return nil, domain.ErrLineNotFound
	}

	c, err := s.repo.Mutate(ctx, userID, func(c *domain.Cart) error {
		return c.SetQuantity(productID, quantity)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("cart_quantity_set",
		observability.F("user_id", userID),
		observability.F("product_id", productID),
		observability.F("quantity", quantity),
	)
	return c, nil
}

// RemoveItem deletes the line if present; a missing line is not an error.
func (s *Service) RemoveItem(ctx context.Context, userID, productID string) (*domain.Cart, error) {
	logger := logctx.FromOr(ctx, s.log)
	if userID == "" {
		return nil, ErrUserRequired
	}

	c, err := s.repo.Mutate(ctx, userID, func(c *domain.Cart) error {
		c.RemoveLine(productID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("cart_item_removed",
		observability.F("user_id", userID),
		observability.F("product_id", productID),
	)
	return c, nil
}

// Clear deletes the entire cart.
func (s *Service) Clear(ctx context.Context, userID string) error {
	logger := logctx.FromOr(ctx, s.log)
	if userID == "" {
		return ErrUserRequired
	}
	if err := s.repo.Delete(ctx, userID); err != nil {
		return fmt.Errorf("cart: clear: %w", err)
	}
	logger.Info("cart_cleared", observability.F("user_id", userID))
	return nil
}

func (s *Service) Exists(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, ErrUserRequired
	}
	return s.repo.Exists(ctx, userID)
}
