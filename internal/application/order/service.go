package order

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	domain "github.com/somba-market/commerce/internal/domain/order"
	"github.com/somba-market/commerce/internal/observability"
	"github.com/somba-market/commerce/internal/observability/logctx"
)

const orderService = "order-service"

type IDGenerator interface {
	NewID() string
}

// Service owns the order aggregate: snapshot items, derived totals, and
// the two status axes. Stock is never touched here; that is the checkout
// coordinator's job.
type Service struct {
	repo        domain.Repository
	idGenerator IDGenerator
	log         observability.Logger
}

func NewService(repo domain.Repository, idGen IDGenerator, tel observability.Observability) *Service {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Service{
		repo:        repo,
		idGenerator: idGen,
		log:         tel.Logger().With(observability.F("service", orderService)),
	}
}

type CreateOrderInput struct {
	UserID          string
	Currency        string
	DeliveryAddress domain.DeliveryAddress
	Notes           string
	Lines           []domain.Line
}

// Create builds and persists the aggregate from snapshot lines. Callers
// wanting stock reservation go through the checkout coordinator instead.
func (s *Service) Create(ctx context.Context, input CreateOrderInput) (*domain.Order, error) {
	logger := logctx.FromOr(ctx, s.log)
	if input.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}

	o, err := domain.New(
		s.idGenerator.NewID(),
		input.UserID,
		input.Currency,
		input.DeliveryAddress,
		input.Notes,
		input.Lines,
		s.idGenerator.NewID,
	)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Insert(ctx, o); err != nil {
		logger.Error("order_insert_failed",
			observability.F("order_id", o.ID),
			observability.F("error", err.Error()),
		)
		return nil, fmt.Errorf("order: insert: %w", err)
	}

	logger.Info("order_created",
		observability.F("order_id", o.ID),
		observability.F("user_id", o.UserID),
		observability.F("items", len(o.Items)),
		observability.F("total", o.Total.String()),
	)
	return o, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Order, error) {
	if id == "" {
		return nil, domain.ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*domain.Order, error) {
	return s.repo.List(ctx)
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *Service) ListByFulfillment(ctx context.Context, status domain.FulfillmentStatus) ([]*domain.Order, error) {
	return s.repo.ListByFulfillment(ctx, status)
}

func (s *Service) ListByPayment(ctx context.Context, status domain.PaymentStatus) ([]*domain.Order, error) {
	return s.repo.ListByPayment(ctx, status)
}

// UpdateStatus applies allowed transitions on either axis; a nil axis is
// a no-op for that axis.
func (s *Service) UpdateStatus(ctx context.Context, id string, fulfillment *domain.FulfillmentStatus, payment *domain.PaymentStatus) (*domain.Order, error) {
	logger := logctx.FromOr(ctx, s.log)

	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if fulfillment != nil {
		if err := o.ApplyFulfillment(*fulfillment); err != nil {
			return nil, err
		}
	}
	if payment != nil {
		if err := o.ApplyPayment(*payment); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Update(ctx, o); err != nil {
		return nil, fmt.Errorf("order: update: %w", err)
	}

	logger.Info("order_status_updated",
		observability.F("order_id", o.ID),
		observability.F("fulfillment_status", string(o.FulfillmentStatus)),
		observability.F("payment_status", string(o.PaymentStatus)),
	)
	return o, nil
}

// Cancel rejects orders that have already been delivered.
func (s *Service) Cancel(ctx context.Context, id string) (*domain.Order, error) {
	cancelled := domain.FulfillmentCancelled
	return s.UpdateStatus(ctx, id, &cancelled, nil)
}

// AddItem appends a snapshot item while the payment axis is still
// PENDING, recomputing the total.
func (s *Service) AddItem(ctx context.Context, orderID string, line domain.Line) (*domain.Order, error) {
	o, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := o.AddItem(line, s.idGenerator.NewID()); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, o); err != nil {
		return nil, fmt.Errorf("order: update: %w", err)
	}
	return o, nil
}

// RemoveItem removes a snapshot item under the same freeze rule.
func (s *Service) RemoveItem(ctx context.Context, orderID, itemID string) (*domain.Order, error) {
	o, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := o.RemoveItem(itemID); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, o); err != nil {
		return nil, fmt.Errorf("order: update: %w", err)
	}
	return o, nil
}

// MarkStockReserved persists the reservation marker after the checkout
// coordinator has decremented inventory for every item.
func (s *Service) MarkStockReserved(ctx context.Context, id string) (*domain.Order, error) {
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.StockReserved {
		return o, nil
	}
	o.MarkStockReserved()
	if err := s.repo.Update(ctx, o); err != nil {
		return nil, fmt.Errorf("order: update: %w", err)
	}
	return o, nil
}

// ClearStockReserved drops the reservation marker and reports whether
// this call flipped it. The write is conditional at the store, so of any
// number of concurrent callers exactly one gets true and owns the
// compensating stock increments.
func (s *Service) ClearStockReserved(ctx context.Context, id string) (bool, error) {
	cleared, err := s.repo.ClearStockReserved(ctx, id)
	if err != nil {
		return false, err
	}
	return cleared, nil
}

// ReopenPayment moves a FAILED payment axis back to PENDING so a new
// attempt can be made.
func (s *Service) ReopenPayment(ctx context.Context, id string) (*domain.Order, error) {
	logger := logctx.FromOr(ctx, s.log)

	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := o.ReopenPayment(); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, o); err != nil {
		return nil, fmt.Errorf("order: update: %w", err)
	}

	logger.Info("order_payment_reopened", observability.F("order_id", o.ID))
	return o, nil
}

// ReopenFulfillment revives a CANCELLED order when a retry payment is
// accepted for it.
func (s *Service) ReopenFulfillment(ctx context.Context, id string) (*domain.Order, error) {
	logger := logctx.FromOr(ctx, s.log)

	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := o.ReopenFulfillment(); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, o); err != nil {
		return nil, fmt.Errorf("order: update: %w", err)
	}

	logger.Info("order_fulfillment_reopened", observability.F("order_id", o.ID))
	return o, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	logger := logctx.FromOr(ctx, s.log)
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	logger.Info("order_deleted", observability.F("order_id", id))
	return nil
}

// Stats is a read-side reduction over all orders.
type Stats struct {
	Total      int
	Pending    int
	InProgress int
	InTransit  int
	Delivered  int
	Cancelled  int
	Revenue    decimal.Decimal
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	orders, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Stats{Total: len(orders), Revenue: decimal.Zero}
	for _, o := range orders {
		switch o.FulfillmentStatus {
		case domain.FulfillmentPending:
			stats.Pending++
		case domain.FulfillmentInProgress:
			stats.InProgress++
		case domain.FulfillmentInTransit:
			stats.InTransit++
		case domain.FulfillmentDelivered:
			stats.Delivered++
		case domain.FulfillmentCancelled:
			stats.Cancelled++
		}
		if o.PaymentStatus == domain.PaymentPaid {
			stats.Revenue = stats.Revenue.Add(o.Total)
		}
	}
	return stats, nil
}

// errors re-exported for callers that only import the application layer.
var (
	ErrNotFound               = domain.ErrNotFound
	ErrValidation             = domain.ErrValidation
	ErrInvalidStateTransition = domain.ErrInvalidStateTransition
)
