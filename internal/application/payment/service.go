package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	domoutbox "github.com/somba-market/commerce/internal/domain/outbox"
	domain "github.com/somba-market/commerce/internal/domain/payment"
	"github.com/somba-market/commerce/internal/observability"
	"github.com/somba-market/commerce/internal/observability/logctx"
)

const (
	paymentService = "payment-service"

	// referenceAttempts bounds regeneration after a reference collision.
	// Collisions are rare; exhausting the budget means something else is
	// wrong and the duplicate error surfaces.
	referenceAttempts = 5
)

type IDGenerator interface {
	NewID() string
}

// Service owns payment attempts against orders. It records provider
// outcomes; deciding what a payment outcome means for the order and its
// stock is the checkout coordinator's job, wired through the event bus.
type Service struct {
	repo        domain.Repository
	idGenerator IDGenerator
	publisher   domoutbox.Publisher

	log             observability.Logger
	refRetryCounter observability.Counter
}

func NewService(repo domain.Repository, idGen IDGenerator, publisher domoutbox.Publisher, tel observability.Observability) *Service {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Service{
		repo:            repo,
		idGenerator:     idGen,
		publisher:       publisher,
		log:             tel.Logger().With(observability.F("service", paymentService)),
		refRetryCounter: tel.Metrics().Counter(observability.MPaymentRefRetries),
	}
}

type CreatePaymentInput struct {
	OrderID  string
	UserID   string
	Amount   decimal.Decimal
	Currency string
	Method   domain.Method
}

// Create opens a PENDING attempt with a fresh transaction reference. A
// store-level uniqueness violation regenerates the reference and retries;
// the caller never sees ErrDuplicateReference unless the budget runs out.
func (s *Service) Create(ctx context.Context, input CreatePaymentInput) (*domain.Payment, error) {
	logger := logctx.FromOr(ctx, s.log)

	p, err := domain.New(s.idGenerator.NewID(), input.OrderID, input.UserID, input.Amount, input.Currency, input.Method)
	if err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= referenceAttempts; attempt++ {
		err = s.repo.Insert(ctx, p)
		if err == nil {
			logger.Info("payment_created",
				observability.F("payment_id", p.ID),
				observability.F("order_id", p.OrderID),
				observability.F("transaction_reference", p.TransactionReference),
				observability.F("method", string(p.Method)),
			)
			return p, nil
		}
		if !errors.Is(err, domain.ErrDuplicateReference) {
			return nil, fmt.Errorf("payment: insert: %w", err)
		}

		s.refRetryCounter.Add(1, observability.L("method", string(p.Method)))
		logger.Warn("payment_reference_collision",
			observability.F("payment_id", p.ID),
			observability.F("transaction_reference", p.TransactionReference),
			observability.F("attempt", attempt),
		)
		p.RegenerateReference()
	}
	return nil, err
}

// Confirm moves PENDING to SUCCEEDED and fans out the success event.
func (s *Service) Confirm(ctx context.Context, id, providerPayload string) (*domain.Payment, error) {
	logger := logctx.FromOr(ctx, s.log)

	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := p.Confirm(providerPayload); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("payment: update: %w", err)
	}

	logger.Info("payment_confirmed",
		observability.F("payment_id", p.ID),
		observability.F("order_id", p.OrderID),
	)
	s.publish(ctx, domain.NewPaymentSucceededEvent(p))
	return p, nil
}

// Fail moves PENDING to FAILED and fans out the failure event. The
// checkout worker reacts by releasing the order's reservation when no
// other attempt is still pending.
func (s *Service) Fail(ctx context.Context, id, reason string) (*domain.Payment, error) {
	logger := logctx.FromOr(ctx, s.log)

	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := p.Fail(reason); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("payment: update: %w", err)
	}

	logger.Info("payment_failed",
		observability.F("payment_id", p.ID),
		observability.F("order_id", p.OrderID),
		observability.F("reason", reason),
	)
	s.publish(ctx, domain.NewPaymentFailedEvent(p, reason))
	return p, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Payment, error) {
	if id == "" {
		return nil, domain.ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*domain.Payment, error) {
	return s.repo.List(ctx)
}

func (s *Service) ListByOrder(ctx context.Context, orderID string) ([]*domain.Payment, error) {
	return s.repo.ListByOrder(ctx, orderID)
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]*domain.Payment, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *Service) ListByStatus(ctx context.Context, status domain.Status) ([]*domain.Payment, error) {
	return s.repo.ListByStatus(ctx, status)
}

func (s *Service) HasSuccessfulPayment(ctx context.Context, orderID string) (bool, error) {
	return s.repo.HasSuccess(ctx, orderID)
}

// HasPendingPayment reports whether any other attempt for the order is
// still open; used by the coordinator before releasing stock.
func (s *Service) HasPendingPayment(ctx context.Context, orderID, excludePaymentID string) (bool, error) {
	attempts, err := s.repo.ListByOrder(ctx, orderID)
	if err != nil {
		return false, err
	}
	for _, p := range attempts {
		if p.ID != excludePaymentID && p.Status == domain.StatusPending {
			return true, nil
		}
	}
	return false, nil
}

// Stats is a read-side reduction over all payment records.
type Stats struct {
	Total     int
	Pending   int
	Succeeded int
	Failed    int
	Amount    decimal.Decimal
	ByMethod  map[string]int
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	payments, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		Total:    len(payments),
		Amount:   decimal.Zero,
		ByMethod: make(map[string]int),
	}
	for _, p := range payments {
		switch p.Status {
		case domain.StatusPending:
			stats.Pending++
		case domain.StatusSucceeded:
			stats.Succeeded++
			stats.Amount = stats.Amount.Add(p.Amount)
		case domain.StatusFailed:
			stats.Failed++
		}
		stats.ByMethod[string(p.Method)]++
	}
	return stats, nil
}

func (s *Service) publish(ctx context.Context, e domoutbox.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		logctx.FromOr(ctx, s.log).Warn("event_publish_failed",
			observability.F("event", e.EventName()),
			observability.F("error", err.Error()),
		)
	}
}
