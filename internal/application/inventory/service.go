package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	domain "github.com/somba-market/commerce/internal/domain/product"
	"github.com/somba-market/commerce/internal/observability"
	"github.com/somba-market/commerce/internal/observability/logctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	inventoryService   = "inventory-service"
	useCaseAdjustStock = "inventory.adjust_stock"
	spanPrefix         = "UC."

	// maxAttempts bounds the optimistic retry loop. Conflicts are
	// transient; exhausting the budget surfaces ErrVersionConflict
	// rather than losing the write.
	maxAttempts = 5
)

type IDGenerator interface {
	NewID() string
}

// StockLevel is the ledger position after a successful adjustment.
type StockLevel struct {
	ProductID string
	Stock     int
	Version   int64
}

// Service owns stock movements against the product ledger. All writes go
// through a compare-and-swap cycle on the product version; no locks are
// held across the read-compute-write window.
type Service struct {
	repo        domain.Repository
	idGenerator IDGenerator
	tel         observability.Observability

	log             observability.Logger
	reqCounter      observability.Counter
	durHistogram    observability.Histogram
	conflictCounter observability.Counter
}

func NewService(repo domain.Repository, idGen IDGenerator, tel observability.Observability) *Service {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Service{
		repo:            repo,
		idGenerator:     idGen,
		tel:             tel,
		log:             tel.Logger().With(observability.F("service", inventoryService)),
		reqCounter:      tel.Metrics().Counter(observability.MUsecaseRequests),
		durHistogram:    tel.Metrics().Histogram(observability.MUsecaseDuration),
		conflictCounter: tel.Metrics().Counter(observability.MStockConflicts),
	}
}

type RegisterProductInput struct {
	SellerID string
	Title    string
	Price    decimal.Decimal
	Currency string
	Stock    int
}

// RegisterProduct adds a new product to the ledger.
func (s *Service) RegisterProduct(ctx context.Context, input RegisterProductInput) (*domain.Product, error) {
	logger := logctx.FromOr(ctx, s.log)
	if input.SellerID == "" {
		return nil, fmt.Errorf("%w: seller id is required", domain.ErrValidation)
	}

	p, err := domain.New(s.idGenerator.NewID(), input.SellerID, input.Title, input.Price, input.Currency, input.Stock)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Insert(ctx, p); err != nil {
		logger.Error("product_insert_failed",
			observability.F("product_id", p.ID),
			observability.F("error", err.Error()),
		)
		return nil, fmt.Errorf("inventory: insert product: %w", err)
	}

	logger.Info("product_registered",
		observability.F("product_id", p.ID),
		observability.F("seller_id", p.SellerID),
		observability.F("stock", p.Stock),
	)
	return p, nil
}

// AdjustStock applies a signed delta with optimistic concurrency. A
// negative delta failing the stock invariant returns ErrInsufficientStock
// without retrying; version conflicts retry up to maxAttempts before
// surfacing ErrVersionConflict.
func (s *Service) AdjustStock(ctx context.Context, productID string, delta int) (_ *StockLevel, err error) {
	logger := logctx.FromOr(ctx, s.log).With(observability.F("use_case", useCaseAdjustStock))

	ctx, span := s.tel.Tracer().Start(ctx, spanPrefix+"AdjustStock",
		attribute.String("use_case", useCaseAdjustStock),
		attribute.String("product.id", productID),
		attribute.Int("stock.delta", delta),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	attempts := 0

	defer func() {
		lat := time.Since(start).Seconds()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, statusText)
		} else {
			span.SetStatus(codes.Ok, statusText)
		}
		span.SetAttributes(attribute.Int("stock.attempts", attempts))
		span.End()

		s.reqCounter.Add(1,
			observability.L("use_case", useCaseAdjustStock),
			observability.L("outcome", outcome),
		)
		s.durHistogram.Observe(lat, observability.L("use_case", useCaseAdjustStock))

		logger.Info("use_case_done",
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("product_id", productID),
			observability.F("delta", delta),
			observability.F("attempts", attempts),
			observability.F("latency_seconds", lat),
		)
	}()

	if productID == "" {
		outcome, statusText = "error", "PRODUCT_ID_REQUIRED"
		return nil, fmt.Errorf("inventory: %w: product id is required", domain.ErrNotFound)
	}

	for attempts = 1; attempts <= maxAttempts; attempts++ {
		p, getErr := s.repo.Get(ctx, productID)
		if getErr != nil {
			outcome, statusText = "error", "PRODUCT_NOT_FOUND"
			return nil, getErr
		}

		if adjErr := p.AdjustStock(delta); adjErr != nil {
			if errors.Is(adjErr, domain.ErrInsufficientStock) {
				outcome, statusText = "error", "INSUFFICIENT_STOCK"
			} else {
				outcome, statusText = "error", "INVALID_QUANTITY"
			}
			return nil, adjErr
		}

		updateErr := s.repo.Update(ctx, p)
		if updateErr == nil {
			return &StockLevel{ProductID: p.ID, Stock: p.Stock, Version: p.Version}, nil
		}
		if !errors.Is(updateErr, domain.ErrVersionConflict) {
			outcome, statusText = "error", "REPO_UPDATE_FAILED"
			return nil, fmt.Errorf("inventory: update product: %w", updateErr)
		}

		s.conflictCounter.Add(1, observability.L("use_case", useCaseAdjustStock))
		logger.Debug("stock_version_conflict",
			observability.F("product_id", productID),
			observability.F("attempt", attempts),
		)
	}

	outcome, statusText = "error", "CONFLICT_RETRIES_EXHAUSTED"
	return nil, domain.ErrVersionConflict
}

// ReconcileAvailability recomputes AVAILABLE/OUT_OF_STOCK from the
// current stock. Kept separate from AdjustStock: the ledger itself never
// flips statuses as a side effect.
func (s *Service) ReconcileAvailability(ctx context.Context, productID string) (*domain.Product, error) {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		p, err := s.repo.Get(ctx, productID)
		if err != nil {
			return nil, err
		}
		p.ReconcileAvailability()
		err = s.repo.Update(ctx, p)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			return nil, fmt.Errorf("inventory: reconcile availability: %w", err)
		}
	}
	return nil, domain.ErrVersionConflict
}

func (s *Service) Get(ctx context.Context, productID string) (*domain.Product, error) {
	if productID == "" {
		return nil, domain.ErrNotFound
	}
	return s.repo.Get(ctx, productID)
}

func (s *Service) ListBySeller(ctx context.Context, sellerID string) ([]*domain.Product, error) {
	return s.repo.ListBySeller(ctx, sellerID)
}

func (s *Service) ListOutOfStock(ctx context.Context) ([]*domain.Product, error) {
	return s.repo.ListOutOfStock(ctx)
}
