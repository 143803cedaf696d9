package application

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/cart-order-service/internal/inventory/domain"
	"github.com/dmehra2102/cart-order-service/pkg/metrics"
)

type Service struct {
	log     *slog.Logger
	repo    StockRepository
	alerts  AlertRepository
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

func NewService(log *slog.Logger, repo StockRepository, alerts AlertRepository, m *metrics.Metrics) *Service {
	return &Service{
		log:     log,
		repo:    repo,
		alerts:  alerts,
		metrics: m,
		tracer:  otel.Tracer("inventory-service"),
	}
}

func (s *Service) Listing(ctx context.Context, productID string) ([]domain.StockRecord, error) {
	recs, err := s.repo.Listing(ctx, productID)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, domain.ErrProductNotFound
	}
	return recs, nil
}

// Decrement applies d atomically. Either the whole quantity is subtracted or
// nothing changes; a replayed key reports success without touching stock.
func (s *Service) Decrement(ctx context.Context, d domain.Decrement) (domain.DecrementResult, error) {
	ctx, span := s.tracer.Start(ctx, "inventory.Decrement", trace.WithAttributes(
		attribute.String("product.id", d.ProductID),
		attribute.Int64("merchant.id", d.MerchantID),
		attribute.Int("quantity", d.Quantity),
	))
	defer span.End()

	if err := d.Validate(); err != nil {
		return domain.DecrementResult{}, err
	}
	res, err := s.repo.Decrement(ctx, d)
	switch {
	case errors.Is(err, domain.ErrInsufficientStock):
		s.metrics.Decrement("insufficient")
		s.log.Warn("decrement rejected", "key", d.IdempotencyKey, "product_id", d.ProductID, "merchant_id", d.MerchantID, "quantity", d.Quantity)
		return res, err
	case errors.Is(err, domain.ErrProductNotFound):
		s.metrics.Decrement("not_found")
		return res, err
	case err != nil:
		s.metrics.Decrement("failed")
		span.RecordError(err)
		return res, err
	}
	if res.Replayed {
		s.metrics.Decrement("replayed")
		s.log.Info("decrement replayed", "key", d.IdempotencyKey)
		return res, nil
	}
	s.metrics.Decrement("ok")
	s.log.Info("stock decremented", "key", d.IdempotencyKey, "order_id", d.OrderID, "remaining", res.Remaining)
	return res, nil
}

func (s *Service) SetStock(ctx context.Context, rec domain.StockRecord) (domain.StockRecord, error) {
	if err := rec.Validate(); err != nil {
		return domain.StockRecord{}, err
	}
	return s.repo.Upsert(ctx, rec)
}

// RecordPartialSync stores one alert per order line that missed its
// decrement. Redelivered events are absorbed by the repository.
func (s *Service) RecordPartialSync(ctx context.Context, alerts []domain.SyncAlert) error {
	if len(alerts) == 0 {
		return nil
	}
	n, err := s.alerts.RecordAlerts(ctx, alerts)
	if err != nil {
		return err
	}
	s.log.Warn("stock sync alerts recorded", "order_id", alerts[0].OrderID, "new", n, "lines", len(alerts))
	return nil
}

func (s *Service) Alerts(ctx context.Context, limit int) ([]domain.SyncAlert, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.alerts.ListAlerts(ctx, limit)
}
