package application

import (
	"context"

	"github.com/dmehra2102/cart-order-service/internal/inventory/domain"
)

type StockRepository interface {
	Listing(ctx context.Context, productID string) ([]domain.StockRecord, error)
	Decrement(ctx context.Context, d domain.Decrement) (domain.DecrementResult, error)
	Upsert(ctx context.Context, rec domain.StockRecord) (domain.StockRecord, error)
}

type AlertRepository interface {
	RecordAlerts(ctx context.Context, alerts []domain.SyncAlert) (int, error)
	ListAlerts(ctx context.Context, limit int) ([]domain.SyncAlert, error)
}
