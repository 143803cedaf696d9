package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmehra2102/cart-order-service/internal/order/domain"
)

type stockSyncer interface {
	SyncStock(ctx context.Context, order domain.Order) (domain.StockSyncStatus, error)
}

// Reconciler re-drives orders left in PENDING stock sync, e.g. after a crash
// between commit and decrement. Decrements reuse their original idempotency
// keys so lines that did reach the inventory service are not applied twice.
type Reconciler struct {
	log      *slog.Logger
	orders   OrderStore
	syncer   stockSyncer
	interval time.Duration
	grace    time.Duration
	batch    int
	now      func() time.Time
}

func NewReconciler(log *slog.Logger, orders OrderStore, syncer stockSyncer, interval, grace time.Duration) *Reconciler {
	return &Reconciler{
		log:      log,
		orders:   orders,
		syncer:   syncer,
		interval: interval,
		grace:    grace,
		batch:    50,
		now:      time.Now,
	}
}

func (r *Reconciler) Run(ctx context.Context) error {
	t := time.NewTicker(r.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("reconciler stopping")
			return nil
		case <-t.C:
			if _, err := r.RunOnce(ctx); err != nil {
				r.log.Error("reconcile pass failed", "err", err)
			}
		}
	}
}

// RunOnce reconciles one batch and reports how many orders were re-driven.
func (r *Reconciler) RunOnce(ctx context.Context) (int, error) {
	stale, err := r.orders.ListStockSyncPending(ctx, r.now().Add(-r.grace), r.batch)
	if err != nil {
		return 0, err
	}
	for _, order := range stale {
		status, err := r.syncer.SyncStock(ctx, order)
		if err != nil {
			r.log.Error("reconcile order failed", "order_id", order.ID, "err", err)
			continue
		}
		r.log.Info("order reconciled", "order_id", order.ID, "status", status)
	}
	return len(stale), nil
}
