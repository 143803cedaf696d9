package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/cart-order-service/internal/order/domain"
	"github.com/dmehra2102/cart-order-service/pkg/metrics"
)

type CheckoutRequest struct {
	Authorization string
	// UserID is optional; when set it must match the token's user.
	UserID int64
	Items  []domain.OrderItem
	// TotalAmount is optional; when set it must match the computed total.
	TotalAmount *decimal.Decimal
}

type CheckoutResult struct {
	OrderID     int64
	TotalAmount decimal.Decimal
}

// Orchestrator runs the checkout saga: authorize, verify stock, commit the
// order and clear the cart, then decrement stock and notify off the request
// path.
type Orchestrator struct {
	log      *slog.Logger
	auth     Authenticator
	inv      InventoryService
	orders   OrderStore
	notifier NotificationDispatcher
	metrics  *metrics.Metrics
	tracer   trace.Tracer

	stockSyncTimeout  time.Duration
	finishTimeout     time.Duration
	verifyParallelism int

	wg sync.WaitGroup
}

type Option func(*Orchestrator)

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

func WithStockSyncTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.stockSyncTimeout = d
		}
	}
}

func WithVerifyParallelism(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.verifyParallelism = n
		}
	}
}

func NewOrchestrator(log *slog.Logger, auth AuthGateway, inv InventoryService, orders OrderStore, notifier NotificationDispatcher, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		log:               log,
		auth:              NewAuthenticator(auth),
		inv:               inv,
		orders:            orders,
		notifier:          notifier,
		tracer:            otel.Tracer("order-orchestrator"),
		stockSyncTimeout:  30 * time.Second,
		finishTimeout:     5 * time.Second,
		verifyParallelism: 8,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) Checkout(ctx context.Context, req CheckoutRequest) (CheckoutResult, error) {
	start := time.Now()
	ctx, span := o.tracer.Start(ctx, "Checkout")
	defer span.End()

	res, err := o.checkout(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, KindOf(err).String())
		o.metrics.Checkout(KindOf(err).String(), time.Since(start).Seconds())
		return CheckoutResult{}, err
	}
	span.SetAttributes(attribute.Int64("order.id", res.OrderID))
	o.metrics.Checkout("ok", time.Since(start).Seconds())
	return res, nil
}

func (o *Orchestrator) checkout(ctx context.Context, req CheckoutRequest) (CheckoutResult, error) {
	saga := domain.NewSaga()

	ac, err := o.auth.RequireEndUser(ctx, req.Authorization, "Only END_USER can place orders.")
	if err != nil {
		return CheckoutResult{}, err
	}
	if req.UserID != 0 && req.UserID != ac.UserID {
		return CheckoutResult{}, newError(KindAuthorization, nil, "Cannot place orders for another user.")
	}

	order, err := domain.NewOrder(ac.UserID, ac.Email, req.Items)
	if err != nil {
		return CheckoutResult{}, newError(KindValidation, err, "%s", err.Error())
	}
	if req.TotalAmount != nil && !req.TotalAmount.Equal(order.TotalAmount) {
		return CheckoutResult{}, newError(KindValidation, nil, "totalAmount %s does not match order items (%s)", req.TotalAmount.StringFixed(2), order.TotalAmount.StringFixed(2))
	}

	if err := verifyStock(ctx, o.log, o.inv, order.Items, o.verifyParallelism); err != nil {
		return CheckoutResult{}, err
	}

	placed, err := o.orders.PlaceOrder(ctx, order)
	if err != nil {
		o.log.ErrorContext(ctx, "order commit failed", "user_id", ac.UserID, "err", err)
		return CheckoutResult{}, newError(KindPersistence, err, "Failed to place order")
	}
	o.advance(ctx, saga, placed.ID, domain.StatePersisted)
	o.log.InfoContext(ctx, "order placed", "order_id", placed.ID, "user_id", placed.UserID, "total", placed.TotalAmount.String())

	// Past this point the order is committed; nothing below may fail the request.
	o.advance(ctx, saga, placed.ID, domain.StateStockSyncPending)
	o.startStockSync(ctx, placed)
	o.notifier.SendConfirmation(ctx, placed, ac.Email)

	return CheckoutResult{OrderID: placed.ID, TotalAmount: placed.TotalAmount}, nil
}

func (o *Orchestrator) advance(ctx context.Context, saga *domain.Saga, orderID int64, to domain.SagaState) {
	if err := saga.Advance(to); err != nil {
		o.log.ErrorContext(ctx, "saga transition rejected", "order_id", orderID, "err", err)
		return
	}
	trace.SpanFromContext(ctx).AddEvent(string(to))
	o.log.DebugContext(ctx, "saga advanced", "order_id", orderID, "state", to)
}

func (o *Orchestrator) startStockSync(ctx context.Context, order domain.Order) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		syncCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.stockSyncTimeout)
		defer cancel()
		_, _ = o.SyncStock(syncCtx, order)
	}()
}

// SyncStock decrements every line not yet synced and records the resulting
// stock-sync status. Decrement failures are absorbed; only a failure to
// record the outcome is returned.
func (o *Orchestrator) SyncStock(ctx context.Context, order domain.Order) (domain.StockSyncStatus, error) {
	ctx, span := o.tracer.Start(ctx, "SyncStock", trace.WithAttributes(attribute.Int64("order.id", order.ID)))
	defer span.End()

	saga := domain.NewSaga()
	_ = saga.Advance(domain.StatePersisted)
	_ = saga.Advance(domain.StateStockSyncPending)

	items := make([]domain.OrderItem, len(order.Items))
	copy(items, order.Items)
	order.Items = items

	for i := range order.Items {
		item := &order.Items[i]
		if item.StockSynced {
			continue
		}
		err := o.inv.Decrement(ctx, DecrementRequest{
			IdempotencyKey: domain.DecrementKey(order.ID, item.Line),
			OrderID:        order.ID,
			ProductID:      item.ProductID,
			MerchantID:     item.MerchantID,
			Quantity:       item.Quantity,
		})
		if err != nil {
			syncErr := DownstreamSyncFailed(err)
			o.log.WarnContext(ctx, syncErr.Msg, "kind", syncErr.Kind.String(), "order_id", order.ID, "line", item.Line,
				"product_id", item.ProductID, "merchant_id", item.MerchantID, "quantity", item.Quantity, "err", syncErr.Err)
			o.metrics.Decrement(decrementOutcome(err))
			continue
		}
		item.StockSynced = true
		o.metrics.Decrement("ok")
		if err := o.orders.MarkItemSynced(ctx, order.ID, item.Line); err != nil {
			o.log.ErrorContext(ctx, "mark item synced failed", "order_id", order.ID, "line", item.Line, "err", err)
		}
	}

	status := domain.ResolveStockSync(order.Items)
	o.advance(ctx, saga, order.ID, domain.StateFor(status))

	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.finishTimeout)
	defer cancel()
	if err := o.orders.FinishStockSync(finishCtx, order, status); err != nil {
		o.log.ErrorContext(ctx, "record stock sync failed", "order_id", order.ID, "status", status, "err", err)
		span.RecordError(err)
		return status, newError(KindPersistence, err, "record stock sync")
	}
	o.metrics.StockSync(string(status))
	if status == domain.StockSyncPartial {
		o.log.WarnContext(ctx, "order stock sync partial", "order_id", order.ID, "unsynced", len(order.Unsynced()))
	} else {
		o.log.InfoContext(ctx, "order stock sync complete", "order_id", order.ID)
	}
	return status, nil
}

func decrementOutcome(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientStock):
		return "oversold"
	case errors.Is(err, ErrProductNotFound):
		return "not_found"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "failed"
	}
}

// ListOrders returns the caller's own orders.
func (o *Orchestrator) ListOrders(ctx context.Context, authorization string, userID int64) ([]domain.Order, error) {
	ac, err := o.auth.RequireEndUser(ctx, authorization, "Access denied")
	if err != nil {
		return nil, err
	}
	if userID != ac.UserID {
		return nil, newError(KindAuthorization, nil, "Access denied")
	}
	orders, err := o.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, newError(KindPersistence, err, "Failed to load orders")
	}
	return orders, nil
}

// Wait blocks until every in-flight stock sync has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
