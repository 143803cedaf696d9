package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/cart-order-service/internal/order/domain"
	"github.com/dmehra2102/cart-order-service/pkg/outbox"
	"github.com/dmehra2102/cart-order-service/pkg/tracing"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) PlaceOrder(ctx context.Context, o domain.Order) (domain.Order, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Order{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	err = tx.QueryRow(ctx, `INSERT INTO orders (user_id, user_email, total_amount, stock_sync, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$5)
		RETURNING id`,
		o.UserID, o.UserEmail, o.TotalAmount.String(), string(o.StockSync), o.CreatedAt).Scan(&o.ID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("insert order: %w", err)
	}

	batch := &pgx.Batch{}
	for _, item := range o.Items {
		batch.Queue(`INSERT INTO order_items (order_id, line_no, product_id, merchant_id, quantity, price)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			o.ID, item.Line, item.ProductID, item.MerchantID, item.Quantity, item.Price.String())
	}
	if err = tx.SendBatch(ctx, batch).Close(); err != nil {
		return domain.Order{}, fmt.Errorf("insert order items: %w", err)
	}

	ev, err := outbox.NewEvent(domain.AggregateOrder, o.AggregateID(), domain.EventOrderPlaced, domain.NewOrderPlaced(o), tracing.Traceparent(ctx))
	if err != nil {
		return domain.Order{}, err
	}
	if err = insertEvent(ctx, tx, ev); err != nil {
		return domain.Order{}, err
	}

	if _, err = tx.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, o.UserID); err != nil {
		return domain.Order{}, fmt.Errorf("clear cart: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (r *Repository) MarkItemSynced(ctx context.Context, orderID int64, line int) error {
	_, err := r.pool.Exec(ctx, `UPDATE order_items SET stock_synced = true WHERE order_id = $1 AND line_no = $2`, orderID, line)
	return err
}

// FinishStockSync records the terminal stock-sync status. A PARTIAL outcome
// also emits an OrderStockSyncPartial event for offline reconciliation.
func (r *Repository) FinishStockSync(ctx context.Context, o domain.Order, status domain.StockSyncStatus) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	ct, err := tx.Exec(ctx, `UPDATE orders SET stock_sync = $2, updated_at = now() WHERE id = $1`, o.ID, string(status))
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}

	if status == domain.StockSyncPartial {
		ev, err := outbox.NewEvent(domain.AggregateOrder, o.AggregateID(), domain.EventOrderStockSyncPartial, domain.NewOrderStockSyncPartial(o), tracing.Traceparent(ctx))
		if err != nil {
			return err
		}
		if err := insertEvent(ctx, tx, ev); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *Repository) ListByUser(ctx context.Context, userID int64) ([]domain.Order, error) {
	return r.listOrders(ctx, `SELECT id, user_id, user_email, total_amount, stock_sync, created_at, updated_at
		FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, userID)
}

func (r *Repository) ListStockSyncPending(ctx context.Context, before time.Time, limit int) ([]domain.Order, error) {
	return r.listOrders(ctx, `SELECT id, user_id, user_email, total_amount, stock_sync, created_at, updated_at
		FROM orders WHERE stock_sync = 'PENDING' AND created_at < $1 ORDER BY id LIMIT $2`, before, limit)
}

func (r *Repository) listOrders(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []domain.Order
	index := map[int64]int{}
	for rows.Next() {
		var o domain.Order
		var status string
		if err := rows.Scan(&o.ID, &o.UserID, &o.UserEmail, &o.TotalAmount, &status, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		o.StockSync = domain.StockSyncStatus(status)
		index[o.ID] = len(orders)
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]int64, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	itemRows, err := r.pool.Query(ctx, `SELECT order_id, line_no, product_id, merchant_id, quantity, price, stock_synced
		FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, line_no`, ids)
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()
	for itemRows.Next() {
		var orderID int64
		var item domain.OrderItem
		if err := itemRows.Scan(&orderID, &item.Line, &item.ProductID, &item.MerchantID, &item.Quantity, &item.Price, &item.StockSynced); err != nil {
			return nil, err
		}
		i := index[orderID]
		orders[i].Items = append(orders[i].Items, item)
	}
	return orders, itemRows.Err()
}
