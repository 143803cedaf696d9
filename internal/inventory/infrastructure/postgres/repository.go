package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/cart-order-service/internal/inventory/domain"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{
		log:  log,
		pool: pool,
	}
}

func (r *Repository) Listing(ctx context.Context, productID string) ([]domain.StockRecord, error) {
	rows, err := r.pool.Query(ctx, `SELECT product_id, merchant_id, name, price, stock, updated_at
		FROM product_stock WHERE product_id = $1 ORDER BY merchant_id`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.StockRecord
	for rows.Next() {
		var rec domain.StockRecord
		if err := rows.Scan(&rec.ProductID, &rec.MerchantID, &rec.Name, &rec.Price, &rec.Stock, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Decrement records the idempotency key and subtracts the quantity in one
// transaction. Stock is only touched WHERE stock >= quantity. A rejected
// decrement rolls back its ledger row, so the key can be retried.
func (r *Repository) Decrement(ctx context.Context, d domain.Decrement) (domain.DecrementResult, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.DecrementResult{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	tag, err := tx.Exec(ctx, `INSERT INTO stock_decrements (idempotency_key, order_id, product_id, merchant_id, quantity)
		VALUES ($1, $2, $3, $4, $5) ON CONFLICT (idempotency_key) DO NOTHING`,
		d.IdempotencyKey, d.OrderID, d.ProductID, d.MerchantID, d.Quantity)
	if err != nil {
		return domain.DecrementResult{}, fmt.Errorf("ledger insert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var remaining int
		err := tx.QueryRow(ctx, `SELECT stock FROM product_stock WHERE product_id = $1 AND merchant_id = $2`,
			d.ProductID, d.MerchantID).Scan(&remaining)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return domain.DecrementResult{}, err
		}
		return domain.DecrementResult{Remaining: remaining, Replayed: true}, nil
	}

	var remaining int
	err = tx.QueryRow(ctx, `UPDATE product_stock SET stock = stock - $3, updated_at = now()
		WHERE product_id = $1 AND merchant_id = $2 AND stock >= $3
		RETURNING stock`, d.ProductID, d.MerchantID, d.Quantity).Scan(&remaining)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM product_stock WHERE product_id = $1 AND merchant_id = $2)`,
			d.ProductID, d.MerchantID).Scan(&exists); err != nil {
			return domain.DecrementResult{}, err
		}
		if !exists {
			return domain.DecrementResult{}, domain.ErrProductNotFound
		}
		return domain.DecrementResult{}, domain.ErrInsufficientStock
	}
	if err != nil {
		return domain.DecrementResult{}, fmt.Errorf("stock update: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.DecrementResult{}, err
	}
	return domain.DecrementResult{Remaining: remaining}, nil
}

func (r *Repository) Upsert(ctx context.Context, rec domain.StockRecord) (domain.StockRecord, error) {
	var out domain.StockRecord
	err := r.pool.QueryRow(ctx, `INSERT INTO product_stock (product_id, merchant_id, name, price, stock)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (product_id, merchant_id) DO UPDATE
		SET name = EXCLUDED.name, price = EXCLUDED.price, stock = EXCLUDED.stock, updated_at = now()
		RETURNING product_id, merchant_id, name, price, stock, updated_at`,
		rec.ProductID, rec.MerchantID, rec.Name, rec.Price.String(), rec.Stock,
	).Scan(&out.ProductID, &out.MerchantID, &out.Name, &out.Price, &out.Stock, &out.UpdatedAt)
	return out, err
}

func (r *Repository) RecordAlerts(ctx context.Context, alerts []domain.SyncAlert) (int, error) {
	batch := &pgx.Batch{}
	for _, a := range alerts {
		batch.Queue(`INSERT INTO stock_sync_alerts (order_id, line_no, user_id, product_id, merchant_id, quantity)
			VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (order_id, line_no) DO NOTHING`,
			a.OrderID, a.Line, a.UserID, a.ProductID, a.MerchantID, a.Quantity)
	}
	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	inserted := 0
	for range alerts {
		tag, err := br.Exec()
		if err != nil {
			return inserted, err
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

func (r *Repository) ListAlerts(ctx context.Context, limit int) ([]domain.SyncAlert, error) {
	rows, err := r.pool.Query(ctx, `SELECT order_id, line_no, user_id, product_id, merchant_id, quantity, received_at
		FROM stock_sync_alerts ORDER BY order_id DESC, line_no LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SyncAlert
	for rows.Next() {
		var a domain.SyncAlert
		if err := rows.Scan(&a.OrderID, &a.Line, &a.UserID, &a.ProductID, &a.MerchantID, &a.Quantity, &a.ReceivedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
