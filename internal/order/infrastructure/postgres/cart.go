package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/cart-order-service/internal/order/domain"
)

const cartColumns = `id, user_id, product_id, merchant_id, quantity, price, created_at, updated_at`

type CartRepository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewCartRepository(log *slog.Logger, pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{log: log, pool: pool}
}

// Upsert merges concurrent adds of the same key in a single statement.
func (r *CartRepository) Upsert(ctx context.Context, item domain.CartItem) (domain.CartItem, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO cart_items (user_id, product_id, merchant_id, quantity, price)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (user_id, product_id, merchant_id) DO UPDATE
		SET quantity = cart_items.quantity + EXCLUDED.quantity,
		    price = CASE WHEN EXCLUDED.price > 0 THEN EXCLUDED.price ELSE cart_items.price END,
		    updated_at = now()
		RETURNING `+cartColumns,
		item.UserID, item.ProductID, item.MerchantID, item.Quantity, item.Price.String())
	return scanCartItem(row)
}

func (r *CartRepository) Find(ctx context.Context, userID int64, productID string, merchantID int64) (domain.CartItem, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+cartColumns+` FROM cart_items
		WHERE user_id = $1 AND product_id = $2 AND merchant_id = $3`, userID, productID, merchantID)
	return scanCartItem(row)
}

func (r *CartRepository) ListByUser(ctx context.Context, userID int64) ([]domain.CartItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+cartColumns+` FROM cart_items WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []domain.CartItem{}
	for rows.Next() {
		item, err := scanCartItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *CartRepository) SetQuantity(ctx context.Context, item domain.CartItem) (domain.CartItem, error) {
	row := r.pool.QueryRow(ctx, `UPDATE cart_items SET quantity = $4, updated_at = now()
		WHERE user_id = $1 AND product_id = $2 AND merchant_id = $3
		RETURNING `+cartColumns,
		item.UserID, item.ProductID, item.MerchantID, item.Quantity)
	return scanCartItem(row)
}

func (r *CartRepository) Remove(ctx context.Context, userID int64, productID string, merchantID int64) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2 AND merchant_id = $3`,
		userID, productID, merchantID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrCartItemNotFound
	}
	return nil
}

func (r *CartRepository) DeleteAllForUser(ctx context.Context, userID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
	return err
}

func scanCartItem(row pgx.Row) (domain.CartItem, error) {
	var c domain.CartItem
	err := row.Scan(&c.ID, &c.UserID, &c.ProductID, &c.MerchantID, &c.Quantity, &c.Price, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.CartItem{}, domain.ErrCartItemNotFound
	}
	if err != nil {
		return domain.CartItem{}, err
	}
	return c, nil
}
