package application

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dmehra2102/cart-order-service/internal/order/domain"
)

const RoleEndUser = "END_USER"

type AuthContext struct {
	UserID    int64
	Email     string
	Role      string
	ExpiresAt time.Time
}

// IsEndUser matches the gateway's role string exactly.
func (a AuthContext) IsEndUser() bool {
	return a.Role == RoleEndUser
}

// AuthGateway validates a bare token (no "Bearer " prefix).
type AuthGateway interface {
	Validate(ctx context.Context, token string) (AuthContext, error)
}

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrMalformedListing  = errors.New("malformed stock listing")
	ErrInsufficientStock = errors.New("insufficient stock")
)

type MerchantStock struct {
	MerchantID int64
	Name       string
	Price      decimal.Decimal
	Stock      int
}

type DecrementRequest struct {
	IdempotencyKey string
	OrderID        int64
	ProductID      string
	MerchantID     int64
	Quantity       int
}

// InventoryService is the remote owner of stock records. GetStock returns
// ErrProductNotFound or ErrMalformedListing for listings that cannot be used;
// Decrement must test-and-subtract atomically and absorb replays of the same
// IdempotencyKey.
type InventoryService interface {
	GetStock(ctx context.Context, productID string) ([]MerchantStock, error)
	Decrement(ctx context.Context, req DecrementRequest) error
}

type OrderStore interface {
	// PlaceOrder persists the order with its items, records an OrderPlaced
	// event and deletes the user's cart, all in one transaction.
	PlaceOrder(ctx context.Context, o domain.Order) (domain.Order, error)
	MarkItemSynced(ctx context.Context, orderID int64, line int) error
	FinishStockSync(ctx context.Context, o domain.Order, status domain.StockSyncStatus) error
	ListByUser(ctx context.Context, userID int64) ([]domain.Order, error)
	ListStockSyncPending(ctx context.Context, before time.Time, limit int) ([]domain.Order, error)
}

type CartStore interface {
	// Upsert adds item.Quantity to an existing row for the same key.
	Upsert(ctx context.Context, item domain.CartItem) (domain.CartItem, error)
	Find(ctx context.Context, userID int64, productID string, merchantID int64) (domain.CartItem, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.CartItem, error)
	SetQuantity(ctx context.Context, item domain.CartItem) (domain.CartItem, error)
	Remove(ctx context.Context, userID int64, productID string, merchantID int64) error
	DeleteAllForUser(ctx context.Context, userID int64) error
}

// NotificationDispatcher must not block; its outcome is never consulted.
// ctx only carries trace identity, its cancellation is ignored.
type NotificationDispatcher interface {
	SendConfirmation(ctx context.Context, o domain.Order, email string)
}
