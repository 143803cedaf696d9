package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type StockSyncStatus string

const (
	StockSyncPending  StockSyncStatus = "PENDING"
	StockSyncPartial  StockSyncStatus = "PARTIAL"
	StockSyncComplete StockSyncStatus = "COMPLETE"
)

var (
	ErrEmptyOrder      = errors.New("order must contain at least one item")
	ErrInvalidProduct  = errors.New("product id is required")
	ErrInvalidMerchant = errors.New("merchant id must be positive")
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrInvalidPrice    = errors.New("price must be positive")
	ErrPricePrecision  = errors.New("price must have at most 2 decimal places")
	ErrOrderNotFound   = errors.New("order not found")
)

type Order struct {
	ID          int64
	UserID      int64
	UserEmail   string
	Items       []OrderItem
	TotalAmount decimal.Decimal
	StockSync   StockSyncStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// OrderItem is owned by its Order. Line numbers start at 1 and are stable,
// so a line plus its order id identifies one stock decrement.
type OrderItem struct {
	Line        int
	ProductID   string
	MerchantID  int64
	Quantity    int
	Price       decimal.Decimal
	StockSynced bool
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

func (i OrderItem) Validate() error {
	switch {
	case strings.TrimSpace(i.ProductID) == "":
		return ErrInvalidProduct
	case i.MerchantID <= 0:
		return fmt.Errorf("product %s: %w", i.ProductID, ErrInvalidMerchant)
	case i.Quantity <= 0:
		return fmt.Errorf("product %s: %w", i.ProductID, ErrInvalidQuantity)
	case !i.Price.IsPositive():
		return fmt.Errorf("product %s: %w", i.ProductID, ErrInvalidPrice)
	case !isCents(i.Price):
		return fmt.Errorf("product %s: %w", i.ProductID, ErrPricePrecision)
	}
	return nil
}

// isCents reports whether d is stored exactly by a NUMERIC(12,2) column.
func isCents(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(2))
}

func NewOrder(userID int64, email string, items []OrderItem) (Order, error) {
	if len(items) == 0 {
		return Order{}, ErrEmptyOrder
	}
	owned := make([]OrderItem, len(items))
	total := decimal.Zero
	for i, item := range items {
		if err := item.Validate(); err != nil {
			return Order{}, err
		}
		item.Line = i + 1
		item.StockSynced = false
		owned[i] = item
		total = total.Add(item.Subtotal())
	}
	now := time.Now().UTC()
	return Order{
		UserID:      userID,
		UserEmail:   email,
		Items:       owned,
		TotalAmount: total,
		StockSync:   StockSyncPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Unsynced returns the lines whose decrement has not been confirmed.
func (o Order) Unsynced() []OrderItem {
	var out []OrderItem
	for _, item := range o.Items {
		if !item.StockSynced {
			out = append(out, item)
		}
	}
	return out
}

func ResolveStockSync(items []OrderItem) StockSyncStatus {
	for _, item := range items {
		if !item.StockSynced {
			return StockSyncPartial
		}
	}
	return StockSyncComplete
}

// DecrementKey is sent with every stock decrement of this line; replays with
// the same key are absorbed by the inventory service.
func DecrementKey(orderID int64, line int) string {
	return fmt.Sprintf("order-%d-line-%d", orderID, line)
}
