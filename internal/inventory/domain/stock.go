package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrInvalidStock      = errors.New("stock must not be negative")
	ErrInvalidPrice      = errors.New("price must be non-negative with at most 2 decimal places")
	ErrInvalidRecord     = errors.New("product id and merchant id are required")
	ErrMissingKey        = errors.New("idempotency key is required")
)

// StockRecord is one merchant's offer for a product.
type StockRecord struct {
	ProductID  string
	MerchantID int64
	Name       string
	Price      decimal.Decimal
	Stock      int
	UpdatedAt  time.Time
}

func (r StockRecord) Validate() error {
	if strings.TrimSpace(r.ProductID) == "" || r.MerchantID <= 0 {
		return ErrInvalidRecord
	}
	if r.Stock < 0 {
		return ErrInvalidStock
	}
	if r.Price.IsNegative() || !r.Price.Equal(r.Price.Truncate(2)) {
		return ErrInvalidPrice
	}
	return nil
}

// Decrement subtracts Quantity from one stock record at most once per
// IdempotencyKey.
type Decrement struct {
	IdempotencyKey string
	OrderID        int64
	ProductID      string
	MerchantID     int64
	Quantity       int
}

func (d Decrement) Validate() error {
	if strings.TrimSpace(d.IdempotencyKey) == "" {
		return ErrMissingKey
	}
	if strings.TrimSpace(d.ProductID) == "" || d.MerchantID <= 0 {
		return ErrInvalidRecord
	}
	if d.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	return nil
}

type DecrementResult struct {
	Remaining int
	Replayed  bool
}
