package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

const DefaultMerchantID int64 = 1

var ErrCartItemNotFound = errors.New("cart item not found")

// CartItem is unique per (UserID, ProductID, MerchantID).
type CartItem struct {
	ID         int64
	UserID     int64
	ProductID  string
	MerchantID int64
	Quantity   int
	Price      decimal.Decimal
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (c CartItem) Validate() error {
	if c.ProductID == "" {
		return ErrInvalidProduct
	}
	if c.MerchantID <= 0 {
		return ErrInvalidMerchant
	}
	if c.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if c.Price.IsNegative() {
		return ErrInvalidPrice
	}
	if !isCents(c.Price) {
		return ErrPricePrecision
	}
	return nil
}
