package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/dmehra2102/cart-order-service/internal/order/domain"
)

type CartService struct {
	log   *slog.Logger
	auth  Authenticator
	carts CartStore
	inv   InventoryService
}

func NewCartService(log *slog.Logger, auth AuthGateway, carts CartStore, inv InventoryService) *CartService {
	return &CartService{log: log, auth: NewAuthenticator(auth), carts: carts, inv: inv}
}

type CartLine struct {
	UserID     int64
	ProductID  string
	MerchantID int64
	Quantity   int
	Price      decimal.Decimal
}

// AddItem merges the line into the caller's cart. The merged quantity must
// fit the merchant's current stock.
func (s *CartService) AddItem(ctx context.Context, authorization string, line CartLine) (domain.CartItem, error) {
	ac, err := s.auth.RequireEndUser(ctx, authorization, "Only END_USER can add items to cart.")
	if err != nil {
		return domain.CartItem{}, err
	}
	if err := requireOwner(ac, line.UserID); err != nil {
		return domain.CartItem{}, err
	}
	if line.MerchantID <= 0 {
		line.MerchantID = domain.DefaultMerchantID
	}
	item := domain.CartItem{
		UserID:     ac.UserID,
		ProductID:  line.ProductID,
		MerchantID: line.MerchantID,
		Quantity:   line.Quantity,
		Price:      line.Price,
	}
	if err := item.Validate(); err != nil {
		return domain.CartItem{}, newError(KindValidation, err, "%s", err.Error())
	}

	existing, err := s.carts.Find(ctx, item.UserID, item.ProductID, item.MerchantID)
	switch {
	case errors.Is(err, domain.ErrCartItemNotFound):
	case err != nil:
		return domain.CartItem{}, newError(KindPersistence, err, "Failed to load cart")
	}

	stock, err := s.checkStock(ctx, item.ProductID, item.MerchantID, existing.Quantity+item.Quantity)
	if err != nil {
		return domain.CartItem{}, err
	}
	if item.Price.IsZero() {
		item.Price = stock.Price
	}

	saved, err := s.carts.Upsert(ctx, item)
	if err != nil {
		return domain.CartItem{}, newError(KindPersistence, err, "Failed to update cart")
	}
	return saved, nil
}

func (s *CartService) Items(ctx context.Context, authorization string, userID int64) ([]domain.CartItem, error) {
	if _, err := s.owner(ctx, authorization, userID); err != nil {
		return nil, err
	}
	items, err := s.carts.ListByUser(ctx, userID)
	if err != nil {
		return nil, newError(KindPersistence, err, "Failed to load cart")
	}
	return items, nil
}

func (s *CartService) UpdateQuantity(ctx context.Context, authorization string, line CartLine) (domain.CartItem, error) {
	ac, err := s.owner(ctx, authorization, line.UserID)
	if err != nil {
		return domain.CartItem{}, err
	}
	if line.MerchantID <= 0 {
		line.MerchantID = domain.DefaultMerchantID
	}
	if line.Quantity <= 0 {
		return domain.CartItem{}, newError(KindValidation, domain.ErrInvalidQuantity, "%s", domain.ErrInvalidQuantity.Error())
	}

	item, err := s.carts.Find(ctx, ac.UserID, line.ProductID, line.MerchantID)
	if errors.Is(err, domain.ErrCartItemNotFound) {
		return domain.CartItem{}, newError(KindNotFound, err, "Cart item not found")
	}
	if err != nil {
		return domain.CartItem{}, newError(KindPersistence, err, "Failed to load cart")
	}
	if _, err := s.checkStock(ctx, item.ProductID, item.MerchantID, line.Quantity); err != nil {
		return domain.CartItem{}, err
	}

	item.Quantity = line.Quantity
	saved, err := s.carts.SetQuantity(ctx, item)
	if errors.Is(err, domain.ErrCartItemNotFound) {
		return domain.CartItem{}, newError(KindNotFound, err, "Cart item not found")
	}
	if err != nil {
		return domain.CartItem{}, newError(KindPersistence, err, "Failed to update cart")
	}
	return saved, nil
}

func (s *CartService) RemoveItem(ctx context.Context, authorization string, userID int64, productID string, merchantID int64) error {
	ac, err := s.owner(ctx, authorization, userID)
	if err != nil {
		return err
	}
	if merchantID <= 0 {
		merchantID = domain.DefaultMerchantID
	}
	err = s.carts.Remove(ctx, ac.UserID, productID, merchantID)
	if errors.Is(err, domain.ErrCartItemNotFound) {
		return newError(KindNotFound, err, "Cart item not found")
	}
	if err != nil {
		return newError(KindPersistence, err, "Failed to update cart")
	}
	return nil
}

func (s *CartService) Clear(ctx context.Context, authorization string, userID int64) error {
	ac, err := s.owner(ctx, authorization, userID)
	if err != nil {
		return err
	}
	if err := s.carts.DeleteAllForUser(ctx, ac.UserID); err != nil {
		return newError(KindPersistence, err, "Failed to clear cart")
	}
	return nil
}

func (s *CartService) owner(ctx context.Context, authorization string, userID int64) (AuthContext, error) {
	ac, err := s.auth.Authenticate(ctx, authorization)
	if err != nil {
		return AuthContext{}, err
	}
	if err := requireOwner(ac, userID); err != nil {
		return AuthContext{}, err
	}
	return ac, nil
}

func (s *CartService) checkStock(ctx context.Context, productID string, merchantID int64, want int) (MerchantStock, error) {
	stock, err := merchantStock(ctx, s.log, s.inv, productID, merchantID)
	if err != nil {
		return MerchantStock{}, newError(KindUnavailable, err, "Inventory service unavailable")
	}
	if want > stock.Stock {
		return MerchantStock{}, newError(KindValidation, nil, "Not enough stock! Available: %d", stock.Stock)
	}
	return stock, nil
}
