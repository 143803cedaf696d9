package http

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/dmehra2102/cart-order-service/internal/order/application"
	"github.com/dmehra2102/cart-order-service/internal/order/domain"
)

type errorResp struct {
	Error string `json:"error"`
}

type itemReq struct {
	ProductID  string          `json:"productId"`
	MerchantID int64           `json:"merchantId"`
	Quantity   int             `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
}

type checkoutReq struct {
	UserID      int64            `json:"userId"`
	Items       []itemReq        `json:"items"`
	TotalAmount *decimal.Decimal `json:"totalAmount"`
}

func (r checkoutReq) orderItems() []domain.OrderItem {
	items := make([]domain.OrderItem, 0, len(r.Items))
	for _, i := range r.Items {
		items = append(items, domain.OrderItem{ProductID: i.ProductID, MerchantID: i.MerchantID, Quantity: i.Quantity, Price: i.Price})
	}
	return items
}

type checkoutResp struct {
	Success     bool    `json:"success"`
	OrderID     int64   `json:"orderId"`
	TotalAmount float64 `json:"totalAmount"`
}

type orderItemResp struct {
	ProductID  string  `json:"productId"`
	MerchantID int64   `json:"merchantId"`
	Quantity   int     `json:"quantity"`
	Price      float64 `json:"price"`
}

type orderResp struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"userId"`
	TotalAmount float64         `json:"totalAmount"`
	Items       []orderItemResp `json:"items"`
	CreatedAt   time.Time       `json:"createdAt"`
}

func newOrderResp(o domain.Order) orderResp {
	items := make([]orderItemResp, 0, len(o.Items))
	for _, i := range o.Items {
		items = append(items, orderItemResp{ProductID: i.ProductID, MerchantID: i.MerchantID, Quantity: i.Quantity, Price: i.Price.InexactFloat64()})
	}
	return orderResp{ID: o.ID, UserID: o.UserID, TotalAmount: o.TotalAmount.InexactFloat64(), Items: items, CreatedAt: o.CreatedAt}
}

type cartReq struct {
	UserID     int64           `json:"userId"`
	ProductID  string          `json:"productId"`
	MerchantID int64           `json:"merchantId"`
	Quantity   int             `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
}

func (r cartReq) line() application.CartLine {
	return application.CartLine{UserID: r.UserID, ProductID: r.ProductID, MerchantID: r.MerchantID, Quantity: r.Quantity, Price: r.Price}
}

type cartItemResp struct {
	ID         int64   `json:"id"`
	UserID     int64   `json:"userId"`
	ProductID  string  `json:"productId"`
	MerchantID int64   `json:"merchantId"`
	Quantity   int     `json:"quantity"`
	Price      float64 `json:"price"`
}

func newCartItemResp(c domain.CartItem) cartItemResp {
	return cartItemResp{ID: c.ID, UserID: c.UserID, ProductID: c.ProductID, MerchantID: c.MerchantID, Quantity: c.Quantity, Price: c.Price.InexactFloat64()}
}
