package domain

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

const (
	AggregateOrder = "order"

	EventOrderPlaced           = "OrderPlaced"
	EventOrderStockSyncPartial = "OrderStockSyncPartial"
)

type EventItem struct {
	Line       int             `json:"line"`
	ProductID  string          `json:"productId"`
	MerchantID int64           `json:"merchantId"`
	Quantity   int             `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
}

type OrderPlaced struct {
	OrderID     int64           `json:"orderId"`
	UserID      int64           `json:"userId"`
	UserEmail   string          `json:"userEmail"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Items       []EventItem     `json:"items"`
	PlacedAt    time.Time       `json:"placedAt"`
}

type OrderStockSyncPartial struct {
	OrderID int64       `json:"orderId"`
	UserID  int64       `json:"userId"`
	Failed  []EventItem `json:"failed"`
}

func NewOrderPlaced(o Order) OrderPlaced {
	return OrderPlaced{
		OrderID:     o.ID,
		UserID:      o.UserID,
		UserEmail:   o.UserEmail,
		TotalAmount: o.TotalAmount,
		Items:       eventItems(o.Items),
		PlacedAt:    o.CreatedAt,
	}
}

func NewOrderStockSyncPartial(o Order) OrderStockSyncPartial {
	return OrderStockSyncPartial{OrderID: o.ID, UserID: o.UserID, Failed: eventItems(o.Unsynced())}
}

func (o Order) AggregateID() string {
	return strconv.FormatInt(o.ID, 10)
}

func eventItems(items []OrderItem) []EventItem {
	out := make([]EventItem, 0, len(items))
	for _, i := range items {
		out = append(out, EventItem{Line: i.Line, ProductID: i.ProductID, MerchantID: i.MerchantID, Quantity: i.Quantity, Price: i.Price})
	}
	return out
}
