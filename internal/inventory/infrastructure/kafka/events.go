package kafka

const eventStockSyncPartial = "OrderStockSyncPartial"

// stockSyncPartial is the slice of the order service's partial sync event
// this consumer reads. Fields it does not need, like line prices, are left out.
type stockSyncPartial struct {
	OrderID int64        `json:"orderId"`
	UserID  int64        `json:"userId"`
	Failed  []failedLine `json:"failed"`
}

type failedLine struct {
	Line       int    `json:"line"`
	ProductID  string `json:"productId"`
	MerchantID int64  `json:"merchantId"`
	Quantity   int    `json:"quantity"`
}
