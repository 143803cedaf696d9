package domain

import "time"

// SyncAlert records an order line whose stock was never subtracted. Operators
// reconcile these by hand.
type SyncAlert struct {
	OrderID    int64
	Line       int
	UserID     int64
	ProductID  string
	MerchantID int64
	Quantity   int
	ReceivedAt time.Time
}
