package inventory_test

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	invdomain "github.com/dmehra2102/cart-order-service/internal/inventory/domain"
	invhttp "github.com/dmehra2102/cart-order-service/internal/inventory/infrastructure/http"
	"github.com/dmehra2102/cart-order-service/internal/order/application"
	"github.com/dmehra2102/cart-order-service/internal/order/infrastructure/inventory"
	"github.com/dmehra2102/cart-order-service/pkg/logging"
)

// shelf is an in-memory stand-in for the inventory service behind its real
// HTTP handler.
type shelf struct {
	mu     sync.Mutex
	stock  map[int64]int
	ledger map[string]bool
}

func (s *shelf) Listing(_ context.Context, productID string) ([]invdomain.StockRecord, error) {
	if productID != "P1" {
		return nil, invdomain.ErrProductNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []invdomain.StockRecord
	for m := int64(1); m <= 2; m++ {
		if n, ok := s.stock[m]; ok {
			out = append(out, invdomain.StockRecord{ProductID: productID, MerchantID: m, Name: "Acme", Price: decimal.RequireFromString("50"), Stock: n})
		}
	}
	return out, nil
}

func (s *shelf) Decrement(_ context.Context, d invdomain.Decrement) (invdomain.DecrementResult, error) {
	if err := d.Validate(); err != nil {
		return invdomain.DecrementResult{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ledger[d.IdempotencyKey] {
		return invdomain.DecrementResult{Remaining: s.stock[d.MerchantID], Replayed: true}, nil
	}
	n, ok := s.stock[d.MerchantID]
	switch {
	case d.ProductID != "P1" || !ok:
		return invdomain.DecrementResult{}, invdomain.ErrProductNotFound
	case n < d.Quantity:
		return invdomain.DecrementResult{}, invdomain.ErrInsufficientStock
	}
	s.stock[d.MerchantID] = n - d.Quantity
	s.ledger[d.IdempotencyKey] = true
	return invdomain.DecrementResult{Remaining: n - d.Quantity}, nil
}

func (s *shelf) level(merchant int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stock[merchant]
}

func (s *shelf) SetStock(_ context.Context, rec invdomain.StockRecord) (invdomain.StockRecord, error) {
	return rec, nil
}

func (s *shelf) Alerts(context.Context, int) ([]invdomain.SyncAlert, error) {
	return nil, nil
}

func TestClientMatchesInventoryHandler(t *testing.T) {
	s := &shelf{stock: map[int64]int{1: 5, 2: 0}, ledger: map[string]bool{}}
	srv := httptest.NewServer(invhttp.NewHandler(logging.Discard(), s, nil).Routes())
	t.Cleanup(srv.Close)
	client := inventory.NewClient(logging.Discard(), srv.URL, 2*time.Second)
	ctx := context.Background()

	stock, err := client.GetStock(ctx, "P1")
	require.NoError(t, err)
	require.Len(t, stock, 2)
	assert.Equal(t, 5, stock[0].Stock)
	assert.True(t, stock[0].Price.Equal(decimal.NewFromInt(50)))

	_, err = client.GetStock(ctx, "P404")
	assert.ErrorIs(t, err, application.ErrProductNotFound)

	req := application.DecrementRequest{IdempotencyKey: "order-101-line-1", OrderID: 101, ProductID: "P1", MerchantID: 1, Quantity: 2}
	require.NoError(t, client.Decrement(ctx, req))
	require.NoError(t, client.Decrement(ctx, req))
	assert.Equal(t, 3, s.level(1))

	err = client.Decrement(ctx, application.DecrementRequest{IdempotencyKey: "order-102-line-1", OrderID: 102, ProductID: "P1", MerchantID: 2, Quantity: 1})
	assert.ErrorIs(t, err, application.ErrInsufficientStock)

	err = client.Decrement(ctx, application.DecrementRequest{IdempotencyKey: "order-103-line-1", OrderID: 103, ProductID: "P9", MerchantID: 1, Quantity: 1})
	assert.ErrorIs(t, err, application.ErrProductNotFound)
}
