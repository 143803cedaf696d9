package inventory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/cart-order-service/internal/order/application"
	"github.com/dmehra2102/cart-order-service/pkg/logging"
)

func newServer(t *testing.T) (*Client, func() ([]decrementDTO, []string)) {
	t.Helper()
	var (
		mu   sync.Mutex
		decs []decrementDTO
		keys []string
	)

	r := chi.NewRouter()
	r.Get("/products/{id}", func(w http.ResponseWriter, r *http.Request) {
		switch chi.URLParam(r, "id") {
		case "P1":
			_, _ = w.Write([]byte(`{"id":"P1","merchants":[{"merchant_id":1,"name":"Acme","price":50.5,"stock":5},{"merchant_id":2,"price":49,"stock":0}]}`))
		case "garbled":
			_, _ = w.Write([]byte(`{"merchants":"nope"}`))
		case "shapeless":
			_, _ = w.Write([]byte(`{"items":[]}`))
		case "boom":
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	r.Post("/products/updateStock", func(w http.ResponseWriter, r *http.Request) {
		var in decrementDTO
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		mu.Lock()
		decs = append(decs, in)
		keys = append(keys, r.Header.Get("Idempotency-Key"))
		mu.Unlock()
		switch in.ProductID {
		case "gone":
			w.WriteHeader(http.StatusNotFound)
		case "scarce":
			w.WriteHeader(http.StatusConflict)
		case "broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusOK)
		}
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	recorded := func() ([]decrementDTO, []string) {
		mu.Lock()
		defer mu.Unlock()
		return append([]decrementDTO(nil), decs...), append([]string(nil), keys...)
	}
	return NewClient(logging.Discard(), srv.URL+"/", time.Second), recorded
}

func TestGetStock(t *testing.T) {
	c, _ := newServer(t)
	ctx := context.Background()

	stock, err := c.GetStock(ctx, "P1")
	require.NoError(t, err)
	require.Len(t, stock, 2)
	assert.Equal(t, int64(1), stock[0].MerchantID)
	assert.Equal(t, 5, stock[0].Stock)
	assert.True(t, decimal.RequireFromString("50.5").Equal(stock[0].Price))

	_, err = c.GetStock(ctx, "missing")
	assert.ErrorIs(t, err, application.ErrProductNotFound)

	_, err = c.GetStock(ctx, "garbled")
	assert.ErrorIs(t, err, application.ErrMalformedListing)

	_, err = c.GetStock(ctx, "shapeless")
	assert.ErrorIs(t, err, application.ErrMalformedListing)

	_, err = c.GetStock(ctx, "boom")
	require.Error(t, err)
	assert.NotErrorIs(t, err, application.ErrProductNotFound)
}

func TestDecrement(t *testing.T) {
	c, recorded := newServer(t)
	ctx := context.Background()

	req := application.DecrementRequest{IdempotencyKey: "order-101-line-1", OrderID: 101, ProductID: "P1", MerchantID: 1, Quantity: 2}
	require.NoError(t, c.Decrement(ctx, req))
	decs, keys := recorded()
	require.Len(t, decs, 1)
	assert.Equal(t, "order-101-line-1", keys[0])
	assert.Equal(t, 2, decs[0].Quantity)
	assert.Equal(t, int64(101), decs[0].OrderID)

	req.ProductID = "gone"
	assert.ErrorIs(t, c.Decrement(ctx, req), application.ErrProductNotFound)
	req.ProductID = "scarce"
	assert.ErrorIs(t, c.Decrement(ctx, req), application.ErrInsufficientStock)
	req.ProductID = "broken"
	assert.ErrorContains(t, c.Decrement(ctx, req), "unexpected status 500")
}

func TestUnreachable(t *testing.T) {
	c := NewClient(logging.Discard(), "http://127.0.0.1:1", 200*time.Millisecond)
	_, err := c.GetStock(context.Background(), "P1")
	assert.Error(t, err)
	assert.Error(t, c.Decrement(context.Background(), application.DecrementRequest{ProductID: "P1", MerchantID: 1, Quantity: 1}))
}
