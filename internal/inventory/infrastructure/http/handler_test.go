package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/cart-order-service/internal/inventory/domain"
	"github.com/dmehra2102/cart-order-service/pkg/logging"
)

type stubStock struct {
	recs    []domain.StockRecord
	lastDec domain.Decrement
	decErr  error
	set     domain.StockRecord
}

func (s *stubStock) Listing(_ context.Context, productID string) ([]domain.StockRecord, error) {
	if productID != "P1" {
		return nil, domain.ErrProductNotFound
	}
	return s.recs, nil
}

func (s *stubStock) Decrement(_ context.Context, d domain.Decrement) (domain.DecrementResult, error) {
	s.lastDec = d
	if s.decErr != nil {
		return domain.DecrementResult{}, s.decErr
	}
	return domain.DecrementResult{Remaining: 3}, nil
}

func (s *stubStock) SetStock(_ context.Context, rec domain.StockRecord) (domain.StockRecord, error) {
	s.set = rec
	return rec, rec.Validate()
}

func (s *stubStock) Alerts(_ context.Context, _ int) ([]domain.SyncAlert, error) {
	return []domain.SyncAlert{{OrderID: 101, Line: 1, ProductID: "P1", MerchantID: 1, Quantity: 2}}, nil
}

func serve(h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestListingShape(t *testing.T) {
	svc := &stubStock{recs: []domain.StockRecord{{ProductID: "P1", MerchantID: 1, Name: "Acme", Price: decimal.RequireFromString("50"), Stock: 5}}}
	h := NewHandler(logging.Discard(), svc, nil).Routes()

	rec := serve(h, http.MethodGet, "/products/P1", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"P1","merchants":[{"merchant_id":1,"name":"Acme","price":50.00,"stock":5}]}`, rec.Body.String())

	rec = serve(h, http.MethodGet, "/products/P404", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDecrementStatusCodes(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"ok", nil, http.StatusOK},
		{"insufficient", domain.ErrInsufficientStock, http.StatusConflict},
		{"not found", domain.ErrProductNotFound, http.StatusNotFound},
		{"bad quantity", domain.ErrInvalidQuantity, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubStock{decErr: tc.err}
			h := NewHandler(logging.Discard(), svc, nil).Routes()

			rec := serve(h, http.MethodPost, "/products/updateStock",
				`{"productId":"P1","merchantId":1,"quantity":2,"orderId":101}`,
				map[string]string{"Idempotency-Key": "order-101-line-1"})

			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, "order-101-line-1", svc.lastDec.IdempotencyKey)
			assert.EqualValues(t, 101, svc.lastDec.OrderID)
		})
	}
}

func TestDecrementKeyFromBody(t *testing.T) {
	svc := &stubStock{}
	h := NewHandler(logging.Discard(), svc, nil).Routes()

	rec := serve(h, http.MethodPost, "/products/updateStock",
		`{"productId":"P1","merchantId":1,"quantity":2,"orderId":101,"idempotencyKey":"order-101-line-2"}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "order-101-line-2", svc.lastDec.IdempotencyKey)
	var resp decrementResp
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 3, resp.Remaining)
}

func TestSetStock(t *testing.T) {
	svc := &stubStock{}
	h := NewHandler(logging.Discard(), svc, nil).Routes()

	rec := serve(h, http.MethodPut, "/products/P1/merchants/2", `{"name":"Beta","price":45.5,"stock":7}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "P1", svc.set.ProductID)
	assert.EqualValues(t, 2, svc.set.MerchantID)
	assert.True(t, svc.set.Price.Equal(decimal.RequireFromString("45.5")))

	rec = serve(h, http.MethodPut, "/products/P1/merchants/2", `{"stock":-1}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(h, http.MethodPut, "/products/P1/merchants/x", `{"stock":1}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAlerts(t *testing.T) {
	h := NewHandler(logging.Discard(), &stubStock{}, nil).Routes()

	rec := serve(h, http.MethodGet, "/stock-sync/alerts?limit=5", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var got []alertResp
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.EqualValues(t, 101, got[0].OrderID)
}
