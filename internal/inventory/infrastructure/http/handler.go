package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"

	"github.com/dmehra2102/cart-order-service/internal/inventory/domain"
	"github.com/dmehra2102/cart-order-service/pkg/metrics"
	"github.com/dmehra2102/cart-order-service/pkg/tracing"
)

type StockService interface {
	Listing(ctx context.Context, productID string) ([]domain.StockRecord, error)
	Decrement(ctx context.Context, d domain.Decrement) (domain.DecrementResult, error)
	SetStock(ctx context.Context, rec domain.StockRecord) (domain.StockRecord, error)
	Alerts(ctx context.Context, limit int) ([]domain.SyncAlert, error)
}

type Handler struct {
	log     *slog.Logger
	svc     StockService
	metrics *metrics.Metrics
}

func NewHandler(log *slog.Logger, svc StockService, m *metrics.Metrics) *Handler {
	return &Handler{log: log, svc: svc, metrics: m}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, tracing.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", h.metrics.Handler())

	r.Route("/products", func(r chi.Router) {
		r.Post("/updateStock", h.decrement)
		r.Get("/{productId}", h.listing)
		r.Put("/{productId}/merchants/{merchantId}", h.setStock)
	})
	r.Get("/stock-sync/alerts", h.alerts)
	return r
}

type merchantResp struct {
	MerchantID int64       `json:"merchant_id"`
	Name       string      `json:"name"`
	Price      json.Number `json:"price"`
	Stock      int         `json:"stock"`
}

type listingResp struct {
	ID        string         `json:"id"`
	Merchants []merchantResp `json:"merchants"`
}

func (h *Handler) listing(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")
	recs, err := h.svc.Listing(r.Context(), productID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := listingResp{ID: productID, Merchants: make([]merchantResp, 0, len(recs))}
	for _, rec := range recs {
		out.Merchants = append(out.Merchants, merchantResp{
			MerchantID: rec.MerchantID,
			Name:       rec.Name,
			Price:      json.Number(rec.Price.StringFixed(2)),
			Stock:      rec.Stock,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type decrementReq struct {
	ProductID      string `json:"productId"`
	MerchantID     int64  `json:"merchantId"`
	Quantity       int    `json:"quantity"`
	OrderID        int64  `json:"orderId"`
	IdempotencyKey string `json:"idempotencyKey"`
}

type decrementResp struct {
	ProductID  string `json:"productId"`
	MerchantID int64  `json:"merchantId"`
	Remaining  int    `json:"remaining"`
	Replayed   bool   `json:"replayed"`
}

func (h *Handler) decrement(w http.ResponseWriter, r *http.Request) {
	var req decrementReq
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: "Invalid request body"})
		return
	}
	key := r.Header.Get("Idempotency-Key")
	if key == "" {
		key = req.IdempotencyKey
	}
	res, err := h.svc.Decrement(r.Context(), domain.Decrement{
		IdempotencyKey: key,
		OrderID:        req.OrderID,
		ProductID:      req.ProductID,
		MerchantID:     req.MerchantID,
		Quantity:       req.Quantity,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, decrementResp{ProductID: req.ProductID, MerchantID: req.MerchantID, Remaining: res.Remaining, Replayed: res.Replayed})
}

type setStockReq struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
}

func (h *Handler) setStock(w http.ResponseWriter, r *http.Request) {
	merchantID, err := strconv.ParseInt(chi.URLParam(r, "merchantId"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: "Invalid merchantId"})
		return
	}
	var req setStockReq
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: "Invalid request body"})
		return
	}
	rec, err := h.svc.SetStock(r.Context(), domain.StockRecord{
		ProductID:  chi.URLParam(r, "productId"),
		MerchantID: merchantID,
		Name:       strings.TrimSpace(req.Name),
		Price:      req.Price,
		Stock:      req.Stock,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, merchantResp{MerchantID: rec.MerchantID, Name: rec.Name, Price: json.Number(rec.Price.StringFixed(2)), Stock: rec.Stock})
}

type alertResp struct {
	OrderID    int64     `json:"orderId"`
	Line       int       `json:"line"`
	UserID     int64     `json:"userId"`
	ProductID  string    `json:"productId"`
	MerchantID int64     `json:"merchantId"`
	Quantity   int       `json:"quantity"`
	ReceivedAt time.Time `json:"receivedAt"`
}

func (h *Handler) alerts(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	alerts, err := h.svc.Alerts(r.Context(), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]alertResp, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, alertResp{OrderID: a.OrderID, Line: a.Line, UserID: a.UserID, ProductID: a.ProductID, MerchantID: a.MerchantID, Quantity: a.Quantity, ReceivedAt: a.ReceivedAt})
	}
	writeJSON(w, http.StatusOK, out)
}

type errorResp struct {
	Error string `json:"error"`
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrProductNotFound):
		writeJSON(w, http.StatusNotFound, errorResp{Error: "Product not found"})
	case errors.Is(err, domain.ErrInsufficientStock):
		writeJSON(w, http.StatusConflict, errorResp{Error: "Insufficient stock"})
	case errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidStock),
		errors.Is(err, domain.ErrInvalidPrice),
		errors.Is(err, domain.ErrInvalidRecord),
		errors.Is(err, domain.ErrMissingKey):
		writeJSON(w, http.StatusBadRequest, errorResp{Error: err.Error()})
	default:
		h.log.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResp{Error: "Internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
