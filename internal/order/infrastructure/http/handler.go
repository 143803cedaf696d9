package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/dmehra2102/cart-order-service/internal/order/application"
	"github.com/dmehra2102/cart-order-service/internal/order/domain"
	"github.com/dmehra2102/cart-order-service/pkg/idempotency"
	"github.com/dmehra2102/cart-order-service/pkg/metrics"
	"github.com/dmehra2102/cart-order-service/pkg/tracing"
)

type OrderService interface {
	Checkout(ctx context.Context, req application.CheckoutRequest) (application.CheckoutResult, error)
	ListOrders(ctx context.Context, authorization string, userID int64) ([]domain.Order, error)
}

type CartService interface {
	AddItem(ctx context.Context, authorization string, line application.CartLine) (domain.CartItem, error)
	Items(ctx context.Context, authorization string, userID int64) ([]domain.CartItem, error)
	UpdateQuantity(ctx context.Context, authorization string, line application.CartLine) (domain.CartItem, error)
	RemoveItem(ctx context.Context, authorization string, userID int64, productID string, merchantID int64) error
	Clear(ctx context.Context, authorization string, userID int64) error
}

type Handler struct {
	log     *slog.Logger
	orders  OrderService
	carts   CartService
	idem    *idempotency.Store
	metrics *metrics.Metrics
	limiter *rate.Limiter
	tracer  trace.Tracer
}

type HandlerOption func(*Handler)

func WithIdempotency(store *idempotency.Store) HandlerOption {
	return func(h *Handler) { h.idem = store }
}

func WithMetrics(m *metrics.Metrics) HandlerOption {
	return func(h *Handler) { h.metrics = m }
}

// WithCheckoutRateLimit caps checkout throughput for the whole process.
func WithCheckoutRateLimit(rps float64, burst int) HandlerOption {
	return func(h *Handler) {
		if rps > 0 {
			h.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
		}
	}
}

func NewHandler(log *slog.Logger, orders OrderService, carts CartService, opts ...HandlerOption) *Handler {
	h := &Handler{
		log:    log,
		orders: orders,
		carts:  carts,
		tracer: otel.Tracer("order-http"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, tracing.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", h.metrics.Handler())

	r.Route("/orders", func(r chi.Router) {
		checkout := r.With(h.rateLimit)
		if h.idem != nil {
			checkout = checkout.With(idempotency.Middleware(h.idem, h.log, "checkout"))
		}
		checkout.Post("/checkout", h.checkout)
		r.Get("/{userId}", h.listOrders)
	})

	r.Route("/cart", func(r chi.Router) {
		r.Post("/add", h.addToCart)
		r.Get("/get/{userId}", h.getCart)
		r.Put("/update", h.updateCart)
		r.Delete("/remove", h.removeFromCart)
		r.Delete("/clear/{userId}", h.clearCart)
	})
	return r
}

func (h *Handler) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.limiter != nil && !h.limiter.Allow() {
			writeJSON(w, http.StatusTooManyRequests, errorResp{Error: "Too many requests"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "POST /orders/checkout")
	defer span.End()

	var req checkoutReq
	if err := decode(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: "Invalid request body"})
		return
	}

	res, err := h.orders.Checkout(ctx, application.CheckoutRequest{
		Authorization: r.Header.Get("Authorization"),
		UserID:        req.UserID,
		Items:         req.orderItems(),
		TotalAmount:   req.TotalAmount,
	})
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, checkoutResp{
		Success:     true,
		OrderID:     res.OrderID,
		TotalAmount: res.TotalAmount.InexactFloat64(),
	})
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}
	orders, err := h.orders.ListOrders(r.Context(), r.Header.Get("Authorization"), userID)
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	out := make([]orderResp, 0, len(orders))
	for _, o := range orders {
		out = append(out, newOrderResp(o))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) addToCart(w http.ResponseWriter, r *http.Request) {
	var req cartReq
	if err := decode(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: "Invalid request body"})
		return
	}
	item, err := h.carts.AddItem(r.Context(), r.Header.Get("Authorization"), req.line())
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, newCartItemResp(item))
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}
	items, err := h.carts.Items(r.Context(), r.Header.Get("Authorization"), userID)
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	out := make([]cartItemResp, 0, len(items))
	for _, item := range items {
		out = append(out, newCartItemResp(item))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) updateCart(w http.ResponseWriter, r *http.Request) {
	var req cartReq
	if err := decode(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: "Invalid request body"})
		return
	}
	item, err := h.carts.UpdateQuantity(r.Context(), r.Header.Get("Authorization"), req.line())
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, newCartItemResp(item))
}

func (h *Handler) removeFromCart(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID, err := strconv.ParseInt(q.Get("userId"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: "Invalid userId"})
		return
	}
	var merchantID int64
	if v := q.Get("merchantId"); v != "" {
		if merchantID, err = strconv.ParseInt(v, 10, 64); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResp{Error: "Invalid merchantId"})
			return
		}
	}
	if err := h.carts.RemoveItem(r.Context(), r.Header.Get("Authorization"), userID, q.Get("productId"), merchantID); err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Item removed from cart"})
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}
	if err := h.carts.Clear(r.Context(), r.Header.Get("Authorization"), userID); err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Cart cleared"})
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := statusFor(application.KindOf(err))
	if status >= http.StatusInternalServerError {
		h.log.ErrorContext(ctx, "request failed", "err", err)
	}
	writeJSON(w, status, errorResp{Error: application.Message(err)})
}

func statusFor(k application.Kind) int {
	switch k {
	case application.KindAuth:
		return http.StatusUnauthorized
	case application.KindAuthorization:
		return http.StatusForbidden
	case application.KindValidation:
		return http.StatusBadRequest
	case application.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func pathUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userId"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: "Invalid userId"})
		return 0, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
