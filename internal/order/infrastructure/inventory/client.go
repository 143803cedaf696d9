package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/cart-order-service/internal/order/application"
	"github.com/dmehra2102/cart-order-service/pkg/tracing"
)

// Client talks to the inventory service over its REST contract.
type Client struct {
	log     *slog.Logger
	baseURL string
	http    *http.Client
	tracer  trace.Tracer
}

func NewClient(log *slog.Logger, baseURL string, timeout time.Duration) *Client {
	return &Client{
		log:     log,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		tracer:  otel.Tracer("inventory-client"),
	}
}

type merchantDTO struct {
	MerchantID int64           `json:"merchant_id"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	Stock      *int            `json:"stock"`
}

type listingDTO struct {
	Merchants []merchantDTO `json:"merchants"`
}

type decrementDTO struct {
	ProductID      string `json:"productId"`
	MerchantID     int64  `json:"merchantId"`
	Quantity       int    `json:"quantity"`
	OrderID        int64  `json:"orderId"`
	IdempotencyKey string `json:"idempotencyKey"`
}

func (c *Client) GetStock(ctx context.Context, productID string) ([]application.MerchantStock, error) {
	ctx, span := c.tracer.Start(ctx, "inventory.GetStock", trace.WithAttributes(attribute.String("product.id", productID)))
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/products/"+url.PathEscape(productID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	tracing.InjectHTTP(ctx, req.Header)

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, application.ErrProductNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, unexpectedStatus(resp)
	}

	var listing listingDTO
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("%w: %v", application.ErrMalformedListing, err)
	}
	if listing.Merchants == nil {
		return nil, fmt.Errorf("%w: no merchants field", application.ErrMalformedListing)
	}

	out := make([]application.MerchantStock, 0, len(listing.Merchants))
	for _, m := range listing.Merchants {
		if m.Stock == nil {
			return nil, fmt.Errorf("%w: merchant %d has no stock", application.ErrMalformedListing, m.MerchantID)
		}
		out = append(out, application.MerchantStock{MerchantID: m.MerchantID, Name: m.Name, Price: m.Price, Stock: *m.Stock})
	}
	return out, nil
}

func (c *Client) Decrement(ctx context.Context, in application.DecrementRequest) error {
	ctx, span := c.tracer.Start(ctx, "inventory.Decrement", trace.WithAttributes(
		attribute.String("product.id", in.ProductID),
		attribute.Int64("merchant.id", in.MerchantID),
		attribute.Int("quantity", in.Quantity),
	))
	defer span.End()

	body, err := json.Marshal(decrementDTO{
		ProductID:      in.ProductID,
		MerchantID:     in.MerchantID,
		Quantity:       in.Quantity,
		OrderID:        in.OrderID,
		IdempotencyKey: in.IdempotencyKey,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/products/updateStock", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", in.IdempotencyKey)
	tracing.InjectHTTP(ctx, req.Header)

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return application.ErrProductNotFound
	case http.StatusConflict:
		return application.ErrInsufficientStock
	default:
		err := unexpectedStatus(resp)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
}

func unexpectedStatus(resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("inventory: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
}
