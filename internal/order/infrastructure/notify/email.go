package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dmehra2102/cart-order-service/internal/order/domain"
	"github.com/dmehra2102/cart-order-service/pkg/tracing"
)

type Confirmation struct {
	OrderID     int64              `json:"orderId"`
	UserID      int64              `json:"userId"`
	UserEmail   string             `json:"userEmail"`
	TotalAmount decimal.Decimal    `json:"totalAmount"`
	Items       []domain.EventItem `json:"items"`
}

func NewConfirmation(o domain.Order, email string) Confirmation {
	placed := domain.NewOrderPlaced(o)
	return Confirmation{
		OrderID:     o.ID,
		UserID:      o.UserID,
		UserEmail:   email,
		TotalAmount: o.TotalAmount,
		Items:       placed.Items,
	}
}

// EmailClient posts confirmations to the email service.
type EmailClient struct {
	baseURL string
	http    *http.Client
}

func NewEmailClient(baseURL string, timeout time.Duration) *EmailClient {
	return &EmailClient{baseURL: strings.TrimRight(baseURL, "/"), http: &http.Client{Timeout: timeout}}
}

func (c *EmailClient) SendOrderConfirmation(ctx context.Context, msg Confirmation) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/email/send-order-confirmation", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	tracing.InjectHTTP(ctx, req.Header)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("email: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
