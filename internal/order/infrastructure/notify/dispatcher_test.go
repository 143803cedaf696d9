package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/cart-order-service/internal/order/domain"
	"github.com/dmehra2102/cart-order-service/pkg/logging"
	"github.com/dmehra2102/cart-order-service/pkg/metrics"
)

type recordingSender struct {
	mu      sync.Mutex
	sent    []Confirmation
	err     error
	panics  bool
	release chan struct{}
	traces  []trace.TraceID
}

func (s *recordingSender) SendOrderConfirmation(ctx context.Context, msg Confirmation) error {
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if s.panics {
		panic("smtp exploded")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.traces = append(s.traces, trace.SpanContextFromContext(ctx).TraceID())
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func order(id int64) domain.Order {
	return domain.Order{
		ID:          id,
		UserID:      7,
		TotalAmount: decimal.NewFromInt(100),
		Items:       []domain.OrderItem{{Line: 1, ProductID: "P1", MerchantID: 1, Quantity: 2, Price: decimal.NewFromInt(50)}},
	}
}

func TestDispatcherDelivers(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher(logging.Discard(), sender, Options{Workers: 2, QueueSize: 8})

	for i := int64(1); i <= 5; i++ {
		d.SendConfirmation(context.Background(), order(i), "buyer@example.com")
	}
	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, 5, sender.count())
	assert.Equal(t, "buyer@example.com", sender.sent[0].UserEmail)
}

func TestDispatcherNeverBlocksWhenFull(t *testing.T) {
	sender := &recordingSender{release: make(chan struct{})}
	m := metrics.New(prometheus.NewRegistry(), "test")
	d := NewDispatcher(logging.Discard(), sender, Options{Workers: 1, QueueSize: 1, Metrics: m})

	done := make(chan struct{})
	go func() {
		for i := int64(1); i <= 10; i++ {
			d.SendConfirmation(context.Background(), order(i), "x@y.z")
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("SendConfirmation blocked on a full queue")
	}

	close(sender.release)
	require.NoError(t, d.Close(context.Background()))
	assert.LessOrEqual(t, sender.count(), 2)
	assert.GreaterOrEqual(t, sender.count(), 1)
}

func TestDispatcherSwallowsFailures(t *testing.T) {
	for name, sender := range map[string]*recordingSender{
		"error": {err: errors.New("smtp 550")},
		"panic": {panics: true},
	} {
		t.Run(name, func(t *testing.T) {
			d := NewDispatcher(logging.Discard(), sender, Options{Workers: 1, QueueSize: 4})
			assert.NotPanics(t, func() { d.SendConfirmation(context.Background(), order(1), "x@y.z") })
			require.NoError(t, d.Close(context.Background()))
			assert.Zero(t, sender.count())
		})
	}
}

func TestDispatcherLogsNotificationKind(t *testing.T) {
	var buf bytes.Buffer
	sender := &recordingSender{err: errors.New("smtp 550")}
	d := NewDispatcher(logging.NewWithWriter(&buf, "debug"), sender, Options{Workers: 1, QueueSize: 1})
	d.SendConfirmation(context.Background(), order(9), "x@y.z")
	require.NoError(t, d.Close(context.Background()))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "order confirmation failed", entry["msg"])
	assert.Equal(t, "notification", entry["kind"])
	assert.Equal(t, float64(9), entry["order_id"])
	assert.Equal(t, "smtp 550", entry["err"])
}

func TestDispatcherContinuesSubmitterTrace(t *testing.T) {
	parent := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x4b, 0xf9, 0x2f, 0x35, 0x77, 0xb3, 0x4d, 0xa6, 0xa3, 0xce, 0x92, 0x9d, 0x0e, 0x0e, 0x47, 0x36},
		SpanID:     trace.SpanID{0x00, 0xf0, 0x67, 0xaa, 0x0b, 0xa9, 0x02, 0xb7},
		TraceFlags: trace.FlagsSampled,
	})
	ctx, cancel := context.WithCancel(trace.ContextWithSpanContext(context.Background(), parent))

	sender := &recordingSender{}
	d := NewDispatcher(logging.Discard(), sender, Options{Workers: 1, QueueSize: 1})
	d.SendConfirmation(ctx, order(1), "x@y.z")
	cancel()
	require.NoError(t, d.Close(context.Background()))

	require.Equal(t, 1, sender.count())
	assert.Equal(t, parent.TraceID(), sender.traces[0])
}

func TestDispatcherDropsAfterClose(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher(logging.Discard(), sender, Options{Workers: 1, QueueSize: 4})
	require.NoError(t, d.Close(context.Background()))
	require.NoError(t, d.Close(context.Background()))

	assert.NotPanics(t, func() { d.SendConfirmation(context.Background(), order(1), "x@y.z") })
	assert.Zero(t, sender.count())
}

func TestDispatcherJobTimeout(t *testing.T) {
	sender := &recordingSender{release: make(chan struct{})}
	d := NewDispatcher(logging.Discard(), sender, Options{Workers: 1, QueueSize: 1, Timeout: 20 * time.Millisecond})
	d.SendConfirmation(context.Background(), order(1), "x@y.z")
	require.NoError(t, d.Close(context.Background()))
	assert.Zero(t, sender.count())
}

func TestEmailClientPostsConfirmation(t *testing.T) {
	received := make(chan Confirmation, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/email/send-order-confirmation", r.URL.Path)
		var msg Confirmation
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		received <- msg
		if msg.OrderID == 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	c := NewEmailClient(srv.URL, time.Second)
	require.NoError(t, c.SendOrderConfirmation(context.Background(), NewConfirmation(order(1), "buyer@example.com")))
	got := <-received
	assert.Equal(t, int64(1), got.OrderID)
	assert.Equal(t, "buyer@example.com", got.UserEmail)
	assert.True(t, decimal.NewFromInt(100).Equal(got.TotalAmount))
	require.Len(t, got.Items, 1)

	err := c.SendOrderConfirmation(context.Background(), NewConfirmation(order(2), "buyer@example.com"))
	assert.ErrorContains(t, err, "unexpected status 503")
}
