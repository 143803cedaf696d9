package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/cart-order-service/internal/inventory/domain"
	"github.com/dmehra2102/cart-order-service/pkg/tracing"
)

type AlertRecorder interface {
	RecordPartialSync(ctx context.Context, alerts []domain.SyncAlert) error
}

type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer listens on the order event stream and turns every
// OrderStockSyncPartial into stock sync alerts. Other event types are
// committed and ignored.
type Consumer struct {
	log      *slog.Logger
	reader   MessageReader
	recorder AlertRecorder
	tracer   trace.Tracer

	maxAttempts int
	backoff     time.Duration
}

func NewReader(brokers []string, topic, group string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     group,
		StartOffset: kafka.FirstOffset,
		MaxWait:     time.Second,
	})
}

func NewConsumer(log *slog.Logger, reader MessageReader, recorder AlertRecorder) *Consumer {
	return &Consumer{
		log:      log,
		reader:   reader,
		recorder: recorder,
		tracer:   otel.Tracer("inventory-consumer"),

		maxAttempts: 5,
		backoff:     500 * time.Millisecond,
	}
}

func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		if err := c.handleWithRetry(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Error("dropping order event after retries", "offset", msg.Offset, "key", string(msg.Key), "err", err)
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.log.Error("commit failed", "offset", msg.Offset, "err", err)
		}
	}
}

func (c *Consumer) handleWithRetry(ctx context.Context, msg kafka.Message) error {
	for attempt := 1; ; attempt++ {
		err := c.handle(ctx, msg)
		if err == nil || attempt >= c.maxAttempts {
			return err
		}
		c.log.Warn("handle order event failed, retrying", "offset", msg.Offset, "attempt", attempt, "err", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.backoff * time.Duration(attempt)):
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	if headerValue(msg.Headers, "event_type") != eventStockSyncPartial {
		return nil
	}

	msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	msgCtx, span := c.tracer.Start(msgCtx, "ConsumeOrderStockSyncPartial", trace.WithAttributes(attribute.String("order.id", string(msg.Key))))
	defer span.End()

	var ev stockSyncPartial
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		c.log.Error("unmarshal failed, skipping", "offset", msg.Offset, "err", err)
		return nil
	}

	alerts := make([]domain.SyncAlert, 0, len(ev.Failed))
	for _, item := range ev.Failed {
		alerts = append(alerts, domain.SyncAlert{
			OrderID:    ev.OrderID,
			Line:       item.Line,
			UserID:     ev.UserID,
			ProductID:  item.ProductID,
			MerchantID: item.MerchantID,
			Quantity:   item.Quantity,
		})
	}
	if err := c.recorder.RecordPartialSync(msgCtx, alerts); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

func headerValue(h []kafka.Header, key string) string {
	for _, hh := range h {
		if hh.Key == key {
			return string(hh.Value)
		}
	}
	return ""
}
