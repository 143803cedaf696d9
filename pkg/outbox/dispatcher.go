package outbox

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"strconv"

	"github.com/segmentio/kafka-go"

	"github.com/dmehra2102/cart-order-service/pkg/tracing"
)

type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Dispatcher publishes outbox rows keyed by aggregate id, so the events of
// one aggregate keep their commit order on a single partition.
type Dispatcher struct {
	log      *slog.Logger
	producer Producer
	topic    string
}

func NewDispatcher(log *slog.Logger, producer Producer, topic string) *Dispatcher {
	return &Dispatcher{log: log, producer: producer, topic: topic}
}

// DispatchBatch writes events with a single producer call. The result has one
// slot per event; a nil slot means the broker acknowledged that event.
func (d *Dispatcher) DispatchBatch(ctx context.Context, events []Event) []error {
	errs := make([]error, len(events))
	if len(events) == 0 {
		return errs
	}

	msgs := make([]kafka.Message, len(events))
	for i, e := range events {
		msgs[i] = d.message(ctx, e)
	}

	var partial kafka.WriteErrors
	err := d.producer.WriteMessages(ctx, msgs...)
	switch {
	case err == nil:
	case errors.As(err, &partial) && len(partial) == len(events):
		copy(errs, partial)
	default:
		for i := range errs {
			errs[i] = err
		}
	}

	for i, e := range events {
		if errs[i] != nil {
			d.log.ErrorContext(ctx, "outbox dispatch failed", "event_id", e.ID, "type", e.Type, "err", errs[i])
			continue
		}
		d.log.DebugContext(ctx, "outbox dispatched", "event_id", e.ID, "type", e.Type)
	}
	return errs
}

func (d *Dispatcher) message(ctx context.Context, e Event) kafka.Message {
	headers := make([]kafka.Header, 0, len(e.Headers)+4)
	headers = append(headers,
		kafka.Header{Key: "event_type", Value: []byte(e.Type)},
		kafka.Header{Key: "event_id", Value: []byte(strconv.FormatInt(e.ID, 10))},
	)
	if e.AggregateType != "" {
		headers = append(headers, kafka.Header{Key: "aggregate_type", Value: []byte(e.AggregateType)})
	}
	for _, k := range slices.Sorted(maps.Keys(e.Headers)) {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(e.Headers[k])})
	}

	// The relay runs outside any request, so the stored traceparent is the
	// only link back to the checkout that wrote the row.
	if e.Traceparent != "" {
		headers = append(headers, kafka.Header{Key: tracing.TraceparentHeader, Value: []byte(e.Traceparent)})
	} else {
		headers = tracing.InjectKafkaHeaders(ctx, headers)
	}

	return kafka.Message{
		Topic:   d.topic,
		Key:     []byte(e.AggregateID),
		Value:   e.Payload,
		Headers: headers,
	}
}
