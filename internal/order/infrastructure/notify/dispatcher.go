package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/cart-order-service/internal/order/application"
	"github.com/dmehra2102/cart-order-service/internal/order/domain"
	"github.com/dmehra2102/cart-order-service/pkg/metrics"
)

type Sender interface {
	SendOrderConfirmation(ctx context.Context, msg Confirmation) error
}

type job struct {
	id     string
	msg    Confirmation
	parent trace.SpanContext
}

// Dispatcher is a bounded queue drained by a fixed pool of workers.
// Submissions never block: when the queue is full the job is dropped.
type Dispatcher struct {
	log     *slog.Logger
	sender  Sender
	metrics *metrics.Metrics
	tracer  trace.Tracer
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan job
	wg     sync.WaitGroup
}

type Options struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
	Metrics   *metrics.Metrics
}

func NewDispatcher(log *slog.Logger, sender Sender, opts Options) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	d := &Dispatcher{
		log:     log,
		sender:  sender,
		metrics: opts.Metrics,
		tracer:  otel.Tracer("order-notify"),
		timeout: opts.Timeout,
		queue:   make(chan job, opts.QueueSize),
	}
	d.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go d.worker()
	}
	return d
}

// SendConfirmation keeps only the span identity of ctx. Delivery outlives the
// request, so its deadline and cancellation are not inherited.
func (d *Dispatcher) SendConfirmation(ctx context.Context, o domain.Order, email string) {
	j := job{id: uuid.NewString(), msg: NewConfirmation(o, email), parent: trace.SpanContextFromContext(ctx)}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.log.Warn("notification dropped, dispatcher closed", "order_id", o.ID)
		d.metrics.Notification("dropped")
		return
	}
	select {
	case d.queue <- j:
		d.metrics.Notification("queued")
	default:
		d.log.Warn("notification dropped, queue full", "order_id", o.ID, "job_id", j.id)
		d.metrics.Notification("dropped")
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.queue {
		d.deliver(j)
	}
}

func (d *Dispatcher) deliver(j job) {
	ctx := trace.ContextWithSpanContext(context.Background(), j.parent)
	ctx, span := d.tracer.Start(ctx, "notify.SendOrderConfirmation",
		trace.WithAttributes(attribute.Int64("order.id", j.msg.OrderID), attribute.String("job.id", j.id)))
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("sender panic: %v", r)
			}
		}()
		return d.sender.SendOrderConfirmation(ctx, j.msg)
	}()
	if err != nil {
		nerr := application.NotificationFailed(err)
		span.RecordError(nerr)
		span.SetStatus(codes.Error, nerr.Msg)
		d.log.ErrorContext(ctx, nerr.Msg, "kind", nerr.Kind.String(), "job_id", j.id, "order_id", j.msg.OrderID, "err", nerr.Err)
		d.metrics.Notification("failed")
		return
	}
	d.log.InfoContext(ctx, "order confirmation sent", "job_id", j.id, "order_id", j.msg.OrderID)
	d.metrics.Notification("sent")
}

// Close stops intake and waits for queued jobs until ctx expires.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
