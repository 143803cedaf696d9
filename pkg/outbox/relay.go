package outbox

import (
	"context"
	"log/slog"
	"time"
)

type Store interface {
	LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]Event, error)
	MarkSent(ctx context.Context, ids []int64) error
	// MarkFailed only touches rows still leased to relayID.
	MarkFailed(ctx context.Context, relayID string, id int64, errMsg string) error
	ExtendLease(ctx context.Context, relayID string, ids []int64, lease time.Duration) error
}

type Relay struct {
	log       *slog.Logger
	store     Store
	dispatch  *Dispatcher
	relayID   string
	batchSize int
	chunkSize int
	interval  time.Duration
	lease     time.Duration
	now       func() time.Time
}

type RelayOption func(*Relay)

func WithBatchSize(n int) RelayOption {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithChunkSize bounds how many events go to the producer in one write.
// The lease is checked between chunks.
func WithChunkSize(n int) RelayOption {
	return func(r *Relay) {
		if n > 0 {
			r.chunkSize = n
		}
	}
}

func WithInterval(d time.Duration) RelayOption {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithLease(d time.Duration) RelayOption {
	return func(r *Relay) {
		if d > 0 {
			r.lease = d
		}
	}
}

func NewRelay(log *slog.Logger, store Store, dispatch *Dispatcher, relayID string, opts ...RelayOption) *Relay {
	r := &Relay{
		log:       log,
		store:     store,
		dispatch:  dispatch,
		relayID:   relayID,
		batchSize: 100,
		chunkSize: 25,
		interval:  500 * time.Millisecond,
		lease:     5 * time.Second,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Relay) Run(ctx context.Context) error {
	t := time.NewTicker(r.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("relay stopping", "relay_id", r.relayID)
			return nil
		case <-t.C:
			if _, err := r.RunOnce(ctx); err != nil {
				r.log.Error("relay lock batch error", "err", err)
			}
		}
	}
}

// RunOnce dispatches a single batch and reports how many events were sent.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	events, err := r.store.LockBatch(ctx, r.relayID, r.batchSize, r.lease)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	leaseStart := r.now()
	ids := make([]int64, 0, len(events))
	for start := 0; start < len(events); start += r.chunkSize {
		if r.now().Sub(leaseStart) > r.lease/2 {
			r.extend(ctx, events[start:])
			leaseStart = r.now()
		}
		chunk := events[start:min(start+r.chunkSize, len(events))]
		for i, err := range r.dispatch.DispatchBatch(ctx, chunk) {
			if err == nil {
				ids = append(ids, chunk[i].ID)
				continue
			}
			if mErr := r.store.MarkFailed(ctx, r.relayID, chunk[i].ID, err.Error()); mErr != nil {
				r.log.Error("relay mark failed error", "event_id", chunk[i].ID, "err", mErr)
			}
		}
	}
	if len(ids) > 0 {
		if err := r.store.MarkSent(ctx, ids); err != nil {
			r.log.Error("relay mark sent error", "err", err)
			return 0, err
		}
	}
	return len(ids), nil
}

func (r *Relay) extend(ctx context.Context, remaining []Event) {
	ids := make([]int64, 0, len(remaining))
	for _, e := range remaining {
		ids = append(ids, e.ID)
	}
	if err := r.store.ExtendLease(ctx, r.relayID, ids, r.lease); err != nil {
		r.log.Warn("relay extend lease error", "err", err)
	}
}
