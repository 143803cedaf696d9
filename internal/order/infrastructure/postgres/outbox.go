package postgres

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/cart-order-service/pkg/outbox"
)

func insertEvent(ctx context.Context, tx pgx.Tx, ev outbox.Event) error {
	_, err := tx.Exec(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, headers, traceparent, status)
		VALUES ($1,$2,$3,$4,$5,$6,'pending')`,
		ev.AggregateType, ev.AggregateID, ev.Type, ev.Payload, ev.Headers, ev.Traceparent)
	if err != nil {
		return fmt.Errorf("insert outbox %s: %w", ev.Type, err)
	}
	return nil
}

// OutboxStore is the relay's view of the outbox table. A row is claimable
// when it is pending, when its lease lapsed, or when it failed with retries
// left; claiming moves it to in_progress under the claiming relay's id.
type OutboxStore struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewOutboxStore(log *slog.Logger, pool *pgxpool.Pool) *OutboxStore {
	return &OutboxStore{log: log, pool: pool}
}

const claimOutbox = `
UPDATE outbox o
SET status = 'in_progress', relay_id = $1, lease_until = now() + make_interval(secs => $2)
FROM (
	SELECT id FROM outbox
	WHERE status = 'pending'
	   OR (status = 'in_progress' AND lease_until < now())
	   OR (status = 'failed' AND retry_count < $4)
	ORDER BY id
	LIMIT $3
	FOR UPDATE SKIP LOCKED
) claimable
WHERE o.id = claimable.id
RETURNING o.id, o.aggregate_type, o.aggregate_id, o.type, o.payload, o.headers, o.traceparent, o.created_at, o.retry_count`

func (s *OutboxStore) LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]outbox.Event, error) {
	rows, err := s.pool.Query(ctx, claimOutbox, relayID, lease.Seconds(), batchSize, outbox.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("claim outbox: %w", err)
	}
	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (outbox.Event, error) {
		e := outbox.Event{Status: outbox.StatusInProgress, RelayID: relayID}
		err := row.Scan(&e.ID, &e.AggregateType, &e.AggregateID, &e.Type, &e.Payload, &e.Headers, &e.Traceparent, &e.CreatedAt, &e.RetryCount)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan outbox: %w", err)
	}
	// RETURNING does not keep the subquery's order.
	slices.SortFunc(events, func(a, b outbox.Event) int { return cmp.Compare(a.ID, b.ID) })
	return events, nil
}

func (s *OutboxStore) MarkSent(ctx context.Context, ids []int64) error {
	ct, err := s.pool.Exec(ctx, `UPDATE outbox SET status='sent', lease_until=NULL, last_error=NULL WHERE id = ANY($1)`, ids)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("mark sent: none of %d events found", len(ids))
	}
	return nil
}

// MarkFailed is a no-op when the lease moved to another relay; that relay owns
// the row now and reports its own outcome.
func (s *OutboxStore) MarkFailed(ctx context.Context, relayID string, id int64, errMsg string) error {
	ct, err := s.pool.Exec(ctx, `UPDATE outbox SET status='failed', last_error=$3, retry_count=retry_count+1, lease_until=NULL
		WHERE id=$1 AND relay_id=$2 AND status='in_progress'`, id, relayID, errMsg)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		s.log.Warn("outbox failure not recorded, lease lost", "event_id", id, "relay_id", relayID)
	}
	return nil
}

func (s *OutboxStore) ExtendLease(ctx context.Context, relayID string, ids []int64, lease time.Duration) error {
	_, err := s.pool.Exec(ctx, `UPDATE outbox SET lease_until=now() + make_interval(secs => $1) WHERE id = ANY($2) AND relay_id=$3`, lease.Seconds(), ids, relayID)
	return err
}
