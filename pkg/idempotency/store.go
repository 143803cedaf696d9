package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type State string

const (
	StatePending State = "pending"
	StateDone    State = "done"
)

type Record struct {
	State  State  `json:"state"`
	Status int    `json:"status,omitempty"`
	Body   []byte `json:"body,omitempty"`
}

type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func (s *Store) Key(scope string, parts ...string) string {
	return fmt.Sprintf("idem:%s:%s", scope, strings.Join(parts, ":"))
}

// Claim marks key as in flight. When the key already exists the stored
// record is returned with claimed=false.
func (s *Store) Claim(ctx context.Context, key string) (Record, bool, error) {
	pending, _ := json.Marshal(Record{State: StatePending})
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := s.rdb.SetNX(ctx, key, pending, s.ttl).Result()
		if err != nil {
			return Record{}, false, err
		}
		if ok {
			return Record{State: StatePending}, true, nil
		}

		raw, err := s.rdb.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			// expired between SETNX and GET
			continue
		}
		if err != nil {
			return Record{}, false, err
		}
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return Record{}, false, fmt.Errorf("decode idempotency record: %w", err)
		}
		return rec, false, nil
	}
	return Record{}, false, errors.New("idempotency key churned during claim")
}

func (s *Store) Complete(ctx context.Context, key string, status int, body []byte) error {
	raw, err := json.Marshal(Record{State: StateDone, Status: status, Body: body})
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key, raw, s.ttl).Err()
}

func (s *Store) Release(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}
