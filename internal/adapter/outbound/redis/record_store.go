package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pictora/server/internal/module/quota"
	"github.com/redis/go-redis/v9"
)

const (
	quotaKeyPrefix = "quota:"

	// maxTxRetries bounds the optimistic transaction retry loop.
	maxTxRetries = 16
)

// recordStore implements quota.RecordStore on Redis. Atomicity comes from
// WATCH/MULTI/EXEC: a concurrent write to the same key between the read and
// the EXEC aborts the transaction, and the update is retried against a fresh
// snapshot.
type recordStore struct {
	client *redis.Client
}

// NewRecordStore creates a Redis-backed quota record store.
func NewRecordStore(client *redis.Client) quota.RecordStore {
	return &recordStore{client: client}
}

func (s *recordStore) key(key string) string {
	return quotaKeyPrefix + key
}

func (s *recordStore) Get(ctx context.Context, key string) (*quota.Record, error) {
	raw, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return decodeRecord(raw)
}

func (s *recordStore) Update(ctx context.Context, key string, fn quota.UpdateFunc) error {
	full := s.key(key)

	txn := func(tx *redis.Tx) error {
		var prev *quota.Record
		raw, err := tx.Get(ctx, full).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if err == nil {
			if prev, err = decodeRecord(raw); err != nil {
				return err
			}
		}

		next, err := fn(prev)
		if err != nil {
			return err
		}

		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			// TTL is hygiene only: staleness is decided by reset_at, so the
			// key just needs to outlive its window.
			pipe.Set(ctx, full, data, ttlFor(next.ResetAt))
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txn, full)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("update %s: aborted after %d conflicts", key, maxTxRetries)
}

func decodeRecord(raw []byte) (*quota.Record, error) {
	var rec quota.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return &rec, nil
}

func ttlFor(resetAt time.Time) time.Duration {
	ttl := time.Until(resetAt) + 24*time.Hour
	if ttl < time.Hour {
		ttl = time.Hour
	}
	return ttl
}

// Compile-time check
var _ quota.RecordStore = (*recordStore)(nil)
