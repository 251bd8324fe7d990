package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taxflow/taxflow-api/internal/core/ratelimit"
)

// AttemptStore keeps login attempt records in Redis so every instance sees
// the same counters. Each record is a hash that expires one window after
// its last write.
// Key format: ratelimit:login:<identifier>
type AttemptStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewAttemptStore returns an AttemptStore whose keys live for ttl, normally
// the limiter window.
func NewAttemptStore(client *redis.Client, ttl time.Duration) *AttemptStore {
	if ttl <= 0 {
		ttl = ratelimit.DefaultWindow
	}
	return &AttemptStore{client: client, ttl: ttl}
}

func (s *AttemptStore) Get(ctx context.Context, identifier string) (ratelimit.AttemptRecord, bool, error) {
	vals, err := s.client.HGetAll(ctx, s.key(identifier)).Result()
	if err != nil {
		return ratelimit.AttemptRecord{}, false, fmt.Errorf("attempt get: %w", err)
	}
	if len(vals) == 0 {
		return ratelimit.AttemptRecord{}, false, nil
	}

	count, err := strconv.Atoi(vals["count"])
	if err != nil {
		return ratelimit.AttemptRecord{}, false, fmt.Errorf("attempt get: bad count %q", vals["count"])
	}
	last, err := strconv.ParseInt(vals["last"], 10, 64)
	if err != nil {
		return ratelimit.AttemptRecord{}, false, fmt.Errorf("attempt get: bad timestamp %q", vals["last"])
	}
	return ratelimit.AttemptRecord{Count: count, LastAttempt: time.UnixMilli(last)}, true, nil
}

func (s *AttemptStore) Put(ctx context.Context, identifier string, rec ratelimit.AttemptRecord) error {
	key := s.key(identifier)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "count", rec.Count, "last", rec.LastAttempt.UnixMilli())
		pipe.PExpire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("attempt put: %w", err)
	}
	return nil
}

func (s *AttemptStore) Delete(ctx context.Context, identifier string) error {
	if err := s.client.Del(ctx, s.key(identifier)).Err(); err != nil {
		return fmt.Errorf("attempt delete: %w", err)
	}
	return nil
}

func (s *AttemptStore) key(identifier string) string {
	return "ratelimit:login:" + identifier
}

var _ ratelimit.AttemptStore = (*AttemptStore)(nil)
