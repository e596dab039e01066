package counter

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"singluten/internal/ratelimit/models"
)

// RedisStore persists rate counters as Redis keys. INCR gives the atomic
// find-or-create-and-increment; retention rides on key TTLs, so Purge is a
// no-op. Preferred for the high-cardinality address buckets.
type RedisStore struct {
	client     redis.UniversalClient
	collection string
	retention  time.Duration
}

// NewRedis constructs a Redis-backed counter store. retention bounds how
// long a counter outlives its window start.
func NewRedis(client redis.UniversalClient, collection string, retention time.Duration) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if collection == "" {
		return nil, fmt.Errorf("counter collection name is required")
	}
	if retention <= 0 {
		return nil, fmt.Errorf("retention must be positive")
	}
	return &RedisStore{client: client, collection: collection, retention: retention}, nil
}

func (s *RedisStore) key(scopeKey string, bucket models.Bucket, windowStart time.Time) string {
	return "rl:" + s.collection +
		":" + models.SanitizeKeySegment(scopeKey) +
		":" + models.SanitizeKeySegment(string(bucket)) +
		":" + strconv.FormatInt(windowStart.Unix(), 10)
}

func (s *RedisStore) Increment(ctx context.Context, scopeKey string, bucket models.Bucket, windowStart time.Time) (int64, error) {
	key := s.key(scopeKey, bucket, windowStart)

	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireAt(ctx, key, windowStart.Add(s.retention))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("increment rate counter: %w", err)
	}
	return incr.Val(), nil
}

func (s *RedisStore) Count(ctx context.Context, scopeKey string, bucket models.Bucket, windowStart time.Time) (int64, error) {
	val, err := s.client.Get(ctx, s.key(scopeKey, bucket, windowStart)).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("get rate counter: %w", err)
	}
	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse rate counter value: %w", err)
	}
	return count, nil
}

// Purge is a no-op; key TTLs enforce retention.
func (s *RedisStore) Purge(context.Context, time.Time) (int64, error) {
	return 0, nil
}
