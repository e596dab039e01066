// Package counter provides CounterStore implementations: an in-memory map
// for tests and single-instance deployments, PostgreSQL for durable
// multi-instance counters, and Redis for high-traffic address buckets.
package counter

import (
	"context"
	"sync"
	"time"

	"singluten/internal/ratelimit/models"
)

type memoryKey struct {
	scopeKey    string
	bucket      models.Bucket
	windowStart int64
}

// MemoryStore implements CounterStore with a mutex-guarded map. The mutex
// makes find-or-create-and-increment atomic, matching the contract the
// persistent stores provide.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[memoryKey]int64
}

func NewMemory() *MemoryStore {
	return &MemoryStore{counters: make(map[memoryKey]int64)}
}

func (s *MemoryStore) Increment(_ context.Context, scopeKey string, bucket models.Bucket, windowStart time.Time) (int64, error) {
	k := memoryKey{scopeKey: scopeKey, bucket: bucket, windowStart: windowStart.Unix()}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[k]++
	return s.counters[k], nil
}

func (s *MemoryStore) Count(_ context.Context, scopeKey string, bucket models.Bucket, windowStart time.Time) (int64, error) {
	k := memoryKey{scopeKey: scopeKey, bucket: bucket, windowStart: windowStart.Unix()}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[k], nil
}

func (s *MemoryStore) Purge(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	limit := cutoff.Unix()
	for k := range s.counters {
		if k.windowStart < limit {
			delete(s.counters, k)
			removed++
		}
	}
	return removed, nil
}
