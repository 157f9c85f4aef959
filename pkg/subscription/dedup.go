package subscription

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// defaultEventTTL bounds how long processed event ids are remembered. The
// gateway retries deliveries for days at most; beyond the TTL the unique
// external-reference constraint still protects against double creation.
const defaultEventTTL = 72 * time.Hour

// RedisEventStore implements ProcessedEventStore on a shared Redis instance
// so dedup holds across service replicas.
type RedisEventStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisEventStore creates a Redis-backed processed-event store.
func NewRedisEventStore(client redis.UniversalClient) *RedisEventStore {
	return &RedisEventStore{client: client, ttl: defaultEventTTL}
}

// MarkProcessed records the event id with SETNX semantics: exactly one
// caller per id observes true, including callers racing on the same id.
func (s *RedisEventStore) MarkProcessed(ctx context.Context, eventID string) (bool, error) {
	return s.client.SetNX(ctx, eventKey(eventID), 1, s.ttl).Result()
}

// Forget implements ProcessedEventStore.
func (s *RedisEventStore) Forget(ctx context.Context, eventID string) error {
	return s.client.Del(ctx, eventKey(eventID)).Err()
}

func eventKey(eventID string) string {
	return "webhook:event:" + eventID
}

// MemoryEventStore implements ProcessedEventStore in process memory. It is
// the default for tests and single-replica deployments; entries are never
// evicted, which is acceptable for its intended lifetimes.
type MemoryEventStore struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewMemoryEventStore creates an in-process processed-event store.
func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{seen: make(map[string]struct{})}
}

func (s *MemoryEventStore) MarkProcessed(_ context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[eventID]; ok {
		return false, nil
	}
	s.seen[eventID] = struct{}{}
	return true, nil
}

// Forget implements ProcessedEventStore.
func (s *MemoryEventStore) Forget(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.seen, eventID)
	return nil
}
