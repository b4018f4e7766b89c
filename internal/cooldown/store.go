// Package cooldown enforces the minimum interval between two sends to the
// same contact on the same channel, across campaigns. The store must be
// shared by every worker instance (Redis in production) for the invariant
// to hold across nodes; the in-memory implementation serves tests and
// single-process deployments.
package cooldown

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is the shared cooldown capability.
type Store interface {
	// NextEligible returns the earliest time another send to the key is
	// allowed. ok is false when no cooldown is recorded.
	NextEligible(ctx context.Context, key string) (at time.Time, ok bool, err error)
	// SetNextEligible records the cooldown with an expiry.
	SetNextEligible(ctx context.Context, key string, at time.Time, ttl time.Duration) error
}

// Key builds the cooldown key for a (tenant, contact, channel) triple.
func Key(ownerID, contactID int64, channel string) string {
	return fmt.Sprintf("cooldown:%d:%d:%s", ownerID, contactID, channel)
}

// redisStore implements Store on Redis
type redisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed cooldown store
func NewRedisStore(client *redis.Client) Store {
	return &redisStore{client: client}
}

func (s *redisStore) NextEligible(ctx context.Context, key string) (time.Time, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read cooldown: %w", err)
	}

	unix, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("malformed cooldown value %q: %w", val, err)
	}

	return time.Unix(unix, 0), true, nil
}

func (s *redisStore) SetNextEligible(ctx context.Context, key string, at time.Time, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, strconv.FormatInt(at.Unix(), 10), ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cooldown: %w", err)
	}
	return nil
}

// memoryStore implements Store with a process-local map
type memoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	at      time.Time
	expires time.Time
}

// NewMemoryStore creates an in-memory cooldown store
func NewMemoryStore() Store {
	return &memoryStore{entries: make(map[string]memoryEntry)}
}

func (s *memoryStore) NextEligible(ctx context.Context, key string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return time.Time{}, false, nil
	}
	if time.Now().After(entry.expires) {
		delete(s.entries, key)
		return time.Time{}, false, nil
	}

	return entry.at, true, nil
}

func (s *memoryStore) SetNextEligible(ctx context.Context, key string, at time.Time, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = memoryEntry{at: at, expires: time.Now().Add(ttl)}
	return nil
}
