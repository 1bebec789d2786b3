// Package sequence allocates unique, human-readable application numbers.
package sequence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	numberPrefix = "AP"
	dayFormat    = "20060102"
	// Counters only need to survive the day they scope; keep them a little
	// longer so late writers near midnight still see the counter.
	counterTTL = 48 * time.Hour
)

// Allocator hands out application numbers. Numbers are unique across
// concurrent callers; they are not guaranteed to be contiguous, since a
// failed apply burns its number.
type Allocator interface {
	Next(ctx context.Context, day time.Time) (string, error)
}

// RedisAllocator scopes an atomic Redis counter per calendar day. INCR is
// atomic on the server, so no two callers ever observe the same value,
// and allocation never holds a lock for the duration of the enclosing
// apply transaction.
type RedisAllocator struct {
	client redis.Cmdable
	prefix string
}

// NewRedisAllocator constructs an allocator on the given client. The key
// prefix isolates deployments sharing one Redis.
func NewRedisAllocator(client redis.Cmdable, prefix string) *RedisAllocator {
	if prefix == "" {
		prefix = "harborline"
	}
	return &RedisAllocator{client: client, prefix: prefix}
}

func (a *RedisAllocator) Next(ctx context.Context, day time.Time) (string, error) {
	key := fmt.Sprintf("%s:appseq:%s", a.prefix, day.Format(dayFormat))
	n, err := a.client.Incr(ctx, key).Result()
	if err != nil {
		return "", fmt.Errorf("sequence: incr %s: %w", key, err)
	}
	if n == 1 {
		// Best effort; an unexpired counter is harmless.
		_ = a.client.Expire(ctx, key, counterTTL).Err()
	}
	return Format(day, n), nil
}

// Format renders a counter value as an application number.
func Format(day time.Time, n int64) string {
	return fmt.Sprintf("%s-%s-%04d", numberPrefix, day.Format(dayFormat), n)
}

// MemoryAllocator is an in-process allocator for tests and single-node
// development runs.
type MemoryAllocator struct {
	mu     sync.Mutex
	counts map[string]int64
}

func NewMemoryAllocator() *MemoryAllocator {
	return &MemoryAllocator{counts: make(map[string]int64)}
}

func (a *MemoryAllocator) Next(_ context.Context, day time.Time) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := day.Format(dayFormat)
	a.counts[key]++
	return Format(day, a.counts[key]), nil
}
