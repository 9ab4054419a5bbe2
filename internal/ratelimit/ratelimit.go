// Package ratelimit provides fixed-window request limiting keyed by an
// arbitrary string (typically route plus client IP).
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter answers whether one more request under key is within limit for
// the current window.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int) (bool, error)
}

// RedisLimiter counts requests in Redis so limits hold across replicas.
type RedisLimiter struct {
	client *redis.Client
	window time.Duration
}

func NewRedisLimiter(client *redis.Client, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, window: window}
}

func limiterKey(key string) string { return "ratelimit:" + key }

func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int) (bool, error) {
	k := limiterKey(key)
	n, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return false, err
	}
	if n == 1 {
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			return false, err
		}
	}
	return n <= int64(limit), nil
}

// MemoryLimiter is the single-process fallback when Redis is not
// configured.
type MemoryLimiter struct {
	mu      sync.Mutex
	window  time.Duration
	counts  map[string]int
	resets  map[string]time.Time
	now     func() time.Time
}

func NewMemoryLimiter(window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		window: window,
		counts: make(map[string]int),
		resets: make(map[string]time.Time),
		now:    time.Now,
	}
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string, limit int) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if reset, ok := l.resets[key]; !ok || now.After(reset) {
		l.counts[key] = 0
		l.resets[key] = now.Add(l.window)
	}
	l.counts[key]++
	return l.counts[key] <= limit, nil
}
