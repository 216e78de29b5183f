// Package ratelimit caps how often one client may trigger a generation call.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"promptmaster/internal/observability"
	"promptmaster/internal/redis"
)

// Limiter decides whether the caller identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

const keyPrefix = "promptmaster:ratelimit:"

// RedisLimiter is a fixed-window counter shared by every instance that
// talks to the same Redis. Redis errors fail open.
type RedisLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &RedisLimiter{client: client, limit: int64(limit), window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if l.limit <= 0 {
		return true, nil
	}
	count, _, err := l.client.IncrWindow(ctx, keyPrefix+key, l.window)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn("rate limiter unavailable, allowing request", "error", err)
		return true, err
	}
	return count <= l.limit, nil
}

// LocalLimiter keeps one token bucket per key in process memory.
type LocalLimiter struct {
	mu       sync.Mutex
	limiters map[string]*localEntry
	limit    rate.Limit
	burst    int
	idle     time.Duration
	now      func() time.Time
}

type localEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLocalLimiter allows perWindow events per window with bursts of the
// same size.
func NewLocalLimiter(perWindow int, window time.Duration) *LocalLimiter {
	if window <= 0 {
		window = time.Minute
	}
	l := &LocalLimiter{
		limiters: make(map[string]*localEntry),
		burst:    perWindow,
		idle:     10 * window,
		now:      time.Now,
	}
	if perWindow > 0 {
		l.limit = rate.Every(window / time.Duration(perWindow))
	} else {
		l.limit = rate.Inf
	}
	return l
}

func (l *LocalLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := l.now()
	l.mu.Lock()
	entry, ok := l.limiters[key]
	if !ok {
		entry = &localEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = entry
	}
	entry.lastSeen = now
	allowed := entry.limiter.AllowN(now, 1)
	l.mu.Unlock()
	return allowed, nil
}

// Sweep forgets keys not seen for a while.
func (l *LocalLimiter) Sweep() int {
	cutoff := l.now().Add(-l.idle)
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for key, entry := range l.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(l.limiters, key)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep every interval until ctx is done.
func (l *LocalLimiter) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.Sweep()
			}
		}
	}()
}
