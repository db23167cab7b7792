// Package ratelimit admits or rejects requests per client within a fixed window.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Limiter decides whether a client may proceed now
type Limiter interface {
	Allow(ctx context.Context, clientKey string) (bool, error)
}

// Ensure implementations satisfy the interface
var (
	_ Limiter = (*MemoryLimiter)(nil)
	_ Limiter = (*RedisLimiter)(nil)
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter keeps one token bucket per client in process memory.
// Each bucket holds a single token refilled once per window.
type MemoryLimiter struct {
	window   time.Duration
	idleTTL  time.Duration
	now      func() time.Time
	logger   *zap.Logger
	mu       sync.Mutex
	visitors map[string]*visitor
	stopOnce sync.Once
	stop     chan struct{}
}

// MemoryOption configures a MemoryLimiter
type MemoryOption func(*MemoryLimiter)

// WithIdleTTL sets how long an unused bucket is kept before eviction
func WithIdleTTL(d time.Duration) MemoryOption {
	return func(l *MemoryLimiter) {
		if d > 0 {
			l.idleTTL = d
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) MemoryOption {
	return func(l *MemoryLimiter) {
		if now != nil {
			l.now = now
		}
	}
}

// WithMemoryLogger sets the logger used by the janitor
func WithMemoryLogger(logger *zap.Logger) MemoryOption {
	return func(l *MemoryLimiter) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewMemoryLimiter creates a limiter allowing one request per window per client
func NewMemoryLimiter(window time.Duration, opts ...MemoryOption) *MemoryLimiter {
	l := &MemoryLimiter{
		window:   window,
		idleTTL:  3 * window,
		now:      time.Now,
		logger:   zap.NewNop(),
		visitors: make(map[string]*visitor),
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow consumes the client's token if one is available
func (l *MemoryLimiter) Allow(_ context.Context, clientKey string) (bool, error) {
	now := l.now()

	l.mu.Lock()
	v, ok := l.visitors[clientKey]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Every(l.window), 1)}
		l.visitors[clientKey] = v
	}
	v.lastSeen = now
	l.mu.Unlock()

	return v.limiter.AllowN(now, 1), nil
}

// Evict drops buckets idle for longer than the idle TTL and returns how many were removed
func (l *MemoryLimiter) Evict() int {
	cutoff := l.now().Add(-l.idleTTL)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, v := range l.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(l.visitors, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked clients
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

// StartJanitor evicts idle buckets every interval until ctx is done or Stop is called
func (l *MemoryLimiter) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = l.idleTTL
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-l.stop:
				return
			case <-ticker.C:
				if n := l.Evict(); n > 0 {
					l.logger.Debug("evicted idle rate limit entries", zap.Int("count", n))
				}
			}
		}
	}()
}

// Stop halts the janitor. Safe to call more than once.
func (l *MemoryLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}
