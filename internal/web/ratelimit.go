package web

import (
	"context"
	"sync"
	"time"
)

// RateLimitConfig bounds how hard the provider hits the search endpoint.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
	MaxRetries        int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	JitterPercent     float64
}

// DefaultRateLimitConfig keeps the instance well under ban thresholds.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 0.5,
		BurstSize:         2,
		MaxRetries:        3,
		BaseDelay:         1 * time.Second,
		MaxDelay:          30 * time.Second,
		JitterPercent:     0.3,
	}
}

// tokenBucket is a simple token bucket rate limiter.
type tokenBucket struct {
	capacity   int
	tokens     int
	refillAt   time.Time
	refillRate time.Duration
	mu         sync.Mutex
}

func newTokenBucket(capacity int, refillRate time.Duration) *tokenBucket {
	return &tokenBucket{
		capacity:   capacity,
		tokens:     capacity,
		refillAt:   time.Now(),
		refillRate: refillRate,
	}
}

func (tb *tokenBucket) takeToken() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	if now.After(tb.refillAt) {
		elapsed := now.Sub(tb.refillAt)
		add := int(elapsed / tb.refillRate)
		if add > 0 {
			tb.tokens = min(tb.capacity, tb.tokens+add)
			tb.refillAt = tb.refillAt.Add(time.Duration(add) * tb.refillRate)
		}
	}

	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

func (tb *tokenBucket) waitForToken(ctx context.Context) error {
	for {
		if tb.takeToken() {
			return nil
		}

		tb.mu.Lock()
		waitTime := time.Until(tb.refillAt)
		tb.mu.Unlock()
		if waitTime <= 0 {
			waitTime = tb.refillRate
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
		}
	}
}

func randFloat64() float64 {
	return float64(time.Now().UnixNano()%1000) / 1000.0
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
