package util

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket shared by the workers of one provider. The
// bucket holds at most one token, so requests are spaced evenly.
type RateLimiter struct {
	rate     float64 // tokens per second; 0 disables limiting
	tokens   float64
	lastTime time.Time
	mu       sync.Mutex
}

// NewRateLimiter creates a RateLimiter that allows perMinute operations per
// minute. A non-positive perMinute returns a limiter that never blocks.
func NewRateLimiter(perMinute int) *RateLimiter {
	rl := &RateLimiter{tokens: 1, lastTime: time.Now()}
	if perMinute > 0 {
		rl.rate = float64(perMinute) / 60.0
	}
	return rl
}

// Wait blocks until a token is available or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl == nil || rl.rate == 0 {
		return ctx.Err()
	}
	for {
		rl.mu.Lock()
		now := time.Now()
		rl.tokens += now.Sub(rl.lastTime).Seconds() * rl.rate
		if rl.tokens > 1 {
			rl.tokens = 1
		}
		rl.lastTime = now

		if rl.tokens >= 1 {
			rl.tokens--
			rl.mu.Unlock()
			return nil
		}
		wait := time.Duration((1 - rl.tokens) / rl.rate * float64(time.Second))
		rl.mu.Unlock()

		if wait > 50*time.Millisecond {
			wait = 50 * time.Millisecond
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
