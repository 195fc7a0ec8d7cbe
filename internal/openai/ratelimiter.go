package openai

import (
	"context"
	"sync"
	"time"
)

// rateLimiter is a token-bucket limiter guarding calls to the OpenAI API.
type rateLimiter struct {
	mu       sync.Mutex // protects lastTime and tokens
	lastTime time.Time
	tokens   int

	window time.Duration
	rate   int
}

// newRateLimiter allows rate units of work per window, e.g.
// newRateLimiter(20, time.Minute) permits 20 requests a minute.
func newRateLimiter(rate int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		window:   window,
		rate:     rate,
		lastTime: time.Now(),
		tokens:   rate,
	}
}

// Acquire returns nil when work can proceed. If the bucket is empty it
// sleeps until at least one token has accumulated, or until ctx is done,
// in which case it returns ctx.Err().
func (rl *rateLimiter) Acquire(ctx context.Context) error {
	for {
		if rl.tryAcquire() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(rl.window / time.Duration(rl.rate)):
			// Assuming an even token distribution across the window,
			// waiting 1/Nth of the window lets at least one accumulate.
		}
	}
}

func (rl *rateLimiter) tryAcquire() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(rl.lastTime)
	rl.lastTime = now

	// Refill proportionally to the time since the last call, capped at
	// the bucket size.
	rl.tokens += int(elapsed.Nanoseconds() * int64(rl.rate) / rl.window.Nanoseconds())
	rl.tokens = min(rl.tokens, rl.rate)
	if rl.tokens <= 0 {
		return false
	}

	rl.tokens--
	return true
}
