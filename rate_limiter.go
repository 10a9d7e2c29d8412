package fetchkit

import (
	"sync"
	"time"
)

// RateLimiter is a token bucket: maxTokens capacity, one token refilled per
// refillRate elapsed. Safe for concurrent use.
type RateLimiter struct {
	mu         sync.Mutex
	tokens     int
	maxTokens  int
	refillRate time.Duration
	lastRefill time.Time
}

// NewRateLimiter creates a full bucket with the given capacity and refill
// rate.
func NewRateLimiter(maxTokens int, refillRate time.Duration) *RateLimiter {
	return &RateLimiter{
		maxTokens:  maxTokens,
		tokens:     maxTokens,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Allow consumes a token if one is available.
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refillLocked()

	if rl.tokens > 0 {
		rl.tokens--
		return true
	}
	return false
}

// Tokens returns the number of currently available tokens.
func (rl *RateLimiter) Tokens() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refillLocked()
	return rl.tokens
}

func (rl *RateLimiter) refillLocked() {
	if rl.refillRate <= 0 {
		return
	}

	now := time.Now()
	elapsed := now.Sub(rl.lastRefill)
	tokensToAdd := int(elapsed / rl.refillRate)
	if tokensToAdd > 0 {
		rl.tokens += tokensToAdd
		if rl.tokens > rl.maxTokens {
			rl.tokens = rl.maxTokens
		}
		rl.lastRefill = now
	}
}
