// Package backoff computes retry delays: exponential growth capped at a
// maximum, plus additive uniform jitter to avoid synchronized retry storms.
package backoff

import (
	"math/rand"
	"time"
)

// Delay returns the delay before retrying after the given zero-based attempt:
// min(base * multiplier^attempt, max) + random jitter in [0, jitterMax).
// Jitter is applied after capping, so the result is bounded by max + jitterMax.
func Delay(attempt int, base, max time.Duration, multiplier float64, jitterMax time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	// Prevent overflow by limiting attempt
	if attempt > 30 {
		attempt = 30
	}

	d := time.Duration(float64(base) * Pow(multiplier, attempt))
	if d < 0 || d > max {
		d = max
	}

	if jitterMax > 0 {
		d += time.Duration(rand.Int63n(int64(jitterMax)))
	}

	return d
}

// Pow calculates base^exponent using integer exponentiation.
func Pow(base float64, exponent int) float64 {
	result := 1.0
	for i := 0; i < exponent; i++ {
		result *= base
	}
	return result
}
