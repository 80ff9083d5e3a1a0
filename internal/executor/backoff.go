package executor

import "time"

// Backoff maps a zero-based failed attempt index to the pause before the
// next attempt. It is a plain function so tests can substitute near-zero
// delays.
type Backoff func(attempt int) time.Duration

// ExponentialBackoff is the default policy: 1s, 2s, 4s, ... with no
// jitter.
func ExponentialBackoff(attempt int) time.Duration {
	if attempt > 16 {
		attempt = 16
	}
	return time.Second * time.Duration(1<<attempt)
}

// NoBackoff retries immediately.
func NoBackoff(int) time.Duration { return 0 }
