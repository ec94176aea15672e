package resilience

import "time"

const (
	DefaultBackoffBase = time.Second
	DefaultBackoffMax  = 16 * time.Second
)

// Backoff returns min(max, base*2^attempt). Attempt 0 yields base.
func Backoff(base, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = DefaultBackoffBase
	}
	if max <= 0 {
		max = DefaultBackoffMax
	}
	if attempt < 0 {
		attempt = 0
	}
	d := base
	for i := 0; i < attempt; i++ {
		if d >= max {
			return max
		}
		d *= 2
	}
	if d > max {
		return max
	}
	return d
}
