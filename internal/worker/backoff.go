package worker

import "time"

const (
	// DefaultBackoffBase is the delay before the second attempt.
	DefaultBackoffBase = 30 * time.Second
	// DefaultBackoffCap bounds the delay regardless of attempt count.
	DefaultBackoffCap = time.Hour
)

// backoffDelay returns the retry delay after the given number of attempts.
// The delay doubles per attempt: base, 2*base, 4*base, ... up to ceiling.
func backoffDelay(base, ceiling time.Duration, attempts int) time.Duration {
	d := base
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= ceiling {
			return ceiling
		}
	}
	if d > ceiling {
		return ceiling
	}
	return d
}
