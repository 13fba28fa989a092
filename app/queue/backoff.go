package queue

import (
	"time"
)

const maxBackoff = 60 * time.Minute

// Backoff returns the delay before the next attempt: 2^attempts minutes,
// capped at one hour. Attempt 1 waits 2 minutes, attempt 2 waits 4, and so
// on until the cap.
func Backoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 6 {
		return maxBackoff
	}
	delay := time.Duration(1<<uint(attempts)) * time.Minute
	if delay > maxBackoff {
		return maxBackoff
	}
	return delay
}
