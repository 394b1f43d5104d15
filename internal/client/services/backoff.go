package services

import "time"

// RetrySchedule is the wait before attempt n+1 after n failed attempts; the
// last interval repeats.
var RetrySchedule = []time.Duration{60 * time.Second, 300 * time.Second, 900 * time.Second}

// Backoff returns the wait after retryCount failed attempts.
func Backoff(retryCount int) time.Duration {
	i := min(max(retryCount, 0), len(RetrySchedule)-1)
	return RetrySchedule[i]
}

// dueForRetry reports whether the backoff since last has elapsed. An asset
// that was never attempted is always due.
func dueForRetry(now time.Time, last *time.Time, retryCount int) bool {
	if last == nil {
		return true
	}
	return !now.Before(last.Add(Backoff(retryCount)))
}
