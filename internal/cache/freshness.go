package cache

import "time"

// TTL is the freshness window for both weather and air-quality entries.
const TTL = 15 * time.Minute

// IsValid reports whether e was written less than ttl before now.
// A nil entry is never valid.
func IsValid[T any](e *Entry[T], ttl time.Duration, now time.Time) bool {
	if e == nil {
		return false
	}
	return now.Sub(e.Timestamp) < ttl
}

// Age returns how long ago e was written. Negative when the entry's clock ran ahead.
func Age[T any](e *Entry[T], now time.Time) time.Duration {
	return now.Sub(e.Timestamp)
}
