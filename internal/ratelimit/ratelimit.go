package ratelimit

import (
	"sync"
	"time"
)

// RateLimiter enforces sliding window limits per key (client IP for the
// contact form)
type RateLimiter struct {
	requestsPerMinute int
	requestsPerHour   int
	enabled           bool
	now               func() time.Time

	// Request tracking
	windows  map[string][]time.Time
	rejected int64
	mu       sync.Mutex
}

// NewRateLimiter creates a new rate limiter with the given limits. A zero
// hourly limit disables the hourly window.
func NewRateLimiter(requestsPerMinute, requestsPerHour int, enabled bool) *RateLimiter {
	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		requestsPerHour:   requestsPerHour,
		enabled:           enabled,
		now:               time.Now,
		windows:           make(map[string][]time.Time),
	}
}

// AllowRequest records a request for key if it is within the limits.
// When it is not, the returned duration is how long until the next
// request would be allowed.
func (rl *RateLimiter) AllowRequest(key string) (bool, time.Duration) {
	if !rl.enabled {
		return true, 0
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	window := filterTimes(rl.windows[key], now.Add(-rl.span()))

	if wait := rl.wait(window, now); wait > 0 {
		rl.windows[key] = window
		rl.rejected++
		return false, wait
	}

	rl.windows[key] = append(window, now)
	return true, 0
}

// span is the longest window that needs to be remembered
func (rl *RateLimiter) span() time.Duration {
	if rl.requestsPerHour > 0 {
		return time.Hour
	}
	return time.Minute
}

// wait returns zero when window allows another request
func (rl *RateLimiter) wait(window []time.Time, now time.Time) time.Duration {
	var wait time.Duration
	lastMinute := countAfter(window, now.Add(-time.Minute))
	if lastMinute >= rl.requestsPerMinute {
		oldest := window[len(window)-lastMinute]
		wait = oldest.Add(time.Minute).Sub(now)
	}
	if rl.requestsPerHour > 0 && len(window) >= rl.requestsPerHour {
		oldest := window[len(window)-rl.requestsPerHour]
		if w := oldest.Add(time.Hour).Sub(now); w > wait {
			wait = w
		}
	}
	return wait
}

// cleanup drops keys without requests in the window
func (rl *RateLimiter) cleanup(now time.Time) {
	cutoff := now.Add(-rl.span())
	for key, window := range rl.windows {
		window = filterTimes(window, cutoff)
		if len(window) == 0 {
			delete(rl.windows, key)
			continue
		}
		rl.windows[key] = window
	}
}

// filterTimes keeps only times after the cutoff
func filterTimes(times []time.Time, cutoff time.Time) []time.Time {
	result := make([]time.Time, 0, len(times))
	for _, t := range times {
		if t.After(cutoff) {
			result = append(result, t)
		}
	}
	return result
}

// countAfter counts the trailing times after cutoff; times are ascending
func countAfter(times []time.Time, cutoff time.Time) int {
	n := 0
	for i := len(times) - 1; i >= 0 && times[i].After(cutoff); i-- {
		n++
	}
	return n
}

// GetStats returns current rate limiter statistics
func (rl *RateLimiter) GetStats() Stats {
	if !rl.enabled {
		return Stats{Enabled: false}
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.cleanup(now)

	stats := Stats{
		Enabled:        true,
		TrackedKeys:    len(rl.windows),
		LimitPerMinute: rl.requestsPerMinute,
		LimitPerHour:   rl.requestsPerHour,
		Rejected:       rl.rejected,
	}
	for _, window := range rl.windows {
		n := countAfter(window, now.Add(-time.Minute))
		stats.RequestsLastMinute += n
		if n >= rl.requestsPerMinute {
			stats.LimitedKeys++
		}
	}
	return stats
}

// Stats contains rate limiter statistics
type Stats struct {
	Enabled            bool  `json:"enabled"`
	TrackedKeys        int   `json:"tracked_keys"`
	LimitedKeys        int   `json:"limited_keys"`
	RequestsLastMinute int   `json:"requests_last_minute"`
	LimitPerMinute     int   `json:"limit_per_minute"`
	LimitPerHour       int   `json:"limit_per_hour"`
	Rejected           int64 `json:"rejected"`
}

// Reset clears all tracked requests (useful for testing)
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.windows = make(map[string][]time.Time)
	rl.rejected = 0
}

// StartJanitor prunes idle keys every interval until stop is closed
func (rl *RateLimiter) StartJanitor(interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.mu.Lock()
				rl.cleanup(rl.now())
				rl.mu.Unlock()
			case <-stop:
				return
			}
		}
	}()
}
