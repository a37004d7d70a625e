package weather

import "sync"

// RateLimitMessage is shown while the upstream is rejecting requests.
const RateLimitMessage = "Too many requests to the weather service. Wait a moment, then retry."

// RateLimit is the process-wide latch raised by an upstream 429. While it is
// set no new forecast fetches are started. A successful fetch or an explicit
// Clear lowers it; other failures leave it as is. A nil *RateLimit is never
// limited.
type RateLimit struct {
	mu      sync.RWMutex
	limited bool
	message string
}

func NewRateLimit() *RateLimit {
	return &RateLimit{}
}

// Limited reports whether the latch is set.
func (r *RateLimit) Limited() bool {
	if r == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.limited
}

// Message returns the user-facing message, empty when not limited.
func (r *RateLimit) Message() string {
	if r == nil {
		return ""
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.message
}

// Observe updates the latch from a fetch outcome: a 429 sets it, a nil error
// clears it and anything else is ignored.
func (r *RateLimit) Observe(err error) {
	if r == nil {
		return
	}
	switch {
	case err == nil:
		r.Clear()
	case IsRateLimited(err):
		r.mu.Lock()
		r.limited = true
		r.message = RateLimitMessage
		r.mu.Unlock()
	}
}

// Clear lowers the latch.
func (r *RateLimit) Clear() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.limited = false
	r.message = ""
	r.mu.Unlock()
}
