package weather

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNoPredictions is returned when a forecast yields no usable day.
	ErrNoPredictions = errors.New("forecast produced no sunset predictions")

	// ErrRateLimited marks an upstream 429 response.
	ErrRateLimited = errors.New("rate limited")
)

// UpstreamError is a non-2xx response from a forecast provider.
type UpstreamError struct {
	Provider   string
	StatusCode int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.Provider, e.StatusCode)
}

// Is lets errors.Is(err, ErrRateLimited) match a 429 UpstreamError.
func (e *UpstreamError) Is(target error) bool {
	return target == ErrRateLimited && e.StatusCode == http.StatusTooManyRequests
}

// IsRateLimited reports whether err carries an upstream 429.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}
