package pixellab

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrMissingAPIKey is returned when a request is attempted without a key.
	ErrMissingAPIKey = errors.New("pixellab: PIXELLAB_API_KEY not set")

	// ErrRateLimited is wrapped by errors for HTTP 429 responses.
	ErrRateLimited = errors.New("pixellab: rate limited")

	// ErrUnknownOption is returned by ParseOptions for keys it does not know.
	ErrUnknownOption = errors.New("pixellab: unknown option")

	// ErrInvalidOption is returned when an option has a value outside its set.
	ErrInvalidOption = errors.New("pixellab: invalid option value")

	// ErrInvalidFrameCount is returned for animations outside MinFrames..MaxFrames.
	ErrInvalidFrameCount = errors.New("pixellab: invalid animation frame count")
)

// APIError is a non-2xx response from the API.
type APIError struct {
	Method     string
	Endpoint   string
	StatusCode int
	Body       string

	retryAfter time.Duration
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("pixellab: %s %s returned %d: %s", e.Method, e.Endpoint, e.StatusCode, body)
}

// Unwrap exposes ErrRateLimited for 429 responses.
func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusTooManyRequests {
		return ErrRateLimited
	}
	return nil
}

// Retryable reports whether the request may succeed if sent again.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}
