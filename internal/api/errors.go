package api

import (
	"errors"
	"fmt"
	"time"

	"github.com/rickgao/binance-meta/internal/model"
)

// ErrNoCredentials is returned when a signed endpoint is called on a client
// built without credentials.
var ErrNoCredentials = errors.New("signed request requires credentials")

// APIError represents a non-success HTTP status from the Binance API.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binance api error %d: %s", e.StatusCode, e.Message)
}

// IsRetryable returns true if the error should trigger a retry.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500
}

// RateLimitError represents an HTTP 429 or 418 response. RetryAfter carries
// the server's advised wait. The caller reschedules instead of retrying.
type RateLimitError struct {
	StatusCode int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("binance rate limit %d: retry after %s", e.StatusCode, e.RetryAfter)
}

// ParseError represents a response that arrived but failed to decode or
// violated the payload's validity rules.
type ParseError struct {
	Endpoint string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s response: %v", e.Endpoint, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// KindOf classifies a fetch error for failure snapshots. Parse failures keep
// their own class; everything else, including timeouts, HTTP errors, and an
// open circuit breaker, counts as transport.
func KindOf(err error) model.ErrorKind {
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return model.ErrorParse
	}
	return model.ErrorTransport
}
