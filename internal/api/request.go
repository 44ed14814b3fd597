package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rickgao/binance-meta/internal/auth"
)

// weightBucket is the bucket the X-MBX-USED-WEIGHT-* headers report on.
const weightBucket = "REQUEST_WEIGHT"

// doRequest performs a single HTTP request. Signed requests are re-signed on
// every call so the timestamp stays fresh across retries.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, signed bool) ([]byte, error) {
	fullURL := c.baseURL + path
	if signed {
		if c.creds == nil {
			return nil, ErrNoCredentials
		}
		fullURL += "?" + c.creds.SignQuery(query)
	} else if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if c.creds != nil {
		req.Header.Set(auth.APIKeyHeader, c.creds.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	c.observeUsage(resp.Header)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	// Binance escalates repeat offenders from 429 to a 418 ban.
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusTeapot {
		return nil, &RateLimitError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header),
		}
	}

	if resp.StatusCode >= 400 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			Body:       body,
		}
	}

	return body, nil
}

// observeUsage forwards server-reported weight usage to the registered
// observer. Binance sends one header per reporting window.
func (c *Client) observeUsage(header http.Header) {
	if c.usageObserver == nil {
		return
	}
	for key, vals := range header {
		if !strings.HasPrefix(strings.ToLower(key), "x-mbx-used-weight") || len(vals) == 0 {
			continue
		}
		used, err := strconv.Atoi(vals[0])
		if err != nil {
			continue
		}
		c.usageObserver(weightBucket, used)
	}
}

// parseRetryAfter reads the Retry-After header, defaulting to one second.
func parseRetryAfter(header http.Header) time.Duration {
	s := header.Get("Retry-After")
	if s == "" {
		return time.Second
	}
	secs, err := strconv.Atoi(s)
	if err != nil || secs <= 0 {
		return time.Second
	}
	return time.Duration(secs) * time.Second
}

// attempt performs one request through the circuit breaker, if configured.
func (c *Client) attempt(ctx context.Context, method, path string, query url.Values, signed bool) ([]byte, error) {
	if c.breaker == nil {
		return c.doRequest(ctx, method, path, query, signed)
	}

	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doRequest(ctx, method, path, query, signed)
	})
	if err != nil {
		return nil, err
	}
	body, _ := res.([]byte)
	return body, nil
}

// doWithRetry performs a request with exponential backoff retry. Only 5xx
// responses are retried; rate limit responses go straight back to the caller
// so the poller can reschedule instead of burning more weight.
func (c *Client) doWithRetry(ctx context.Context, method, path string, query url.Values, signed bool) ([]byte, error) {
	var lastErr error
	backoff := c.retryBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// Add jitter: backoff * (0.5 to 1.5)
			jitter := backoff/2 + time.Duration(rand.Int64N(int64(backoff)))
			c.logger.Debug("retrying request",
				"attempt", attempt,
				"backoff", jitter,
				"path", path,
			)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(jitter):
			}

			backoff *= 2
		}

		body, err := c.attempt(ctx, method, path, query, signed)
		if err == nil {
			return body, nil
		}

		lastErr = err

		// Check if error is retryable
		apiErr, ok := err.(*APIError)
		if !ok || !apiErr.IsRetryable() {
			return nil, err
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// get performs a GET request with retries and decodes the JSON response.
func (c *Client) get(ctx context.Context, path string, query url.Values, signed bool, result any) error {
	body, err := c.doWithRetry(ctx, http.MethodGet, path, query, signed)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, result); err != nil {
		return &ParseError{Endpoint: path, Err: fmt.Errorf("unmarshal response: %w", err)}
	}

	return nil
}
