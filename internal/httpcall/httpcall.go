// Package httpcall is a batchcall.Caller that posts JSON payloads to an
// HTTP endpoint and returns the raw response body.
//
// Status mapping:
//   - 2xx: success
//   - 408, 425, 429, 5xx and transport errors: transient
//   - any other 4xx: fatal
package httpcall

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/azargarov/batchcall"
)

const (
	defaultTimeout  = 30 * time.Second
	maxResponseBody = 4 << 20
)

var (
	// ErrRequest wraps failures to build or send a request.
	ErrRequest = errors.New("httpcall: request failed")

	// ErrStatus wraps non-2xx responses.
	ErrStatus = errors.New("httpcall: unexpected status")
)

// StatusError carries the response of a non-2xx call.
type StatusError struct {
	Code       int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrStatus }

// RetryDelay passes Retry-After on to the executor's backoff.
func (e *StatusError) RetryDelay() time.Duration { return e.RetryAfter }

// Client posts payloads of type P.
type Client[P any] struct {
	URL     string
	Header  http.Header
	Timeout time.Duration
	HTTP    *http.Client
}

// New returns a client for url with the given per-request timeout
// (zero means 30s).
func New[P any](url string, timeout time.Duration) *Client[P] {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client[P]{
		URL:     url,
		Header:  make(http.Header),
		Timeout: timeout,
		HTTP:    &http.Client{},
	}
}

// Call implements batchcall.Caller[P, []byte].
func (c *Client[P]) Call(ctx context.Context, payload P) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, batchcall.Fatal(fmt.Errorf("%w: marshal payload: %v", ErrRequest, err))
	}

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return nil, batchcall.Fatal(fmt.Errorf("%w: create request: %v", ErrRequest, err))
	}
	for k, vs := range c.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, batchcall.Transient(fmt.Errorf("%w: %v", ErrRequest, err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, batchcall.Transient(fmt.Errorf("%w: read response: %v", ErrRequest, err))
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return respBody, nil
	}

	serr := &StatusError{
		Code:       resp.StatusCode,
		Body:       truncate(string(respBody), 200),
		RetryAfter: retryAfter(resp.Header.Get("Retry-After")),
	}
	if retryable(resp.StatusCode) {
		return nil, batchcall.Transient(serr)
	}
	return nil, batchcall.Fatal(serr)
}

func retryable(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return true
	}
	return code >= 500
}

// retryAfter parses the seconds form of Retry-After.
func retryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
