package batchcall

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// Caller is the external call boundary: one request/response round-trip per
// payload. Implementations should honour ctx and enforce their own timeout.
// Errors may be marked with Transient or Fatal; unmarked errors go through
// the executor's Classifier.
type Caller[P, R any] interface {
	Call(ctx context.Context, payload P) (R, error)
}

// CallerFunc adapts a function to Caller.
type CallerFunc[P, R any] func(ctx context.Context, payload P) (R, error)

func (f CallerFunc[P, R]) Call(ctx context.Context, payload P) (R, error) {
	return f(ctx, payload)
}

// DecodeJSON wraps a raw caller and decodes its response body into R.
// Empty or undecodable bodies fail with ErrMalformedResponse.
func DecodeJSON[P, R any](raw Caller[P, []byte]) Caller[P, R] {
	return CallerFunc[P, R](func(ctx context.Context, payload P) (R, error) {
		var out R
		body, err := raw.Call(ctx, payload)
		if err != nil {
			return out, err
		}
		body = bytes.TrimSpace(body)
		if len(body) == 0 {
			return out, fmt.Errorf("%w: empty body", ErrMalformedResponse)
		}
		if err := json.Unmarshal(body, &out); err != nil {
			return out, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		return out, nil
	})
}
