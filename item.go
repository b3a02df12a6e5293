package batchcall

import (
	"fmt"
	"time"
)

// WorkItem is one independent unit of work. Identity is ID; the executor
// never mutates the payload.
type WorkItem[P any] struct {
	ID      int
	Payload P
}

// ErrorKind classifies a failed call.
type ErrorKind int

const (
	// KindTransient marks an error that is likely to succeed on retry.
	KindTransient ErrorKind = iota + 1

	// KindRetryExhausted is terminal for the item: every attempt failed transiently.
	KindRetryExhausted

	// KindFatal is non-retryable. The item fails on the first occurrence.
	KindFatal

	// KindCanceled marks an item stopped or never started because the batch
	// was canceled or aborted.
	KindCanceled
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindRetryExhausted:
		return "retry_exhausted"
	case KindFatal:
		return "fatal"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// CallError is the failure half of a CallResult.
type CallError struct {
	Kind   ErrorKind
	Detail string
	Err    error
}

func (e *CallError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("batchcall: %s", e.Kind)
	}
	return fmt.Sprintf("batchcall: %s: %s", e.Kind, e.Detail)
}

func (e *CallError) Unwrap() error { return e.Err }

func newCallError(kind ErrorKind, err error) *CallError {
	ce := &CallError{Kind: kind, Err: err}
	if err != nil {
		ce.Detail = err.Error()
	}
	return ce
}

// CallResult is the outcome of driving one WorkItem through the retry policy.
// Err is nil on success.
type CallResult[R any] struct {
	ID       int
	Value    R
	Err      *CallError
	Attempts int
	Elapsed  time.Duration
}

// OK reports whether the call succeeded.
func (r CallResult[R]) OK() bool { return r.Err == nil }

// State is the lifecycle position of a WorkItem inside a batch:
//
//	Pending -> InFlight -> {Succeeded | Retrying -> InFlight | Failed}
//
// Every item reports Pending once when the batch starts. An item canceled
// before its first call goes straight from Pending to Failed.
type State int

const (
	StatePending State = iota
	StateInFlight
	StateRetrying
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateInFlight:
		return "in_flight"
	case StateRetrying:
		return "retrying"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event is emitted on every state transition of an item.
type Event struct {
	ID      int
	State   State
	Attempt int
	Backoff time.Duration
	Err     error
	At      time.Time
}
