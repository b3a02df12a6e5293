package batchcall

import (
	"time"

	boff "github.com/Andrej220/go-utils/backoff"
)

const (
	defaultAttempts     = 3
	defaultInitialRetry = 1 * time.Second
	defaultMaxRetry     = 60 * time.Second
)

// RetryPolicy describes how many times and how often a call is retried.
// Zero values are treated as "use defaults".
type RetryPolicy struct {
	// Attempts is the maximum number of tries for an item, first one included.
	Attempts int

	// Initial is the lower bound of the backoff window.
	Initial time.Duration

	// Max is the upper bound of the backoff window.
	Max time.Duration
}

// GetDefaultRP returns a pointer to the default retry policy:
// 3 attempts, backoff jittered within [1s, 60s].
func GetDefaultRP() *RetryPolicy {
	rp := RetryPolicy{
		Attempts: defaultAttempts,
		Initial:  defaultInitialRetry,
		Max:      defaultMaxRetry,
	}
	return &rp
}

// Merge returns p with every zero field taken from base.
func (p RetryPolicy) Merge(base RetryPolicy) RetryPolicy {
	if p.Attempts <= 0 {
		p.Attempts = base.Attempts
	}
	if p.Initial <= 0 {
		p.Initial = base.Initial
	}
	if p.Max <= 0 {
		p.Max = base.Max
	}
	return p
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	p = p.Merge(*GetDefaultRP())
	if p.Max < p.Initial {
		p.Max = p.Initial
	}
	return p
}

// RetryState is the per-item retry bookkeeping. It lives for one item's
// execution and is discarded on success or exhaustion.
type RetryState struct {
	Attempt     int
	NextBackoff time.Duration

	pol  RetryPolicy
	next func() time.Duration
}

// NewRetryState starts a fresh state for pol. Different seeds give
// different jitter sequences so concurrent items do not retry in lockstep.
func NewRetryState(pol RetryPolicy, seed int64) *RetryState {
	pol = pol.withDefaults()
	bo := boff.New(pol.Initial, pol.Max, seed)
	return &RetryState{
		pol:  pol,
		next: func() time.Duration { return bo.Next() },
	}
}

// Policy returns the effective policy after defaults were applied.
func (s *RetryState) Policy() RetryPolicy { return s.pol }

// Exhausted reports whether every allowed attempt has been made.
func (s *RetryState) Exhausted() bool { return s.Attempt >= s.pol.Attempts }

// Backoff advances the exponential sequence and returns the next wait,
// clamped to [Initial, Max].
func (s *RetryState) Backoff() time.Duration {
	d := s.next()
	if d < s.pol.Initial {
		d = s.pol.Initial
	}
	if d > s.pol.Max {
		d = s.pol.Max
	}
	s.NextBackoff = d
	return d
}

// Raise lifts the pending backoff to at least d, still capped at Max,
// and returns the result.
func (s *RetryState) Raise(d time.Duration) time.Duration {
	if d > s.NextBackoff {
		s.NextBackoff = min(d, s.pol.Max)
	}
	return s.NextBackoff
}
