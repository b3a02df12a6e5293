package batchcall

import (
	"runtime"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultMaxConcurrency = 10
	maxDefaultPoolSize    = 32
)

// Options configure an Executor.
//
// All zero values are replaced with sensible defaults in FillDefaults.
type Options struct {
	// MaxConcurrency is the admission gate capacity used by Bounded(0).
	MaxConcurrency int

	// PoolSize is the worker count used by Pooled(0).
	PoolSize int

	// PinWorkers locks each pool worker to an OS thread pinned to one CPU.
	// Linux only; elsewhere it is a no-op.
	PinWorkers bool

	Retry RetryPolicy

	// AttemptTimeout bounds a single call attempt. Zero leaves timing to
	// the caller's own timeout.
	AttemptTimeout time.Duration

	// MalformedResponse decides how ErrMalformedResponse is classified:
	// KindTransient (default, retried) or KindFatal.
	MalformedResponse ErrorKind

	// Classifier overrides DefaultClassifier(MalformedResponse).
	Classifier Classifier

	// AbortOnFatal stops admitting new items after the first fatal failure
	// and cancels in-flight ones.
	AbortOnFatal bool

	Metrics MetricsPolicy
	Logger  *zap.Logger

	// OnItemError is called for every failed item.
	OnItemError func(id int, err error)

	// OnInternalError is called for unexpected executor failures such as a
	// duplicate result or a worker setup error.
	OnInternalError func(err error)

	// OnEvent receives every item state transition. It is called from the
	// goroutine running the item and must be safe for concurrent use.
	OnEvent func(Event)
}

func (o *Options) FillDefaults() {
	if o.MaxConcurrency <= 0 {
		o.MaxConcurrency = DefaultMaxConcurrency
	}
	if o.PoolSize <= 0 {
		o.PoolSize = min(maxDefaultPoolSize, runtime.GOMAXPROCS(0)+4)
	}
	o.Retry = o.Retry.withDefaults()
	if o.MalformedResponse != KindFatal {
		o.MalformedResponse = KindTransient
	}
	if o.Classifier == nil {
		o.Classifier = DefaultClassifier(o.MalformedResponse)
	}
	if o.Metrics == nil {
		o.Metrics = &NoopMetrics{}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}
