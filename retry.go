package batchcall

import (
	"context"
	"errors"
	"fmt"
	"time"

	lg "github.com/Andrej220/go-utils/zlog"
	"go.uber.org/zap"
)

// ExecuteWithRetry drives one item through caller under pol. Transient
// failures are retried with jittered exponential backoff; the result is a
// success, a KindFatal failure, a KindRetryExhausted failure after
// pol.Attempts tries, or KindCanceled when ctx ends first.
// A nil classifier means DefaultClassifier(KindTransient).
func ExecuteWithRetry[P, R any](ctx context.Context, item WorkItem[P], caller Caller[P, R], pol RetryPolicy, cl Classifier) CallResult[R] {
	r := &retrier[P, R]{
		caller:   caller,
		policy:   pol,
		classify: cl,
		metrics:  &NoopMetrics{},
	}
	return r.run(ctx, item)
}

type retrier[P, R any] struct {
	caller   Caller[P, R]
	policy   RetryPolicy
	classify Classifier
	timeout  time.Duration
	metrics  MetricsPolicy
	onEvent  func(Event)
	log      *zap.Logger
}

func (r *retrier[P, R]) emit(ev Event) {
	if r.onEvent == nil {
		return
	}
	ev.At = time.Now()
	r.onEvent(ev)
}

func (r *retrier[P, R]) run(ctx context.Context, item WorkItem[P]) CallResult[R] {
	if r.classify == nil {
		r.classify = DefaultClassifier(KindTransient)
	}
	start := time.Now()
	logger := itemLog{z: r.log, ctx: ctx, id: item.ID}

	st := NewRetryState(r.policy, start.UnixNano()+int64(item.ID))
	res := CallResult[R]{ID: item.ID}

	fail := func(kind ErrorKind, err error) CallResult[R] {
		res.Err = newCallError(kind, err)
		res.Attempts = st.Attempt
		res.Elapsed = time.Since(start)
		r.metrics.IncFailed(kind)
		r.emit(Event{ID: item.ID, State: StateFailed, Attempt: st.Attempt, Err: res.Err})
		return res
	}

	for {
		st.Attempt++
		r.emit(Event{ID: item.ID, State: StateInFlight, Attempt: st.Attempt})

		v, err := r.attempt(ctx, item.Payload)
		if err == nil {
			res.Value = v
			res.Attempts = st.Attempt
			res.Elapsed = time.Since(start)
			r.metrics.IncSucceeded()
			r.emit(Event{ID: item.ID, State: StateSucceeded, Attempt: st.Attempt})
			logger.finished(st.Attempt)
			return res
		}

		if ctx.Err() != nil {
			logger.canceled("item canceled", context.Cause(ctx))
			return fail(KindCanceled, context.Cause(ctx))
		}

		if r.classify(err) == KindFatal {
			logger.failed("item failed", st.Attempt, err)
			return fail(KindFatal, err)
		}

		if st.Exhausted() {
			logger.failed("item retries exhausted", st.Attempt, err)
			return fail(KindRetryExhausted, fmt.Errorf("after %d attempts: %w", st.Attempt, err))
		}

		delay := st.Backoff()
		var hint RetryHinter
		if errors.As(err, &hint) {
			delay = st.Raise(hint.RetryDelay())
		}
		logger.backingOff(st.Attempt, delay, err)
		r.metrics.IncRetried()
		r.emit(Event{ID: item.ID, State: StateRetrying, Attempt: st.Attempt, Backoff: delay, Err: err})

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			logger.canceled("item canceled during backoff", context.Cause(ctx))
			return fail(KindCanceled, context.Cause(ctx))
		}
	}
}

// attempt runs a single call. The call is abandoned when ctx (or the
// per-attempt timeout) ends, even if the caller ignores its context; a late
// result is dropped. Panics become fatal errors.
func (r *retrier[P, R]) attempt(ctx context.Context, payload P) (R, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	type outcome struct {
		v   R
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		var o outcome
		defer func() {
			if p := recover(); p != nil {
				o.err = Fatal(fmt.Errorf("caller panicked: %v", p))
			}
			done <- o
		}()
		o.v, o.err = r.caller.Call(ctx, payload)
	}()

	select {
	case o := <-done:
		return o.v, o.err
	case <-ctx.Done():
		var zero R
		return zero, ctx.Err()
	}
}

// RetryHinter is implemented by errors that carry a server-requested delay,
// such as an HTTP Retry-After. A hint can lengthen the next backoff up to
// RetryPolicy.Max but never shorten it.
type RetryHinter interface {
	RetryDelay() time.Duration
}

// itemLog writes the per-item lines. z is the executor's logger; without
// one (ExecuteWithRetry) lines go to the zlog logger carried by ctx.
type itemLog struct {
	z   *zap.Logger
	ctx context.Context
	id  int
}

func (l itemLog) finished(attempt int) {
	if l.z != nil {
		l.z.Info("item finished", zap.Int("item", l.id), zap.Int("attempt", attempt))
		return
	}
	lg.FromContext(l.ctx).With(lg.Int("item", l.id)).Info("item finished", lg.Int("attempt", attempt))
}

func (l itemLog) canceled(msg string, reason error) {
	if l.z != nil {
		l.z.Info(msg, zap.Int("item", l.id), zap.NamedError("reason", reason))
		return
	}
	lg.FromContext(l.ctx).With(lg.Int("item", l.id)).Info(msg, lg.Any("reason", reason))
}

func (l itemLog) failed(msg string, attempt int, err error) {
	if l.z != nil {
		l.z.Error(msg, zap.Int("item", l.id), zap.Int("attempt", attempt), zap.Error(err))
		return
	}
	lg.FromContext(l.ctx).With(lg.Int("item", l.id)).Error(msg, lg.Int("attempt", attempt), lg.Any("error", err))
}

func (l itemLog) backingOff(attempt int, delay time.Duration, err error) {
	if l.z != nil {
		l.z.Warn("attempt failed; backing off",
			zap.Int("item", l.id),
			zap.Int("attempt", attempt),
			zap.Duration("sleep", delay),
			zap.Error(err),
		)
		return
	}
	lg.FromContext(l.ctx).With(lg.Int("item", l.id)).Warn("attempt failed; backing off",
		lg.Int("attempt", attempt),
		lg.String("sleep", delay.String()),
		lg.Any("error", err),
	)
}
