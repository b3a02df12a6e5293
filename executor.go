package batchcall

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/semaphore"
)

// Executor runs batches of work items against one Caller. It holds no
// per-batch state and may run several batches concurrently.
type Executor[P, R any] struct {
	caller Caller[P, R]
	opts   Options
}

// New validates the adapter and fills option defaults.
func New[P, R any](caller Caller[P, R], opts Options) (*Executor[P, R], error) {
	if caller == nil {
		return nil, ErrNilCaller
	}
	if f, ok := caller.(CallerFunc[P, R]); ok && f == nil {
		return nil, ErrNilCaller
	}
	opts.FillDefaults()
	return &Executor[P, R]{caller: caller, opts: opts}, nil
}

// Options returns the effective options.
func (e *Executor[P, R]) Options() Options { return e.opts }

// RunBatch executes items under strategy s and blocks until every item
// has a result.
//
// Setup problems (invalid strategy, duplicate ids) return a nil set and an
// error before any call is made. Otherwise the returned set always holds
// exactly one result per item. The error is non-nil only when the batch was
// cut short: it wraps ErrBatchAborted after a fatal failure with
// AbortOnFatal set, or is ctx's error when the caller's cancellation left
// at least one item canceled. Individual
// item failures are reported in the set, not as an error.
func (e *Executor[P, R]) RunBatch(ctx context.Context, items []WorkItem[P], s Strategy) (*ResultSet[R], error) {
	s, err := s.resolve(e.opts)
	if err != nil {
		return nil, err
	}
	if err := checkIDs(items); err != nil {
		return nil, err
	}

	b := e.newBatch(ctx, len(items), s)
	defer b.cancel(nil)

	b.in.begin(len(items))
	for _, it := range items {
		b.in.event(Event{ID: it.ID, State: StatePending})
	}
	switch s.Kind {
	case StrategySequential:
		b.runSequential(items)
	case StrategyConcurrent:
		b.runConcurrent(items)
	case StrategyBounded:
		b.runBounded(items, s.Limit)
	case StrategyPooled:
		b.runPooled(items, s.Limit)
	}
	b.fillMissing(items)

	report := b.in.end(len(items), len(b.rs.Succeeded()), b.abortErr != nil)
	b.rs.setReport(report)

	if b.abortErr != nil {
		return b.rs, b.abortErr
	}
	if err := ctx.Err(); err != nil && b.rs.anyCanceled() {
		return b.rs, err
	}
	return b.rs, nil
}

// Compare runs the same items once per strategy, one after another, and
// returns a report per strategy. A canceled ctx stops the comparison;
// aborted batches are reported and joined into the returned error.
func (e *Executor[P, R]) Compare(ctx context.Context, items []WorkItem[P], strategies ...Strategy) ([]BatchReport, error) {
	reports := make([]BatchReport, 0, len(strategies))
	var errs error
	for _, s := range strategies {
		rs, err := e.RunBatch(ctx, items, s)
		if rs == nil {
			return reports, err
		}
		reports = append(reports, rs.Report())
		if ctx.Err() != nil {
			return reports, ctx.Err()
		}
		errs = multierr.Append(errs, err)
	}
	return reports, errs
}

func checkIDs[P any](items []WorkItem[P]) error {
	seen := make(map[int]struct{}, len(items))
	for _, it := range items {
		if _, ok := seen[it.ID]; ok {
			return fmt.Errorf("%w: %d", ErrDuplicateID, it.ID)
		}
		seen[it.ID] = struct{}{}
	}
	return nil
}

// batch is the state of one RunBatch call.
type batch[P, R any] struct {
	e        *Executor[P, R]
	ctx      context.Context
	cancel   context.CancelCauseFunc
	rs       *ResultSet[R]
	in       *instrument
	retrier  *retrier[P, R]
	strategy Strategy

	abortOnce sync.Once
	abortErr  error
}

func (e *Executor[P, R]) newBatch(parent context.Context, n int, s Strategy) *batch[P, R] {
	ctx, cancel := context.WithCancelCause(parent)
	in := newInstrument(e.opts, s)
	return &batch[P, R]{
		e:        e,
		ctx:      ctx,
		cancel:   cancel,
		rs:       newResultSet[R](n),
		in:       in,
		strategy: s,
		retrier: &retrier[P, R]{
			caller:   e.caller,
			policy:   e.opts.Retry,
			classify: e.opts.Classifier,
			timeout:  e.opts.AttemptTimeout,
			metrics:  in.metrics,
			onEvent:  in.event,
			log:      in.log,
		},
	}
}

// process runs one item to a terminal result and records it.
func (b *batch[P, R]) process(it WorkItem[P]) {
	if b.ctx.Err() != nil {
		b.record(b.canceled(it.ID))
		return
	}
	b.in.metrics.AddInFlight(1)
	res := b.retrier.run(b.ctx, it)
	b.in.metrics.AddInFlight(-1)
	b.record(res)
}

func (b *batch[P, R]) canceled(id int) CallResult[R] {
	err := newCallError(KindCanceled, context.Cause(b.ctx))
	b.in.metrics.IncFailed(KindCanceled)
	b.in.event(Event{ID: id, State: StateFailed, Err: err})
	return CallResult[R]{ID: id, Err: err}
}

func (b *batch[P, R]) record(res CallResult[R]) {
	if err := b.rs.add(res); err != nil {
		b.e.reportInternalError(err)
		return
	}
	if res.OK() {
		return
	}
	b.e.reportItemError(res.ID, res.Err)
	if res.Err.Kind == KindFatal && b.e.opts.AbortOnFatal {
		b.abort(res)
	}
}

func (b *batch[P, R]) abort(res CallResult[R]) {
	b.abortOnce.Do(func() {
		b.abortErr = fmt.Errorf("%w: item %d: %s", ErrBatchAborted, res.ID, res.Err.Detail)
		b.cancel(b.abortErr)
	})
}

// fillMissing guarantees one result per item. Anything left unrecorded
// here is a bug in a strategy and is reported as an internal error.
func (b *batch[P, R]) fillMissing(items []WorkItem[P]) {
	if b.rs.Len() == len(items) {
		return
	}
	for _, it := range items {
		if b.rs.has(it.ID) {
			continue
		}
		if b.ctx.Err() == nil {
			b.e.reportInternalError(fmt.Errorf("batchcall: item %d finished without a result", it.ID))
		}
		b.record(b.canceled(it.ID))
	}
}

func (b *batch[P, R]) runSequential(items []WorkItem[P]) {
	for _, it := range items {
		b.process(it)
	}
}

func (b *batch[P, R]) runConcurrent(items []WorkItem[P]) {
	var wg sync.WaitGroup
	for _, it := range items {
		wg.Add(1)
		go func(it WorkItem[P]) {
			defer wg.Done()
			b.process(it)
		}(it)
	}
	wg.Wait()
}

// runBounded admits at most limit items at a time. The permit is held
// for the whole retry-wrapped execution, backoff waits included.
func (b *batch[P, R]) runBounded(items []WorkItem[P], limit int) {
	gate := semaphore.NewWeighted(int64(limit))
	var wg sync.WaitGroup
	for _, it := range items {
		if err := gate.Acquire(b.ctx, 1); err != nil {
			b.record(b.canceled(it.ID))
			continue
		}
		wg.Add(1)
		go func(it WorkItem[P]) {
			defer wg.Done()
			defer gate.Release(1)
			b.process(it)
		}(it)
	}
	wg.Wait()
}

// runPooled feeds items to size workers through the pool queue.
func (b *batch[P, R]) runPooled(items []WorkItem[P], size int) {
	pool := NewPool[WorkItem[P]](PoolConfig{
		Workers:         size,
		PinWorkers:      b.e.opts.PinWorkers,
		OnInternalError: b.e.reportInternalError,
		OnJobError:      b.e.reportInternalError,
		Logger:          b.in.log,
	})
	for _, it := range items {
		err := pool.Submit(Job[WorkItem[P]]{
			Payload: it,
			Ctx:     b.ctx,
			Fn: func(it WorkItem[P]) error {
				b.process(it)
				return nil
			},
		})
		if err != nil {
			b.record(b.canceled(it.ID))
		}
	}
	pool.Stop()
}
