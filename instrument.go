package batchcall

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// instrument times a batch, writes batch-level log lines and fans item
// events out to the user hook. One instrument per batch.
type instrument struct {
	log     *zap.Logger
	local   *AtomicMetrics
	metrics MetricsPolicy
	onEvent func(Event)

	runID    uuid.UUID
	strategy Strategy
	started  time.Time
}

func newInstrument(opts Options, s Strategy) *instrument {
	runID := uuid.New()
	local := &AtomicMetrics{}
	return &instrument{
		log: opts.Logger.With(
			zap.String("run_id", runID.String()),
			zap.Stringer("strategy", s),
		),
		local:    local,
		metrics:  multiMetrics{local, opts.Metrics},
		onEvent:  opts.OnEvent,
		runID:    runID,
		strategy: s,
	}
}

func (in *instrument) begin(items int) {
	in.started = time.Now()
	in.log.Info("batch started", zap.Int("items", items))
}

// event forwards ev to the user hook. Attempt lines are logged by the
// retrier; here only items that never reach a call are logged.
func (in *instrument) event(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	if ev.State == StateFailed && ev.Attempt == 0 {
		in.log.Debug("item canceled before start",
			zap.Int("item", ev.ID),
			zap.Error(ev.Err),
		)
	}
	if in.onEvent != nil {
		in.onEvent(ev)
	}
}

func (in *instrument) end(items, succeeded int, aborted bool) BatchReport {
	elapsed := time.Since(in.started)
	in.metrics.ObserveBatch(in.strategy.Kind, elapsed)

	r := BatchReport{
		RunID:        in.runID,
		Strategy:     in.strategy,
		Items:        items,
		Succeeded:    succeeded,
		Failed:       items - succeeded,
		Retries:      in.local.Retried(),
		PeakInFlight: in.local.PeakInFlight(),
		Elapsed:      elapsed,
		Aborted:      aborted,
	}
	fields := []zap.Field{
		zap.Int("items", r.Items),
		zap.Int("succeeded", r.Succeeded),
		zap.Int("failed", r.Failed),
		zap.Uint64("retries", r.Retries),
		zap.Int64("peak_in_flight", r.PeakInFlight),
		zap.Duration("elapsed", r.Elapsed),
	}
	if aborted {
		in.log.Warn("batch aborted", fields...)
	} else {
		in.log.Info("batch finished", fields...)
	}
	return r
}
