package batchcall

import (
	"sync/atomic"
	"time"

	"golang.org/x/sys/cpu"
)

// MetricsPolicy defines hooks used by the executor to report item and
// batch activity.
//
// Implementations must be safe for concurrent use.
// All methods are expected to be lightweight and non-blocking.
type MetricsPolicy interface {

	// IncSucceeded counts an item that finished successfully.
	IncSucceeded()

	// IncFailed counts an item that finished with the given failure kind.
	IncFailed(kind ErrorKind)

	// IncRetried counts one backoff-and-retry transition.
	IncRetried()

	// AddInFlight moves the number of items currently holding a slot
	// (admission permit, worker, or goroutine) by delta.
	AddInFlight(delta int64)

	// ObserveBatch records the wall-clock duration of a finished batch.
	ObserveBatch(strategy StrategyKind, d time.Duration)
}

// AtomicMetrics is a lock-free metrics implementation backed by atomics.
//
// Writes are optimized for hot paths.
// Reads are intended for cold-path observation.
type AtomicMetrics struct {
	succeeded atomic.Uint64
	failed    atomic.Uint64
	retried   atomic.Uint64
	batches   atomic.Uint64

	_ cpu.CacheLinePad // keeps counters and the in-flight gauge on separate lines

	inFlight atomic.Int64
	peak     atomic.Int64
}

func (m *AtomicMetrics) IncSucceeded()        { m.succeeded.Add(1) }
func (m *AtomicMetrics) IncFailed(_ ErrorKind) { m.failed.Add(1) }
func (m *AtomicMetrics) IncRetried()          { m.retried.Add(1) }

func (m *AtomicMetrics) ObserveBatch(_ StrategyKind, _ time.Duration) {
	m.batches.Add(1)
}

// AddInFlight updates the in-flight gauge and its high-water mark.
func (m *AtomicMetrics) AddInFlight(delta int64) {
	cur := m.inFlight.Add(delta)
	for {
		old := m.peak.Load()
		if cur <= old || m.peak.CompareAndSwap(old, cur) {
			return
		}
	}
}

// Succeeded returns the number of successful items.
func (m *AtomicMetrics) Succeeded() uint64 { return m.succeeded.Load() }

// Failed returns the number of failed items of any kind.
func (m *AtomicMetrics) Failed() uint64 { return m.failed.Load() }

// Retried returns the number of retries performed.
func (m *AtomicMetrics) Retried() uint64 { return m.retried.Load() }

// Batches returns the number of finished batches.
func (m *AtomicMetrics) Batches() uint64 { return m.batches.Load() }

// InFlight returns the current number of in-flight items.
func (m *AtomicMetrics) InFlight() int64 { return m.inFlight.Load() }

// PeakInFlight returns the highest in-flight count observed.
func (m *AtomicMetrics) PeakInFlight() int64 { return m.peak.Load() }

//------------- NoopMetrics ----------------------------------

// NoopMetrics is a MetricsPolicy implementation that discards
// all metric updates.
type NoopMetrics struct{}

func (m *NoopMetrics) IncSucceeded()                            {}
func (m *NoopMetrics) IncFailed(ErrorKind)                      {}
func (m *NoopMetrics) IncRetried()                              {}
func (m *NoopMetrics) AddInFlight(int64)                        {}
func (m *NoopMetrics) ObserveBatch(StrategyKind, time.Duration) {}

//------------- multiMetrics ---------------------------------

type multiMetrics []MetricsPolicy

func (mm multiMetrics) IncSucceeded() {
	for _, m := range mm {
		m.IncSucceeded()
	}
}

func (mm multiMetrics) IncFailed(kind ErrorKind) {
	for _, m := range mm {
		m.IncFailed(kind)
	}
}

func (mm multiMetrics) IncRetried() {
	for _, m := range mm {
		m.IncRetried()
	}
}

func (mm multiMetrics) AddInFlight(delta int64) {
	for _, m := range mm {
		m.AddInFlight(delta)
	}
}

func (mm multiMetrics) ObserveBatch(s StrategyKind, d time.Duration) {
	for _, m := range mm {
		m.ObserveBatch(s, d)
	}
}
