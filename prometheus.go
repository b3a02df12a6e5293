package batchcall

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PromMetrics exports executor activity as Prometheus collectors.
type PromMetrics struct {
	items    *prometheus.CounterVec
	retries  prometheus.Counter
	inFlight prometheus.Gauge
	batches  *prometheus.HistogramVec
}

// NewPromMetrics registers the collectors on reg under namespace.
// It panics if they are already registered, like promauto does.
func NewPromMetrics(reg prometheus.Registerer, namespace string) *PromMetrics {
	f := promauto.With(reg)
	return &PromMetrics{
		items: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_total",
			Help:      "Work items finished, by outcome.",
		}, []string{"outcome"}),
		retries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Call attempts retried after a transient failure.",
		}),
		inFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "in_flight",
			Help:      "Work items currently executing.",
		}),
		batches: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Wall-clock duration of a batch.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}, []string{"strategy"}),
	}
}

func (m *PromMetrics) IncSucceeded()            { m.items.WithLabelValues("succeeded").Inc() }
func (m *PromMetrics) IncFailed(kind ErrorKind) { m.items.WithLabelValues(kind.String()).Inc() }
func (m *PromMetrics) IncRetried()              { m.retries.Inc() }
func (m *PromMetrics) AddInFlight(delta int64)  { m.inFlight.Add(float64(delta)) }

func (m *PromMetrics) ObserveBatch(s StrategyKind, d time.Duration) {
	m.batches.WithLabelValues(s.String()).Observe(d.Seconds())
}
