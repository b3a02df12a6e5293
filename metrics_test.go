package batchcall_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	bc "github.com/azargarov/batchcall"
)

func TestAtomicMetricsPeak(t *testing.T) {
	var m bc.AtomicMetrics

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.AddInFlight(1)
		}()
	}
	wg.Wait()
	if m.InFlight() != 8 || m.PeakInFlight() != 8 {
		t.Fatalf("in flight %d peak %d; want 8 and 8", m.InFlight(), m.PeakInFlight())
	}

	m.AddInFlight(-8)
	m.AddInFlight(2)
	if m.InFlight() != 2 || m.PeakInFlight() != 8 {
		t.Fatalf("in flight %d peak %d; want 2 and 8", m.InFlight(), m.PeakInFlight())
	}

	m.IncSucceeded()
	m.IncFailed(bc.KindFatal)
	m.IncFailed(bc.KindRetryExhausted)
	m.IncRetried()
	m.ObserveBatch(bc.StrategyPooled, time.Second)
	if m.Succeeded() != 1 || m.Failed() != 2 || m.Retried() != 1 || m.Batches() != 1 {
		t.Fatalf("counters: %d %d %d %d", m.Succeeded(), m.Failed(), m.Retried(), m.Batches())
	}
}

func TestPromMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	pm := bc.NewPromMetrics(reg, "test")

	var attempts sync.Map
	caller := bc.CallerFunc[int, int](func(_ context.Context, n int) (int, error) {
		switch n {
		case 10:
			if _, seen := attempts.LoadOrStore(n, true); !seen {
				return 0, errors.New("blip")
			}
		case 20:
			return 0, bc.Fatal(errors.New("rejected"))
		}
		return n, nil
	})
	ex := newTestExecutor(t, caller, bc.Options{Metrics: pm})

	if _, err := ex.RunBatch(context.Background(), makeItems(4), bc.Bounded(2)); err != nil {
		t.Fatal(err)
	}

	const want = `
# HELP test_in_flight Work items currently executing.
# TYPE test_in_flight gauge
test_in_flight 0
# HELP test_items_total Work items finished, by outcome.
# TYPE test_items_total counter
test_items_total{outcome="fatal"} 1
test_items_total{outcome="succeeded"} 3
# HELP test_retries_total Call attempts retried after a transient failure.
# TYPE test_retries_total counter
test_retries_total 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(want),
		"test_in_flight", "test_items_total", "test_retries_total"); err != nil {
		t.Fatal(err)
	}
	if n := testutil.CollectAndCount(reg, "test_batch_duration_seconds"); n != 1 {
		t.Fatalf("batch_duration_seconds series = %d; want 1", n)
	}
}
