package batchcall_test

import (
	"context"
	"sync/atomic"
	"testing"

	bc "github.com/azargarov/batchcall"
)

// -----------------------------------------------------------------------------
// Executor overhead per strategy, with a caller that does no work
// -----------------------------------------------------------------------------

func benchmarkRunBatch(b *testing.B, s bc.Strategy, n int) {
	ex, err := bc.New(double(0), bc.Options{Retry: fastRetry})
	if err != nil {
		b.Fatal(err)
	}
	items := makeItems(n)
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := ex.RunBatch(ctx, items, s); err != nil {
			b.Fatal(err)
		}
	}
	b.ReportMetric(float64(b.Elapsed().Nanoseconds())/float64(b.N*n), "ns/item")
}

func BenchmarkRunBatch_Sequential(b *testing.B) { benchmarkRunBatch(b, bc.Sequential(), 256) }
func BenchmarkRunBatch_Concurrent(b *testing.B) { benchmarkRunBatch(b, bc.Concurrent(), 256) }
func BenchmarkRunBatch_Bounded8(b *testing.B)   { benchmarkRunBatch(b, bc.Bounded(8), 256) }
func BenchmarkRunBatch_Pooled8(b *testing.B)    { benchmarkRunBatch(b, bc.Pooled(8), 256) }

// -----------------------------------------------------------------------------
// Pool submit throughput
// -----------------------------------------------------------------------------

func BenchmarkPoolSubmit(b *testing.B) {
	p := bc.NewPool[int](bc.PoolConfig{Workers: 8})

	var done atomic.Int64
	job := bc.Job[int]{Fn: func(int) error {
		done.Add(1)
		return nil
	}}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		job.Payload = i
		if err := p.Submit(job); err != nil {
			b.Fatalf("submit failed: %v", err)
		}
	}
	p.Stop()

	if got := done.Load(); got != int64(b.N) {
		b.Fatalf("ran %d jobs; want %d", got, b.N)
	}
}
