package batchcall_test

import (
	"context"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	bc "github.com/azargarov/batchcall"
)

var fastRetry = bc.RetryPolicy{Attempts: 3, Initial: 2 * time.Millisecond, Max: 5 * time.Millisecond}

var strategies = []bc.Strategy{
	bc.Sequential(),
	bc.Concurrent(),
	bc.Bounded(3),
	bc.Pooled(3),
}

func makeItems(n int) []bc.WorkItem[int] {
	items := make([]bc.WorkItem[int], n)
	for i := range items {
		items[i] = bc.WorkItem[int]{ID: i + 1, Payload: (i + 1) * 10}
	}
	return items
}

func newTestExecutor[R any](t *testing.T, caller bc.Caller[int, R], opts bc.Options) *bc.Executor[int, R] {
	t.Helper()
	if opts.Retry == (bc.RetryPolicy{}) {
		opts.Retry = fastRetry
	}
	ex, err := bc.New(caller, opts)
	if err != nil {
		t.Fatalf("new executor: %v", err)
	}
	return ex
}

// gauge tracks how many calls are outstanding and the maximum seen.
type gauge struct {
	cur, peak atomic.Int64
}

func (g *gauge) enter() {
	c := g.cur.Add(1)
	for {
		old := g.peak.Load()
		if c <= old || g.peak.CompareAndSwap(old, c) {
			return
		}
	}
}

func (g *gauge) leave() { g.cur.Add(-1) }

// double is a deterministic adapter stub.
func double(latency time.Duration) bc.Caller[int, int] {
	return bc.CallerFunc[int, int](func(ctx context.Context, n int) (int, error) {
		if latency > 0 {
			select {
			case <-time.After(latency):
			case <-ctx.Done():
				return 0, ctx.Err()
			}
		}
		return n * 2, nil
	})
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		runtime.Gosched()
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not satisfied before timeout")
}

func checkComplete[R any](t *testing.T, rs *bc.ResultSet[R], items []bc.WorkItem[int]) {
	t.Helper()
	if rs.Len() != len(items) {
		t.Fatalf("results = %d; want %d", rs.Len(), len(items))
	}
	seen := make(map[int]bool, len(items))
	for _, r := range rs.Results() {
		if seen[r.ID] {
			t.Fatalf("item %d recorded twice", r.ID)
		}
		seen[r.ID] = true
	}
	for _, it := range items {
		if !seen[it.ID] {
			t.Fatalf("item %d has no result", it.ID)
		}
	}
}
