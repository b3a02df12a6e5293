package batchcall

import (
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
)

func TestResultSetRejectsDuplicates(t *testing.T) {
	rs := newResultSet[string](2)
	if err := rs.add(CallResult[string]{ID: 7, Value: "a"}); err != nil {
		t.Fatal(err)
	}
	err := rs.add(CallResult[string]{ID: 7, Value: "b"})
	if !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("second add: %v; want ErrDuplicateID", err)
	}
	r, ok := rs.Get(7)
	if !ok || r.Value != "a" || rs.Len() != 1 {
		t.Fatalf("first result overwritten: %+v", r)
	}
	if _, ok := rs.Get(8); ok {
		t.Fatal("Get returned a result for an unknown id")
	}
}

func TestResultSetConcurrentAdd(t *testing.T) {
	const n = 200
	rs := newResultSet[int](n)

	var wg sync.WaitGroup
	for i := n; i > 0; i-- {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if err := rs.add(CallResult[int]{ID: id, Value: id}); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()

	if rs.Len() != n {
		t.Fatalf("len = %d; want %d", rs.Len(), n)
	}
	for i, r := range rs.Sorted() {
		if r.ID != i+1 || r.Value != i+1 {
			t.Fatalf("Sorted()[%d] = %+v", i, r)
		}
	}
}

func TestResultSetViews(t *testing.T) {
	rs := newResultSet[int](4)
	_ = rs.add(CallResult[int]{ID: 3, Value: 30})
	_ = rs.add(CallResult[int]{ID: 1, Err: newCallError(KindFatal, errors.New("bad request"))})
	_ = rs.add(CallResult[int]{ID: 2, Value: 20})
	_ = rs.add(CallResult[int]{ID: 4, Err: newCallError(KindRetryExhausted, errors.New("throttled"))})

	order := func(rs []CallResult[int]) []int {
		ids := make([]int, len(rs))
		for i, r := range rs {
			ids[i] = r.ID
		}
		return ids
	}
	eq := func(a, b []int) bool {
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if a[i] != b[i] {
				return false
			}
		}
		return true
	}

	if got := order(rs.Results()); !eq(got, []int{3, 1, 2, 4}) {
		t.Fatalf("Results order %v", got)
	}
	if got := order(rs.Succeeded()); !eq(got, []int{3, 2}) {
		t.Fatalf("Succeeded %v", got)
	}
	if got := order(rs.Failed()); !eq(got, []int{1, 4}) {
		t.Fatalf("Failed %v", got)
	}

	err := rs.Err()
	if err == nil {
		t.Fatal("Err() = nil with failures")
	}
	for _, want := range []string{"item 1", "bad request", "item 4", "retry_exhausted"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("Err() %q does not mention %q", err, want)
		}
	}

	// Results hands out copies.
	res := rs.Results()
	res[0].Value = -1
	if r, _ := rs.Get(3); r.Value != 30 {
		t.Fatal("Results() exposed internal storage")
	}
}

func TestResultSetErrNilWhenAllSucceed(t *testing.T) {
	rs := newResultSet[int](1)
	_ = rs.add(CallResult[int]{ID: 1})
	if err := rs.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}
}

func TestResultSetSortedExtremeIDs(t *testing.T) {
	rs := newResultSet[int](4)
	for _, id := range []int{math.MaxInt, 5, math.MinInt, -1} {
		_ = rs.add(CallResult[int]{ID: id})
	}
	want := []int{math.MinInt, -1, 5, math.MaxInt}
	for i, r := range rs.Sorted() {
		if r.ID != want[i] {
			t.Fatalf("Sorted()[%d].ID = %d; want %d", i, r.ID, want[i])
		}
	}
}
