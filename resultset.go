package batchcall

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// ResultSet collects one CallResult per WorkItem of a batch.
//
// Writes are serialized; reads are safe once RunBatch has returned.
// Results keeps record order: input order for the sequential strategy,
// completion order for the others. Association is always by ID.
type ResultSet[R any] struct {
	mu      sync.Mutex
	byID    map[int]int
	results []CallResult[R]
	report  BatchReport
}

func newResultSet[R any](n int) *ResultSet[R] {
	return &ResultSet[R]{
		byID:    make(map[int]int, n),
		results: make([]CallResult[R], 0, n),
	}
}

// add stores res. A second result for the same ID is rejected.
func (s *ResultSet[R]) add(res CallResult[R]) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[res.ID]; ok {
		return fmt.Errorf("%w: result for item %d recorded twice", ErrDuplicateID, res.ID)
	}
	s.byID[res.ID] = len(s.results)
	s.results = append(s.results, res)
	return nil
}

func (s *ResultSet[R]) has(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byID[id]
	return ok
}

// Len returns the number of recorded results.
func (s *ResultSet[R]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}

// Get returns the result for id.
func (s *ResultSet[R]) Get(id int) (CallResult[R], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.byID[id]
	if !ok {
		return CallResult[R]{}, false
	}
	return s.results[i], true
}

// Results returns a copy of all results in record order.
func (s *ResultSet[R]) Results() []CallResult[R] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.results)
}

// Sorted returns a copy of all results ordered by ID.
func (s *ResultSet[R]) Sorted() []CallResult[R] {
	out := s.Results()
	slices.SortFunc(out, func(a, b CallResult[R]) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func (s *ResultSet[R]) anyCanceled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.results {
		if r.Err != nil && r.Err.Kind == KindCanceled {
			return true
		}
	}
	return false
}

// Succeeded returns the successful results in record order.
func (s *ResultSet[R]) Succeeded() []CallResult[R] {
	return s.filter(true)
}

// Failed returns the failed results in record order.
func (s *ResultSet[R]) Failed() []CallResult[R] {
	return s.filter(false)
}

func (s *ResultSet[R]) filter(ok bool) []CallResult[R] {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []CallResult[R]
	for _, r := range s.results {
		if r.OK() == ok {
			out = append(out, r)
		}
	}
	return out
}

// Err combines every item failure into one error, or nil if all succeeded.
func (s *ResultSet[R]) Err() error {
	var err error
	for _, r := range s.Failed() {
		err = multierr.Append(err, fmt.Errorf("item %d: %w", r.ID, r.Err))
	}
	return err
}

// Report returns the timing summary of the batch that produced the set.
func (s *ResultSet[R]) Report() BatchReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report
}

func (s *ResultSet[R]) setReport(r BatchReport) {
	s.mu.Lock()
	s.report = r
	s.mu.Unlock()
}

// BatchReport summarizes one RunBatch call.
type BatchReport struct {
	RunID        uuid.UUID
	Strategy     Strategy
	Items        int
	Succeeded    int
	Failed       int
	Retries      uint64
	PeakInFlight int64
	Elapsed      time.Duration
	Aborted      bool
}
