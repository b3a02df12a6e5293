// Package simcall is an in-process stand-in for a remote answer-grading
// service. Every call sleeps for a fixed latency and returns a JSON verdict,
// which makes strategy timings predictable.
package simcall

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/azargarov/batchcall"
)

// ErrThrottled is returned (marked transient) for injected failures.
var ErrThrottled = errors.New("simcall: throttled")

// Question is the request payload: a question and a candidate answer.
type Question struct {
	Question string `json:"question" yaml:"question"`
	Answer   string `json:"synthetic_answer" yaml:"synthetic_answer"`
}

// Verdict is the decoded response.
type Verdict struct {
	IsLikelyCorrect int    `json:"is_likely_correct"`
	Explanation     string `json:"explanation"`
}

var samples = []struct {
	q       Question
	correct string
}{
	{Question{"What is the capital of France?", "Lyon"}, "Paris"},
	{Question{"Who wrote 'To Kill a Mockingbird'?", "Harper Lee"}, "Harper Lee"},
	{Question{"What is the chemical symbol for gold?", "Au"}, "Au"},
	{Question{"In what year did World War II end?", "1939"}, "1945"},
	{Question{"What is the largest planet in our solar system?", "Jupiter"}, "Jupiter"},
	{Question{"What is the capital of Argentina?", "Buenos Aires"}, "Buenos Aires"},
}

// Items returns the sample questions repeated n times with distinct ids
// starting at 1. n < 1 is treated as 1.
func Items(n int) []batchcall.WorkItem[Question] {
	n = max(n, 1)
	items := make([]batchcall.WorkItem[Question], 0, n*len(samples))
	for r := 0; r < n; r++ {
		for _, s := range samples {
			items = append(items, batchcall.WorkItem[Question]{ID: len(items) + 1, Payload: s.q})
		}
	}
	return items
}

// Caller is a batchcall.Caller[Question, []byte].
type Caller struct {
	// Latency is how long each call takes.
	Latency time.Duration

	// FailEvery makes every n-th call fail transiently. Zero disables it.
	FailEvery int64

	calls   atomic.Int64
	active  atomic.Int64
	peak    atomic.Int64
	answers map[string]string
}

func New(latency time.Duration) *Caller {
	answers := make(map[string]string, len(samples))
	for _, s := range samples {
		answers[s.q.Question] = s.correct
	}
	return &Caller{Latency: latency, answers: answers}
}

func (c *Caller) Call(ctx context.Context, q Question) ([]byte, error) {
	cur := c.active.Add(1)
	defer c.active.Add(-1)
	for {
		old := c.peak.Load()
		if cur <= old || c.peak.CompareAndSwap(old, cur) {
			break
		}
	}

	n := c.calls.Add(1)

	timer := time.NewTimer(c.Latency)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if c.FailEvery > 0 && n%c.FailEvery == 0 {
		return nil, batchcall.Transient(fmt.Errorf("%w: call %d", ErrThrottled, n))
	}
	return json.Marshal(c.judge(q))
}

func (c *Caller) judge(q Question) Verdict {
	want, ok := c.answers[q.Question]
	switch {
	case !ok:
		return Verdict{Explanation: "The question is unknown, so the answer cannot be confirmed."}
	case strings.EqualFold(strings.TrimSpace(q.Answer), want):
		return Verdict{IsLikelyCorrect: 1, Explanation: fmt.Sprintf("%q is the accepted answer to %q.", q.Answer, q.Question)}
	default:
		return Verdict{Explanation: fmt.Sprintf("%q is unlikely; the accepted answer is %q.", q.Answer, want)}
	}
}

// Calls returns the number of calls made so far.
func (c *Caller) Calls() int64 { return c.calls.Load() }

// PeakConcurrent returns the highest number of simultaneous calls seen.
func (c *Caller) PeakConcurrent() int64 { return c.peak.Load() }

// Reset clears the counters.
func (c *Caller) Reset() {
	c.calls.Store(0)
	c.peak.Store(0)
}
