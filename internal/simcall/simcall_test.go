package simcall

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azargarov/batchcall"
)

func TestItemsHaveDistinctIDs(t *testing.T) {
	items := Items(3)
	require.Len(t, items, 18)

	seen := map[int]bool{}
	for i, it := range items {
		assert.Equal(t, i+1, it.ID)
		assert.False(t, seen[it.ID])
		seen[it.ID] = true
	}
	assert.Equal(t, items[0].Payload, items[6].Payload)
	assert.Len(t, Items(0), 6)
}

func TestCallJudges(t *testing.T) {
	c := New(time.Millisecond)

	body, err := c.Call(context.Background(), Question{"What is the chemical symbol for gold?", "Au"})
	require.NoError(t, err)
	var v Verdict
	require.NoError(t, json.Unmarshal(body, &v))
	assert.Equal(t, 1, v.IsLikelyCorrect)

	body, err = c.Call(context.Background(), Question{"What is the capital of France?", "Lyon"})
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, &v))
	assert.Equal(t, 0, v.IsLikelyCorrect)
	assert.Contains(t, v.Explanation, "Paris")

	assert.EqualValues(t, 2, c.Calls())
}

func TestCallFailEvery(t *testing.T) {
	c := New(0)
	c.FailEvery = 2

	_, err := c.Call(context.Background(), Question{})
	require.NoError(t, err)
	_, err = c.Call(context.Background(), Question{})
	require.ErrorIs(t, err, ErrThrottled)
	assert.True(t, batchcall.IsTransient(err))
}

func TestCallHonoursContext(t *testing.T) {
	c := New(time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := c.Call(ctx, Question{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// Six items, one call latency L: sequential takes about 6L, the others about
// 2L with a limit of 3, and everything returns the same verdicts.
func TestStrategiesAgree(t *testing.T) {
	const latency = 40 * time.Millisecond

	sim := New(latency)
	ex, err := batchcall.New(batchcall.DecodeJSON[Question, Verdict](sim), batchcall.Options{})
	require.NoError(t, err)

	items := Items(1)
	strategies := []batchcall.Strategy{
		batchcall.Sequential(),
		batchcall.Concurrent(),
		batchcall.Bounded(3),
		batchcall.Pooled(3),
	}

	var baseline []batchcall.CallResult[Verdict]
	for _, s := range strategies {
		sim.Reset()
		rs, err := ex.RunBatch(context.Background(), items, s)
		require.NoError(t, err, s.String())
		require.Equal(t, len(items), rs.Len())
		require.Empty(t, rs.Failed())

		elapsed := rs.Report().Elapsed
		switch s.Kind {
		case batchcall.StrategySequential:
			assert.GreaterOrEqual(t, elapsed, 6*latency)
			assert.EqualValues(t, 1, sim.PeakConcurrent())
		case batchcall.StrategyConcurrent:
			assert.GreaterOrEqual(t, elapsed, latency)
			assert.Less(t, elapsed, 4*latency)
		default:
			assert.GreaterOrEqual(t, elapsed, 2*latency, s.String())
			assert.Less(t, elapsed, 5*latency, s.String())
			assert.LessOrEqual(t, sim.PeakConcurrent(), int64(3), s.String())
		}

		sorted := rs.Sorted()
		for i := range sorted {
			sorted[i].Attempts, sorted[i].Elapsed = 0, 0
		}
		if baseline == nil {
			baseline = sorted
			continue
		}
		assert.Equal(t, baseline, sorted, s.String())
	}
}
