package batchcall

import (
	"fmt"
	"strings"
)

// StrategyKind selects the admission discipline used for a batch.
type StrategyKind int

const (
	// StrategySequential runs items one at a time in input order.
	StrategySequential StrategyKind = iota + 1

	// StrategyConcurrent starts every item at once, with no ceiling on
	// outstanding calls. Fine for small batches only.
	StrategyConcurrent

	// StrategyBounded admits at most Limit outstanding calls through a
	// counting gate; the rest wait for a permit.
	StrategyBounded

	// StrategyPooled runs Limit workers that pull items from a shared queue.
	StrategyPooled
)

func (k StrategyKind) String() string {
	switch k {
	case StrategySequential:
		return "sequential"
	case StrategyConcurrent:
		return "concurrent"
	case StrategyBounded:
		return "bounded"
	case StrategyPooled:
		return "pooled"
	default:
		return "unknown"
	}
}

// Strategy is chosen once per batch and is immutable for its duration.
// Limit is the gate capacity for StrategyBounded and the worker count for
// StrategyPooled; zero means "use Options defaults".
type Strategy struct {
	Kind  StrategyKind
	Limit int
}

func Sequential() Strategy     { return Strategy{Kind: StrategySequential} }
func Concurrent() Strategy     { return Strategy{Kind: StrategyConcurrent} }
func Bounded(n int) Strategy   { return Strategy{Kind: StrategyBounded, Limit: n} }
func Pooled(size int) Strategy { return Strategy{Kind: StrategyPooled, Limit: size} }

func (s Strategy) String() string {
	switch s.Kind {
	case StrategyBounded, StrategyPooled:
		return fmt.Sprintf("%s(%d)", s.Kind, s.Limit)
	default:
		return s.Kind.String()
	}
}

// ParseStrategy maps a name to a Strategy. limit applies to bounded and
// pooled only.
func ParseStrategy(name string, limit int) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sequential", "seq":
		return Sequential(), nil
	case "concurrent", "unbounded":
		return Concurrent(), nil
	case "bounded", "semaphore":
		return Bounded(limit), nil
	case "pooled", "pool", "threads":
		return Pooled(limit), nil
	default:
		return Strategy{}, fmt.Errorf("%w: %q", ErrInvalidStrategy, name)
	}
}

// resolve fills a zero limit from opts and validates the result.
func (s Strategy) resolve(opts Options) (Strategy, error) {
	switch s.Kind {
	case StrategySequential, StrategyConcurrent:
		s.Limit = 0
	case StrategyBounded:
		if s.Limit == 0 {
			s.Limit = opts.MaxConcurrency
		}
	case StrategyPooled:
		if s.Limit == 0 {
			s.Limit = opts.PoolSize
		}
	default:
		return s, fmt.Errorf("%w: kind %d", ErrInvalidStrategy, int(s.Kind))
	}
	if s.Limit < 0 {
		return s, fmt.Errorf("%w: %s limit must be positive", ErrInvalidStrategy, s.Kind)
	}
	return s, nil
}
