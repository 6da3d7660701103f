package parallel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okTask(id string, priority int, quality float64) Task {
	return Task{
		ID:       id,
		Priority: priority,
		Run: func(context.Context) (any, float64, error) {
			return id, quality, nil
		},
	}
}

func TestPool_ResultsInSubmissionOrder(t *testing.T) {
	p := NewPool(Config{MaxConcurrency: 3})
	tasks := []Task{
		okTask("a", 1, 0.5),
		okTask("b", 9, 0.5),
		okTask("c", 5, 0.5),
	}

	results := p.Process(context.Background(), tasks)

	require.Len(t, results, 3)
	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, "b", results[1].ID)
	assert.Equal(t, "c", results[2].ID)
	for _, r := range results {
		assert.True(t, r.Success)
	}
}

func TestPool_HighestPriorityRunsFirst(t *testing.T) {
	var order []string
	var mu sync.Mutex
	record := func(id string) Task {
		return Task{
			ID: id,
			Priority: map[string]int{"low": 1, "mid": 5, "high": 9}[id],
			Run: func(context.Context) (any, float64, error) {
				mu.Lock()
				order = append(order, id)
				mu.Unlock()
				return nil, 0, nil
			},
		}
	}

	// Single worker makes execution order deterministic.
	p := NewPool(Config{MaxConcurrency: 1, MinConcurrency: 1})
	p.Process(context.Background(), []Task{record("low"), record("mid"), record("high")})

	assert.Equal(t, []string{"high", "mid", "low"}, order)
}

func TestPool_PriorityTiesKeepInsertionOrder(t *testing.T) {
	var order []string
	var mu sync.Mutex
	mk := func(id string) Task {
		return Task{ID: id, Priority: 5, Run: func(context.Context) (any, float64, error) {
			mu.Lock()
			order = append(order, id)
			mu.Unlock()
			return nil, 0, nil
		}}
	}

	p := NewPool(Config{MaxConcurrency: 1})
	p.Process(context.Background(), []Task{mk("first"), mk("second"), mk("third")})

	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestPool_ConcurrencyBounded(t *testing.T) {
	var running, peak atomic.Int32
	mk := func(id string) Task {
		return Task{ID: id, Run: func(context.Context) (any, float64, error) {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			running.Add(-1)
			return nil, 0, nil
		}}
	}

	p := NewPool(Config{MaxConcurrency: 2})
	var tasks []Task
	for i := 0; i < 6; i++ {
		tasks = append(tasks, mk(fmt.Sprintf("t%d", i)))
	}
	p.Process(context.Background(), tasks)

	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestPool_TaskError(t *testing.T) {
	boom := errors.New("boom")
	p := NewPool(Config{MaxConcurrency: 1})
	results := p.Process(context.Background(), []Task{
		{ID: "bad", Run: func(context.Context) (any, float64, error) { return nil, 0, boom }},
		okTask("good", 0, 1),
	})

	require.Len(t, results, 2)
	assert.False(t, results[0].Success)
	assert.ErrorIs(t, results[0].Err, boom)
	assert.True(t, results[1].Success)
}

func TestPool_TaskTimeout(t *testing.T) {
	p := NewPool(Config{
		MaxConcurrency: 1,
		KindTimeouts:   map[string]time.Duration{"slow": 20 * time.Millisecond},
	})
	results := p.Process(context.Background(), []Task{{
		ID:   "sleeper",
		Kind: "slow",
		Run: func(ctx context.Context) (any, float64, error) {
			select {
			case <-time.After(time.Second):
				return nil, 0, nil
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			}
		},
	}})

	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.ErrorIs(t, results[0].Err, context.DeadlineExceeded)
	assert.NotErrorIs(t, results[0].Err, ErrTaskCancelled)
}

func TestPool_EarlyTermination(t *testing.T) {
	var executed atomic.Int32
	mk := func(id string, delay time.Duration) Task {
		return Task{ID: id, Run: func(ctx context.Context) (any, float64, error) {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			}
			executed.Add(1)
			return id, 0.95, nil
		}}
	}

	p := NewPool(Config{
		MaxConcurrency:   1,
		EarlyTermination: true,
		MinResults:       2,
		QualityThreshold: 0.9,
	})
	results := p.Process(context.Background(), []Task{
		mk("a", 0), mk("b", 0), mk("c", 0), mk("d", 0), mk("e", 0),
	})

	require.Len(t, results, 5)
	// Two high-quality completions satisfy the bar; the rest are
	// cancelled without running.
	assert.Equal(t, int32(2), executed.Load())
	var cancelled int
	for _, r := range results {
		if r.Err != nil && errors.Is(r.Err, ErrTaskCancelled) {
			cancelled++
		}
	}
	assert.Equal(t, 3, cancelled)
}

func TestPool_EarlyTerminationLetsInFlightTasksFinish(t *testing.T) {
	started := make(chan struct{})
	slow := Task{
		ID:       "slow",
		Priority: 5,
		Run: func(ctx context.Context) (any, float64, error) {
			close(started)
			select {
			case <-time.After(80 * time.Millisecond):
				return "slow-result", 1, nil
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			}
		},
	}
	fast := Task{
		ID:       "fast",
		Priority: 9,
		Run: func(ctx context.Context) (any, float64, error) {
			// Trip the termination bar only once slow is in flight.
			<-started
			return "fast-result", 1, nil
		},
	}

	p := NewPool(Config{
		MaxConcurrency:   2,
		EarlyTermination: true,
		MinResults:       1,
		QualityThreshold: 0.9,
	})
	results := p.Process(context.Background(), []Task{fast, slow, okTask("queued", 1, 1)})

	require.Len(t, results, 3)
	assert.True(t, results[0].Success)
	// The in-flight task keeps its context and completes.
	assert.True(t, results[1].Success, "in-flight task must not be aborted: %v", results[1].Err)
	assert.Equal(t, "slow-result", results[1].Result)
	// The never-started task is the one reported cancelled.
	assert.False(t, results[2].Success)
	assert.ErrorIs(t, results[2].Err, ErrTaskCancelled)
}

func TestPool_NoEarlyTerminationBelowQuality(t *testing.T) {
	var executed atomic.Int32
	mk := func(id string) Task {
		return Task{ID: id, Run: func(context.Context) (any, float64, error) {
			executed.Add(1)
			return id, 0.2, nil
		}}
	}

	p := NewPool(Config{
		MaxConcurrency:   1,
		EarlyTermination: true,
		MinResults:       2,
		QualityThreshold: 0.9,
	})
	p.Process(context.Background(), []Task{mk("a"), mk("b"), mk("c"), mk("d")})

	assert.Equal(t, int32(4), executed.Load())
}

func TestPool_EmptyBatch(t *testing.T) {
	p := NewPool(Config{})
	assert.Nil(t, p.Process(context.Background(), nil))
}
