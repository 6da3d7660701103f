package cache

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOptimizer(t *testing.T, caches map[string]*Store) *Optimizer {
	t.Helper()
	o := NewOptimizer(OptimizerConfig{
		InvalidationBatchSize: 10,
		InvalidationDelay:     10 * time.Millisecond,
		WarmingInterval:       25 * time.Millisecond,
		WarmingBatchSize:      50,
		WarmingTimeout:        time.Second,
		MaxWarmingConcurrency: 4,
		DefaultTTL:            time.Minute,
	}, caches)
	return o
}

func TestOptimizer_InvalidateRoutesByPrefix(t *testing.T) {
	search := NewStore(10, 0)
	analysis := NewStore(10, 0)
	defer search.Close()
	defer analysis.Close()

	o := newTestOptimizer(t, map[string]*Store{"search": search, "analysis": analysis})

	search.Set("search:q1", "v", time.Minute)
	analysis.Set("analysis:a1", "v", time.Minute)

	o.Invalidate("search:q1")

	_, ok := search.Get("search:q1")
	assert.False(t, ok)
	_, ok = analysis.Get("analysis:a1")
	assert.True(t, ok, "other caches untouched")
}

func TestOptimizer_DependentInvalidation(t *testing.T) {
	search := NewStore(10, 0)
	speaker := NewStore(10, 0)
	defer search.Close()
	defer speaker.Close()

	o := newTestOptimizer(t, map[string]*Store{"search": search, "speaker": speaker})
	o.Start(context.Background())
	defer o.Stop()

	search.Set("search:q1", "v", time.Minute)
	speaker.Set("speaker:s1", "v", time.Minute)
	o.AddDependency("search:q1", "speaker:s1")

	o.Invalidate("search:q1")

	require.Eventually(t, func() bool {
		_, ok := speaker.Get("speaker:s1")
		return !ok
	}, time.Second, 10*time.Millisecond, "dependent should be drained from the queue")
}

func TestOptimizer_Warming(t *testing.T) {
	search := NewStore(10, 0)
	defer search.Close()

	o := newTestOptimizer(t, map[string]*Store{"search": search})

	var calls atomic.Int32
	o.RegisterStrategy(WarmingStrategy{
		Name:     "popular-queries",
		Priority: 10,
		Enabled:  true,
		QueryGenerator: func(ctx context.Context) []string {
			return []string{"search:legal compliance:DE"}
		},
		DataProvider: func(ctx context.Context, key string) (any, error) {
			calls.Add(1)
			return "warmed", nil
		},
	})

	o.Start(context.Background())
	defer o.Stop()

	require.Eventually(t, func() bool {
		v, ok := search.Get("search:legal compliance:DE")
		return ok && v == "warmed"
	}, time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}

func TestOptimizer_DisabledStrategyNotRun(t *testing.T) {
	search := NewStore(10, 0)
	defer search.Close()

	o := newTestOptimizer(t, map[string]*Store{"search": search})

	var calls atomic.Int32
	o.RegisterStrategy(WarmingStrategy{
		Name:           "disabled",
		Enabled:        false,
		QueryGenerator: func(ctx context.Context) []string { return []string{"search:x"} },
		DataProvider: func(ctx context.Context, key string) (any, error) {
			calls.Add(1)
			return nil, nil
		},
	})

	o.Start(context.Background())
	time.Sleep(80 * time.Millisecond)
	o.Stop()

	assert.Equal(t, int32(0), calls.Load())
}

func TestOptimizer_AnalyticsSnapshot(t *testing.T) {
	search := NewStore(10, 0)
	defer search.Close()

	o := newTestOptimizer(t, map[string]*Store{"search": search})

	search.Set("search:k", "v", time.Minute)
	search.Get("search:k")
	search.Get("search:missing")
	o.ObserveResponseTime(20 * time.Millisecond)

	o.snapshot()

	history := o.History()
	require.Len(t, history, 1)
	assert.Equal(t, int64(2), history[0].TotalRequests)
	assert.InDelta(t, 0.5, history[0].HitRate, 0.001)
	assert.Equal(t, 1, history[0].CacheSize)
	assert.InDelta(t, 20, history[0].AverageResponseTime, 0.001)
}
