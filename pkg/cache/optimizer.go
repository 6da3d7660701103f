package cache

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// WarmingStrategy produces keys worth pre-populating and the data to
// populate them with. Strategies are run by priority on the warming
// interval; warming never blocks user requests.
type WarmingStrategy struct {
	Name           string
	Priority       int // higher runs first
	Enabled        bool
	QueryGenerator func(ctx context.Context) []string
	DataProvider   func(ctx context.Context, key string) (any, error)
	TTL            time.Duration // zero → optimiser default
}

// AnalyticsSnapshot is one rolling-history record across all registered
// caches.
type AnalyticsSnapshot struct {
	Timestamp           time.Time `json:"timestamp"`
	HitRate             float64   `json:"hit_rate"`
	MissRate            float64   `json:"miss_rate"`
	TotalRequests       int64     `json:"total_requests"`
	AverageResponseTime float64   `json:"average_response_time_ms"`
	CacheSize           int       `json:"cache_size"`
	TopKeys             []string  `json:"top_keys,omitempty"`
}

// OptimizerConfig bounds the optimiser's background work.
type OptimizerConfig struct {
	InvalidationBatchSize int
	InvalidationDelay     time.Duration
	WarmingInterval       time.Duration
	WarmingBatchSize      int
	WarmingTimeout        time.Duration // per key
	MaxWarmingConcurrency int
	DefaultTTL            time.Duration
	HistorySize           int
}

// Optimizer coordinates the three cross-cache concerns: dependency
// driven invalidation, background warming, and analytics. It holds
// references to the caches; the caches know nothing about it.
type Optimizer struct {
	cfg OptimizerConfig

	mu         sync.Mutex
	caches     map[string]*Store // prefix ("search", "analysis", "speaker") → store
	deps       map[string][]string
	queue      []string
	strategies []WarmingStrategy
	history    []AnalyticsSnapshot

	responseTimes []time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewOptimizer creates an optimiser over the given prefix→store map.
// Call Start to launch the background loops and Stop on shutdown.
func NewOptimizer(cfg OptimizerConfig, caches map[string]*Store) *Optimizer {
	if cfg.InvalidationBatchSize <= 0 {
		cfg.InvalidationBatchSize = 20
	}
	if cfg.InvalidationDelay <= 0 {
		cfg.InvalidationDelay = 100 * time.Millisecond
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 100
	}
	return &Optimizer{
		cfg:    cfg,
		caches: caches,
		deps:   make(map[string][]string),
		stopCh: make(chan struct{}),
	}
}

// Start launches the invalidation drain, warming, and analytics loops.
func (o *Optimizer) Start(ctx context.Context) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.runInvalidationDrain(ctx)
	}()

	if o.cfg.WarmingInterval > 0 {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			o.runWarming(ctx)
		}()
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.runAnalytics(ctx)
	}()

	slog.Info("Cache optimizer started",
		"warming_interval", o.cfg.WarmingInterval,
		"invalidation_batch", o.cfg.InvalidationBatchSize)
}

// Stop terminates the background loops and waits for them.
func (o *Optimizer) Stop() {
	o.stopOnce.Do(func() { close(o.stopCh) })
	o.wg.Wait()
	slog.Info("Cache optimizer stopped")
}

// AddDependency records that dependent must be invalidated whenever key is.
func (o *Optimizer) AddDependency(key, dependent string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.deps[key] = append(o.deps[key], dependent)
}

// Invalidate deletes key from its cache and enqueues all dependents for
// batched invalidation.
func (o *Optimizer) Invalidate(key string) {
	o.route(key)
	o.mu.Lock()
	defer o.mu.Unlock()
	o.queue = append(o.queue, o.deps[key]...)
}

// RegisterStrategy adds a warming strategy.
func (o *Optimizer) RegisterStrategy(s WarmingStrategy) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.strategies = append(o.strategies, s)
	sort.SliceStable(o.strategies, func(i, j int) bool {
		return o.strategies[i].Priority > o.strategies[j].Priority
	})
}

// ObserveResponseTime feeds the analytics loop.
func (o *Optimizer) ObserveResponseTime(d time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.responseTimes = append(o.responseTimes, d)
	if len(o.responseTimes) > 1000 {
		o.responseTimes = o.responseTimes[len(o.responseTimes)-1000:]
	}
}

// History returns a copy of the analytics history, newest last.
func (o *Optimizer) History() []AnalyticsSnapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]AnalyticsSnapshot, len(o.history))
	copy(out, o.history)
	return out
}

// route deletes key from the store matching its prefix. Keys without a
// recognised prefix are ignored.
func (o *Optimizer) route(key string) {
	for prefix, store := range o.caches {
		if strings.HasPrefix(key, prefix+":") {
			store.Delete(key)
			return
		}
	}
}

func (o *Optimizer) runInvalidationDrain(ctx context.Context) {
	ticker := time.NewTicker(o.cfg.InvalidationDelay)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			o.drainBatch()
		case <-o.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (o *Optimizer) drainBatch() {
	o.mu.Lock()
	n := len(o.queue)
	if n > o.cfg.InvalidationBatchSize {
		n = o.cfg.InvalidationBatchSize
	}
	batch := o.queue[:n]
	o.queue = o.queue[n:]
	// Cascading: dependents of dependents join the queue.
	for _, key := range batch {
		o.queue = append(o.queue, o.deps[key]...)
	}
	o.mu.Unlock()

	for _, key := range batch {
		o.route(key)
	}
	if n > 0 {
		slog.Debug("Invalidated cache batch", "count", n)
	}
}

func (o *Optimizer) runWarming(ctx context.Context) {
	ticker := time.NewTicker(o.cfg.WarmingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			o.warmOnce(ctx)
		case <-o.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// warmOnce runs one warming pass: enabled strategies by priority, up to
// WarmingBatchSize keys total, MaxWarmingConcurrency keys in flight.
func (o *Optimizer) warmOnce(ctx context.Context) {
	o.mu.Lock()
	strategies := make([]WarmingStrategy, len(o.strategies))
	copy(strategies, o.strategies)
	o.mu.Unlock()

	budget := o.cfg.WarmingBatchSize
	sem := make(chan struct{}, max(1, o.cfg.MaxWarmingConcurrency))
	var wg sync.WaitGroup

	for _, strat := range strategies {
		if !strat.Enabled || budget <= 0 {
			continue
		}
		keys := strat.QueryGenerator(ctx)
		if len(keys) > budget {
			keys = keys[:budget]
		}
		budget -= len(keys)

		for _, key := range keys {
			wg.Add(1)
			sem <- struct{}{}
			go func(strat WarmingStrategy, key string) {
				defer wg.Done()
				defer func() { <-sem }()
				o.warmKey(ctx, strat, key)
			}(strat, key)
		}
	}
	wg.Wait()
}

func (o *Optimizer) warmKey(ctx context.Context, strat WarmingStrategy, key string) {
	warmCtx, cancel := context.WithTimeout(ctx, o.cfg.WarmingTimeout)
	defer cancel()

	data, err := strat.DataProvider(warmCtx, key)
	if err != nil {
		slog.Debug("Cache warming failed", "strategy", strat.Name, "key", key, "error", err)
		return
	}

	ttl := strat.TTL
	if ttl == 0 {
		ttl = o.cfg.DefaultTTL
	}
	for prefix, store := range o.caches {
		if strings.HasPrefix(key, prefix+":") {
			store.Set(key, data, ttl)
			return
		}
	}
}

func (o *Optimizer) runAnalytics(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			o.snapshot()
		case <-o.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (o *Optimizer) snapshot() {
	var hits, misses int64
	size := 0
	var top []string
	for _, store := range o.caches {
		h, m, s := store.Stats()
		hits += h
		misses += m
		size += s
		keys := store.Keys()
		if len(keys) > 3 {
			keys = keys[:3]
		}
		top = append(top, keys...)
	}

	total := hits + misses
	snap := AnalyticsSnapshot{
		Timestamp:     time.Now(),
		TotalRequests: total,
		CacheSize:     size,
		TopKeys:       top,
	}
	if total > 0 {
		snap.HitRate = float64(hits) / float64(total)
		snap.MissRate = float64(misses) / float64(total)
	}

	o.mu.Lock()
	var sum time.Duration
	for _, d := range o.responseTimes {
		sum += d
	}
	if len(o.responseTimes) > 0 {
		snap.AverageResponseTime = float64(sum.Milliseconds()) / float64(len(o.responseTimes))
	}
	o.history = append(o.history, snap)
	if len(o.history) > o.cfg.HistorySize {
		o.history = o.history[len(o.history)-o.cfg.HistorySize:]
	}
	o.mu.Unlock()
}
