package providers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/eventscout/eventscout/pkg/cache"
	"github.com/eventscout/eventscout/pkg/metrics"
	"github.com/eventscout/eventscout/pkg/models"
	"github.com/eventscout/eventscout/pkg/ratelimit"
	"github.com/eventscout/eventscout/pkg/resilience"
)

// Per-provider fan-out deadlines. Firecrawl renders pages and is slow;
// the database is local and must answer immediately.
const (
	firecrawlDeadline = 40 * time.Second
	cseDeadline       = 5 * time.Second
	databaseDeadline  = 2 * time.Second
)

// ErrRateLimited reports that the per-minute budget for a provider was
// spent; the unified search degrades to the next provider.
var ErrRateLimited = fmt.Errorf("provider rate limited")

// UnifiedConfig tunes the unified search front end.
type UnifiedConfig struct {
	CacheTTL time.Duration // unified result cache TTL, default 30 min
}

// UnifiedSearch fans a query out to Firecrawl, CSE, and the database,
// picks the first non-empty result by preference order, and caches the
// chosen response under a provider-agnostic key.
type UnifiedSearch struct {
	firecrawl SearchProvider
	cse       SearchProvider
	database  SearchProvider

	breakers map[models.Source]*resilience.Breaker
	limiter  *ratelimit.Limiter
	cache    *cache.Store
	cacheTTL time.Duration

	// In-flight dedup: concurrent equivalent Firecrawl searches share
	// one provider call.
	flight singleflight.Group
}

// NewUnifiedSearch wires the three provider arms.
func NewUnifiedSearch(
	firecrawl, cse, database SearchProvider,
	limiter *ratelimit.Limiter,
	store *cache.Store,
	cfg UnifiedConfig,
) *UnifiedSearch {
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = 30 * time.Minute
	}

	mkBreaker := func(name models.Source, callTimeout time.Duration) *resilience.Breaker {
		bc := resilience.DefaultBreakerConfig()
		bc.CallTimeout = callTimeout
		return resilience.NewBreaker(string(name), bc)
	}

	return &UnifiedSearch{
		firecrawl: firecrawl,
		cse:       cse,
		database:  database,
		breakers: map[models.Source]*resilience.Breaker{
			models.SourceFirecrawl: mkBreaker(models.SourceFirecrawl, firecrawlDeadline),
			models.SourceCSE:       mkBreaker(models.SourceCSE, cseDeadline),
			models.SourceDatabase:  mkBreaker(models.SourceDatabase, databaseDeadline),
		},
		limiter:  limiter,
		cache:    store,
		cacheTTL: ttl,
	}
}

// BreakerStats exposes the per-provider breaker snapshots.
func (u *UnifiedSearch) BreakerStats() []resilience.BreakerStats {
	stats := make([]resilience.BreakerStats, 0, len(u.breakers))
	for _, b := range u.breakers {
		stats = append(stats, b.Stats())
	}
	return stats
}

// Search runs the unified protocol: cache lookup, parallel fan-out,
// preference pick, cache write.
func (u *UnifiedSearch) Search(ctx context.Context, req Request) (*Response, error) {
	key := CacheKey(req)
	if req.UseCache {
		if cached, ok := u.cache.Get(key); ok {
			if resp, ok := cached.(*Response); ok {
				out := *resp
				out.CacheHit = true
				metrics.CacheOps.WithLabelValues("search", "hit").Inc()
				slog.Debug("Unified search cache hit", "key", key)
				return &out, nil
			}
		}
		metrics.CacheOps.WithLabelValues("search", "miss").Inc()
	}

	type armResult struct {
		source models.Source
		items  []Item
		err    error
	}

	arms := []struct {
		source   models.Source
		provider SearchProvider
	}{
		{models.SourceFirecrawl, u.firecrawl},
		{models.SourceCSE, u.cse},
		{models.SourceDatabase, u.database},
	}

	results := make([]armResult, len(arms))
	var g errgroup.Group
	for i, arm := range arms {
		g.Go(func() error {
			items, err := u.callProvider(ctx, arm.source, arm.provider, req)
			results[i] = armResult{source: arm.source, items: items, err: err}
			// An arm failure degrades to the next provider, never the
			// whole fan-out.
			return nil
		})
	}
	_ = g.Wait()

	resp := &Response{}
	for _, r := range results {
		resp.Providers = append(resp.Providers, string(r.source))
		if r.err != nil {
			slog.Debug("Provider failed", "provider", r.source, "error", r.err)
		}
	}

	// Preference order: first non-empty wins.
	for _, r := range results {
		if r.err == nil && len(r.items) > 0 {
			resp.Items = r.items
			resp.Provider = r.source
			break
		}
	}

	if len(resp.Items) > 0 && req.UseCache {
		stored := *resp
		u.cache.Set(key, &stored, u.cacheTTL)
		metrics.CacheOps.WithLabelValues("search", "set").Inc()
	}

	slog.Info("Unified search complete",
		"query", NormalizeQuery(req.Query),
		"provider", resp.Provider,
		"items", len(resp.Items))
	return resp, nil
}

// callProvider runs one arm under its rate limiter, circuit breaker,
// and fan-out deadline. Firecrawl additionally goes through the
// in-flight dedup group.
func (u *UnifiedSearch) callProvider(ctx context.Context, source models.Source, provider SearchProvider, req Request) ([]Item, error) {
	if !u.limiter.Allow(string(source)) {
		metrics.ProviderCalls.WithLabelValues(string(source), "rate_limited").Inc()
		return nil, fmt.Errorf("%s: %w", source, ErrRateLimited)
	}

	call := func() ([]Item, error) {
		var items []Item
		err := u.breakers[source].Execute(ctx, func(callCtx context.Context) error {
			var searchErr error
			items, searchErr = provider.Search(callCtx, req)
			return searchErr
		})
		if err != nil {
			metrics.ProviderCalls.WithLabelValues(string(source), "failure").Inc()
		} else {
			metrics.ProviderCalls.WithLabelValues(string(source), "success").Inc()
		}
		return items, err
	}

	if source == models.SourceFirecrawl {
		v, err, shared := u.flight.Do(DedupKey(req), func() (any, error) {
			items, err := call()
			return items, err
		})
		if shared {
			slog.Debug("In-flight dedup hit", "key", DedupKey(req))
		}
		if err != nil {
			return nil, err
		}
		return v.([]Item), nil
	}
	return call()
}
