// Package pipeline contains the search orchestrator: the staged
// pipeline that turns a query into ranked, quality-gated event
// candidates.
package pipeline

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/eventscout/eventscout/pkg/cache"
	"github.com/eventscout/eventscout/pkg/config"
	"github.com/eventscout/eventscout/pkg/extract"
	"github.com/eventscout/eventscout/pkg/metrics"
	"github.com/eventscout/eventscout/pkg/models"
	"github.com/eventscout/eventscout/pkg/parallel"
	"github.com/eventscout/eventscout/pkg/prioritize"
	"github.com/eventscout/eventscout/pkg/providers"
	"github.com/eventscout/eventscout/pkg/quality"
	"github.com/eventscout/eventscout/pkg/rerank"
)

// ProfileLoader fetches the per-tenant precision profile. Failures are
// tolerated; the pipeline proceeds without a profile.
type ProfileLoader interface {
	Load(ctx context.Context) (*models.UserProfile, error)
}

// Deps are the orchestrator's collaborators. Profiles, Optimizer, and
// ResultCache may be nil.
type Deps struct {
	Config      *config.Config
	Search      *providers.UnifiedSearch
	Gate        *rerank.Gate
	Prioritizer *prioritize.Prioritizer
	Extractor   *extract.Extractor
	Profiles    ProfileLoader
	Optimizer   *cache.Optimizer

	// ResultCache holds final ranked event lists under the same
	// provider-agnostic key the unified search uses.
	ResultCache    *cache.Store
	ResultCacheTTL time.Duration
}

// Orchestrator runs the staged pipeline. Stateless across invocations
// apart from the shared caches, breakers, and limiters its
// collaborators carry.
type Orchestrator struct {
	deps Deps

	discoveryPool  *parallel.Pool
	extractionPool *parallel.Pool

	// flight collapses concurrent identical invocations into one
	// pipeline execution.
	flight singleflight.Group
}

// NewOrchestrator wires the pools from config.
func NewOrchestrator(deps Deps) *Orchestrator {
	cfg := deps.Config
	return &Orchestrator{
		deps: deps,
		discoveryPool: parallel.NewPool(parallel.Config{
			MaxConcurrency: cfg.Parallel.MaxConcurrentDiscoveries,
			DefaultTimeout: cfg.Timeouts.Discovery,
		}),
		extractionPool: parallel.NewPool(parallel.Config{
			MaxConcurrency:   cfg.Parallel.MaxConcurrentExtractions,
			EarlyTermination: cfg.Parallel.EnableEarlyTermination,
			MinResults:       cfg.Search.MinSolidHits,
			QualityThreshold: cfg.Thresholds.Confidence,
			DefaultTimeout:   cfg.Timeouts.Extraction,
		}),
	}
}

// run carries per-invocation state.
type run struct {
	params  models.SearchParams
	profile *models.UserProfile
	window  models.DateWindow

	logs    []models.StageLog
	timings map[string]int64
	meta    models.SearchMetadata

	// sources remembers which provider produced each URL.
	sources map[string]models.Source
}

func (r *run) log(stage, message string, data map[string]any) {
	r.logs = append(r.logs, models.StageLog{
		Stage:     stage,
		Message:   message,
		Timestamp: time.Now(),
		Data:      data,
	})
}

func (r *run) time(stage string, start time.Time) {
	r.timings[stage] += time.Since(start).Milliseconds()
}

// resultKey is the provider-agnostic key final results are cached and
// deduplicated under.
func resultKey(params models.SearchParams) string {
	return providers.CacheKey(providers.Request{
		Query:    params.UserText,
		Country:  params.Country,
		DateFrom: params.DateFrom,
		DateTo:   params.DateTo,
	})
}

func newRun(params models.SearchParams) *run {
	return &run{
		params:  params,
		window:  params.Window(),
		timings: make(map[string]int64),
		sources: make(map[string]models.Source),
		meta: models.SearchMetadata{
			RequestID:     uuid.NewString(),
			OriginalQuery: params.UserText,
			Country:       params.Country,
		},
	}
}

// Run executes the full pipeline. It never fails: catastrophic errors
// yield an empty result carrying the logs collected so far. Identical
// concurrent invocations share one execution; repeated invocations
// within the result TTL are served from cache.
func (o *Orchestrator) Run(ctx context.Context, params models.SearchParams) *models.SearchResult {
	start := time.Now()
	key := resultKey(params)

	if o.deps.ResultCache != nil {
		if v, ok := o.deps.ResultCache.Get(key); ok {
			metrics.CacheOps.WithLabelValues("results", "hit").Inc()
			events := v.([]models.EventCandidate)
			r := newRun(params)
			r.meta.CacheHit = true
			r.meta.SolidCandidates = len(events)
			r.meta.LowConfidence = len(events) < o.deps.Config.Search.MinSolidHits
			r.log("cache_hit", "served from result cache", map[string]any{"events": len(events)})
			return o.finish(r, append([]models.EventCandidate{}, events...), start)
		}
		metrics.CacheOps.WithLabelValues("results", "miss").Inc()
	}

	v, _, shared := o.flight.Do(key, func() (any, error) {
		return o.execute(ctx, params), nil
	})
	// inner may be read concurrently by every caller that joined the
	// flight; it is never written after execute returns.
	inner := v.(*models.SearchResult)

	if !shared {
		return &models.SearchResult{
			Events:   inner.Events,
			Metadata: withDuration(inner.Metadata, start),
			Logs:     inner.Logs,
		}
	}

	// A concurrent identical invocation already did the work; report
	// its events under this caller's request id.
	r := newRun(params)
	r.meta = inner.Metadata
	r.meta.RequestID = uuid.NewString()
	r.log("in_flight_dedup", "joined concurrent identical invocation", nil)
	return &models.SearchResult{
		Events:   inner.Events,
		Metadata: withDuration(r.meta, start),
		Logs:     append(append([]models.StageLog{}, inner.Logs...), r.logs...),
	}
}

func withDuration(meta models.SearchMetadata, start time.Time) models.SearchMetadata {
	meta.TotalDuration = time.Since(start).Milliseconds()
	return meta
}

// execute is the single-flight body: the staged pipeline proper.
func (o *Orchestrator) execute(ctx context.Context, params models.SearchParams) (result *models.SearchResult) {
	start := time.Now()
	r := newRun(params)

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Pipeline panicked", "requestId", r.meta.RequestID, "panic", rec)
			r.log("pipeline", "catastrophic failure, returning empty result", map[string]any{"panic": rec})
			result = o.finish(r, nil, start)
		}
	}()

	slog.Info("Pipeline started",
		"requestId", r.meta.RequestID,
		"query", params.UserText,
		"country", params.Country,
		"window", params.DateFrom+".."+params.DateTo)

	r.profile = o.loadProfile(ctx, r)

	query := BuildQuery(params, r.profile, o.deps.Config.Templates)
	r.log("query", "built discovery query", map[string]any{"query": query})

	solid := o.runWindow(ctx, r, query, r.window, models.DateRangeOriginal)

	// Auto-expand: one retry over a wider window when results are sparse.
	minSolid := o.deps.Config.Search.MinSolidHits
	if len(solid) < minSolid && o.deps.Config.Search.AllowAutoExpand {
		if expanded, ok := quality.ExpandWindow(r.window, len(solid), minSolid); ok {
			r.meta.Expanded = true
			r.meta.ExpandedWindowDays = expanded.Days()
			r.log("auto_expand", "widening date window", map[string]any{
				"solidHits": len(solid),
				"days":      expanded.Days(),
			})

			expandedParams := params
			expandedParams.DateTo = expanded.To.Format(models.DateLayout)
			r.params = expandedParams
			more := o.runWindow(ctx, r, query, expanded, quality.RangeSource(expanded.Days()))
			solid = mergeCandidates(solid, more)
		}
	}

	r.meta.SolidCandidates = len(solid)
	r.meta.LowConfidence = len(solid) < minSolid

	ranked := o.rank(solid)
	if o.deps.ResultCache != nil && len(ranked) > 0 {
		ttl := o.deps.ResultCacheTTL
		if ttl == 0 {
			ttl = 30 * time.Minute
		}
		o.deps.ResultCache.Set(resultKey(params), append([]models.EventCandidate{}, ranked...), ttl)
		metrics.CacheOps.WithLabelValues("results", "set").Inc()
	}
	return o.finish(r, ranked, start)
}

// runWindow executes Discovery → Rerank → Filter → Prioritise →
// Extract → Quality for one date window.
func (o *Orchestrator) runWindow(ctx context.Context, r *run, query string, window models.DateWindow, rangeSource models.DateRangeSource) []models.EventCandidate {
	urls := o.discover(ctx, r, query)
	if len(urls) == 0 {
		r.log("discovery", "no candidate urls", nil)
		return nil
	}

	gateStart := time.Now()
	gated, gateMetrics := o.deps.Gate.Apply(ctx, urls, r.params, r.profile.Industry())
	gated = quality.FilterEventURLs(gated)
	r.time("rerank", gateStart)
	r.log("rerank", "voyage gate applied", map[string]any{
		"kept":               len(gated),
		"droppedAggregators": gateMetrics.DroppedAggregators,
		"backstopUsed":       gateMetrics.BackstopUsed,
		"reranked":           gateMetrics.Reranked,
	})

	prioStart := time.Now()
	prioritised, prioMetrics := o.deps.Prioritizer.Prioritize(ctx, gated, r.params, r.profile)
	r.time("prioritisation", prioStart)
	r.meta.PrioritisedCandidates += len(prioritised)
	r.log("prioritisation", "urls scored", map[string]any{
		"kept":      len(prioritised),
		"chunks":    prioMetrics.Chunks,
		"fallbacks": prioMetrics.FallbackURLs,
	})

	if max := o.deps.Config.Limits.MaxExtractions; len(prioritised) > max {
		prioritised = prioritised[:max]
	}

	extractStart := time.Now()
	candidates := o.extractAll(ctx, r, prioritised, rangeSource)
	r.time("extraction", extractStart)
	r.meta.ExtractedCandidates += len(candidates)
	r.log("extraction", "candidates extracted", map[string]any{"count": len(candidates)})

	qualityStart := time.Now()
	solid := quality.FilterSolid(candidates, window, o.deps.Config.Thresholds.ParseQuality)
	r.time("quality", qualityStart)
	r.log("quality", "solid hits gated", map[string]any{
		"extracted": len(candidates),
		"solid":     len(solid),
	})
	return solid
}

// discover runs the four query variations through the task pool and
// unions the results.
func (o *Orchestrator) discover(ctx context.Context, r *run, query string) []models.CandidateURL {
	defer r.time("discovery", time.Now())

	variations := QueryVariations(query)
	tasks := make([]parallel.Task, len(variations))
	for i, variation := range variations {
		req := providers.Request{
			Query:    variation,
			Country:  r.params.Country,
			DateFrom: r.params.DateFrom,
			DateTo:   r.params.DateTo,
			UseCache: true,
		}
		tasks[i] = parallel.Task{
			ID:   variation,
			Kind: "discovery",
			// Base query first when the pool is saturated.
			Priority: len(variations) - i,
			Run: func(taskCtx context.Context) (any, float64, error) {
				resp, err := o.deps.Search.Search(taskCtx, req)
				return resp, 0, err
			},
		}
	}

	seen := make(map[string]struct{})
	providersUsed := make(map[string]struct{})
	var urls []models.CandidateURL
	rawCount := 0

	for _, res := range o.discoveryPool.Process(ctx, tasks) {
		if !res.Success {
			r.log("discovery", "variation failed", map[string]any{"variation": res.ID, "error": res.Err.Error()})
			continue
		}
		resp := res.Result.(*providers.Response)
		if resp.CacheHit {
			r.meta.CacheHit = true
		}
		source := resp.Provider
		for _, p := range resp.Providers {
			providersUsed[p] = struct{}{}
		}
		rawCount += len(resp.Items)
		for _, item := range resp.Items {
			cu, ok := models.NewCandidateURL(item.URL)
			if !ok {
				continue
			}
			if _, dup := seen[cu.URL]; dup {
				continue
			}
			seen[cu.URL] = struct{}{}
			if source.IsValid() {
				r.sources[cu.URL] = source
			}
			urls = append(urls, cu)
		}
	}

	// Raw discovery volume, before gate and filters.
	r.meta.TotalCandidates += rawCount
	for p := range providersUsed {
		if !contains(r.meta.ProvidersUsed, p) {
			r.meta.ProvidersUsed = append(r.meta.ProvidersUsed, p)
		}
	}
	sort.Strings(r.meta.ProvidersUsed)

	if max := o.deps.Config.Limits.MaxCandidates; len(urls) > max {
		urls = urls[:max]
	}
	r.log("discovery", "urls discovered", map[string]any{
		"raw":    rawCount,
		"unique": len(urls),
	})
	return urls
}

// extractAll runs the extractor over prioritised URLs through the
// bounded pool. Failed extractions drop their URL.
func (o *Orchestrator) extractAll(ctx context.Context, r *run, prioritised []models.PrioritisedURL, rangeSource models.DateRangeSource) []models.EventCandidate {
	tasks := make([]parallel.Task, len(prioritised))
	for i, p := range prioritised {
		source := r.sources[p.URL]
		if !source.IsValid() {
			source = models.SourceFirecrawl
		}
		tasks[i] = parallel.Task{
			ID:       p.URL,
			Kind:     "extract",
			Priority: int(p.Score * 100),
			Run: func(taskCtx context.Context) (any, float64, error) {
				candidate, err := o.deps.Extractor.Extract(taskCtx, p.URL, r.params, source)
				if err != nil {
					return nil, 0, err
				}
				return candidate, candidate.Confidence, nil
			},
		}
	}

	var candidates []models.EventCandidate
	for _, res := range o.extractionPool.Process(ctx, tasks) {
		if !res.Success {
			slog.Debug("Extraction dropped URL", "url", res.ID, "error", res.Err)
			continue
		}
		candidate := res.Result.(*models.EventCandidate)
		candidate.DateRangeSource = rangeSource
		candidates = append(candidates, *candidate)
	}
	return candidates
}

// rank orders candidates by confidence and applies the final floor.
func (o *Orchestrator) rank(candidates []models.EventCandidate) []models.EventCandidate {
	floor := o.deps.Config.Thresholds.Confidence
	kept := make([]models.EventCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Confidence >= floor {
			kept = append(kept, c)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Confidence > kept[j].Confidence })

	if max := o.deps.Config.Limits.MaxExtractions; len(kept) > max {
		kept = kept[:max]
	}
	return kept
}

func (o *Orchestrator) loadProfile(ctx context.Context, r *run) *models.UserProfile {
	if o.deps.Profiles == nil {
		return nil
	}
	profile, err := o.deps.Profiles.Load(ctx)
	if err != nil {
		r.log("profile", "profile unavailable, proceeding without", map[string]any{"error": err.Error()})
		return nil
	}
	return profile
}

func (o *Orchestrator) finish(r *run, events []models.EventCandidate, start time.Time) *models.SearchResult {
	r.meta.StageTimings = r.timings
	r.meta.TotalDuration = time.Since(start).Milliseconds()

	if o.deps.Optimizer != nil {
		o.deps.Optimizer.ObserveResponseTime(time.Since(start))
	}

	slog.Info("Pipeline finished",
		"requestId", r.meta.RequestID,
		"events", len(events),
		"solid", r.meta.SolidCandidates,
		"expanded", r.meta.Expanded,
		"lowConfidence", r.meta.LowConfidence,
		"durationMs", r.meta.TotalDuration)

	if events == nil {
		events = []models.EventCandidate{}
	}
	return &models.SearchResult{Events: events, Metadata: r.meta, Logs: r.logs}
}

// mergeCandidates unions two candidate sets, first set wins on URL.
func mergeCandidates(a, b []models.EventCandidate) []models.EventCandidate {
	seen := make(map[string]struct{}, len(a))
	out := append([]models.EventCandidate{}, a...)
	for _, c := range a {
		seen[strings.ToLower(c.URL)] = struct{}{}
	}
	for _, c := range b {
		if _, dup := seen[strings.ToLower(c.URL)]; dup {
			continue
		}
		seen[strings.ToLower(c.URL)] = struct{}{}
		out = append(out, c)
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
