package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eventscout/eventscout/pkg/cache"
	"github.com/eventscout/eventscout/pkg/resilience"
)

// CacheStats is one cache store's snapshot.
type CacheStats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Size    int     `json:"size"`
	HitRate float64 `json:"hit_rate"`
}

// StatsResponse is the GET /stats body.
type StatsResponse struct {
	Breakers  []resilience.BreakerStats `json:"breakers,omitempty"`
	Caches    map[string]CacheStats     `json:"caches,omitempty"`
	Analytics []cache.AnalyticsSnapshot `json:"analytics,omitempty"`
	RateUsage map[string]any            `json:"rate_usage,omitempty"`
}

// statsHandler handles GET /stats: breaker, cache, and optimiser
// snapshots for operators.
func (s *Server) statsHandler(c *gin.Context) {
	resp := StatsResponse{}

	if s.deps.Search != nil {
		resp.Breakers = s.deps.Search.BreakerStats()
	}

	if len(s.deps.Caches) > 0 {
		resp.Caches = make(map[string]CacheStats, len(s.deps.Caches))
		for name, store := range s.deps.Caches {
			hits, misses, size := store.Stats()
			stats := CacheStats{Hits: hits, Misses: misses, Size: size}
			if total := hits + misses; total > 0 {
				stats.HitRate = float64(hits) / float64(total)
			}
			resp.Caches[name] = stats
		}
	}

	if s.deps.Optimizer != nil {
		resp.Analytics = s.deps.Optimizer.History()
	}

	if s.deps.Limiter != nil {
		resp.RateUsage = map[string]any{}
		for _, service := range []string{"firecrawl", "cse", "gemini", "voyage"} {
			resp.RateUsage[service] = s.deps.Limiter.Usage(service)
		}
	}

	c.JSON(http.StatusOK, resp)
}
