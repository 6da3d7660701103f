package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eventscout/eventscout/pkg/metrics"
	"github.com/eventscout/eventscout/pkg/models"
	"github.com/eventscout/eventscout/pkg/quality"
)

// searchHandler handles POST /api/v1/search: one pipeline run.
func (s *Server) searchHandler(c *gin.Context) {
	var params models.SearchParams
	if err := c.ShouldBindJSON(&params); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := params.Validate(); err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	start := time.Now()
	result := s.deps.Pipeline.Run(c.Request.Context(), params)

	metrics.ObserveSearch(time.Since(start), len(result.Events),
		result.Metadata.CacheHit, result.Metadata.Expanded)
	metrics.ObserveStages(result.Metadata.StageTimings)

	s.persistEvents(c, result, params)

	c.JSON(http.StatusOK, result)
}

// persistEvents writes solid hits into the curated store, best effort.
// The search response never waits on or fails because of persistence.
func (s *Server) persistEvents(c *gin.Context, result *models.SearchResult, params models.SearchParams) {
	if s.deps.Events == nil || len(result.Events) == 0 || result.Metadata.CacheHit {
		return
	}
	window := params.Window()
	solid := quality.FilterSolid(result.Events, window, quality.DefaultThreshold)
	if len(solid) == 0 {
		return
	}
	if err := s.deps.Events.UpsertEvents(c.Request.Context(), solid); err != nil {
		slog.Warn("Persisting discovered events failed", "error", err)
	}
}
