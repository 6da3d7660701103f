// Package api is the gin HTTP surface over the search pipeline:
// search, health, stats, and prometheus metrics.
package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eventscout/eventscout/pkg/cache"
	"github.com/eventscout/eventscout/pkg/database"
	"github.com/eventscout/eventscout/pkg/models"
	"github.com/eventscout/eventscout/pkg/providers"
	"github.com/eventscout/eventscout/pkg/ratelimit"
)

// SearchRunner is the pipeline contract the API consumes.
type SearchRunner interface {
	Run(ctx context.Context, params models.SearchParams) *models.SearchResult
}

// Deps are the server's collaborators. DB, Events, Optimizer, and
// Limiter may be nil; the corresponding surface degrades.
type Deps struct {
	Pipeline  SearchRunner
	Search    *providers.UnifiedSearch
	DB        *database.Client
	Events    *database.Store
	Caches    map[string]*cache.Store // name → store, reported in /stats
	Optimizer *cache.Optimizer
	Limiter   *ratelimit.Limiter
}

// Server hosts the HTTP surface.
type Server struct {
	deps Deps
}

// NewServer creates the API server.
func NewServer(deps Deps) *Server {
	return &Server{deps: deps}
}

// Router builds the gin engine with all routes and middleware.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(), securityHeaders())

	r.GET("/health", s.healthHandler)
	r.GET("/stats", s.statsHandler)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	v1.POST("/search", s.searchHandler)

	return r
}

// errorResponse is the uniform error body.
type errorResponse struct {
	Error string `json:"error"`
}

func abortWithError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, errorResponse{Error: msg})
}
