// Package providers implements the unified multi-provider search front
// end: Firecrawl, Google CSE, and the curated database, behind one
// normalised cache and per-provider circuit breakers and rate limits.
package providers

import (
	"context"

	"github.com/eventscout/eventscout/pkg/models"
)

// Request is one unified search invocation.
type Request struct {
	Query    string
	Country  string // upper-case alpha-2 or empty
	DateFrom string // YYYY-MM-DD or empty
	DateTo   string
	Limit    int
	UseCache bool
}

// Item is one search hit. Providers may return bare URLs or enriched
// records; downstream code accepts both.
type Item struct {
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Markdown    string `json:"markdown,omitempty"`
}

// Response is the unified search output.
type Response struct {
	Items     []Item        `json:"items"`
	Provider  models.Source `json:"provider,omitempty"`  // the provider whose items were chosen
	Providers []string      `json:"providers,omitempty"` // every provider attempted
	CacheHit  bool          `json:"cache_hit"`
}

// SearchProvider is one fan-out arm.
type SearchProvider interface {
	Name() models.Source
	Search(ctx context.Context, req Request) ([]Item, error)
}
