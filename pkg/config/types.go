// Package config loads, merges, and validates the eventscout.yaml
// configuration. Entry point: Initialize.
package config

import (
	"time"

	"github.com/eventscout/eventscout/pkg/models"
)

// Config is the fully merged, validated runtime configuration.
type Config struct {
	Thresholds Thresholds                `yaml:"thresholds"`
	Limits     Limits                    `yaml:"limits"`
	Timeouts   Timeouts                  `yaml:"timeouts"`
	Parallel   Parallel                  `yaml:"parallel"`
	Search     Search                    `yaml:"search"`
	Warming    Warming                   `yaml:"warming"`
	Providers  Providers                 `yaml:"providers"`
	RateLimit  map[string]int            `yaml:"ratelimit"` // service → max requests per minute
	Database   *DatabaseYAML             `yaml:"database,omitempty"`
	Templates  []models.WeightedTemplate `yaml:"templates,omitempty"`
}

// Thresholds are the score gates applied along the pipeline.
type Thresholds struct {
	Prioritisation float64 `yaml:"prioritisation"` // drop prioritised URLs below this
	Confidence     float64 `yaml:"confidence"`     // final ranking floor
	ParseQuality   float64 `yaml:"parse_quality"`  // solid-hit gate
}

// Limits bound the size of intermediate and final result sets.
type Limits struct {
	MaxCandidates  int `yaml:"max_candidates"`
	MaxExtractions int `yaml:"max_extractions"`
	MaxSpeakers    int `yaml:"max_speakers"`
}

// Timeouts are the per-stage deadlines. Total pipeline time is the sum
// of stage deadlines; it is not bounded separately.
type Timeouts struct {
	Discovery      time.Duration `yaml:"discovery"`
	Prioritisation time.Duration `yaml:"prioritisation"` // per chunk
	Extraction     time.Duration `yaml:"extraction"`     // per URL
	Enhancement    time.Duration `yaml:"enhancement"`
}

// Parallel configures the bounded task pool.
type Parallel struct {
	MaxConcurrentExtractions  int  `yaml:"max_concurrent_extractions"`
	MaxConcurrentEnhancements int  `yaml:"max_concurrent_enhancements"`
	MaxConcurrentDiscoveries  int  `yaml:"max_concurrent_discoveries"`
	EnableEarlyTermination    bool `yaml:"enable_early_termination"`
	EnableSmartBatching       bool `yaml:"enable_smart_batching"`
}

// Search configures the quality gate and the voyage rerank gate.
type Search struct {
	MinSolidHits           int  `yaml:"min_solid_hits"`
	AllowAutoExpand        bool `yaml:"allow_auto_expand"`
	MaxVoyageDocs          int  `yaml:"max_voyage_docs"`
	VoyageTopK             int  `yaml:"voyage_top_k"`
	MinNonAggregatorURLs   int  `yaml:"min_non_aggregator_urls"`
	MaxBackstopAggregators int  `yaml:"max_backstop_aggregators"`
}

// Warming configures the cache optimiser's background warming loop.
type Warming struct {
	BatchSize      int           `yaml:"batch_size"`
	Interval       time.Duration `yaml:"interval"`
	Timeout        time.Duration `yaml:"timeout"` // per warmed key
	MaxConcurrency int           `yaml:"max_concurrency"`
}

// Providers carries the external collaborator endpoints and credentials.
// API keys are referenced by environment variable name, resolved at
// load time through env expansion (${VAR} syntax in the yaml).
type Providers struct {
	Firecrawl ProviderEndpoint `yaml:"firecrawl"`
	CSE       CSEEndpoint      `yaml:"cse"`
	Voyage    ProviderEndpoint `yaml:"voyage"`
	Gemini    GeminiEndpoint   `yaml:"gemini"`
}

// ProviderEndpoint is a base URL plus API key pair.
type ProviderEndpoint struct {
	BaseURL string `yaml:"base_url,omitempty"`
	APIKey  string `yaml:"api_key,omitempty"`
}

// CSEEndpoint extends ProviderEndpoint with the search engine ID.
type CSEEndpoint struct {
	BaseURL  string `yaml:"base_url,omitempty"`
	APIKey   string `yaml:"api_key,omitempty"`
	EngineID string `yaml:"engine_id,omitempty"`
}

// GeminiEndpoint extends ProviderEndpoint with the model name and the
// advisory call budget enforced by the LLM budget guard.
type GeminiEndpoint struct {
	BaseURL         string `yaml:"base_url,omitempty"`
	APIKey          string `yaml:"api_key,omitempty"`
	Model           string `yaml:"model,omitempty"`
	MaxCallsPerHour int    `yaml:"max_calls_per_hour,omitempty"`
	MaxCallsPerDay  int    `yaml:"max_calls_per_day,omitempty"`
}

// DatabaseYAML holds the optional Postgres connection settings for the
// database search provider and the profile service.
type DatabaseYAML struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
}
