package config

import "time"

// Default returns the complete built-in configuration, the same values
// Initialize starts from before merging user yaml.
func Default() *Config {
	return builtinDefaults()
}

// builtinDefaults returns the complete default configuration. User
// yaml is merged over these values; any key the user omits keeps its
// default.
func builtinDefaults() *Config {
	return &Config{
		Thresholds: Thresholds{
			Prioritisation: 0.4,
			Confidence:     0.6,
			ParseQuality:   0.5,
		},
		Limits: Limits{
			MaxCandidates:  40,
			MaxExtractions: 12,
			MaxSpeakers:    30,
		},
		Timeouts: Timeouts{
			Discovery:      40 * time.Second,
			Prioritisation: 12 * time.Second,
			Extraction:     30 * time.Second,
			Enhancement:    20 * time.Second,
		},
		Parallel: Parallel{
			MaxConcurrentExtractions:  4,
			MaxConcurrentEnhancements: 3,
			MaxConcurrentDiscoveries:  12,
			EnableEarlyTermination:    true,
			EnableSmartBatching:       true,
		},
		Search: Search{
			MinSolidHits:           3,
			AllowAutoExpand:        true,
			MaxVoyageDocs:          25,
			VoyageTopK:             15,
			MinNonAggregatorURLs:   5,
			MaxBackstopAggregators: 3,
		},
		Warming: Warming{
			BatchSize:      50,
			Interval:       5 * time.Minute,
			Timeout:        30 * time.Second,
			MaxConcurrency: 10,
		},
		Providers: Providers{
			Firecrawl: ProviderEndpoint{BaseURL: "https://api.firecrawl.dev"},
			CSE:       CSEEndpoint{BaseURL: "https://www.googleapis.com/customsearch/v1"},
			Voyage:    ProviderEndpoint{BaseURL: "https://api.voyageai.com/v1"},
			Gemini: GeminiEndpoint{
				BaseURL:         "https://generativelanguage.googleapis.com/v1beta",
				Model:           "gemini-2.0-flash",
				MaxCallsPerHour: 300,
				MaxCallsPerDay:  2000,
			},
		},
		RateLimit: map[string]int{
			"firecrawl": 10,
			"cse":       100,
			"gemini":    60,
			"voyage":    60,
		},
	}
}
