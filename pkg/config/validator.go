package config

import (
	"errors"
	"fmt"
)

// validate checks the merged configuration for values the pipeline
// cannot operate with. It collects all problems rather than stopping
// at the first one.
func validate(cfg *Config) error {
	var errs []error

	checkRange := func(name string, v, min, max float64) {
		if v < min || v > max {
			errs = append(errs, fmt.Errorf("%s must be in [%g,%g], got %g", name, min, max, v))
		}
	}
	checkPositive := func(name string, v int) {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, v))
		}
	}

	checkRange("thresholds.prioritisation", cfg.Thresholds.Prioritisation, 0, 1)
	checkRange("thresholds.confidence", cfg.Thresholds.Confidence, 0, 1)
	checkRange("thresholds.parse_quality", cfg.Thresholds.ParseQuality, 0, 1)

	checkPositive("limits.max_candidates", cfg.Limits.MaxCandidates)
	checkPositive("limits.max_extractions", cfg.Limits.MaxExtractions)
	checkPositive("limits.max_speakers", cfg.Limits.MaxSpeakers)

	if cfg.Limits.MaxExtractions > cfg.Limits.MaxCandidates {
		errs = append(errs, fmt.Errorf("limits.max_extractions (%d) exceeds limits.max_candidates (%d)",
			cfg.Limits.MaxExtractions, cfg.Limits.MaxCandidates))
	}

	checkPositive("parallel.max_concurrent_extractions", cfg.Parallel.MaxConcurrentExtractions)
	checkPositive("parallel.max_concurrent_discoveries", cfg.Parallel.MaxConcurrentDiscoveries)

	checkPositive("search.max_voyage_docs", cfg.Search.MaxVoyageDocs)
	checkPositive("search.voyage_top_k", cfg.Search.VoyageTopK)
	if cfg.Search.MinSolidHits < 0 {
		errs = append(errs, fmt.Errorf("search.min_solid_hits must not be negative, got %d", cfg.Search.MinSolidHits))
	}

	for _, d := range []struct {
		name string
		v    int64
	}{
		{"timeouts.discovery", int64(cfg.Timeouts.Discovery)},
		{"timeouts.prioritisation", int64(cfg.Timeouts.Prioritisation)},
		{"timeouts.extraction", int64(cfg.Timeouts.Extraction)},
		{"timeouts.enhancement", int64(cfg.Timeouts.Enhancement)},
	} {
		if d.v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", d.name))
		}
	}

	for service, rpm := range cfg.RateLimit {
		if rpm <= 0 {
			errs = append(errs, fmt.Errorf("ratelimit.%s must be positive, got %d", service, rpm))
		}
	}

	for i, tpl := range cfg.Templates {
		if tpl.Industry == "" {
			errs = append(errs, fmt.Errorf("templates[%d]: industry must not be empty", i))
		}
		for _, w := range []struct {
			name string
			v    int
		}{
			{"industry_specific_query", tpl.IndustrySpecificQuery},
			{"cross_industry_prevention", tpl.CrossIndustryPrevention},
			{"geographic_coverage", tpl.GeographicCoverage},
			{"quality_requirements", tpl.QualityRequirements},
			{"event_type_specificity", tpl.EventTypeSpecificity},
		} {
			if w.v < 0 || w.v > 10 {
				errs = append(errs, fmt.Errorf("templates[%d].%s must be in 0–10, got %d", i, w.name, w.v))
			}
		}
	}

	return errors.Join(errs...)
}
