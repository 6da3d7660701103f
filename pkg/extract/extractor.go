// Package extract deep-crawls prioritised event pages and composes
// EventCandidates: combined page content, LLM-or-rules metadata, and
// regex speaker extraction.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/eventscout/eventscout/pkg/models"
)

// baseConfidence is the floor every successfully extracted candidate
// starts from; metadata fields add to it.
const baseConfidence = 0.3

// tosTitleFragments mark pages that are legal boilerplate, not events.
var tosTitleFragments = []string{
	"terms of service", "terms and conditions", "privacy policy",
	"datenschutz", "impressum", "cookie policy", "nutzungsbedingungen",
}

// Config tunes the extractor.
type Config struct {
	MaxSpeakers int
}

// Extractor turns one prioritised URL into an EventCandidate.
type Extractor struct {
	crawler     *Crawler
	metadata    *MetadataExtractor
	maxSpeakers int
}

// NewExtractor wires the crawl and metadata stages.
func NewExtractor(crawler *Crawler, metadata *MetadataExtractor, cfg Config) *Extractor {
	maxSpeakers := cfg.MaxSpeakers
	if maxSpeakers <= 0 {
		maxSpeakers = 30
	}
	return &Extractor{crawler: crawler, metadata: metadata, maxSpeakers: maxSpeakers}
}

// Extract crawls pageURL and composes the candidate. Returns an error
// when the page cannot be fetched or is legal boilerplate; the caller
// drops the URL and continues.
func (e *Extractor) Extract(ctx context.Context, pageURL string, params models.SearchParams, source models.Source) (*models.EventCandidate, error) {
	start := time.Now()
	timings := make(map[string]int64)

	crawled, err := e.crawler.Crawl(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	timings["crawl"] = time.Since(start).Milliseconds()

	metaStart := time.Now()
	meta := e.metadata.Extract(ctx, pageURL, crawled.Combined)
	timings["metadata"] = time.Since(metaStart).Milliseconds()

	if isTosTitle(meta.Title) {
		return nil, fmt.Errorf("page is legal boilerplate: %q", meta.Title)
	}

	speakerStart := time.Now()
	speakers := ExtractSpeakers(crawled.Combined, e.maxSpeakers)
	timings["speakers"] = time.Since(speakerStart).Milliseconds()

	candidate := &models.EventCandidate{
		URL:             pageURL,
		Title:           meta.Title,
		Description:     meta.Description,
		Date:            meta.Date,
		Location:        meta.Location,
		City:            meta.City,
		Venue:           meta.Venue,
		Speakers:        speakers,
		Source:          source,
		DateRangeSource: models.DateRangeOriginal,
		OriginalQuery:   params.UserText,
		Country:         params.Country,
		ProcessingTime:  time.Since(start).Milliseconds(),
		StageTimings:    timings,
		Analysis: models.Analysis{
			Organiser:          meta.Organiser,
			Website:            meta.Website,
			RegistrationURL:    meta.RegistrationURL,
			PagesCrawled:       crawled.PagesCrawled,
			TotalContentLength: len(crawled.Combined),
			HasSpeakerPage:     crawled.HasSpeakerPage,
		},
	}
	candidate.Confidence = confidence(candidate)

	slog.Debug("Extracted candidate",
		"url", pageURL,
		"title", candidate.Title,
		"speakers", len(speakers),
		"confidence", candidate.Confidence,
		"pagesCrawled", crawled.PagesCrawled)
	return candidate, nil
}

// confidence accumulates field bonuses over the base.
func confidence(c *models.EventCandidate) float64 {
	score := baseConfidence
	if c.Title != "" {
		score += 0.2
	}
	if c.Description != "" {
		score += 0.2
	}
	if c.Date != "" {
		score += 0.1
	}
	if c.Location != "" || c.City != "" {
		score += 0.1
	}
	if len(c.Speakers) > 0 {
		score += 0.1
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

func isTosTitle(title string) bool {
	lower := strings.ToLower(title)
	for _, frag := range tosTitleFragments {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}
