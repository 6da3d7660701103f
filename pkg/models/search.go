// Package models defines the data model shared across the discovery pipeline:
// search requests, event candidates, user profiles, and stage logs.
package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DateLayout is the wire format for all pipeline dates.
const DateLayout = "2006-01-02"

var countryPattern = regexp.MustCompile(`^[A-Z]{2}$`)

// SearchParams is the request for one pipeline invocation.
// Immutable once validated.
type SearchParams struct {
	UserText  string `json:"user_text"`
	Country   string `json:"country,omitempty"` // ISO-3166-1 alpha-2, upper-case, or empty
	DateFrom  string `json:"date_from"`         // YYYY-MM-DD, inclusive
	DateTo    string `json:"date_to"`           // YYYY-MM-DD, inclusive
	Location  string `json:"location,omitempty"`
	Timeframe string `json:"timeframe,omitempty"`
	Locale    string `json:"locale,omitempty"`
}

// Validate checks the input constraints for a pipeline invocation.
func (p *SearchParams) Validate() error {
	text := strings.TrimSpace(p.UserText)
	if text == "" {
		return fmt.Errorf("user_text must not be empty")
	}
	if len(text) > 500 {
		return fmt.Errorf("user_text exceeds 500 characters (got %d)", len(text))
	}
	if p.Country != "" && !countryPattern.MatchString(p.Country) {
		return fmt.Errorf("country must be upper-case ISO-3166-1 alpha-2, got %q", p.Country)
	}
	from, err := time.Parse(DateLayout, p.DateFrom)
	if err != nil {
		return fmt.Errorf("date_from must be YYYY-MM-DD: %w", err)
	}
	to, err := time.Parse(DateLayout, p.DateTo)
	if err != nil {
		return fmt.Errorf("date_to must be YYYY-MM-DD: %w", err)
	}
	if from.After(to) {
		return fmt.Errorf("date_from %s is after date_to %s", p.DateFrom, p.DateTo)
	}
	return nil
}

// Window returns the parsed inclusive date window.
// Validate must have succeeded first.
func (p *SearchParams) Window() DateWindow {
	from, _ := time.Parse(DateLayout, p.DateFrom)
	to, _ := time.Parse(DateLayout, p.DateTo)
	return DateWindow{From: from, To: to}
}

// DateWindow is an inclusive date range.
type DateWindow struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the window (inclusive, date precision).
func (w DateWindow) Contains(t time.Time) bool {
	day := t.Truncate(24 * time.Hour)
	return !day.Before(w.From.Truncate(24*time.Hour)) && !day.After(w.To.Truncate(24*time.Hour))
}

// Days returns the span of the window in days, inclusive.
func (w DateWindow) Days() int {
	return int(w.To.Sub(w.From).Hours()/24) + 1
}

// StageLog is one ordered observability record attached to a SearchResult.
type StageLog struct {
	Stage     string         `json:"stage"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// SearchMetadata aggregates counts and per-stage timings for one invocation.
type SearchMetadata struct {
	RequestID             string           `json:"request_id"`
	OriginalQuery         string           `json:"original_query"`
	Country               string           `json:"country,omitempty"`
	TotalCandidates       int              `json:"total_candidates"`
	PrioritisedCandidates int              `json:"prioritised_candidates"`
	ExtractedCandidates   int              `json:"extracted_candidates"`
	SolidCandidates       int              `json:"solid_candidates"`
	ProvidersUsed         []string         `json:"providers_used,omitempty"`
	CacheHit              bool             `json:"cache_hit"`
	Expanded              bool             `json:"expanded"`
	ExpandedWindowDays    int              `json:"expanded_window_days,omitempty"`
	LowConfidence         bool             `json:"low_confidence"`
	StageTimings          map[string]int64 `json:"stage_timings_ms,omitempty"`
	TotalDuration         int64            `json:"total_duration_ms"`
}

// SearchResult is the immutable output of one pipeline invocation.
type SearchResult struct {
	Events   []EventCandidate `json:"events"`
	Metadata SearchMetadata   `json:"metadata"`
	Logs     []StageLog       `json:"logs"`
}
