// Package quality gates extracted candidates on a weighted score and
// computes the widened window when results are sparse.
package quality

import (
	"time"

	"github.com/eventscout/eventscout/pkg/models"
	"github.com/eventscout/eventscout/pkg/providers"
)

// Solid-hit weights. Date fit dominates; the rest are corroboration.
const (
	weightDateInWindow  = 0.4
	weightCityOrVenue   = 0.2
	weightSpeakers      = 0.2
	weightSpeakerPage   = 0.1
	weightCountryMatch  = 0.1
	minSpeakersForSolid = 2

	// DefaultThreshold is the solid-hit cut when no config overrides it.
	DefaultThreshold = 0.5
)

// HitCheck is the solid-hit verdict for one candidate.
type HitCheck struct {
	OK      bool    `json:"ok"`
	Quality float64 `json:"quality"`
}

// IsSolidHit scores a candidate against the window. threshold ≤ 0 uses
// the default.
func IsSolidHit(c *models.EventCandidate, window models.DateWindow, threshold float64) HitCheck {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	var score float64
	if date, err := time.Parse(models.DateLayout, c.Date); err == nil && window.Contains(date) {
		score += weightDateInWindow
	}
	if c.City != "" || c.Venue != "" || c.Location != "" {
		score += weightCityOrVenue
	}
	if len(c.Speakers) >= minSpeakersForSolid {
		score += weightSpeakers
	}
	if c.Analysis.HasSpeakerPage {
		score += weightSpeakerPage
	}
	if c.Country != "" && providers.HasCountryTLD(c.URL, c.Country) {
		score += weightCountryMatch
	}

	return HitCheck{OK: score >= threshold, Quality: score}
}

// FilterSolid partitions candidates into solid hits, annotating
// nothing; rejected candidates are simply dropped.
func FilterSolid(candidates []models.EventCandidate, window models.DateWindow, threshold float64) []models.EventCandidate {
	solid := make([]models.EventCandidate, 0, len(candidates))
	for _, c := range candidates {
		if IsSolidHit(&c, window, threshold).OK {
			solid = append(solid, c)
		}
	}
	return solid
}

// Auto-expand spans by solid-hit count. Sparser results widen more.
const (
	expandDaysZeroHits = 90
	expandDaysOneHit   = 60
	expandDaysFewHits  = 45
)

// ExpandWindow computes the widened window for a sparse result: the
// span is anchored at the original From and never shrinks. Returns
// ok=false when no expansion applies (enough hits, or the window is
// already at least as wide).
func ExpandWindow(window models.DateWindow, solidCount, minSolidHits int) (models.DateWindow, bool) {
	if solidCount >= minSolidHits {
		return window, false
	}

	days := expandDaysFewHits
	switch solidCount {
	case 0:
		days = expandDaysZeroHits
	case 1:
		days = expandDaysOneHit
	}

	if window.Days() >= days {
		return window, false
	}
	return models.DateWindow{
		From: window.From,
		To:   window.From.AddDate(0, 0, days-1),
	}, true
}

// RangeSource labels candidates found in an expanded window by how far
// it was widened.
func RangeSource(days int) models.DateRangeSource {
	switch {
	case days <= 0:
		return models.DateRangeOriginal
	case days <= 14:
		return models.DateRangeTwoWeeks
	default:
		return models.DateRangeOneMonth
	}
}
