package prioritize

import (
	"regexp"
	"strings"

	"github.com/eventscout/eventscout/pkg/models"
	"github.com/eventscout/eventscout/pkg/providers"
)

// aggregatorFallbackScore is the flat score aggregator hosts collapse
// to when the LLM is unavailable. Below the prioritisation threshold,
// so they only survive explicitly lowered thresholds.
const aggregatorFallbackScore = 0.05

// eventPathPattern matches specific event pages: a dated or slugged
// path under an event-type segment.
var eventPathPattern = regexp.MustCompile(`/(events?|summits?|conferences?|kongress|tagung)/[a-z0-9][a-z0-9-]*`)

// genericIndustryKeywords backs the fallback scorer when no user
// profile is available.
var genericIndustryKeywords = []string{
	"legal", "compliance", "finance", "fintech", "banking",
	"insurance", "tech", "digital", "tax", "audit",
}

// fallbackScore computes a heuristic score for one URL when the LLM
// could not score it. idx is the URL's position in the overall input
// list, so earlier discoveries rank higher.
func fallbackScore(u models.CandidateURL, idx int, country string, profile *models.UserProfile) float64 {
	if u.IsAggregator() {
		return aggregatorFallbackScore
	}

	score := 0.3 - float64(idx)*0.02
	if score < 0.05 {
		score = 0.05
	}
	lower := strings.ToLower(u.URL)

	if eventPathPattern.MatchString(lower) {
		score += 0.3
	}

	if profile != nil && matchesTerms(lower, profile.IndustryTerms) {
		score += 0.35
	} else if matchesAny(lower, genericIndustryKeywords) {
		score += 0.25
	}

	if providers.HasCountryTLD(u.URL, country) {
		score += 0.05
	}

	return clamp01(score)
}

// calculateURLBonus is the post-LLM bias applied to every returned
// score: small nudges toward specific in-country event pages, a
// penalty for aggregators that slipped past the gate.
func calculateURLBonus(u models.CandidateURL, country string) float64 {
	if u.IsAggregator() {
		return -0.2
	}
	var bonus float64
	lower := strings.ToLower(u.URL)
	if eventPathPattern.MatchString(lower) {
		bonus += 0.05
	}
	if providers.HasCountryTLD(u.URL, country) {
		bonus += 0.03
	}
	return bonus
}

func matchesTerms(haystack string, terms []string) bool {
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" && strings.Contains(haystack, t) {
			return true
		}
	}
	return false
}

func matchesAny(haystack string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(haystack, t) {
			return true
		}
	}
	return false
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
