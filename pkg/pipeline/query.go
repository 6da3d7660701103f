package pipeline

import (
	"strings"

	"github.com/eventscout/eventscout/pkg/models"
)

// BuildQuery composes the discovery query text from the user's intent,
// their profile, and the matching industry template. Templates with a
// strong industry weight prepend the industry term; geographic weight
// pulls the location in.
func BuildQuery(params models.SearchParams, profile *models.UserProfile, templates []models.WeightedTemplate) string {
	base := strings.TrimSpace(params.UserText)
	industry := profile.Industry()

	var tpl *models.WeightedTemplate
	for i := range templates {
		if templates[i].Matches(industry) {
			tpl = &templates[i]
			break
		}
	}

	var parts []string
	if tpl != nil {
		if tpl.IndustrySpecificQuery >= 5 && industry != "" && !containsFold(base, industry) {
			parts = append(parts, industry)
		}
		parts = append(parts, base)
		if tpl.GeographicCoverage >= 5 && params.Location != "" && !containsFold(base, params.Location) {
			parts = append(parts, params.Location)
		}
		return strings.Join(parts, " ")
	}

	// Generic builder: profile term plus location, when absent.
	parts = append(parts, base)
	if industry != "" && !containsFold(base, industry) {
		parts = append(parts, industry)
	}
	if params.Location != "" && !containsFold(base, params.Location) {
		parts = append(parts, params.Location)
	}
	return strings.Join(parts, " ")
}

// QueryVariations returns the four discovery variations run in
// parallel: the base query plus one per event type.
func QueryVariations(query string) []string {
	return []string{
		query,
		query + " conference",
		query + " summit",
		query + " event",
	}
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
