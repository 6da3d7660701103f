package models

import "strings"

// NegativeFilter is a weighted list of terms that should push a URL or
// event away from a given industry template.
type NegativeFilter struct {
	Terms  []string `yaml:"terms" json:"terms"`
	Weight int      `yaml:"weight" json:"weight"` // 0–10
}

// WeightedTemplate is a per-industry precision control. All weights are
// integers in 0–10. Static data; never mutated at runtime.
type WeightedTemplate struct {
	Industry string `yaml:"industry" json:"industry"`

	IndustrySpecificQuery   int `yaml:"industry_specific_query" json:"industry_specific_query"`
	CrossIndustryPrevention int `yaml:"cross_industry_prevention" json:"cross_industry_prevention"`
	GeographicCoverage      int `yaml:"geographic_coverage" json:"geographic_coverage"`
	QualityRequirements     int `yaml:"quality_requirements" json:"quality_requirements"`
	EventTypeSpecificity    int `yaml:"event_type_specificity" json:"event_type_specificity"`

	NegativeFilters []NegativeFilter `yaml:"negative_filters,omitempty" json:"negative_filters,omitempty"`
	Cities          []string         `yaml:"cities,omitempty" json:"cities,omitempty"`
	Regions         []string         `yaml:"regions,omitempty" json:"regions,omitempty"`

	// Quality thresholds local to this industry; zero means "use global".
	MinConfidence float64 `yaml:"min_confidence,omitempty" json:"min_confidence,omitempty"`
	MinSolidHits  int     `yaml:"min_solid_hits,omitempty" json:"min_solid_hits,omitempty"`
}

// Matches reports whether this template applies to the given industry term.
func (t *WeightedTemplate) Matches(industry string) bool {
	return t != nil && industry != "" && strings.EqualFold(t.Industry, industry)
}
