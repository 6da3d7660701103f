package models

// UserProfile carries per-tenant precision hints for query building and
// prioritisation. Absent profiles trigger the generic path.
// Read once at pipeline start; never mutated by the pipeline.
type UserProfile struct {
	IndustryTerms []string `json:"industry_terms,omitempty"`
	ICPTerms      []string `json:"icp_terms,omitempty"`
	Competitors   []string `json:"competitors,omitempty"`
}

// Industry returns the primary industry term, or empty when no profile data.
func (p *UserProfile) Industry() string {
	if p == nil || len(p.IndustryTerms) == 0 {
		return ""
	}
	return p.IndustryTerms[0]
}

// PrimaryICP returns the first ICP term, or empty.
func (p *UserProfile) PrimaryICP() string {
	if p == nil || len(p.ICPTerms) == 0 {
		return ""
	}
	return p.ICPTerms[0]
}
