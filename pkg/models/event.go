package models

// Source identifies which search provider produced a candidate.
type Source string

const (
	SourceFirecrawl Source = "firecrawl"
	SourceCSE       Source = "cse"
	SourceDatabase  Source = "database"
)

// IsValid checks if the source is a known provider.
func (s Source) IsValid() bool {
	switch s {
	case SourceFirecrawl, SourceCSE, SourceDatabase:
		return true
	default:
		return false
	}
}

// DateRangeSource records which date window a candidate was discovered in.
type DateRangeSource string

const (
	// DateRangeOriginal — found within the caller's window.
	DateRangeOriginal DateRangeSource = "original"
	// DateRangeTwoWeeks — found after a two-week widening.
	DateRangeTwoWeeks DateRangeSource = "2-weeks"
	// DateRangeOneMonth — found after a one-month-or-larger widening.
	DateRangeOneMonth DateRangeSource = "1-month"
)

// Speaker is one extracted speaker entry.
// Missing title/company are defaulted at extraction time.
type Speaker struct {
	Name    string `json:"name"`
	Title   string `json:"title,omitempty"`
	Company string `json:"company,omitempty"`
}

// Sponsor is one extracted sponsor entry.
type Sponsor struct {
	Name        string `json:"name"`
	Level       string `json:"level,omitempty"`
	Description string `json:"description,omitempty"`
}

// Analysis carries secondary extraction output for a candidate.
type Analysis struct {
	Organiser          string `json:"organiser,omitempty"`
	Website            string `json:"website,omitempty"`
	RegistrationURL    string `json:"registration_url,omitempty"`
	PagesCrawled       int    `json:"pages_crawled"`
	TotalContentLength int    `json:"total_content_length"`
	HasSpeakerPage     bool   `json:"has_speaker_page"`
}

// EventCandidate is the central record of the pipeline: one discovered
// event with extracted metadata. URL is unique within a result set.
type EventCandidate struct {
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Date        string `json:"date,omitempty"` // ISO date or empty
	Location    string `json:"location,omitempty"`
	Venue       string `json:"venue,omitempty"`
	City        string `json:"city,omitempty"`

	Speakers []Speaker `json:"speakers,omitempty"`
	Sponsors []Sponsor `json:"sponsors,omitempty"`

	Confidence float64 `json:"confidence"`

	Source          Source          `json:"source"`
	DateRangeSource DateRangeSource `json:"date_range_source"`

	OriginalQuery  string           `json:"original_query,omitempty"`
	Country        string           `json:"country,omitempty"`
	ProcessingTime int64            `json:"processing_time_ms"`
	StageTimings   map[string]int64 `json:"stage_timings_ms,omitempty"`
	Analysis       Analysis         `json:"analysis"`
}
