package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/eventscout/eventscout/pkg/llm"
)

// maxContentChars bounds how much combined markdown reaches the LLM.
const maxContentChars = 12000

// Metadata is the structured output of metadata extraction.
type Metadata struct {
	Title           string `json:"title"`
	Description     string `json:"description"`
	Date            string `json:"date"` // ISO YYYY-MM-DD when parseable
	Location        string `json:"location"`
	City            string `json:"city"`
	Venue           string `json:"venue"`
	Organiser       string `json:"organiser"`
	Website         string `json:"website"`
	RegistrationURL string `json:"registrationUrl"`
}

const metadataSchema = `{
  "type": "object",
  "properties": {
    "title": {"type": "string"},
    "description": {"type": "string"},
    "date": {"type": "string"},
    "location": {"type": "string"},
    "city": {"type": "string"},
    "venue": {"type": "string"},
    "organiser": {"type": "string"},
    "website": {"type": "string"},
    "registrationUrl": {"type": "string"}
  },
  "required": ["title"]
}`

const metadataInstruction = `Extract event metadata from the page content. ` +
	`Return a single JSON object only. date must be the event start date ` +
	`as YYYY-MM-DD or empty if unknown. Leave unknown fields empty.`

// MetadataExtractor fills event metadata from combined page content,
// via the LLM when available, rules otherwise.
type MetadataExtractor struct {
	client llm.Client  // nil → rules only
	budget *llm.Budget // nil → unmetered
}

// NewMetadataExtractor creates the extractor. Both arguments may be nil.
func NewMetadataExtractor(client llm.Client, budget *llm.Budget) *MetadataExtractor {
	return &MetadataExtractor{client: client, budget: budget}
}

// Extract never fails: any LLM problem degrades to rule-based
// extraction over the same content.
func (m *MetadataExtractor) Extract(ctx context.Context, pageURL, content string) Metadata {
	if m.client != nil {
		if meta, err := m.llmExtract(ctx, pageURL, content); err == nil {
			return meta
		} else {
			slog.Debug("LLM metadata extraction failed, using rules", "url", pageURL, "error", err)
		}
	}
	return rulesExtract(pageURL, content)
}

func (m *MetadataExtractor) llmExtract(ctx context.Context, pageURL, content string) (Metadata, error) {
	if m.budget != nil {
		if err := m.budget.Consume(); err != nil {
			return Metadata{}, err
		}
	}
	if len(content) > maxContentChars {
		content = content[:maxContentChars]
	}

	prompt := fmt.Sprintf("URL: %s\n\n%s", pageURL, content)
	raw, err := m.client.Generate(ctx, metadataInstruction, prompt, metadataSchema)
	if err != nil {
		return Metadata{}, err
	}

	var meta Metadata
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &meta); err != nil {
		// Same failure mode as the prioritiser: prose around the object.
		start := strings.Index(raw, "{")
		end := strings.LastIndex(raw, "}")
		if start < 0 || end <= start {
			return Metadata{}, fmt.Errorf("unparseable metadata response: %w", err)
		}
		if err := json.Unmarshal([]byte(raw[start:end+1]), &meta); err != nil {
			return Metadata{}, fmt.Errorf("unparseable metadata response: %w", err)
		}
	}
	if meta.Title == "" {
		return Metadata{}, fmt.Errorf("metadata response missing title")
	}
	return meta, nil
}

var (
	headingPattern      = regexp.MustCompile(`(?m)^#\s+(.+)$`)
	isoDatePattern      = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	germanDatePattern   = regexp.MustCompile(`\b(\d{1,2})\.(\d{1,2})\.(\d{4})\b`)
	locationPattern     = regexp.MustCompile(`(?:Ort|Location|Venue|Stadt)\s*:\s*([A-ZÄÖÜ][\p{L} .-]{2,40})`)
	registrationPattern = regexp.MustCompile(`\[[^\]]*(?i:anmeld|register|ticket)[^\]]*\]\(([^)\s]+)\)`)
)

// rulesExtract is the LLM-free fallback: headings, date patterns, and
// labelled location lines.
func rulesExtract(pageURL, content string) Metadata {
	meta := Metadata{Website: siteOrigin(pageURL)}

	if m := headingPattern.FindStringSubmatch(content); m != nil {
		meta.Title = strings.TrimSpace(m[1])
	} else {
		for _, line := range strings.Split(content, "\n") {
			if line = cleanLine(line); line != "" {
				meta.Title = line
				break
			}
		}
	}

	if m := isoDatePattern.FindStringSubmatch(content); m != nil {
		meta.Date = m[0]
	} else if m := germanDatePattern.FindStringSubmatch(content); m != nil {
		meta.Date = fmt.Sprintf("%s-%s-%s", m[3], pad2(m[2]), pad2(m[1]))
	}

	if m := locationPattern.FindStringSubmatch(content); m != nil {
		meta.Location = strings.TrimSpace(m[1])
		meta.City = meta.Location
	}

	if m := registrationPattern.FindStringSubmatch(content); m != nil {
		if u, err := url.Parse(pageURL); err == nil {
			if resolved, err := u.Parse(m[1]); err == nil {
				meta.RegistrationURL = resolved.String()
			}
		}
	}
	return meta
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

func siteOrigin(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
