package extract

import (
	"regexp"
	"strings"

	"github.com/eventscout/eventscout/pkg/models"
)

const (
	defaultSpeakerTitle   = "Professional"
	defaultSpeakerCompany = "Various"
	maxSpeakerNameLen     = 50
)

// navigationBlacklist drops menu and boilerplate lines that happen to
// look like names.
var navigationBlacklist = []string{
	"home", "about", "contact", "kontakt", "impressum", "datenschutz",
	"privacy", "cookie", "login", "register", "anmelden", "newsletter",
	"menu", "sitemap", "terms", "agb", "faq", "download", "tickets",
}

// industryBlacklist drops event-title lines; capitalised event names
// pass the name shape check otherwise.
var industryBlacklist = []string{
	"conference", "summit", "kongress", "tagung", "workshop", "seminar",
	"forum", "symposium", "expo", "messe", "webinar", "event",
}

// namePart matches a capitalised multi-word name, optional academic
// prefix. Shared by all speaker patterns.
const namePart = `((?:(?:Dr|Prof|Mag)\.\s+)?[A-ZÄÖÜ][\p{L}'.-]+(?:\s+[A-ZÄÖÜ][\p{L}'.-]+)+)`

// speakerPatterns are tried in order; the first match on a line wins.
// Group order is always name, title, company (missing groups empty).
var speakerPatterns = []*regexp.Regexp{
	// Anna Schmidt, Head of Legal, Acme GmbH
	regexp.MustCompile(`^` + namePart + `,\s*([^,]+),\s*(.+?)$`),
	// Anna Schmidt – Head of Legal at Acme GmbH
	regexp.MustCompile(`^` + namePart + `\s*[–—-]\s*(.+?)\s+(?:at|bei)\s+(.+?)$`),
	// Anna Schmidt (Head of Legal, Acme GmbH)
	regexp.MustCompile(`^` + namePart + `\s*\(([^,)]+)(?:,\s*([^)]+))?\)$`),
	// Anna Schmidt | Head of Legal | Acme GmbH
	regexp.MustCompile(`^` + namePart + `\s*\|\s*([^|]+?)(?:\s*\|\s*(.+?))?$`),
	// Referent: Anna Schmidt, Acme GmbH
	regexp.MustCompile(`^(?:Referent(?:in)?|Sprecher(?:in)?|Moderator(?:in)?):\s*` + namePart + `()(?:,\s*(.+?))?$`),
	// Keynote Speaker: Anna Schmidt
	regexp.MustCompile(`^Keynote\s+Speakers?:\s*` + namePart + `()()$`),
}

// ExtractSpeakers applies the pattern set line by line to combined
// markdown and returns at most maxSpeakers deduplicated speakers.
func ExtractSpeakers(content string, maxSpeakers int) []models.Speaker {
	if maxSpeakers <= 0 {
		maxSpeakers = 30
	}

	var speakers []models.Speaker
	seen := make(map[string]struct{})

	for _, line := range strings.Split(content, "\n") {
		line = cleanLine(line)
		if line == "" || blacklisted(line) {
			continue
		}

		for _, pattern := range speakerPatterns {
			m := pattern.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			name := strings.TrimSpace(m[1])
			if !validName(name) {
				break
			}
			key := strings.ToLower(name)
			if _, dup := seen[key]; dup {
				break
			}
			seen[key] = struct{}{}

			speakers = append(speakers, models.Speaker{
				Name:    name,
				Title:   orDefault(m[2], defaultSpeakerTitle),
				Company: orDefault(m[3], defaultSpeakerCompany),
			})
			break
		}

		if len(speakers) >= maxSpeakers {
			break
		}
	}
	return speakers
}

// cleanLine strips markdown decoration before pattern matching.
func cleanLine(line string) string {
	line = strings.TrimSpace(line)
	line = strings.TrimLeft(line, "#*-•> \t")
	line = strings.ReplaceAll(line, "**", "")
	return strings.TrimSpace(line)
}

func blacklisted(line string) bool {
	lower := strings.ToLower(line)
	return containsAny(lower, navigationBlacklist) || containsAny(lower, industryBlacklist)
}

// validName requires at least two capitalised words and a sane length.
func validName(name string) bool {
	if name == "" || len(name) > maxSpeakerNameLen {
		return false
	}
	capitalised := 0
	for _, w := range strings.Fields(name) {
		r := []rune(w)
		if len(r) > 1 && r[0] >= 'A' && r[0] <= 'Z' || isUpperUmlaut(r[0]) {
			capitalised++
		}
	}
	return capitalised >= 2
}

func isUpperUmlaut(r rune) bool {
	return r == 'Ä' || r == 'Ö' || r == 'Ü'
}

func orDefault(s, def string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	return s
}
