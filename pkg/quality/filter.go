package quality

import (
	"net/url"
	"strings"

	"github.com/eventscout/eventscout/pkg/models"
)

// nonEventPathFragments mark URLs that are never specific event pages:
// documentation, people directories, and legal boilerplate.
var nonEventPathFragments = []string{
	"/docs", "documentation", "people", "person", "profile",
	"privacy", "terms", "impressum", "agb", "datenschutz",
	"/blog/", "/news/", "/jobs", "/careers", "/karriere",
	"/about", "/ueber-uns", "/contact", "/kontakt",
	"/login", "/signup", "/sitemap",
}

// nonEventExtensions drop direct file links.
var nonEventExtensions = []string{
	".pdf", ".doc", ".docx", ".jpg", ".jpeg", ".png", ".gif",
	".zip", ".xls", ".xlsx", ".mp4", ".ics",
}

// IsNonEventURL reports whether the URL's path disqualifies it before
// any crawl is spent on it. Bare `/events` index pages list many events
// without being one.
func IsNonEventURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	path := strings.ToLower(strings.TrimSuffix(u.Path, "/"))

	if strings.HasSuffix(path, "/events") || path == "/events" {
		return true
	}
	for _, ext := range nonEventExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	for _, frag := range nonEventPathFragments {
		if strings.Contains(path, frag) {
			return true
		}
	}
	return false
}

// FilterEventURLs drops non-event URLs, preserving order.
func FilterEventURLs(urls []models.CandidateURL) []models.CandidateURL {
	kept := make([]models.CandidateURL, 0, len(urls))
	for _, u := range urls {
		if !IsNonEventURL(u.URL) {
			kept = append(kept, u)
		}
	}
	return kept
}
