package extract

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventscout/eventscout/pkg/resilience"
	"github.com/eventscout/eventscout/pkg/scrape"
)

// mapScraper serves canned pages by URL.
type mapScraper struct {
	pages map[string]string
	calls []string
}

func (s *mapScraper) Scrape(_ context.Context, url string) (*scrape.Page, error) {
	s.calls = append(s.calls, url)
	md, ok := s.pages[url]
	if !ok {
		return nil, fmt.Errorf("not found: %s", url)
	}
	return &scrape.Page{URL: url, Markdown: md}, nil
}

func TestDiscoverSubPages_ClassifiesAndRanks(t *testing.T) {
	markdown := `
[Home](/)
[Our Team](/team/)
[Agenda](/agenda/)
[Referenten](/referenten/)
[External](https://other-site.de/speakers/)
`
	pages := discoverSubPages("https://kongress.de/event", markdown, 3)

	require.Len(t, pages, 3)
	// High priority first, then medium, then low.
	assert.Equal(t, "https://kongress.de/referenten/", pages[0])
	assert.Contains(t, pages[1], "kongress.de")
	assert.True(t, strings.Contains(pages[1], "speakers") || strings.Contains(pages[1], "agenda"))
}

func TestDiscoverSubPages_SynthesisesCommonPaths(t *testing.T) {
	pages := discoverSubPages("https://kongress.de/event", "no links here", 3)

	require.NotEmpty(t, pages)
	assert.Equal(t, "https://kongress.de/referenten/", pages[0])
	assert.Equal(t, "https://kongress.de/speakers/", pages[1])
}

func TestDiscoverSubPages_SameOriginOnly(t *testing.T) {
	markdown := `[Speakers](https://evil.example.com/speakers/)`
	pages := discoverSubPages("https://kongress.de/event", markdown, 3)

	for _, p := range pages {
		assert.Contains(t, p, "kongress.de")
	}
}

func TestDiscoverSubPages_Dedup(t *testing.T) {
	markdown := `
[Speakers](/speakers/)
[Speakers again](/speakers)
[Speakers anchor](/speakers/#top)
`
	pages := discoverSubPages("https://kongress.de/", markdown, 10)

	count := 0
	for _, p := range pages {
		if strings.Contains(p, "speakers") {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestCrawler_CombinesSpeakerPages(t *testing.T) {
	scraper := &mapScraper{pages: map[string]string{
		"https://kongress.de/event":       "# Compliance Kongress\n[Referenten](/referenten/)",
		"https://kongress.de/referenten/": strings.Repeat("Anna Schmidt, Head of Legal, Acme GmbH\n", 10),
	}}
	c := NewCrawler(scraper, resilience.NewRetrier(nil))

	result, err := c.Crawl(context.Background(), "https://kongress.de/event")
	require.NoError(t, err)

	assert.Equal(t, 2, result.PagesCrawled)
	assert.True(t, result.HasSpeakerPage)
	assert.Contains(t, result.Combined, "--- SPEAKER PAGES ---")
	assert.Contains(t, result.Combined, "Anna Schmidt")
}

func TestCrawler_SkipsThinSubPages(t *testing.T) {
	scraper := &mapScraper{pages: map[string]string{
		"https://kongress.de/event":       "# Event\n[Referenten](/referenten/)",
		"https://kongress.de/referenten/": "tba",
	}}
	c := NewCrawler(scraper, resilience.NewRetrier(nil))

	result, err := c.Crawl(context.Background(), "https://kongress.de/event")
	require.NoError(t, err)

	assert.Equal(t, 1, result.PagesCrawled)
	assert.False(t, result.HasSpeakerPage)
	assert.NotContains(t, result.Combined, "--- SPEAKER PAGES ---")
}

func TestCrawler_SubPageFailureNotFatal(t *testing.T) {
	scraper := &mapScraper{pages: map[string]string{
		"https://kongress.de/event": "# Event\n[Referenten](/referenten/)",
	}}
	c := NewCrawler(scraper, resilience.NewRetrier(nil))

	result, err := c.Crawl(context.Background(), "https://kongress.de/event")
	require.NoError(t, err)
	assert.Equal(t, 1, result.PagesCrawled)
}
