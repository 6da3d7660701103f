package extract

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/eventscout/eventscout/pkg/resilience"
	"github.com/eventscout/eventscout/pkg/scrape"
)

const (
	// maxSubPages bounds the per-event deep crawl.
	maxSubPages = 3
	// minSubPageContent drops near-empty sub-pages.
	minSubPageContent = 100

	speakerPagesSeparator = "\n\n--- SPEAKER PAGES ---\n\n"
	subPageSeparator      = "\n\n---\n\n"
)

// Sub-page path classes, checked against the lower-cased path.
var (
	highPriorityPaths   = []string{"referenten", "speakers", "presenters", "faculty", "sprecher"}
	mediumPriorityPaths = []string{"agenda", "program", "programm", "schedule"}
	lowPriorityPaths    = []string{"team", "organiser", "organizer", "about", "ueber-uns", "kontakt"}

	// synthesisedPaths are probed even when the main page links to none
	// of them. Event sites routinely hide these behind menus the
	// markdown conversion loses.
	synthesisedPaths = []string{"/referenten/", "/speakers/", "/agenda/", "/programm/"}
)

var markdownLinkPattern = regexp.MustCompile(`\[[^\]]*\]\(([^)\s]+)\)`)

// subPage is a discovered candidate sub-page.
type subPage struct {
	url      string
	priority int
	order    int
}

// CrawlResult is the combined content of one deep crawl.
type CrawlResult struct {
	MainPage       *scrape.Page
	Combined       string
	PagesCrawled   int
	HasSpeakerPage bool
}

// Crawler deep-crawls one event page: the main page plus up to three
// speaker/agenda sub-pages, combined into one markdown document.
type Crawler struct {
	scraper scrape.Scraper
	retrier *resilience.Retrier
}

// NewCrawler creates a crawler over the given scraper.
func NewCrawler(scraper scrape.Scraper, retrier *resilience.Retrier) *Crawler {
	return &Crawler{scraper: scraper, retrier: retrier}
}

// Crawl fetches pageURL and its speaker sub-pages. The main fetch goes
// through the retry engine; sub-page failures are logged and skipped.
func (c *Crawler) Crawl(ctx context.Context, pageURL string) (*CrawlResult, error) {
	var main *scrape.Page
	err := c.retrier.ExecuteWithRetry(ctx, "scrape", func(attemptCtx context.Context) error {
		var scrapeErr error
		main, scrapeErr = c.scraper.Scrape(attemptCtx, pageURL)
		return scrapeErr
	})
	if err != nil {
		return nil, fmt.Errorf("main page fetch failed for %s: %w", pageURL, err)
	}

	result := &CrawlResult{
		MainPage:     main,
		Combined:     main.Markdown,
		PagesCrawled: 1,
	}

	var speakerContents []string
	for _, sub := range discoverSubPages(pageURL, main.Markdown, maxSubPages) {
		page, err := c.scraper.Scrape(ctx, sub)
		if err != nil {
			slog.Debug("Sub-page fetch failed", "url", sub, "error", err)
			continue
		}
		if len(page.Markdown) < minSubPageContent {
			continue
		}
		speakerContents = append(speakerContents, page.Markdown)
		result.PagesCrawled++
		result.HasSpeakerPage = true
	}

	if len(speakerContents) > 0 {
		result.Combined = main.Markdown + speakerPagesSeparator + strings.Join(speakerContents, subPageSeparator)
	}
	return result, nil
}

// discoverSubPages extracts same-origin sub-page candidates from the
// main page markdown, adds the synthesised common paths, and returns
// the top max by priority.
func discoverSubPages(baseURL, markdown string, max int) []string {
	base, err := url.Parse(baseURL)
	if err != nil || base.Host == "" {
		return nil
	}

	seen := map[string]struct{}{canonicalPath(base.Path): {}}
	var pages []subPage
	order := 0

	add := func(raw string) {
		u, err := base.Parse(raw)
		if err != nil || u.Host != base.Host {
			return
		}
		path := canonicalPath(u.Path)
		if _, dup := seen[path]; dup || path == "" {
			return
		}
		prio := classifyPath(path)
		if prio == 0 {
			return
		}
		seen[path] = struct{}{}
		u.Fragment = ""
		u.RawQuery = ""
		pages = append(pages, subPage{url: u.String(), priority: prio, order: order})
		order++
	}

	for _, m := range markdownLinkPattern.FindAllStringSubmatch(markdown, -1) {
		add(m[1])
	}
	for _, p := range synthesisedPaths {
		add(p)
	}

	sort.SliceStable(pages, func(i, j int) bool {
		if pages[i].priority != pages[j].priority {
			return pages[i].priority > pages[j].priority
		}
		return pages[i].order < pages[j].order
	})

	if len(pages) > max {
		pages = pages[:max]
	}
	out := make([]string, len(pages))
	for i, p := range pages {
		out[i] = p.url
	}
	return out
}

func canonicalPath(p string) string {
	return strings.Trim(strings.ToLower(p), "/")
}

// classifyPath maps a path to its crawl priority; 0 means skip.
func classifyPath(path string) int {
	switch {
	case containsAny(path, highPriorityPaths):
		return 3
	case containsAny(path, mediumPriorityPaths):
		return 2
	case containsAny(path, lowPriorityPaths):
		return 1
	default:
		return 0
	}
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
