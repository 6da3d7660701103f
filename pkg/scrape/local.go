package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/eventscout/eventscout/pkg/resilience"
)

const localUserAgent = "eventscout/1.0 (+https://github.com/eventscout/eventscout)"

// LocalScraper fetches a page directly and converts it to markdown.
// Used as the degradation path when Firecrawl is unavailable or
// unconfigured. No JavaScript rendering: static HTML only.
type LocalScraper struct {
	httpClient *http.Client
}

// NewLocalScraper creates the fallback scraper.
func NewLocalScraper() *LocalScraper {
	return &LocalScraper{
		httpClient: &http.Client{Timeout: time.Minute},
	}
}

// Scrape fetches url, strips non-content elements, and converts the
// remaining HTML to markdown.
func (s *LocalScraper) Scrape(ctx context.Context, url string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", localUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &resilience.HTTPError{Status: resp.StatusCode}
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return nil, fmt.Errorf("unsupported content type %q", ct)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	description, _ := doc.Find(`meta[name="description"]`).First().Attr("content")

	// Strip boilerplate before conversion; navigation noise would
	// otherwise flood the speaker extractor.
	doc.Find("script, style, noscript, iframe, svg, header nav, footer").Remove()

	contentHTML, err := doc.Find("body").First().Html()
	if err != nil || contentHTML == "" {
		contentHTML = string(body)
	}

	markdown, err := htmltomarkdown.ConvertString(contentHTML)
	if err != nil {
		return nil, fmt.Errorf("markdown conversion failed: %w", err)
	}

	return &Page{
		URL:         url,
		Markdown:    markdown,
		Title:       title,
		Description: strings.TrimSpace(description),
	}, nil
}
