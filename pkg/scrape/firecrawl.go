package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/eventscout/eventscout/pkg/resilience"
)

// FirecrawlScraper calls the Firecrawl scrape endpoint, which renders a
// page and returns it as markdown.
type FirecrawlScraper struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewFirecrawlScraper creates a Firecrawl-backed scraper.
func NewFirecrawlScraper(baseURL, apiKey string) *FirecrawlScraper {
	return &FirecrawlScraper{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute, // safety net; callers set real deadlines
		},
	}
}

type firecrawlScrapeRequest struct {
	URL     string   `json:"url"`
	Formats []string `json:"formats"`
}

type firecrawlScrapeResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Markdown string `json:"markdown"`
		Metadata struct {
			Title       string `json:"title"`
			Description string `json:"description"`
		} `json:"metadata"`
	} `json:"data"`
	Error string `json:"error,omitempty"`
}

// Scrape fetches url as markdown through Firecrawl.
func (s *FirecrawlScraper) Scrape(ctx context.Context, url string) (*Page, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("firecrawl scraper not configured")
	}

	payload, err := json.Marshal(firecrawlScrapeRequest{URL: url, Formats: []string{"markdown"}})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal scrape request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/scrape", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build scrape request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("firecrawl scrape failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read scrape response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &resilience.HTTPError{Status: resp.StatusCode}
	}

	var parsed firecrawlScrapeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode scrape response: %w", err)
	}
	if !parsed.Success {
		return nil, fmt.Errorf("firecrawl scrape unsuccessful: %s", parsed.Error)
	}

	return &Page{
		URL:         url,
		Markdown:    parsed.Data.Markdown,
		Title:       parsed.Data.Metadata.Title,
		Description: parsed.Data.Metadata.Description,
	}, nil
}
