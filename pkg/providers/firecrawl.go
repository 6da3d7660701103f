package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/eventscout/eventscout/pkg/models"
	"github.com/eventscout/eventscout/pkg/resilience"
)

// FirecrawlProvider searches the web through the Firecrawl search API.
// It is the preferred provider: results arrive with markdown content
// already rendered.
type FirecrawlProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewFirecrawlProvider creates the Firecrawl search arm.
func NewFirecrawlProvider(baseURL, apiKey string) *FirecrawlProvider {
	return &FirecrawlProvider{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

// Name implements SearchProvider.
func (p *FirecrawlProvider) Name() models.Source { return models.SourceFirecrawl }

type firecrawlSearchRequest struct {
	Query    string `json:"query"`
	Limit    int    `json:"limit"`
	TBS      string `json:"tbs,omitempty"` // date-range hint
	Location string `json:"location,omitempty"`
}

type firecrawlSearchResponse struct {
	Success bool `json:"success"`
	Data    []struct {
		URL         string `json:"url"`
		Title       string `json:"title"`
		Description string `json:"description"`
		Markdown    string `json:"markdown,omitempty"`
	} `json:"data"`
	Error string `json:"error,omitempty"`
}

// Search implements SearchProvider.
func (p *FirecrawlProvider) Search(ctx context.Context, req Request) ([]Item, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("firecrawl provider not configured")
	}

	limit := req.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	body := firecrawlSearchRequest{Query: req.Query, Limit: limit}
	if req.DateFrom != "" && req.DateTo != "" {
		body.TBS = fmt.Sprintf("cdr:1,cd_min:%s,cd_max:%s", req.DateFrom, req.DateTo)
	}
	if req.Country != "" {
		body.Location = req.Country
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal firecrawl request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/search", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build firecrawl request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("firecrawl search failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read firecrawl response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &resilience.HTTPError{Status: resp.StatusCode}
	}

	var parsed firecrawlSearchResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode firecrawl response: %w", err)
	}
	if !parsed.Success {
		return nil, fmt.Errorf("firecrawl search unsuccessful: %s", parsed.Error)
	}

	items := make([]Item, 0, len(parsed.Data))
	for _, d := range parsed.Data {
		if d.URL == "" {
			continue
		}
		items = append(items, Item{
			URL:         d.URL,
			Title:       d.Title,
			Description: d.Description,
			Markdown:    d.Markdown,
		})
	}
	return items, nil
}
