package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"encoding/json"

	"github.com/eventscout/eventscout/pkg/models"
	"github.com/eventscout/eventscout/pkg/resilience"
)

// CSEProvider searches through a Google Programmable Search Engine.
// Queries are simplified first (CSE rejects long boolean expressions)
// and results are filtered against the country TLD map.
type CSEProvider struct {
	baseURL    string
	apiKey     string
	engineID   string
	httpClient *http.Client
}

// NewCSEProvider creates the CSE search arm.
func NewCSEProvider(baseURL, apiKey, engineID string) *CSEProvider {
	return &CSEProvider{
		baseURL:    baseURL,
		apiKey:     apiKey,
		engineID:   engineID,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Name implements SearchProvider.
func (p *CSEProvider) Name() models.Source { return models.SourceCSE }

type cseResponse struct {
	Items []struct {
		Link    string `json:"link"`
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
	} `json:"items"`
}

// Search implements SearchProvider.
func (p *CSEProvider) Search(ctx context.Context, req Request) ([]Item, error) {
	if p.apiKey == "" || p.engineID == "" {
		return nil, fmt.Errorf("cse provider not configured")
	}

	limit := req.Limit
	if limit <= 0 || limit > 10 {
		limit = 10 // CSE page size ceiling
	}

	q := url.Values{}
	q.Set("key", p.apiKey)
	q.Set("cx", p.engineID)
	q.Set("q", SimplifyForCSE(req.Query))
	q.Set("num", strconv.Itoa(limit))
	if req.Country != "" {
		q.Set("gl", req.Country)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build cse request: %w", err)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("cse search failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read cse response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &resilience.HTTPError{Status: resp.StatusCode}
	}

	var parsed cseResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode cse response: %w", err)
	}

	items := make([]Item, 0, len(parsed.Items))
	for _, it := range parsed.Items {
		if it.Link == "" || !MatchesCountry(it.Link, req.Country) {
			continue
		}
		items = append(items, Item{URL: it.Link, Title: it.Title, Description: it.Snippet})
	}
	return items, nil
}
