package llm

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

const defaultVoyageModel = "rerank-2-lite"

// VoyageConfig configures the Voyage rerank client.
type VoyageConfig struct {
	BaseURL string // default https://api.voyageai.com/v1
	APIKey  string
	Model   string
	Timeout time.Duration
}

// VoyageClient calls the Voyage rerank endpoint.
type VoyageClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewVoyageClient creates a reranker client. An empty API key yields a
// client whose calls fail with ErrNotConfigured, which the gate treats
// as "skip reranking".
func NewVoyageClient(cfg VoyageConfig) *VoyageClient {
	base := cfg.BaseURL
	if base == "" {
		base = "https://api.voyageai.com/v1"
	}
	model := cfg.Model
	if model == "" {
		model = defaultVoyageModel
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &VoyageClient{
		baseURL:    base,
		apiKey:     cfg.APIKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Configured reports whether an API key is present.
func (c *VoyageClient) Configured() bool { return c.apiKey != "" }

type voyageRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Model     string   `json:"model"`
	TopK      int      `json:"top_k,omitempty"`
}

type voyageResponse struct {
	Data []RankedDocument `json:"data"`
}

// Rerank implements Reranker.
func (c *VoyageClient) Rerank(ctx context.Context, instruction string, documents []string, topK int) ([]RankedDocument, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}
	if len(documents) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(voyageRequest{
		Query:     instruction,
		Documents: documents,
		Model:     c.model,
		TopK:      topK,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read rerank response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &resilience.HTTPError{Status: resp.StatusCode, Body: string(raw)}
	}

	var parsed voyageResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode rerank response: %w", err)
	}
	return parsed.Data, nil
}
