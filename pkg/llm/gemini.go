package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/eventscout/eventscout/pkg/resilience"
)

// GeminiConfig configures the Gemini REST client.
type GeminiConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// GeminiClient implements Client against the Gemini generateContent
// REST API with structured JSON output.
type GeminiClient struct {
	cfg        GeminiConfig
	httpClient *http.Client
	budget     *Budget // optional
}

// NewGeminiClient creates a Gemini client. budget may be nil.
func NewGeminiClient(cfg GeminiConfig, budget *Budget) *GeminiClient {
	return &GeminiClient{
		cfg:    cfg,
		budget: budget,
		httpClient: &http.Client{
			// Per-call deadlines come from the caller's context; this is
			// only a safety net against leaked connections.
			Timeout: 2 * time.Minute,
		},
	}
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"system_instruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  geminiGenConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenConfig struct {
	ResponseMIMEType string          `json:"response_mime_type,omitempty"`
	ResponseSchema   json.RawMessage `json:"response_schema,omitempty"`
	Temperature      float64         `json:"temperature"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

// Generate calls generateContent and returns the first candidate's text.
func (c *GeminiClient) Generate(ctx context.Context, systemInstruction, userPrompt, schema string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", ErrNotConfigured
	}
	if c.budget != nil {
		if err := c.budget.Consume(); err != nil {
			return "", err
		}
	}

	reqBody := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: userPrompt}}},
		},
		GenerationConfig: geminiGenConfig{
			ResponseMIMEType: "application/json",
			Temperature:      0.1,
		},
	}
	if systemInstruction != "" {
		reqBody.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: systemInstruction}}}
	}
	if schema != "" {
		reqBody.GenerationConfig.ResponseSchema = json.RawMessage(schema)
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal gemini request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.cfg.BaseURL, c.cfg.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build gemini request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini call failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read gemini response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &resilience.HTTPError{Status: resp.StatusCode, Body: truncate(string(body), 200)}
	}

	var parsed geminiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode gemini response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	text := parsed.Candidates[0].Content.Parts[0].Text
	slog.Debug("Gemini call complete",
		"model", c.cfg.Model,
		"duration_ms", time.Since(start).Milliseconds(),
		"finish_reason", parsed.Candidates[0].FinishReason,
		"response_len", len(text))
	return text, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
