package prioritize

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventscout/eventscout/pkg/metrics"
	"github.com/eventscout/eventscout/pkg/models"
	"github.com/eventscout/eventscout/pkg/resilience"
)

// scriptedClient returns canned responses per call, in order.
type scriptedClient struct {
	responses []string
	err       error
	calls     atomic.Int32
	prompts   []string
}

func (c *scriptedClient) Generate(_ context.Context, _, userPrompt, _ string) (string, error) {
	n := int(c.calls.Add(1)) - 1
	c.prompts = append(c.prompts, userPrompt)
	if c.err != nil {
		return "", c.err
	}
	if n < len(c.responses) {
		return c.responses[n], nil
	}
	return "[]", nil
}

func newTestPrioritizer(client *scriptedClient, cfg Config) *Prioritizer {
	p := New(client, nil, cfg)
	p.sleep = func(context.Context, time.Duration) error { return nil }
	return p
}

func urls(raws ...string) []models.CandidateURL {
	out := make([]models.CandidateURL, 0, len(raws))
	for _, r := range raws {
		c, ok := models.NewCandidateURL(r)
		if !ok {
			panic("bad test url " + r)
		}
		out = append(out, c)
	}
	return out
}

func deParams() models.SearchParams {
	return models.SearchParams{UserText: "compliance", Country: "DE", DateFrom: "2025-03-01", DateTo: "2025-03-31"}
}

func TestPrioritize_ScoresAndFilters(t *testing.T) {
	client := &scriptedClient{responses: []string{
		`[{"url":"https://a.de/event","score":0.9,"reason":"fits"},
		  {"url":"https://b.de/page","score":0.2,"reason":"weak"}]`,
	}}
	p := newTestPrioritizer(client, Config{Threshold: 0.4})

	out, m := p.Prioritize(context.Background(), urls("https://a.de/event", "https://b.de/page"), deParams(), nil)

	require.Len(t, out, 1)
	assert.Equal(t, "https://a.de/event", out[0].URL)
	assert.Equal(t, 1, m.Outcomes[OutcomeSuccess])
	assert.Equal(t, 0, m.FallbackURLs)
}

func TestPrioritize_RecordsChunkOutcomeCounters(t *testing.T) {
	success := metrics.LLMOutcomes.WithLabelValues(string(OutcomeSuccess))
	before := testutil.ToFloat64(success)

	client := &scriptedClient{responses: []string{`[]`}}
	p := newTestPrioritizer(client, Config{})
	_, m := p.Prioritize(context.Background(), urls("https://a.de/event"), deParams(), nil)

	require.Equal(t, 1, m.Outcomes[OutcomeSuccess])
	assert.Equal(t, before+1, testutil.ToFloat64(success))
}

func TestPrioritize_ChunksInputs(t *testing.T) {
	client := &scriptedClient{responses: []string{`[]`, `[]`}}
	p := newTestPrioritizer(client, Config{ChunkSize: 3})

	_, m := p.Prioritize(context.Background(), urls(
		"https://a.de/x", "https://b.de/x", "https://c.de/x",
		"https://d.de/x", "https://e.de/x",
	), deParams(), nil)

	assert.Equal(t, 2, m.Chunks)
	assert.Equal(t, int32(2), client.calls.Load())
	assert.Contains(t, client.prompts[0], "https://a.de/x")
	assert.Contains(t, client.prompts[1], "https://d.de/x")
}

func TestPrioritize_DropsForeignURLs(t *testing.T) {
	// The model returns a URL that was never in the chunk.
	client := &scriptedClient{responses: []string{
		`[{"url":"https://hallucinated.de/x","score":0.99},
		  {"url":"https://real.de/event/compliance-summit","score":0.8}]`,
	}}
	p := newTestPrioritizer(client, Config{Threshold: 0.1})

	out, m := p.Prioritize(context.Background(), urls("https://real.de/event/compliance-summit"), deParams(), nil)

	require.Len(t, out, 1)
	assert.Equal(t, "https://real.de/event/compliance-summit", out[0].URL)
	assert.Equal(t, 0, m.FallbackURLs)
}

func TestPrioritize_LLMFailureUsesFallback(t *testing.T) {
	client := &scriptedClient{err: &resilience.HTTPError{Status: 503, Body: "overloaded"}}
	p := newTestPrioritizer(client, Config{Threshold: 0.1})

	out, m := p.Prioritize(context.Background(), urls(
		"https://compliance-summit.de/event/berlin-2025",
		"https://www.eventbrite.de/e/something",
	), deParams(), nil)

	assert.Equal(t, 1, m.Outcomes[OutcomeNetwork])
	assert.Equal(t, 2, m.FallbackURLs)
	// The specific in-country event page survives; the aggregator
	// collapses below threshold.
	require.Len(t, out, 1)
	assert.Contains(t, out[0].URL, "compliance-summit.de")
	assert.Equal(t, "fallback", out[0].Reason)
}

func TestPrioritize_NilClientFallsBack(t *testing.T) {
	p := New(nil, nil, Config{Threshold: 0.1})

	out, m := p.Prioritize(context.Background(), urls("https://compliance-kongress.de/event/jahrestagung"), deParams(), nil)

	require.Len(t, out, 1)
	assert.Equal(t, m.Chunks, m.Outcomes[OutcomeQuota])
}

func TestPrioritize_ClampsAndTruncates(t *testing.T) {
	client := &scriptedClient{responses: []string{
		`[{"url":"https://a.com/page","score":7.5,"reason":"this reason is far too long"}]`,
	}}
	p := newTestPrioritizer(client, Config{Threshold: 0.1})

	out, _ := p.Prioritize(context.Background(), urls("https://a.com/page"), deParams(), nil)

	require.Len(t, out, 1)
	assert.LessOrEqual(t, out[0].Score, 1.0)
	assert.LessOrEqual(t, len(out[0].Reason), maxReasonLen)
}

func TestPrioritize_InvalidJSONCountsAsInvalid(t *testing.T) {
	client := &scriptedClient{responses: []string{`I refuse to answer in JSON.`}}
	p := newTestPrioritizer(client, Config{Threshold: 0.99})

	_, m := p.Prioritize(context.Background(), urls("https://a.de/x"), deParams(), nil)

	assert.Equal(t, 1, m.Outcomes[OutcomeInvalid])
	assert.Equal(t, 1, m.FallbackURLs)
}

func TestPrioritize_CallSpacing(t *testing.T) {
	client := &scriptedClient{responses: []string{`[]`, `[]`}}
	p := New(client, nil, Config{ChunkSize: 1, CallSpacing: time.Second})

	var slept time.Duration
	p.sleep = func(_ context.Context, d time.Duration) error {
		slept += d
		return nil
	}
	base := time.Now()
	p.now = func() time.Time { return base }

	p.Prioritize(context.Background(), urls("https://a.de/x", "https://b.de/x"), deParams(), nil)

	// Second call must wait out the full gap under a frozen clock.
	assert.Equal(t, time.Second, slept)
}

func TestClassifyOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want Outcome
	}{
		{context.DeadlineExceeded, OutcomeTimeout},
		{&resilience.HTTPError{Status: 429, Body: "quota"}, OutcomeQuota},
		{&resilience.HTTPError{Status: 400, Body: "blocked: SAFETY"}, OutcomeSafety},
		{&resilience.HTTPError{Status: 502, Body: "bad gateway"}, OutcomeNetwork},
		{fmt.Errorf("wrapped: %w", context.DeadlineExceeded), OutcomeTimeout},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classifyOutcome(tt.err), "error %v", tt.err)
	}
}
