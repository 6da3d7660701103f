package rerank

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventscout/eventscout/pkg/llm"
	"github.com/eventscout/eventscout/pkg/models"
)

type stubReranker struct {
	ranked []llm.RankedDocument
	err    error
	calls  int
	docs   []string
}

func (s *stubReranker) Rerank(_ context.Context, _ string, documents []string, _ int) ([]llm.RankedDocument, error) {
	s.calls++
	s.docs = documents
	return s.ranked, s.err
}

func candidates(urls ...string) []models.CandidateURL {
	out := make([]models.CandidateURL, 0, len(urls))
	for _, raw := range urls {
		c, ok := models.NewCandidateURL(raw)
		if !ok {
			panic("invalid test url: " + raw)
		}
		out = append(out, c)
	}
	return out
}

func testParams() models.SearchParams {
	return models.SearchParams{
		UserText: "compliance",
		Country:  "DE",
		DateFrom: "2025-03-01",
		DateTo:   "2025-03-31",
	}
}

func TestGate_DropsAggregatorsWhenEnoughOrganic(t *testing.T) {
	g := NewGate(nil, Config{MinNonAggregatorURLs: 2, TopK: 10})
	urls := candidates(
		"https://compliance-kongress.de/2025",
		"https://legaltech.de/summit",
		"https://www.eventbrite.de/e/some-event",
		"https://10times.com/compliance",
	)

	out, m := g.Apply(context.Background(), urls, testParams(), "legal")

	assert.Len(t, out, 2)
	assert.Equal(t, 2, m.DroppedAggregators)
	assert.Equal(t, 0, m.BackstopUsed)
	for _, u := range out {
		assert.False(t, u.IsAggregator())
	}
}

func TestGate_BackstopKeepsSomeAggregators(t *testing.T) {
	g := NewGate(nil, Config{MinNonAggregatorURLs: 5, MaxBackstopAggregators: 2, TopK: 10})
	urls := candidates(
		"https://compliance-kongress.de/2025",
		"https://www.eventbrite.de/e/one",
		"https://www.eventbrite.de/e/two",
		"https://10times.com/three",
	)

	out, m := g.Apply(context.Background(), urls, testParams(), "legal")

	assert.Len(t, out, 3)
	assert.Equal(t, 2, m.BackstopUsed)
	assert.Equal(t, 1, m.DroppedAggregators)
}

func TestGate_TruncatesToMaxVoyageDocs(t *testing.T) {
	r := &stubReranker{}
	g := NewGate(r, Config{MinNonAggregatorURLs: 1, MaxVoyageDocs: 2, TopK: 10})
	urls := candidates(
		"https://a.de/event",
		"https://b.de/event",
		"https://c.de/event",
	)

	out, _ := g.Apply(context.Background(), urls, testParams(), "legal")

	assert.Len(t, out, 2)
	assert.Len(t, r.docs, 2)
}

func TestGate_RerankerOrdersResults(t *testing.T) {
	r := &stubReranker{ranked: []llm.RankedDocument{
		{Index: 2, RelevanceScore: 0.9},
		{Index: 0, RelevanceScore: 0.5},
		{Index: 1, RelevanceScore: 0.1},
	}}
	g := NewGate(r, Config{MinNonAggregatorURLs: 1, TopK: 10})
	urls := candidates(
		"https://first.com/x",
		"https://second.com/x",
		"https://third.com/x",
	)

	out, m := g.Apply(context.Background(), urls, testParams(), "legal")

	require.Len(t, out, 3)
	assert.True(t, m.Reranked)
	assert.Equal(t, "https://third.com/x", out[0].URL)
	assert.Equal(t, "https://first.com/x", out[1].URL)
}

func TestGate_RerankerFailureFallsBackToBias(t *testing.T) {
	r := &stubReranker{err: errors.New("voyage down")}
	g := NewGate(r, Config{MinNonAggregatorURLs: 1, TopK: 10})
	urls := candidates(
		"https://generic.com/page",
		"https://kongress.de/speakers",
	)

	out, m := g.Apply(context.Background(), urls, testParams(), "legal")

	require.Len(t, out, 2)
	assert.False(t, m.Reranked)
	// Country TLD + speaker path beats the unbonused generic URL.
	assert.Equal(t, "https://kongress.de/speakers", out[0].URL)
	assert.Equal(t, 1, m.BiasHits)
}

func TestGate_NotConfiguredSkipsQuietly(t *testing.T) {
	r := &stubReranker{err: llm.ErrNotConfigured}
	g := NewGate(r, Config{MinNonAggregatorURLs: 1, TopK: 1})
	urls := candidates("https://a.de/event", "https://b.de/event")

	out, m := g.Apply(context.Background(), urls, testParams(), "legal")

	assert.Len(t, out, 1)
	assert.False(t, m.Reranked)
}

func TestGate_TiesKeepInsertionOrder(t *testing.T) {
	g := NewGate(nil, Config{MinNonAggregatorURLs: 1, TopK: 10})
	urls := candidates(
		"https://one.com/x",
		"https://two.com/x",
		"https://three.com/x",
	)

	out, _ := g.Apply(context.Background(), urls, testParams(), "legal")

	require.Len(t, out, 3)
	assert.Equal(t, "https://one.com/x", out[0].URL)
	assert.Equal(t, "https://two.com/x", out[1].URL)
	assert.Equal(t, "https://three.com/x", out[2].URL)
}

func TestGate_EmptyInput(t *testing.T) {
	g := NewGate(nil, Config{})
	out, m := g.Apply(context.Background(), nil, testParams(), "")
	assert.Empty(t, out)
	assert.Equal(t, 0, m.Input)
}
