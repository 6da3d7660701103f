// Package rerank implements the pre-LLM gate: aggregator filtering,
// optional external reranking, and a micro-bias toward in-country
// event pages.
package rerank

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/eventscout/eventscout/pkg/llm"
	"github.com/eventscout/eventscout/pkg/models"
	"github.com/eventscout/eventscout/pkg/providers"
)

// Bias bonuses added on top of the reranker relevance score. Small by
// construction so the reranker's ordering dominates when it ran.
const (
	countryTLDBonus  = 0.05
	speakerPathBonus = 0.04
)

// Config tunes the gate. Zero values fall back to safe defaults.
type Config struct {
	MinNonAggregatorURLs   int
	MaxBackstopAggregators int
	MaxVoyageDocs          int
	TopK                   int
}

func (c Config) withDefaults() Config {
	if c.MinNonAggregatorURLs <= 0 {
		c.MinNonAggregatorURLs = 5
	}
	if c.MaxBackstopAggregators < 0 {
		c.MaxBackstopAggregators = 0
	}
	if c.MaxVoyageDocs <= 0 {
		c.MaxVoyageDocs = 25
	}
	if c.TopK <= 0 {
		c.TopK = 15
	}
	return c
}

// Metrics describes one gate pass.
type Metrics struct {
	Input              int  `json:"input"`
	Kept               int  `json:"kept"`
	DroppedAggregators int  `json:"droppedAggregators"`
	BackstopUsed       int  `json:"backstopUsed"`
	BiasHits           int  `json:"biasHits"`
	Reranked           bool `json:"reranked"`
}

// Gate reduces a candidate URL list before the prioritiser sees it.
// A nil reranker skips the external call and relies on bias only.
type Gate struct {
	reranker llm.Reranker
	cfg      Config
}

// NewGate creates a gate. reranker may be nil.
func NewGate(reranker llm.Reranker, cfg Config) *Gate {
	return &Gate{reranker: reranker, cfg: cfg.withDefaults()}
}

// Apply runs the gate: partition aggregators, truncate, rerank, bias,
// take top-K. The returned slice is ordered best first.
func (g *Gate) Apply(ctx context.Context, urls []models.CandidateURL, params models.SearchParams, industry string) ([]models.CandidateURL, Metrics) {
	m := Metrics{Input: len(urls)}
	if len(urls) == 0 {
		return nil, m
	}

	var organic, aggregators []models.CandidateURL
	for _, u := range urls {
		if u.IsAggregator() {
			aggregators = append(aggregators, u)
		} else {
			organic = append(organic, u)
		}
	}

	kept := organic
	if len(organic) >= g.cfg.MinNonAggregatorURLs {
		m.DroppedAggregators = len(aggregators)
	} else {
		backstop := min(len(aggregators), g.cfg.MaxBackstopAggregators)
		kept = append(kept, aggregators[:backstop]...)
		m.BackstopUsed = backstop
		m.DroppedAggregators = len(aggregators) - backstop
	}

	if len(kept) > g.cfg.MaxVoyageDocs {
		kept = kept[:g.cfg.MaxVoyageDocs]
	}

	scores := make([]float64, len(kept))
	if g.reranker != nil {
		docs := make([]string, len(kept))
		for i, u := range kept {
			docs[i] = u.URL
		}
		ranked, err := g.reranker.Rerank(ctx, g.instruction(params, industry), docs, len(docs))
		switch {
		case errors.Is(err, llm.ErrNotConfigured):
			// No key: bias-only pass.
		case err != nil:
			slog.Warn("Reranker call failed, falling back to bias ordering", "error", err)
		default:
			for _, r := range ranked {
				if r.Index >= 0 && r.Index < len(scores) {
					scores[r.Index] = r.RelevanceScore
				}
			}
			m.Reranked = true
		}
	}

	for i, u := range kept {
		bonus := urlBias(u, params.Country)
		if bonus > 0 {
			m.BiasHits++
		}
		scores[i] += bonus
	}

	order := make([]int, len(kept))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	n := min(len(kept), g.cfg.TopK)
	out := make([]models.CandidateURL, 0, n)
	for _, idx := range order[:n] {
		out = append(out, kept[idx])
	}
	m.Kept = len(out)

	slog.Debug("Rerank gate applied",
		"input", m.Input,
		"kept", m.Kept,
		"droppedAggregators", m.DroppedAggregators,
		"backstop", m.BackstopUsed,
		"reranked", m.Reranked)
	return out, m
}

// instruction is the templated rerank query.
func (g *Gate) instruction(params models.SearchParams, industry string) string {
	if industry == "" {
		industry = "business"
	}
	return fmt.Sprintf(
		"Official pages of %s industry events (conferences, summits, workshops) in %s taking place between %s and %s",
		industry, params.Country, params.DateFrom, params.DateTo)
}

// speakerPathFragments mark event pages that already expose a speaker
// or agenda section.
var speakerPathFragments = []string{
	"referent", "speaker", "presenter", "faculty",
	"agenda", "program", "schedule",
}

// urlBias computes the micro-bias bonus for one URL.
func urlBias(u models.CandidateURL, country string) float64 {
	var bonus float64
	if providers.HasCountryTLD(u.URL, country) {
		bonus += countryTLDBonus
	}
	lower := strings.ToLower(u.URL)
	for _, frag := range speakerPathFragments {
		if strings.Contains(lower, frag) {
			bonus += speakerPathBonus
			break
		}
	}
	return bonus
}
