// Package prioritize scores discovered URLs for fit to the query using
// chunked LLM calls with a JSON repair ladder and a heuristic fallback.
package prioritize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/eventscout/eventscout/pkg/llm"
	"github.com/eventscout/eventscout/pkg/metrics"
	"github.com/eventscout/eventscout/pkg/models"
	"github.com/eventscout/eventscout/pkg/resilience"
)

// Outcome categorises how one chunk's LLM call ended.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeTimeout Outcome = "timeout"
	OutcomeQuota   Outcome = "quota"
	OutcomeSafety  Outcome = "safety"
	OutcomeInvalid Outcome = "invalid"
	OutcomeNetwork Outcome = "network"
	OutcomeUnknown Outcome = "unknown"
)

// Metrics describes one prioritisation pass.
type Metrics struct {
	Chunks       int             `json:"chunks"`
	Outcomes     map[Outcome]int `json:"outcomes"`
	FallbackURLs int             `json:"fallbackUrls"`
}

// Config tunes the prioritiser. Zero values use defaults.
type Config struct {
	ChunkSize   int           // URLs per LLM call, default 3
	CallTimeout time.Duration // per-call deadline, default 12s
	CallSpacing time.Duration // minimum gap between calls, default 1s
	Threshold   float64       // minimum score to keep, default 0.4
}

func (c Config) withDefaults() Config {
	if c.ChunkSize <= 0 {
		c.ChunkSize = 3
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 12 * time.Second
	}
	if c.CallSpacing <= 0 {
		c.CallSpacing = time.Second
	}
	if c.Threshold <= 0 {
		c.Threshold = 0.4
	}
	return c
}

// scoreSchema constrains the model to the exact result shape.
const scoreSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "properties": {
      "url": {"type": "string"},
      "score": {"type": "number"},
      "reason": {"type": "string"}
    },
    "required": ["url", "score"]
  }
}`

// Prioritizer scores URLs via the LLM, degrading to heuristics per
// chunk. Safe for concurrent use; call spacing is enforced globally.
type Prioritizer struct {
	client llm.Client
	budget *llm.Budget // nil disables budget gating
	cfg    Config

	mu       sync.Mutex
	lastCall time.Time

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// New creates a prioritiser. client may be nil, in which case every
// URL gets a fallback score. budget may be nil.
func New(client llm.Client, budget *llm.Budget, cfg Config) *Prioritizer {
	return &Prioritizer{
		client: client,
		budget: budget,
		cfg:    cfg.withDefaults(),
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Prioritize scores every URL and returns the ones at or above the
// threshold, best first. Ties keep input order. A chunk's failure
// never fails the stage: its URLs get fallback scores.
func (p *Prioritizer) Prioritize(ctx context.Context, urls []models.CandidateURL, params models.SearchParams, profile *models.UserProfile) ([]models.PrioritisedURL, Metrics) {
	m := Metrics{Outcomes: make(map[Outcome]int)}
	if len(urls) == 0 {
		return nil, m
	}

	instruction := p.instruction(params, profile)
	scored := make([]models.PrioritisedURL, len(urls))

	for start := 0; start < len(urls); start += p.cfg.ChunkSize {
		end := min(start+p.cfg.ChunkSize, len(urls))
		chunk := urls[start:end]
		m.Chunks++

		entries, outcome := p.scoreChunk(ctx, instruction, chunk)
		m.Outcomes[outcome]++
		metrics.LLMOutcomes.WithLabelValues(string(outcome)).Inc()

		byURL := make(map[string]scoredURL, len(entries))
		for _, e := range entries {
			byURL[e.URL] = e
		}

		for i, u := range chunk {
			idx := start + i
			entry, ok := byURL[u.URL]
			if !ok || !entry.ScoreOK {
				scored[idx] = models.PrioritisedURL{
					URL:    u.URL,
					Score:  fallbackScore(u, idx, params.Country, profile),
					Reason: "fallback",
				}
				m.FallbackURLs++
				continue
			}
			scored[idx] = models.PrioritisedURL{
				URL:    u.URL,
				Score:  clamp01(entry.Score),
				Reason: truncateReason(entry.Reason),
			}
		}
	}

	for i, u := range urls {
		scored[i].Score = clamp01(scored[i].Score + calculateURLBonus(u, params.Country))
	}

	sort.SliceStable(scored, func(a, b int) bool { return scored[a].Score > scored[b].Score })

	kept := scored[:0]
	for _, s := range scored {
		if s.Score >= p.cfg.Threshold {
			kept = append(kept, s)
		}
	}

	slog.Info("Prioritisation complete",
		"urls", len(urls),
		"kept", len(kept),
		"chunks", m.Chunks,
		"fallbacks", m.FallbackURLs)
	return kept, m
}

// scoreChunk runs one LLM call for a chunk of URLs. The returned
// entries are already filtered to URLs present in the chunk.
func (p *Prioritizer) scoreChunk(ctx context.Context, instruction string, chunk []models.CandidateURL) ([]scoredURL, Outcome) {
	if p.client == nil {
		return nil, OutcomeQuota
	}
	if err := p.waitSpacing(ctx); err != nil {
		return nil, OutcomeTimeout
	}
	if p.budget != nil {
		if err := p.budget.Consume(); err != nil {
			slog.Debug("Prioritiser budget spent, using fallback scores", "error", err)
			return nil, OutcomeQuota
		}
	}

	var b strings.Builder
	b.WriteString("Score these URLs:\n")
	for _, u := range chunk {
		b.WriteString(u.URL)
		b.WriteByte('\n')
	}

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.CallTimeout)
	defer cancel()

	raw, err := p.client.Generate(callCtx, instruction, b.String(), scoreSchema)
	if err != nil {
		outcome := classifyOutcome(err)
		slog.Warn("Prioritiser LLM call failed", "outcome", outcome, "error", err)
		return nil, outcome
	}

	entries, err := parseScores(raw)
	if err != nil {
		slog.Warn("Prioritiser response unparseable", "error", err)
		return nil, OutcomeInvalid
	}

	inChunk := make(map[string]struct{}, len(chunk))
	for _, u := range chunk {
		inChunk[u.URL] = struct{}{}
	}
	kept := entries[:0]
	for _, e := range entries {
		if _, ok := inChunk[e.URL]; ok {
			kept = append(kept, e)
		}
	}
	return kept, OutcomeSuccess
}

// waitSpacing enforces the minimum gap between LLM calls.
func (p *Prioritizer) waitSpacing(ctx context.Context) error {
	p.mu.Lock()
	wait := p.cfg.CallSpacing - p.now().Sub(p.lastCall)
	if wait < 0 {
		wait = 0
	}
	p.lastCall = p.now().Add(wait)
	p.mu.Unlock()

	if wait == 0 {
		return nil
	}
	return p.sleep(ctx, wait)
}

// instruction builds the compact system instruction: industry focus,
// country, window, one industry and one ICP hint, strict output rules.
func (p *Prioritizer) instruction(params models.SearchParams, profile *models.UserProfile) string {
	industry := profile.Industry()
	if industry == "" {
		industry = "business"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Score each URL 0.0-1.0 for relevance to %s industry events in %s between %s and %s.",
		industry, params.Country, params.DateFrom, params.DateTo)
	if icp := profile.PrimaryICP(); icp != "" {
		fmt.Fprintf(&b, " Target audience: %s.", icp)
	}
	b.WriteString(` Respond with a JSON array only, no prose: [{"url":"...","score":0.0,"reason":"..."}]. reason must be 10 characters or fewer.`)
	return b.String()
}

const maxReasonLen = 10

func truncateReason(reason string) string {
	runes := []rune(strings.TrimSpace(reason))
	if len(runes) > maxReasonLen {
		return string(runes[:maxReasonLen])
	}
	return string(runes)
}

// classifyOutcome maps an LLM call error to a metrics category.
func classifyOutcome(err error) Outcome {
	switch {
	case errors.Is(err, llm.ErrBudgetExhausted), errors.Is(err, llm.ErrNotConfigured):
		return OutcomeQuota
	case errors.Is(err, context.DeadlineExceeded):
		return OutcomeTimeout
	}

	var httpErr *resilience.HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.Status == 429:
			return OutcomeQuota
		case strings.Contains(strings.ToUpper(httpErr.Body), "SAFETY"):
			return OutcomeSafety
		case httpErr.Status >= 500:
			return OutcomeNetwork
		}
		return OutcomeUnknown
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return OutcomeNetwork
	}
	if resilience.Classify(err) == resilience.Transient {
		return OutcomeNetwork
	}
	return OutcomeUnknown
}
