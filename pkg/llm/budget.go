package llm

import (
	"fmt"

	"github.com/eventscout/eventscout/pkg/ratelimit"
)

// Budget gates LLM calls on the advisory hour/day aggregates tracked by
// the rate limiter. Exhaustion is not an error condition for the
// pipeline: callers fall back to heuristic scoring or rule-based
// extraction.
type Budget struct {
	limiter    *ratelimit.Limiter
	service    string
	maxPerHour int
	maxPerDay  int
}

// NewBudget creates a budget guard over the shared limiter. Zero
// limits disable the corresponding check.
func NewBudget(limiter *ratelimit.Limiter, service string, maxPerHour, maxPerDay int) *Budget {
	return &Budget{
		limiter:    limiter,
		service:    service,
		maxPerHour: maxPerHour,
		maxPerDay:  maxPerDay,
	}
}

// Consume records one call and returns ErrBudgetExhausted when either
// aggregate is over its limit.
func (b *Budget) Consume() error {
	if !b.limiter.Allow(b.service) {
		return fmt.Errorf("%s rate limited: %w", b.service, ErrBudgetExhausted)
	}
	usage := b.limiter.Usage(b.service)
	if b.maxPerHour > 0 && usage.Hour > b.maxPerHour {
		return fmt.Errorf("%s hourly budget (%d) spent: %w", b.service, b.maxPerHour, ErrBudgetExhausted)
	}
	if b.maxPerDay > 0 && usage.Day > b.maxPerDay {
		return fmt.Errorf("%s daily budget (%d) spent: %w", b.service, b.maxPerDay, ErrBudgetExhausted)
	}
	return nil
}
