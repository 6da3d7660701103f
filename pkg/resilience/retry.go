package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"
)

// RetrySchedule is the per-service attempt plan: one timeout per
// attempt, so slow services get progressively more room.
type RetrySchedule struct {
	Timeouts []time.Duration // len == max attempts
	Backoff  time.Duration   // base backoff between attempts
}

// defaultSchedules maps service names to their adaptive schedules.
var defaultSchedules = map[string]RetrySchedule{
	"search":     {Timeouts: []time.Duration{8 * time.Second, 12 * time.Second, 18 * time.Second}, Backoff: 500 * time.Millisecond},
	"scrape":     {Timeouts: []time.Duration{15 * time.Second, 22 * time.Second, 30 * time.Second}, Backoff: time.Second},
	"rerank":     {Timeouts: []time.Duration{5 * time.Second, 8 * time.Second}, Backoff: 400 * time.Millisecond},
	"llm":        {Timeouts: []time.Duration{12 * time.Second}, Backoff: time.Second},
}

// fallbackSchedule is used for services with no registered schedule.
var fallbackSchedule = RetrySchedule{
	Timeouts: []time.Duration{10 * time.Second, 15 * time.Second, 20 * time.Second},
	Backoff:  500 * time.Millisecond,
}

// Retrier executes functions with per-attempt timeouts, exponential
// backoff with jitter, and transient-only retry.
type Retrier struct {
	schedules map[string]RetrySchedule
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewRetrier creates a retrier with the default schedules plus any
// overrides.
func NewRetrier(overrides map[string]RetrySchedule) *Retrier {
	schedules := make(map[string]RetrySchedule, len(defaultSchedules)+len(overrides))
	for k, v := range defaultSchedules {
		schedules[k] = v
	}
	for k, v := range overrides {
		schedules[k] = v
	}
	return &Retrier{
		schedules: schedules,
		sleep:     sleepCtx,
	}
}

// ExecuteWithRetry runs fn up to the schedule's attempt count. Each
// attempt gets its own timeout from the schedule. Only transient
// failures are retried; permanent failures return immediately.
func (r *Retrier) ExecuteWithRetry(ctx context.Context, service string, fn func(ctx context.Context) error) error {
	schedule, ok := r.schedules[service]
	if !ok {
		schedule = fallbackSchedule
	}

	var lastErr error
	for attempt := 0; attempt < len(schedule.Timeouts); attempt++ {
		if attempt > 0 {
			// base × 2^attempt plus uniform jitter in [0, 0.2]×current.
			backoff := schedule.Backoff * (1 << attempt)
			jitter := time.Duration(rand.Float64() * 0.2 * float64(backoff))
			if err := r.sleep(ctx, backoff+jitter); err != nil {
				return err
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, schedule.Timeouts[attempt])
		err := fn(attemptCtx)
		cancel()

		if err == nil {
			return nil
		}
		lastErr = err

		if Classify(err) == Permanent {
			return err
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%s retry aborted: %w", service, ctx.Err())
		}
		slog.Debug("Retrying after transient failure",
			"service", service, "attempt", attempt+1, "error", err)
	}
	return fmt.Errorf("%s failed after %d attempts: %w", service, len(schedule.Timeouts), lastErr)
}

// WithGracefulDegradation returns fallback's result whenever primary
// fails for any reason.
func WithGracefulDegradation[T any](ctx context.Context,
	primary func(ctx context.Context) (T, error),
	fallback func(ctx context.Context) (T, error),
) (T, error) {
	result, err := primary(ctx)
	if err == nil {
		return result, nil
	}
	slog.Debug("Primary failed, degrading to fallback", "error", err)
	return fallback(ctx)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
