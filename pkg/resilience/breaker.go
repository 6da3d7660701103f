package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// State is a circuit breaker state.
type State string

const (
	StateClosed   State = "CLOSED"
	StateOpen     State = "OPEN"
	StateHalfOpen State = "HALF_OPEN"
)

// ErrCircuitOpen is returned when a call is short-circuited without
// invoking the protected function.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerConfig tunes one breaker.
type BreakerConfig struct {
	// FailureThreshold — consecutive transient failures before opening.
	FailureThreshold int
	// SuccessThreshold — successes in HALF_OPEN before closing.
	SuccessThreshold int
	// MaxProbes — concurrent probes admitted in HALF_OPEN.
	MaxProbes int
	// ResetTimeout — how long OPEN lasts before probing.
	ResetTimeout time.Duration
	// CallTimeout — per-request deadline; a fired deadline counts as a
	// transient failure.
	CallTimeout time.Duration
}

// DefaultBreakerConfig returns sensible production values.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		MaxProbes:        1,
		ResetTimeout:     30 * time.Second,
		CallTimeout:      30 * time.Second,
	}
}

// BreakerStats is a snapshot of breaker state for observability.
type BreakerStats struct {
	Service         string    `json:"service"`
	State           State     `json:"state"`
	SuccessCount    int       `json:"success_count"`
	FailureCount    int       `json:"failure_count"`
	NextAttemptTime time.Time `json:"next_attempt_time,omitzero"`
}

// Breaker shields one external service from cascading failure.
// CLOSED → OPEN after FailureThreshold consecutive transient failures;
// OPEN → HALF_OPEN after ResetTimeout; HALF_OPEN → CLOSED after
// SuccessThreshold successes, back to OPEN on any failure.
type Breaker struct {
	service string
	cfg     BreakerConfig

	mu          sync.Mutex
	state       State
	failures    int // consecutive transient failures (CLOSED)
	successes   int // successes in HALF_OPEN
	probes      int // in-flight probes in HALF_OPEN
	totalOK     int
	totalFail   int
	nextAttempt time.Time

	now func() time.Time
}

// NewBreaker creates a breaker for service.
func NewBreaker(service string, cfg BreakerConfig) *Breaker {
	return &Breaker{
		service: service,
		cfg:     cfg,
		state:   StateClosed,
		now:     time.Now,
	}
}

// Execute runs fn under the breaker with the configured per-call
// timeout. When the breaker is open, fn is not invoked and
// ErrCircuitOpen is returned.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, b.cfg.CallTimeout)
	defer cancel()

	err := fn(callCtx)
	if err == nil {
		b.recordSuccess()
		return nil
	}
	// A fired per-call deadline surfaces as DeadlineExceeded — transient.
	if callCtx.Err() == context.DeadlineExceeded && errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%s call timed out after %s: %w", b.service, b.cfg.CallTimeout, err)
	}
	b.recordFailure(err)
	return err
}

// admit decides whether a call may proceed, transitioning
// OPEN → HALF_OPEN when the reset timeout has elapsed.
func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if b.now().Before(b.nextAttempt) {
			return fmt.Errorf("%s: %w", b.service, ErrCircuitOpen)
		}
		b.transitionLocked(StateHalfOpen)
		b.probes = 1
		return nil
	case StateHalfOpen:
		if b.probes >= b.cfg.MaxProbes {
			return fmt.Errorf("%s: %w", b.service, ErrCircuitOpen)
		}
		b.probes++
		return nil
	}
	return nil
}

func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalOK++
	switch b.state {
	case StateClosed:
		b.failures = 0
	case StateHalfOpen:
		b.probes--
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.transitionLocked(StateClosed)
		}
	}
}

func (b *Breaker) recordFailure(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if Classify(err) == Permanent {
		// 4xx and caller errors do not indicate service health, so they
		// never trip the breaker. A finished half-open probe must still
		// release its slot or the breaker wedges at MaxProbes.
		if b.state == StateHalfOpen {
			b.probes--
		}
		return
	}

	b.totalFail++
	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.tripLocked()
		}
	case StateHalfOpen:
		b.probes--
		b.tripLocked()
	}
}

func (b *Breaker) tripLocked() {
	b.transitionLocked(StateOpen)
	b.nextAttempt = b.now().Add(b.cfg.ResetTimeout)
}

func (b *Breaker) transitionLocked(to State) {
	if b.state == to {
		return
	}
	slog.Warn("Circuit breaker state change",
		"service", b.service, "from", b.state, "to", to)
	b.state = to
	switch to {
	case StateClosed:
		b.failures = 0
		b.successes = 0
		b.probes = 0
		b.nextAttempt = time.Time{}
	case StateHalfOpen:
		b.successes = 0
		b.probes = 0
	}
}

// Stats returns a snapshot for the stats endpoint.
func (b *Breaker) Stats() BreakerStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerStats{
		Service:         b.service,
		State:           b.state,
		SuccessCount:    b.totalOK,
		FailureCount:    b.totalFail,
		NextAttemptTime: b.nextAttempt,
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
