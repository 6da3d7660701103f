package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noSleep(ctx context.Context, d time.Duration) error { return nil }

func TestRetrier_SucceedsFirstAttempt(t *testing.T) {
	r := NewRetrier(nil)
	r.sleep = noSleep

	calls := 0
	err := r.ExecuteWithRetry(context.Background(), "search", func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetrier_RetriesTransientUpToScheduleLength(t *testing.T) {
	r := NewRetrier(nil)
	r.sleep = noSleep

	calls := 0
	err := r.ExecuteWithRetry(context.Background(), "search", func(ctx context.Context) error {
		calls++
		return errors.New("connection reset")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls, "search schedule has three attempts")
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestRetrier_PermanentFailureNotRetried(t *testing.T) {
	r := NewRetrier(nil)
	r.sleep = noSleep

	calls := 0
	err := r.ExecuteWithRetry(context.Background(), "search", func(ctx context.Context) error {
		calls++
		return &HTTPError{Status: 400}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetrier_RecoversOnSecondAttempt(t *testing.T) {
	r := NewRetrier(nil)
	r.sleep = noSleep

	calls := 0
	err := r.ExecuteWithRetry(context.Background(), "search", func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return context.DeadlineExceeded
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetrier_PerAttemptTimeoutApplied(t *testing.T) {
	r := NewRetrier(map[string]RetrySchedule{
		"fast": {Timeouts: []time.Duration{20 * time.Millisecond}, Backoff: time.Millisecond},
	})
	r.sleep = noSleep

	err := r.ExecuteWithRetry(context.Background(), "fast", func(ctx context.Context) error {
		deadline, ok := ctx.Deadline()
		require.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(20*time.Millisecond), deadline, 10*time.Millisecond)
		return nil
	})
	require.NoError(t, err)
}

func TestRetrier_ParentCancellationStopsRetries(t *testing.T) {
	r := NewRetrier(nil)
	r.sleep = sleepCtx

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := r.ExecuteWithRetry(ctx, "search", func(ctx context.Context) error {
		calls++
		return errors.New("connection reset")
	})
	require.Error(t, err)
	assert.Less(t, calls, 3)
}

func TestWithGracefulDegradation(t *testing.T) {
	ctx := context.Background()

	got, err := WithGracefulDegradation(ctx,
		func(ctx context.Context) (string, error) { return "", errors.New("primary down") },
		func(ctx context.Context) (string, error) { return "fallback", nil },
	)
	require.NoError(t, err)
	assert.Equal(t, "fallback", got)

	got, err = WithGracefulDegradation(ctx,
		func(ctx context.Context) (string, error) { return "primary", nil },
		func(ctx context.Context) (string, error) { t.Fatal("fallback must not run"); return "", nil },
	)
	require.NoError(t, err)
	assert.Equal(t, "primary", got)
}
