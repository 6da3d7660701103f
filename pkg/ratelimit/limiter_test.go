package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiter_AllowWithinLimit(t *testing.T) {
	l := New(map[string]int{"firecrawl": 3})

	assert.True(t, l.Allow("firecrawl"))
	assert.True(t, l.Allow("firecrawl"))
	assert.True(t, l.Allow("firecrawl"))
	assert.False(t, l.Allow("firecrawl"), "fourth request exceeds the minute limit")
}

func TestLimiter_UnknownServiceUnlimited(t *testing.T) {
	l := New(map[string]int{"firecrawl": 1})

	for i := 0; i < 50; i++ {
		assert.True(t, l.Allow("database"))
	}
}

func TestLimiter_ResetsAtNextMinute(t *testing.T) {
	l := New(map[string]int{"cse": 2})

	base := time.Date(2025, 3, 1, 10, 0, 30, 0, time.UTC)
	l.now = func() time.Time { return base }

	assert.True(t, l.Allow("cse"))
	assert.True(t, l.Allow("cse"))
	assert.False(t, l.Allow("cse"))

	// Start of the next minute: fresh bucket.
	l.now = func() time.Time { return base.Add(30 * time.Second) }
	assert.True(t, l.Allow("cse"))
}

func TestLimiter_UsageAggregates(t *testing.T) {
	l := New(map[string]int{"gemini": 100})

	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return base }

	l.Allow("gemini")
	l.Allow("gemini")

	u := l.Usage("gemini")
	assert.Equal(t, 2, u.Minute)
	assert.Equal(t, 2, u.Hour)
	assert.Equal(t, 2, u.Day)

	// Next minute within the same hour: minute resets, hour keeps counting.
	l.now = func() time.Time { return base.Add(time.Minute) }
	l.Allow("gemini")

	u = l.Usage("gemini")
	assert.Equal(t, 1, u.Minute)
	assert.Equal(t, 3, u.Hour)
	assert.Equal(t, 3, u.Day)
}

func TestLimiter_ServicesIndependent(t *testing.T) {
	l := New(map[string]int{"firecrawl": 1, "cse": 1})

	assert.True(t, l.Allow("firecrawl"))
	assert.False(t, l.Allow("firecrawl"))
	assert.True(t, l.Allow("cse"), "cse bucket is unaffected by firecrawl")
}

func TestLimiter_Concurrent(t *testing.T) {
	l := New(map[string]int{"firecrawl": 50})

	var wg sync.WaitGroup
	allowed := make(chan bool, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed <- l.Allow("firecrawl")
		}()
	}
	wg.Wait()
	close(allowed)

	count := 0
	for ok := range allowed {
		if ok {
			count++
		}
	}
	assert.Equal(t, 50, count, "exactly the limit is admitted")
}
