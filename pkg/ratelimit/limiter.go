// Package ratelimit implements per-service minute-bucket request
// counters. Buckets are keyed by floor(unix/60), so the counter resets
// at the start of the next minute.
package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// Usage reports the consumption of one service. Hour and day values
// are advisory aggregates used by the LLM budget guard.
type Usage struct {
	Minute int `json:"minute"`
	Hour   int `json:"hour"`
	Day    int `json:"day"`
}

// Limiter tracks request counts per service per minute bucket.
type Limiter struct {
	mu      sync.Mutex
	limits  map[string]int // service → max requests per minute
	buckets map[string]int // service:bucket → count
	hourly  map[string]int // service:hourBucket → count
	daily   map[string]int // service:dayBucket → count

	now func() time.Time // injectable clock for tests
}

// New creates a limiter from a service→rpm table. Services missing from
// the table are unlimited.
func New(limits map[string]int) *Limiter {
	return &Limiter{
		limits:  limits,
		buckets: make(map[string]int),
		hourly:  make(map[string]int),
		daily:   make(map[string]int),
		now:     time.Now,
	}
}

// Allow increments the current minute bucket for service and reports
// whether the request is within the per-minute limit. The increment
// happens regardless, so rejected requests still count toward the
// advisory aggregates.
func (l *Limiter) Allow(service string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now().Unix()
	minuteKey := bucketKey(service, now/60)
	l.pruneLocked(service, now)

	l.buckets[minuteKey]++
	l.hourly[bucketKey(service, now/3600)]++
	l.daily[bucketKey(service, now/86400)]++

	limit, ok := l.limits[service]
	if !ok {
		return true
	}
	return l.buckets[minuteKey] <= limit
}

// Usage returns current consumption for service.
func (l *Limiter) Usage(service string) Usage {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now().Unix()
	return Usage{
		Minute: l.buckets[bucketKey(service, now/60)],
		Hour:   l.hourly[bucketKey(service, now/3600)],
		Day:    l.daily[bucketKey(service, now/86400)],
	}
}

// pruneLocked drops stale buckets for service. Caller holds the lock.
func (l *Limiter) pruneLocked(service string, now int64) {
	current := bucketKey(service, now/60)
	for k := range l.buckets {
		if k != current && hasServicePrefix(k, service) {
			delete(l.buckets, k)
		}
	}
	currentHour := bucketKey(service, now/3600)
	for k := range l.hourly {
		if k != currentHour && hasServicePrefix(k, service) {
			delete(l.hourly, k)
		}
	}
	currentDay := bucketKey(service, now/86400)
	for k := range l.daily {
		if k != currentDay && hasServicePrefix(k, service) {
			delete(l.daily, k)
		}
	}
}

func bucketKey(service string, bucket int64) string {
	return fmt.Sprintf("%s:%d", service, bucket)
}

func hasServicePrefix(key, service string) bool {
	return len(key) > len(service) && key[:len(service)] == service && key[len(service)] == ':'
}
