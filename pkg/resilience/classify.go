// Package resilience provides the failure-handling primitives shared by
// all external calls: error classification, per-service circuit
// breakers, and the adaptive-timeout retry engine.
package resilience

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Kind classifies a failure for retry and breaker accounting.
type Kind int

const (
	// Transient — timeout, abort, network failure, HTTP ≥500, unknown.
	// Counted by circuit breakers and retried with backoff.
	Transient Kind = iota
	// Permanent — HTTP 4xx, cancellation, malformed input. Not retried
	// and not counted by breakers.
	Permanent
)

// HTTPError carries a provider's HTTP status for classification.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("http %d: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("http %d", e.Status)
}

// Classify determines whether an error should be treated as transient.
// nil errors must not be passed.
func Classify(err error) Kind {
	// Caller-initiated cancellation is never a provider failure.
	if errors.Is(err, context.Canceled) {
		return Permanent
	}
	// Deadline expiry is a timeout.
	if errors.Is(err, context.DeadlineExceeded) {
		return Transient
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.Status >= 500 {
			return Transient
		}
		return Permanent
	}

	// Decode failures are the caller's problem, not the provider's.
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	if errors.As(err, &typeErr) || errors.As(err, &syntaxErr) {
		return Permanent
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return Transient
	}

	if isConnectionError(err) {
		return Transient
	}

	// Unknown errors count as transient: a provider in an undefined
	// state is treated like an unavailable one.
	return Transient
}

// isConnectionError detects connection-level transport failures by
// message, for errors that lose their type through wrapping.
func isConnectionError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, s := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"connection closed",
		"no such host",
		"timeout",
		"aborted",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
