package providers

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DefaultLimit is applied when a request does not set one.
const DefaultLimit = 10

var (
	whitespacePattern = regexp.MustCompile(`\s+`)
	// Trailing event-type suffixes stripped so "fintech conference" and
	// "fintech summit" share one cache entry.
	eventSuffixPattern = regexp.MustCompile(`\s+(conference|summit|event|events|workshop|kongress|tagung)$`)
	booleanPattern     = regexp.MustCompile(`\s+(AND|OR|NOT)\s+`)
)

// NormalizeQuery canonicalises a query for cache keying and in-flight
// deduplication: lower-case, collapsed whitespace, boolean operators
// removed, trailing event-type suffixes stripped.
func NormalizeQuery(q string) string {
	// Boolean operators are uppercase by convention; strip them before
	// lowercasing so "Food and Beverage" keeps its conjunction.
	q = booleanPattern.ReplaceAllString(" "+strings.TrimSpace(q)+" ", " ")
	q = strings.ToLower(q)
	q = strings.NewReplacer("(", " ", ")", " ").Replace(q)
	q = whitespacePattern.ReplaceAllString(q, " ")
	q = strings.TrimSpace(q)
	for {
		stripped := eventSuffixPattern.ReplaceAllString(q, "")
		if stripped == q {
			return q
		}
		q = stripped
	}
}

// CacheKey computes the provider-agnostic unified cache key.
func CacheKey(req Request) string {
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	return fmt.Sprintf("search:%s:%s:%s:%s:%d",
		NormalizeQuery(req.Query),
		strings.ToUpper(req.Country),
		req.DateFrom, req.DateTo, limit)
}

// ParseCacheKey inverts CacheKey for cache warming: a stored key is
// turned back into the request that produced it. Reports false for
// keys in any other format.
func ParseCacheKey(key string) (Request, bool) {
	if !strings.HasPrefix(key, "search:") {
		return Request{}, false
	}
	parts := strings.Split(key[len("search:"):], ":")
	if len(parts) != 5 {
		return Request{}, false
	}
	limit, err := strconv.Atoi(parts[4])
	if err != nil {
		return Request{}, false
	}
	return Request{
		Query:    parts[0],
		Country:  parts[1],
		DateFrom: parts[2],
		DateTo:   parts[3],
		Limit:    limit,
	}, true
}

// DedupKey is the in-flight deduplication key: normalised query plus
// country and window, without the limit.
func DedupKey(req Request) string {
	return fmt.Sprintf("%s|%s|%s|%s",
		NormalizeQuery(req.Query),
		strings.ToUpper(req.Country),
		req.DateFrom, req.DateTo)
}

var quotedPhrasePattern = regexp.MustCompile(`"[^"]+"`)

// SimplifyForCSE rewrites long boolean queries for Google CSE: strip
// parentheses and AND/OR/NOT, keep quoted phrases, cap at 256 chars.
func SimplifyForCSE(q string) string {
	phrases := quotedPhrasePattern.FindAllString(q, -1)

	rest := quotedPhrasePattern.ReplaceAllString(q, " ")
	rest = strings.NewReplacer("(", " ", ")", " ").Replace(rest)
	rest = booleanPattern.ReplaceAllString(rest, " ")
	// Bare operators at string edges survive the spaced pattern.
	words := strings.Fields(rest)
	kept := words[:0]
	for _, w := range words {
		if w == "AND" || w == "OR" || w == "NOT" {
			continue
		}
		kept = append(kept, w)
	}

	simplified := strings.Join(append(phrases, kept...), " ")
	if len(simplified) > 256 {
		simplified = simplified[:256]
		if i := strings.LastIndex(simplified, " "); i > 0 {
			simplified = simplified[:i]
		}
	}
	return strings.TrimSpace(simplified)
}
