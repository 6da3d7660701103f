package prioritize

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// rawEntry is the wire shape of one prioritiser result. Score is loose
// because models occasionally emit it as a string.
type rawEntry struct {
	URL    string `json:"url"`
	Score  any    `json:"score"`
	Reason string `json:"reason"`
}

// scoredURL is a parsed entry before normalisation.
type scoredURL struct {
	URL     string
	Score   float64
	ScoreOK bool
	Reason  string
}

// parseScores recovers `[{url,score,reason}]` from raw model output.
// Models truncate, wrap in prose, or emit fragments; each strategy is
// tried in order until one yields at least one entry.
func parseScores(raw string) ([]scoredURL, error) {
	raw = stripCodeFences(strings.TrimSpace(raw))
	if raw == "" {
		return nil, fmt.Errorf("empty response")
	}

	strategies := []func(string) ([]scoredURL, error){
		parseDirect,
		parseAppendBracket,
		parseFirstArraySlice,
		parseRepaired,
		parseObjectFragments,
	}
	var lastErr error
	for _, parse := range strategies {
		entries, err := parse(raw)
		if err == nil && len(entries) > 0 {
			return entries, nil
		}
		if err != nil {
			lastErr = err
		}
	}
	return nil, fmt.Errorf("no strategy recovered scores: %w", lastErr)
}

var codeFencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

func stripCodeFences(s string) string {
	if m := codeFencePattern.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return s
}

func decodeEntries(s string) ([]scoredURL, error) {
	var raw []rawEntry
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, err
	}
	entries := make([]scoredURL, 0, len(raw))
	for _, r := range raw {
		e := scoredURL{URL: strings.TrimSpace(r.URL), Reason: r.Reason}
		e.Score, e.ScoreOK = coerceScore(r.Score)
		entries = append(entries, e)
	}
	return entries, nil
}

// coerceScore accepts numbers and numeric strings.
func coerceScore(v any) (float64, bool) {
	switch s := v.(type) {
	case float64:
		return s, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func parseDirect(raw string) ([]scoredURL, error) {
	return decodeEntries(raw)
}

// parseAppendBracket handles output truncated before the closing `]`.
func parseAppendBracket(raw string) ([]scoredURL, error) {
	if !strings.HasPrefix(raw, "[") || strings.HasSuffix(raw, "]") {
		return nil, fmt.Errorf("not an unterminated array")
	}
	// Drop a trailing partial object first.
	trimmed := strings.TrimRight(raw, " \n\t,")
	if i := strings.LastIndex(trimmed, "}"); i >= 0 {
		trimmed = trimmed[:i+1]
	}
	return decodeEntries(trimmed + "]")
}

// parseFirstArraySlice extracts the first bracketed slice from prose.
func parseFirstArraySlice(raw string) ([]scoredURL, error) {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no array slice found")
	}
	return decodeEntries(raw[start : end+1])
}

// parseRepaired closes unbalanced braces and brackets, then retries.
func parseRepaired(raw string) ([]scoredURL, error) {
	return decodeEntries(repairJSON(raw))
}

// repairJSON appends the closers a truncated document is missing. It
// tracks string state so braces inside values are not counted.
func repairJSON(s string) string {
	var stack []byte
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			stack = append(stack, '}')
		case c == '[':
			stack = append(stack, ']')
		case c == '}' || c == ']':
			if len(stack) > 0 && stack[len(stack)-1] == c {
				stack = stack[:len(stack)-1]
			}
		}
	}
	var b strings.Builder
	b.WriteString(strings.TrimRight(s, " \n\t,"))
	if inString {
		b.WriteByte('"')
	}
	for i := len(stack) - 1; i >= 0; i-- {
		b.WriteByte(stack[i])
	}
	return b.String()
}

var objectPattern = regexp.MustCompile(`\{[^{}]*\}`)

// parseObjectFragments is the last resort: pull out every flat `{...}`
// object and keep the ones that decode.
func parseObjectFragments(raw string) ([]scoredURL, error) {
	var entries []scoredURL
	for _, frag := range objectPattern.FindAllString(raw, -1) {
		var r rawEntry
		if err := json.Unmarshal([]byte(frag), &r); err != nil {
			continue
		}
		if r.URL == "" {
			continue
		}
		e := scoredURL{URL: strings.TrimSpace(r.URL), Reason: r.Reason}
		e.Score, e.ScoreOK = coerceScore(r.Score)
		entries = append(entries, e)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no parseable object fragments")
	}
	return entries, nil
}
