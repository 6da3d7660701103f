package models

import (
	"net/url"
	"strings"
)

// aggregatorHosts is the fixed set of hosts whose content is primarily
// third-party event listings. Matched on the registrable host and any
// subdomain of it.
var aggregatorHosts = map[string]struct{}{
	"eventbrite.com":      {},
	"eventbrite.de":       {},
	"eventbrite.co.uk":    {},
	"10times.com":         {},
	"linkedin.com":        {},
	"cvent.com":           {},
	"meetup.com":          {},
	"xing.com":            {},
	"allevents.in":        {},
	"conferenceindex.org": {},
}

// CandidateURL is a discovered URL plus its derived host.
// Invariant: URLs are absolute http(s).
type CandidateURL struct {
	URL  string `json:"url"`
	Host string `json:"host"`
}

// NewCandidateURL parses raw into a CandidateURL.
// Returns ok=false for relative or non-http(s) URLs.
func NewCandidateURL(raw string) (CandidateURL, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return CandidateURL{}, false
	}
	return CandidateURL{URL: u.String(), Host: strings.ToLower(u.Hostname())}, true
}

// IsAggregator reports whether the URL's host is in the aggregator set.
func (c CandidateURL) IsAggregator() bool {
	return IsAggregatorHost(c.Host)
}

// IsAggregatorHost reports whether host (or a parent domain of it) is a
// known aggregator.
func IsAggregatorHost(host string) bool {
	host = strings.ToLower(strings.TrimPrefix(host, "www."))
	for {
		if _, ok := aggregatorHosts[host]; ok {
			return true
		}
		i := strings.Index(host, ".")
		if i < 0 || strings.Index(host[i+1:], ".") < 0 {
			return false
		}
		host = host[i+1:]
	}
}

// PrioritisedURL is a URL scored by the prioritiser.
// Score is monotone in relevance; ties keep original insertion order.
type PrioritisedURL struct {
	URL    string  `json:"url"`
	Score  float64 `json:"score"`  // in [0,1]
	Reason string  `json:"reason"` // ≤10 chars
}
