package providers

import (
	"net/url"
	"strings"
)

// countryTLDs maps a country code to the TLDs whose hosts are accepted
// as in-country for CSE result filtering. The generic TLDs are always
// accepted; this map only adds country-specific ones.
var countryTLDs = map[string][]string{
	"DE": {".de", ".at", ".ch"},
	"AT": {".at", ".de", ".ch"},
	"CH": {".ch", ".de", ".at"},
	"US": {".us", ".com", ".org"},
	"GB": {".uk", ".co.uk"},
	"FR": {".fr"},
	"NL": {".nl"},
	"ES": {".es"},
	"IT": {".it"},
}

// genericTLDs are accepted for any country.
var genericTLDs = []string{".com", ".org", ".net", ".io", ".eu", ".info"}

// countryExclusions lists host fragments that disqualify a result for a
// country even when the TLD matches (foreign-market subdomains of
// global platforms).
var countryExclusions = map[string][]string{
	"DE": {".com.au", ".co.nz", ".co.za", ".com.br", "/en-us/"},
	"GB": {".com.au", ".co.nz"},
}

// MatchesCountry reports whether rawURL plausibly belongs to country.
// Empty country accepts everything.
func MatchesCountry(rawURL, country string) bool {
	if country == "" {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	full := strings.ToLower(rawURL)

	for _, excl := range countryExclusions[country] {
		if strings.Contains(full, excl) {
			return false
		}
	}

	for _, tld := range countryTLDs[country] {
		if strings.HasSuffix(host, tld) {
			return true
		}
	}
	for _, tld := range genericTLDs {
		if strings.HasSuffix(host, tld) {
			return true
		}
	}
	return false
}

// HasCountryTLD reports whether rawURL's host carries one of country's
// own TLDs. Stricter than MatchesCountry: generic TLDs do not count.
func HasCountryTLD(rawURL, country string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, tld := range countryTLDs[strings.ToUpper(country)] {
		if strings.HasSuffix(host, tld) {
			return true
		}
	}
	return false
}
