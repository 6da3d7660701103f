// Package scrape provides the page scraper contract and its two
// implementations: the Firecrawl scrape API and a local HTTP fallback
// that converts fetched HTML to markdown itself.
package scrape

import (
	"context"
)

// Page is the scraper output: page content as markdown plus whatever
// metadata the scraper could determine.
type Page struct {
	URL         string `json:"url"`
	Markdown    string `json:"markdown"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// Scraper fetches one page as markdown. Implementations honour the
// context deadline.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*Page, error)
}

// Degrading chains a primary scraper with a fallback: any primary
// failure silently degrades to the fallback.
type Degrading struct {
	Primary  Scraper
	Fallback Scraper
}

// Scrape tries Primary, then Fallback.
func (d *Degrading) Scrape(ctx context.Context, url string) (*Page, error) {
	page, err := d.Primary.Scrape(ctx, url)
	if err == nil {
		return page, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}
	return d.Fallback.Scrape(ctx, url)
}
