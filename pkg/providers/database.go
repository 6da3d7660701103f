package providers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/eventscout/eventscout/pkg/models"
)

// DatabaseProvider serves the curated events table as the last search
// arm. It never reaches the network, so its deadline is the shortest.
// Without a configured database it falls back to a small static seed
// list so development setups still exercise the full pipeline.
type DatabaseProvider struct {
	db   *sql.DB // nil → static list
	seed []Item
}

// staticSeed is the development fallback corpus.
var staticSeed = []Item{
	{URL: "https://www.handelsblatt.com/veranstaltungen/compliance-kongress", Title: "Compliance Kongress", Description: "Jahrestagung für Compliance und Recht"},
	{URL: "https://www.euroforum.de/jahrestagung-legal-operations", Title: "Legal Operations Jahrestagung", Description: "Legal operations and legal tech conference"},
	{URL: "https://www.bitkom.org/events/digital-finance-conference", Title: "Digital Finance Conference", Description: "Banking and fintech summit"},
	{URL: "https://www.managementcircle.de/tagung/datenschutz-kongress", Title: "Datenschutz Kongress", Description: "Data protection and privacy conference"},
	{URL: "https://www.handelsblatt.com/veranstaltungen/banken-tech", Title: "Banken Tech Summit", Description: "Technology summit for banking executives"},
}

// NewDatabaseProvider creates the database arm. db may be nil.
func NewDatabaseProvider(db *sql.DB) *DatabaseProvider {
	return &DatabaseProvider{db: db, seed: staticSeed}
}

// Name implements SearchProvider.
func (p *DatabaseProvider) Name() models.Source { return models.SourceDatabase }

// Search implements SearchProvider.
func (p *DatabaseProvider) Search(ctx context.Context, req Request) ([]Item, error) {
	if p.db == nil {
		return p.searchSeed(req), nil
	}
	return p.searchDB(ctx, req)
}

func (p *DatabaseProvider) searchDB(ctx context.Context, req Request) ([]Item, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	query := `
		SELECT url, title, COALESCE(description, '')
		FROM events
		WHERE ($1 = '' OR country = $1)
		  AND ($2 = '' OR event_date >= $2::date)
		  AND ($3 = '' OR event_date <= $3::date)
		  AND (title ILIKE '%' || $4 || '%' OR description ILIKE '%' || $4 || '%')
		ORDER BY event_date
		LIMIT $5`

	keyword := firstKeyword(req.Query)
	rows, err := p.db.QueryContext(ctx, query, req.Country, req.DateFrom, req.DateTo, keyword, limit)
	if err != nil {
		return nil, fmt.Errorf("events query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.URL, &it.Title, &it.Description); err != nil {
			return nil, fmt.Errorf("events scan failed: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// searchSeed filters the static list by keyword.
func (p *DatabaseProvider) searchSeed(req Request) []Item {
	keyword := strings.ToLower(firstKeyword(req.Query))
	var items []Item
	for _, it := range p.seed {
		haystack := strings.ToLower(it.Title + " " + it.Description + " " + it.URL)
		if keyword == "" || strings.Contains(haystack, keyword) {
			items = append(items, it)
		}
		if req.Limit > 0 && len(items) >= req.Limit {
			break
		}
	}
	return items
}

// firstKeyword extracts the most selective term of a query: the first
// word longer than three characters of the normalised form.
func firstKeyword(q string) string {
	for _, w := range strings.Fields(NormalizeQuery(q)) {
		if len(w) > 3 {
			return w
		}
	}
	return ""
}
