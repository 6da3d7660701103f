// Package profile reads the per-tenant precision profile the query
// builder and prioritiser consume. Read-only; profiles are maintained
// outside this service.
package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/eventscout/eventscout/pkg/models"
)

// defaultCacheTTL bounds how stale a served profile may be. Profiles
// change rarely; a short TTL keeps the pipeline off the database.
const defaultCacheTTL = 5 * time.Minute

// Loader serves one tenant's profile from the user_profiles table with
// a small read-through cache. A nil db serves no profile, which sends
// the pipeline down the generic query path.
type Loader struct {
	db     *sql.DB
	tenant string
	ttl    time.Duration

	mu      sync.Mutex
	cached  *models.UserProfile
	fetched time.Time
}

// NewLoader creates a loader for one tenant. db may be nil.
func NewLoader(db *sql.DB, tenant string) *Loader {
	return &Loader{db: db, tenant: tenant, ttl: defaultCacheTTL}
}

// Load implements the pipeline's ProfileLoader contract.
func (l *Loader) Load(ctx context.Context) (*models.UserProfile, error) {
	if l.db == nil {
		return nil, nil
	}

	l.mu.Lock()
	if l.cached != nil && time.Since(l.fetched) < l.ttl {
		p := l.cached
		l.mu.Unlock()
		return p, nil
	}
	l.mu.Unlock()

	p, err := l.fetch(ctx)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.cached = p
	l.fetched = time.Now()
	l.mu.Unlock()
	return p, nil
}

func (l *Loader) fetch(ctx context.Context) (*models.UserProfile, error) {
	const query = `
		SELECT industry_terms, icp_terms, competitors
		FROM user_profiles
		WHERE tenant = $1`

	var industry, icp, competitors []byte
	err := l.db.QueryRowContext(ctx, query, l.tenant).Scan(&industry, &icp, &competitors)
	if errors.Is(err, sql.ErrNoRows) {
		// No profile row is not an error; the generic path applies.
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("profile query failed for tenant %s: %w", l.tenant, err)
	}

	return &models.UserProfile{
		IndustryTerms: parseTextArray(industry),
		ICPTerms:      parseTextArray(icp),
		Competitors:   parseTextArray(competitors),
	}, nil
}

// parseTextArray decodes a Postgres text[] wire value. The pgx stdlib
// driver hands arrays back in their literal form, {a,"b c",d}.
func parseTextArray(raw []byte) []string {
	s := string(raw)
	if len(s) < 2 || s[0] != '{' || s[len(s)-1] != '}' {
		return nil
	}
	s = s[1 : len(s)-1]
	if s == "" {
		return nil
	}

	var out []string
	var cur []rune
	inQuotes := false
	escaped := false
	for _, r := range s {
		switch {
		case escaped:
			cur = append(cur, r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == '"':
			inQuotes = !inQuotes
		case r == ',' && !inQuotes:
			out = append(out, string(cur))
			cur = cur[:0]
		default:
			cur = append(cur, r)
		}
	}
	out = append(out, string(cur))
	return out
}
